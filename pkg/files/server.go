package files

import (
	"errors"
	"log/slog"
	"net/http"

	"ragbridge/pkg/server"
)

type notFoundResponse struct {
	Detail string `json:"detail"`
}

// NewHandler exposes store as GET /files, GET /file/{name} and GET /health.
func NewHandler(store *Store, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "files.server")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", server.HandleHealth)

	mux.HandleFunc("GET /files", func(w http.ResponseWriter, r *http.Request) {
		names, err := store.List(r.Context())
		if err != nil {
			log.Error("Failed to list files", "error", err)
			server.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		log.Info("Listing files", "count", len(names))
		server.WriteJSON(w, http.StatusOK, names)
	})

	mux.HandleFunc("GET /file/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("name")
		content, err := store.Read(r.Context(), name)
		if err != nil {
			if IsNotFound(err) {
				log.Warn("File not found", "name", name, "category", CategoryFromError(err))
				server.WriteJSON(w, http.StatusNotFound, notFoundResponse{Detail: "File not found"})
				return
			}
			var categorized *Error
			statusCode := http.StatusInternalServerError
			if errors.As(err, &categorized) && (categorized.Category == ErrorTooLarge || categorized.Category == ErrorNotText) {
				statusCode = http.StatusUnprocessableEntity
			}
			log.Error("Failed to read file", "name", name, "error", err)
			server.WriteError(w, statusCode, err.Error())
			return
		}

		log.Info("Reading file", "name", name, "bytes", len(content))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(content))
	})

	return mux
}
