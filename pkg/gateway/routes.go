package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"ragbridge/pkg/bus"
	"ragbridge/pkg/egress"
	"ragbridge/pkg/routing"
	"ragbridge/pkg/server"
)

const (
	messageQueued       = "Сообщение отправлено в Redis очередь для обработки"
	messageIndexStarted = "Индексация запущена"
	messageResultSentTo = "Результат отправлен в %s"
	messageUnknownQueue = "Неизвестная очередь-источник: %s"
)

type ingestRequest struct {
	SourceQueue string `json:"source_queue"`
	Body        string `json:"body"`
}

type ingestResponse struct {
	Status     string `json:"status"`
	RedisQueue string `json:"redis_queue"`
}

type directRequest struct {
	Body string `json:"body"`
}

// Handler returns the translator's HTTP routes.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", server.HandleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("POST /ingest", s.handleIngest)
	mux.HandleFunc("POST /chat", s.handleDirect(func() string { return s.sources.Chat }))
	mux.HandleFunc("POST /email", s.handleDirect(func() string { return s.sources.Email }))
	mux.HandleFunc("POST /index", s.handleIndex)
	mux.HandleFunc("POST /result/rag", s.handleRAGResult)
	mux.HandleFunc("POST /result/indexer", s.handleIndexerResult)
	return mux
}

func (s *Service) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	destination, err := s.dispatcher.Dispatch(r.Context(), bus.InboundEnvelope{Source: req.SourceQueue, Body: req.Body})
	if err != nil {
		s.log.Error("Ingest failed", "source", req.SourceQueue, "error", err)
		server.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	server.WriteJSON(w, http.StatusOK, ingestResponse{Status: "ok", RedisQueue: destination})
}

func (s *Service) handleDirect(source func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req directRequest
		if err := server.DecodeJSON(r, &req); err != nil {
			server.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}

		s.log.Info("Direct request received", "source", source(), "body_length", len(req.Body))
		if _, err := s.dispatcher.Dispatch(r.Context(), bus.InboundEnvelope{Source: source(), Body: req.Body}); err != nil {
			s.log.Error("Direct request failed", "source", source(), "error", err)
			server.WriteError(w, http.StatusBadGateway, err.Error())
			return
		}

		server.WriteJSON(w, http.StatusOK, server.StatusResponse{Status: "ok", Message: messageQueued})
	}
}

func (s *Service) handleIndex(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	if err := server.DecodeJSON(r, &payload); err != nil {
		server.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	body := ""
	if len(payload) > 0 {
		raw, _ := json.Marshal(payload)
		body = string(raw)
	}

	s.log.Info("Direct index request received", "body_length", len(body))
	if _, err := s.dispatcher.Dispatch(r.Context(), bus.InboundEnvelope{Source: s.sources.Index, Body: body}); err != nil {
		s.log.Error("Index request failed", "error", err)
		server.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}

	server.WriteJSON(w, http.StatusOK, server.StatusResponse{Status: "ok", Message: messageIndexStarted})
}

func (s *Service) handleRAGResult(w http.ResponseWriter, r *http.Request) {
	var req egress.RAGResultRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.log.Info("Search result received", "source_queue", req.SourceQueue, "result_length", len(req.Result))
	if req.SourceQueue == routing.IndexerOrigin {
		s.rejectUnknown(w, req.SourceQueue)
		return
	}
	s.deliver(w, r, req.SourceQueue, req.Result)
}

func (s *Service) handleIndexerResult(w http.ResponseWriter, r *http.Request) {
	var req egress.IndexerResultRequest
	if err := server.DecodeJSON(r, &req); err != nil {
		server.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.log.Info("Indexing result received", "result", req.Result)
	s.deliver(w, r, routing.IndexerOrigin, req.Result)
}

func (s *Service) deliver(w http.ResponseWriter, r *http.Request, origin string, body string) {
	destination, err := s.sink.Deliver(r.Context(), origin, body)
	switch {
	case errors.Is(err, egress.ErrUnknownOrigin):
		s.rejectUnknown(w, origin)
	case err != nil:
		server.WriteError(w, http.StatusBadGateway, err.Error())
	default:
		server.WriteJSON(w, http.StatusOK, egress.CallbackResponse{
			Status:  "ok",
			Message: fmt.Sprintf(messageResultSentTo, destination),
			Queue:   destination,
		})
	}
}

func (s *Service) rejectUnknown(w http.ResponseWriter, origin string) {
	s.log.Warn("Unknown result origin", "source_queue", origin)
	server.WriteError(w, http.StatusBadRequest, fmt.Sprintf(messageUnknownQueue, origin))
}
