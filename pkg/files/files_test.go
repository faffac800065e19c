package files

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T, files map[string]string) *Store {
	t.Helper()

	root := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
	}

	store, err := NewStore(root, 1024)
	require.NoError(t, err)
	return store
}

func TestStoreListReturnsSortedRegularFiles(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, map[string]string{"b.txt": "b", "a.txt": "a"})
	require.NoError(t, os.Mkdir(filepath.Join(store.Root(), "nested"), 0o755))

	names, err := store.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt", "b.txt"}, names)
}

func TestStoreReadReturnsContent(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, map[string]string{"doc.txt": "привет"})

	content, err := store.Read(context.Background(), "doc.txt")
	require.NoError(t, err)
	require.Equal(t, "привет", content)
}

func TestStoreReadRejectsEscapes(t *testing.T) {
	t.Parallel()

	outside := filepath.Join(t.TempDir(), "secret.txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))

	store := newTestStore(t, nil)
	require.NoError(t, os.Symlink(outside, filepath.Join(store.Root(), "link.txt")))

	for name, category := range map[string]string{
		"../secret.txt": ErrorInvalidName,
		"":              ErrorInvalidName,
		"..":            ErrorInvalidName,
		"link.txt":      ErrorOutsideBase,
		"missing.txt":   ErrorNotFound,
	} {
		_, err := store.Read(context.Background(), name)
		require.Error(t, err, name)
		require.Equal(t, category, CategoryFromError(err), name)
		require.True(t, IsNotFound(err), name)
	}
}

func TestStoreReadRejectsLargeAndBinaryFiles(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, map[string]string{
		"big.txt": string(make([]byte, 2048)),
		"bin.dat": "a\x00b",
	})

	_, err := store.Read(context.Background(), "big.txt")
	require.Equal(t, ErrorTooLarge, CategoryFromError(err))

	_, err = store.Read(context.Background(), "bin.dat")
	require.Equal(t, ErrorNotText, CategoryFromError(err))
	require.False(t, IsNotFound(err))
}

func TestClientAgainstServer(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, map[string]string{"a.txt": "alpha", "b c.txt": "with space"})
	httpServer := httptest.NewServer(NewHandler(store, testLogger()))
	defer httpServer.Close()

	client, err := NewClient(httpServer.URL+"/", time.Second)
	require.NoError(t, err)
	ctx := context.Background()

	names, err := client.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a.txt", "b c.txt"}, names)

	content, err := client.Fetch(ctx, "b c.txt")
	require.NoError(t, err)
	require.Equal(t, "with space", content)

	_, err = client.Fetch(ctx, "missing.txt")
	require.True(t, IsNotFound(err))
}

func TestServerMissingFileAnswersDetail(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, nil)
	handler := NewHandler(store, testLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/file/nope.txt", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.JSONEq(t, `{"detail":"File not found"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestNormalizeIOErrorHidesPaths(t *testing.T) {
	t.Parallel()

	_, err := os.ReadFile(filepath.Join(t.TempDir(), "absent"))
	normalized := NormalizeIOError(err, "read failed")
	require.Equal(t, "not_found: file does not exist", normalized.Error())
	require.Nil(t, NormalizeIOError(nil, ""))
}

func TestNewClientRequiresURL(t *testing.T) {
	t.Parallel()

	_, err := NewClient("", 0)
	require.Error(t, err)
}
