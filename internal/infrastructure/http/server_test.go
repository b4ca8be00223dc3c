package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrops-br/catalog-service/internal/app/service"
	"github.com/mrops-br/catalog-service/internal/infrastructure/config"
	"github.com/mrops-br/catalog-service/internal/infrastructure/http/handler"
	"github.com/mrops-br/catalog-service/internal/infrastructure/repository/memory"
	"github.com/mrops-br/catalog-service/internal/infrastructure/telemetry"
)

const bookJSON = `{"isbn":"7373731394","title":"Title","author":"Author","price":9.90,"publisher":null}`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	telem, err := telemetry.NewNoOpTelemetry(&config.OTLPConfig{ServiceName: "catalog-service", LogLevel: slog.LevelError})
	require.NoError(t, err)
	t.Cleanup(func() { _ = telem.Shutdown(context.Background()) })

	logger := slog.New(slog.DiscardHandler)
	tracer := telem.TracerProvider.Tracer("test")
	repo := memory.NewBookRepository(tracer, logger)
	svc := service.NewBookService(repo, tracer, telem.MeterProvider.Meter("test"), logger)

	srv := NewServer(&config.ServerConfig{Host: "127.0.0.1", Port: "0"}, handler.NewBookHandler(svc, logger), logger, telem)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func do(t *testing.T, method, url, body string) *nethttp.Response {
	t.Helper()
	req, err := nethttp.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := nethttp.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *nethttp.Response) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestServer_BookLifecycle(t *testing.T) {
	ts := newTestServer(t)
	books := ts.URL + "/books"
	want := map[string]any{"isbn": "7373731394", "title": "Title", "author": "Author", "price": 9.9, "publisher": nil}

	resp := do(t, nethttp.MethodGet, books+"/7373731394", "")
	assert.Equal(t, nethttp.StatusNotFound, resp.StatusCode)

	resp = do(t, nethttp.MethodPost, books, bookJSON)
	require.Equal(t, nethttp.StatusCreated, resp.StatusCode)
	assert.Equal(t, want, decode(t, resp))
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))

	resp = do(t, nethttp.MethodPost, books, bookJSON)
	assert.Equal(t, nethttp.StatusUnprocessableEntity, resp.StatusCode)

	resp = do(t, nethttp.MethodGet, books+"/7373731394", "")
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, want, decode(t, resp))

	resp = do(t, nethttp.MethodPut, books+"/7373731394", bookJSON)
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)
	assert.Equal(t, want, decode(t, resp))

	resp = do(t, nethttp.MethodDelete, books+"/7373731394", "")
	assert.Equal(t, nethttp.StatusNoContent, resp.StatusCode)

	resp = do(t, nethttp.MethodDelete, books+"/7373731394", "")
	assert.Equal(t, nethttp.StatusNoContent, resp.StatusCode)

	resp = do(t, nethttp.MethodGet, books+"/7373731394", "")
	assert.Equal(t, nethttp.StatusNotFound, resp.StatusCode)
}

func TestServer_RejectsInvalidBook(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, nethttp.MethodPost, ts.URL+"/books", `{"isbn":"12","title":"","author":"Author","price":-1}`)

	require.Equal(t, nethttp.StatusBadRequest, resp.StatusCode)
	fields, ok := decode(t, resp)["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "isbn")
	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "price")
}

func TestServer_HealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	resp := do(t, nethttp.MethodGet, ts.URL+"/health", "")
	assert.Equal(t, nethttp.StatusOK, resp.StatusCode)

	do(t, nethttp.MethodGet, ts.URL+"/books", "")

	resp = do(t, nethttp.MethodGet, ts.URL+"/metrics", "")
	require.Equal(t, nethttp.StatusOK, resp.StatusCode)

	buf := new(strings.Builder)
	_, err := io.Copy(buf, resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "books_operations_total")
}
