package main

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github/itish2003/pdfchat/config"
	"github/itish2003/pdfchat/controller"
	"github/itish2003/pdfchat/services"
	"github/itish2003/pdfchat/vectorstore"
)

type stubRAG struct{}

func (stubRAG) Ask(_ context.Context, q string) (*services.Answer, error) {
	return &services.Answer{Input: q, Answer: "stub"}, nil
}

func (stubRAG) Sources(context.Context) ([]vectorstore.SourceStat, error) { return nil, nil }

func newTestServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	files, err := services.NewDocumentFiles(t.TempDir())
	require.NoError(t, err)
	return setupRouter(controller.NewChatController(stubRAG{}, nil, files))
}

func TestHealth(t *testing.T) {
	r := newTestServer(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"pdfchat","version":"1.0.0"}`, w.Body.String())
}

func TestIndexRendersChatPage(t *testing.T) {
	r := newTestServer(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<title>PDF Chat</title>")
	assert.Contains(t, body, `id="chat-form"`)
	assert.Contains(t, body, `fetch("/get"`)
}

func TestCORSPreflight(t *testing.T) {
	r := newTestServer(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/v1/query", nil))

	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSetupLogging(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)

	setupLogging("debug")
	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())

	setupLogging("chatty")
	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
}

func busyAddr(t *testing.T) (string, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	return host, port
}

func TestServe_ReturnsListenError(t *testing.T) {
	host, port := busyAddr(t)
	srv := &http.Server{Addr: net.JoinHostPort(host, port), Handler: http.NotFoundHandler()}

	err := serve(context.Background(), srv, time.Second)
	assert.ErrorContains(t, err, "failed to start server")
}

func TestServe_StopsOnCancel(t *testing.T) {
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, time.Second) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestRun_ReturnsStartupErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	host, port := busyAddr(t)
	dir := t.TempDir()
	env := map[string]string{
		"HOST":       host,
		"PORT":       port,
		"DATA_DIR":   filepath.Join(dir, "data"),
		"INDEX_PATH": filepath.Join(dir, "index"),
		"OLLAMA_URL": "http://127.0.0.1:1",
	}
	cfg, err := config.FromEnv(func(key string) string { return env[key] })
	require.NoError(t, err)

	err = run(context.Background(), cfg)
	require.ErrorContains(t, err, "failed to start server")
	assert.FileExists(t, filepath.Join(dir, "index", vectorstore.IndexFile))
}
