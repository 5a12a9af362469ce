package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ollama_relay/backend"
	"ollama_relay/config"
	"ollama_relay/database"
	"ollama_relay/hostaddr"
	"ollama_relay/models"
)

type memoryJournal struct {
	mu      sync.Mutex
	entries []database.LogEntry
}

func (m *memoryJournal) Log(entry database.LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryJournal) GetRecentEntries(limit, offset int) ([]database.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []database.LogEntry{}
	for i := len(m.entries) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *memoryJournal) GetEntryByID(id int64) (*database.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id < 1 || id > int64(len(m.entries)) {
		return nil, nil
	}
	entry := m.entries[id-1]
	return &entry, nil
}

func (m *memoryJournal) GetTotalCount() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.entries)), nil
}

func (m *memoryJournal) last(t *testing.T) database.LogEntry {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.entries)
	return m.entries[len(m.entries)-1]
}

// fakeOllama counts calls and records the last chat request body
type fakeOllama struct {
	*httptest.Server
	chatCalls atomic.Int32
	tagsCalls atomic.Int32

	mu       sync.Mutex
	lastChat models.OllamaChatRequest
}

func (f *fakeOllama) chatRequest() models.OllamaChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastChat
}

func newFakeOllama(t *testing.T, tags http.HandlerFunc, chat http.HandlerFunc) *fakeOllama {
	t.Helper()
	f := &fakeOllama{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		f.tagsCalls.Add(1)
		tags(w, r)
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		f.chatCalls.Add(1)
		var req models.OllamaChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.lastChat = req
		f.mu.Unlock()
		chat(w, r)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func ndjson(lines ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, line := range lines {
			fmt.Fprintln(w, line)
			w.(http.Flusher).Flush()
		}
	}
}

const tagsBody = `{"models":[{"name":"llama3.2:latest","model":"llama3.2:latest","size":2019393189}]}`

func okTags(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, tagsBody)
}

func testInterfaces() ([]hostaddr.Interface, error) {
	_, n, _ := net.ParseCIDR("192.168.1.0/24")
	n.IP = net.ParseIP("192.168.1.50")
	return []hostaddr.Interface{{Name: "eth0", Up: true, Addrs: []net.Addr{n}}}, nil
}

func newTestRouter(t *testing.T, endpoint string, journal Journal) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	deps := Deps{
		Config:     cfg,
		Backend:    backend.NewOllamaBackend(endpoint, time.Second, 0),
		Interfaces: testInterfaces,
	}
	if journal != nil {
		deps.Journal = journal
	}
	return NewRouter(deps)
}

func serve(r http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func closedURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, "http://ollama.test:11434", nil)

	w := serve(r, http.MethodGet, EndPointHealth, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","ollama":"http://ollama.test:11434"}`, w.Body.String())
}

func TestCheckConnectionConnected(t *testing.T) {
	upstream := newFakeOllama(t, okTags, nil)
	r := newTestRouter(t, upstream.URL, nil)

	w := serve(r, http.MethodGet, EndPointCheckConnection, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"connected","data":`+tagsBody+`}`, w.Body.String())
}

func TestCheckConnectionUpstreamStatus(t *testing.T) {
	upstream := newFakeOllama(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}, nil)
	r := newTestRouter(t, upstream.URL, nil)

	w := serve(r, http.MethodGet, EndPointCheckConnection, nil)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.JSONEq(t, `{"status":"error","message":"Bad Gateway"}`, w.Body.String())
}

func TestCheckConnectionUnreachable(t *testing.T) {
	host := closedURL(t)
	r := newTestRouter(t, host, nil)

	w := serve(r, http.MethodGet, EndPointCheckConnection, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp models.ConnectionStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Contains(t, resp.Message, host)
}

func TestModelsReturnsOnlyModels(t *testing.T) {
	upstream := newFakeOllama(t, okTags, nil)
	r := newTestRouter(t, upstream.URL, nil)

	w := serve(r, http.MethodGet, EndPointModels, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"name":"llama3.2:latest","model":"llama3.2:latest","size":2019393189}]`, w.Body.String())
}

func TestModelsUpstreamStatus(t *testing.T) {
	upstream := newFakeOllama(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}, nil)
	r := newTestRouter(t, upstream.URL, nil)

	w := serve(r, http.MethodGet, EndPointModels, nil)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"error":"Service Unavailable"}`, w.Body.String())
}

func TestModelsUnreachable(t *testing.T) {
	host := closedURL(t)
	r := newTestRouter(t, host, nil)

	w := serve(r, http.MethodGet, EndPointModels, nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, host)
}

func TestLocalIP(t *testing.T) {
	r := newTestRouter(t, "http://ollama.test", nil)

	w := serve(r, http.MethodGet, EndPointLocalIP, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ip":"192.168.1.50"}`, w.Body.String())
}

func TestLocalIPRecomputedPerCall(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var calls atomic.Int32
	r := NewRouter(Deps{
		Config:  config.Default(),
		Backend: backend.NewOllamaBackend("http://ollama.test", time.Second, 0),
		Interfaces: func() ([]hostaddr.Interface, error) {
			calls.Add(1)
			return nil, nil
		},
	})

	serve(r, http.MethodGet, EndPointLocalIP, nil)
	w := serve(r, http.MethodGet, EndPointLocalIP, nil)

	assert.JSONEq(t, `{"ip":"127.0.0.1"}`, w.Body.String())
	assert.Equal(t, int32(2), calls.Load())
}

func TestCORSPreflightOnChat(t *testing.T) {
	r := newTestRouter(t, "http://ollama.test", nil)

	w := serve(r, http.MethodOptions, EndPointChat, nil)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
