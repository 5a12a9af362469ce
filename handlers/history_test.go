package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ollama_relay/database"
)

func TestRequestsRouteRequiresJournal(t *testing.T) {
	r := newTestRouter(t, "http://ollama.test", nil)

	w := serve(r, http.MethodGet, EndPointRequests, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRequestsPaginates(t *testing.T) {
	journal := &memoryJournal{}
	for i := 0; i < 30; i++ {
		require.NoError(t, journal.Log(database.LogEntry{Endpoint: EndPointModels, Method: http.MethodGet}))
	}
	r := newTestRouter(t, "http://ollama.test", journal)

	w := serve(r, http.MethodGet, EndPointRequests+"?page=2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page HistoryPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, int64(30), page.TotalCount)
	assert.True(t, page.HasPrev)
	assert.False(t, page.HasNext)
	assert.Len(t, page.Entries, 5)
}

func TestListRequestsBadPageDefaultsToFirst(t *testing.T) {
	journal := &memoryJournal{}
	r := newTestRouter(t, "http://ollama.test", journal)

	w := serve(r, http.MethodGet, EndPointRequests+"?page=zero", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page HistoryPage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 1, page.CurrentPage)
	assert.Empty(t, page.Entries)
	assert.False(t, page.HasNext)
}

func TestGetRequest(t *testing.T) {
	journal := &memoryJournal{}
	require.NoError(t, journal.Log(database.LogEntry{Endpoint: EndPointChat, Model: "llama3.2"}))
	r := newTestRouter(t, "http://ollama.test", journal)

	w := serve(r, http.MethodGet, EndPointRequests+"/1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var entry database.LogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
	assert.Equal(t, "llama3.2", entry.Model)

	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, EndPointRequests+"/9", nil).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodGet, EndPointRequests+"/abc", nil).Code)
}

func TestModelsCallIsRecorded(t *testing.T) {
	upstream := newFakeOllama(t, okTags, nil)
	journal := &memoryJournal{}
	r := newTestRouter(t, upstream.URL, journal)

	serve(r, http.MethodGet, EndPointModels, nil)

	entry := journal.last(t)
	assert.Equal(t, EndPointModels, entry.Endpoint)
	assert.Equal(t, http.StatusOK, entry.StatusCode)
	assert.Equal(t, upstream.URL+"/api/tags", entry.BackendURL)
}

func TestPreferences(t *testing.T) {
	r := newTestRouter(t, "http://ollama.test", nil)

	w := serve(r, http.MethodGet, EndPointPreferences, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"darkMode":false,"selectedModel":"llama3.2:latest"}`, w.Body.String())

	w = serve(r, http.MethodPut, EndPointPreferences, []byte(`{"darkMode":true}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"darkMode":true,"selectedModel":"llama3.2:latest"}`, w.Body.String())

	w = serve(r, http.MethodPut, EndPointPreferences, []byte(`{"selectedModel":"mistral:7b"}`))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"darkMode":true,"selectedModel":"mistral:7b"}`, w.Body.String())
}

func TestPreferencesRejectsBadUpdates(t *testing.T) {
	r := newTestRouter(t, "http://ollama.test", nil)

	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPut, EndPointPreferences, []byte(`{"darkMode":"yes"}`)).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPut, EndPointPreferences, []byte(`{"selectedModel":""}`)).Code)
}
