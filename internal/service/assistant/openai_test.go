package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// assistantsServer fakes the thread/run endpoints the client talks to.
type assistantsServer struct {
	mu sync.Mutex

	assistants   map[string]bool
	answer       string
	pollStatuses []string
	polls        int

	messageBodies []map[string]any
	runBodies     []map[string]any
	listQueries   []string
	betaHeaders   []string
}

func (s *assistantsServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.mu.Lock()
			s.betaHeaders = append(s.betaHeaders, r.Header.Get("OpenAI-Beta"))
			s.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/assistants/{assistantID}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "assistantID")
		if !s.assistants[id] {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"message":"No assistant found with id '` + id + `'.","type":"invalid_request_error"}}`))
			return
		}
		writeJSON(w, map[string]any{"id": id, "object": "assistant", "model": "gpt-4o"})
	})

	r.Post("/threads", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"id": "th_1", "object": "thread", "created_at": 1700000000})
	})

	r.Post("/threads/{threadID}/messages", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(r)
		s.mu.Lock()
		s.messageBodies = append(s.messageBodies, body)
		s.mu.Unlock()
		writeJSON(w, map[string]any{"id": "msg_user", "object": "thread.message", "thread_id": chi.URLParam(r, "threadID"), "role": "user"})
	})

	r.Post("/threads/{threadID}/runs", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(r)
		s.mu.Lock()
		s.runBodies = append(s.runBodies, body)
		s.mu.Unlock()
		writeJSON(w, map[string]any{"id": "run_1", "object": "thread.run", "status": "queued", "last_error": nil})
	})

	r.Get("/threads/{threadID}/runs/{runID}", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		status := "completed"
		if s.polls < len(s.pollStatuses) {
			status = s.pollStatuses[s.polls]
		}
		s.polls++
		s.mu.Unlock()

		run := map[string]any{"id": chi.URLParam(r, "runID"), "object": "thread.run", "status": status, "last_error": nil}
		if status == "failed" {
			run["last_error"] = map[string]any{"code": "server_error", "message": "vector store unavailable"}
		}
		writeJSON(w, run)
	})

	r.Get("/threads/{threadID}/messages", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.listQueries = append(s.listQueries, r.URL.RawQuery)
		answer := s.answer
		s.mu.Unlock()

		writeJSON(w, map[string]any{
			"object": "list",
			"data": []any{map[string]any{
				"id":     "msg_reply",
				"object": "thread.message",
				"role":   "assistant",
				"content": []any{map[string]any{
					"type": "text",
					"text": map[string]any{"value": answer, "annotations": []any{}},
				}},
			}},
			"has_more": false,
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(r *http.Request) map[string]any {
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	return body
}

func newOpenAITestClient(t *testing.T, s *assistantsServer) *Client {
	t.Helper()
	srv := httptest.NewServer(s.routes())
	t.Cleanup(srv.Close)

	api := NewOpenAIAPI(OpenAIOptions{APIKey: "sk-test", BaseURL: srv.URL + "/"})
	return NewClient(api, Config{PollInterval: time.Millisecond, PollMaxAttempts: 5}, zerolog.Nop())
}

func TestOpenAIAskSendsInstructionsAndReadsNewestMessage(t *testing.T) {
	s := &assistantsServer{
		assistants:   map[string]bool{"asst_S0OVC8LuiP1IxPi94ybDG1KL": true},
		answer:       "Answer confidence: 4 / 5\nUse the inbound portal.",
		pollStatuses: []string{"in_progress", "completed"},
	}
	client := newOpenAITestClient(t, s)

	answer, err := client.Ask(context.Background(), "asst_S0OVC8LuiP1IxPi94ybDG1KL", "How do I file a claim?")
	require.NoError(t, err)
	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, s.answer, answer)

	require.Len(t, s.messageBodies, 1)
	assert.Equal(t, "user", s.messageBodies[0]["role"])
	assert.Equal(t, "How do I file a claim?", s.messageBodies[0]["content"])

	require.Len(t, s.runBodies, 1)
	assert.Equal(t, "asst_S0OVC8LuiP1IxPi94ybDG1KL", s.runBodies[0]["assistant_id"])
	assert.Equal(t, Instructions, s.runBodies[0]["instructions"])

	assert.Equal(t, 2, s.polls)
	require.Len(t, s.listQueries, 1)
	assert.Equal(t, "limit=1&order=desc", s.listQueries[0])

	for _, h := range s.betaHeaders {
		assert.Equal(t, "assistants=v2", h)
	}
}

func TestOpenAIAskUnknownAssistant(t *testing.T) {
	s := &assistantsServer{assistants: map[string]bool{}}
	client := newOpenAITestClient(t, s)

	_, err := client.Ask(context.Background(), "asst_missing", "q")
	s.mu.Lock()
	defer s.mu.Unlock()

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "retrieve assistant", upErr.Op)
	assert.Empty(t, s.messageBodies)
	assert.Empty(t, s.runBodies)
}

func TestOpenAIAskEmptyTextIsAnError(t *testing.T) {
	s := &assistantsServer{assistants: map[string]bool{"asst_x": true}, answer: ""}
	client := newOpenAITestClient(t, s)

	answer, err := client.Ask(context.Background(), "asst_x", "q")
	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Empty(t, answer)

	var upErr *UpstreamError
	require.ErrorAs(t, err, &upErr)
	assert.Equal(t, "read answer", upErr.Op)
	assert.ErrorIs(t, err, ErrEmptyAnswer)
}

func TestOpenAIAskFailedRunCarriesLastError(t *testing.T) {
	s := &assistantsServer{
		assistants:   map[string]bool{"asst_x": true},
		pollStatuses: []string{"failed"},
	}
	client := newOpenAITestClient(t, s)

	_, err := client.Ask(context.Background(), "asst_x", "q")
	s.mu.Lock()
	defer s.mu.Unlock()
	require.ErrorIs(t, err, ErrRunFailed)
	assert.Contains(t, err.Error(), "vector store unavailable")
	assert.Empty(t, s.listQueries)
}
