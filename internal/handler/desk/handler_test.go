package desk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/autoapp-desk/backend/internal/model/persona"
	"github.com/zhouzirui/autoapp-desk/backend/internal/service/assistant"
	deskService "github.com/zhouzirui/autoapp-desk/backend/internal/service/desk"
	"github.com/zhouzirui/autoapp-desk/backend/internal/service/feedback"
)

type stubAsker struct {
	err error
}

func (s stubAsker) Ask(_ context.Context, assistantID, question string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "Answer confidence: 5 / 5\n" + assistantID + ": " + question, nil
}

func setupRouter(t *testing.T, asker deskService.Asker) (*chi.Mux, *feedback.MemorySheet) {
	t.Helper()
	sheet := feedback.NewMemorySheet()
	svc := deskService.NewService(
		persona.NewMemoryStore(persona.Seed()),
		asker,
		feedback.NewLogger(sheet, zerolog.Nop()),
		deskService.Options{HideDelay: time.Hour},
		zerolog.Nop(),
	)

	r := chi.NewRouter()
	New(svc).RegisterRoutes(r)
	return r, sheet
}

func do(t *testing.T, r http.Handler, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	var decoded map[string]any
	if resp.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &decoded))
	}
	return resp, decoded
}

func TestSessionFlow(t *testing.T) {
	r, sheet := setupRouter(t, stubAsker{})

	resp, created := do(t, r, http.MethodPost, "/sessions", map[string]string{"personaLabel": "1P INBOUND App"})
	require.Equal(t, http.StatusCreated, resp.Code)
	id := created["id"].(string)
	assert.Equal(t, "idle", created["state"])

	resp, asked := do(t, r, http.MethodPost, "/sessions/"+id+"/ask", map[string]string{"question": "What is the return policy?"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "feedback_open", asked["state"])
	assert.Equal(t, true, asked["canRate"])
	assert.Contains(t, asked["answer"], "asst_jRwTRKlGmLddeAPA8pVgjEGM")

	resp, rated := do(t, r, http.MethodPost, "/sessions/"+id+"/feedback", map[string]string{"rating": "Helpful"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "feedback_submitted", rated["state"])
	assert.NotEmpty(t, rated["hideAt"])

	rows := sheet.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "1P INBOUND AUTO APP ASSISTANT", rows[0][1])
	assert.Equal(t, "Helpful", rows[0][2])

	resp, _ = do(t, r, http.MethodPost, "/sessions/"+id+"/feedback", map[string]string{"rating": "Helpful"})
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp, hidden := do(t, r, http.MethodPost, "/sessions/"+id+"/hide", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "idle", hidden["state"])

	resp, _ = do(t, r, http.MethodDelete, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, resp.Code)

	resp, _ = do(t, r, http.MethodGet, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestCreateSessionWithoutBody(t *testing.T) {
	r, _ := setupRouter(t, stubAsker{})

	req := httptest.NewRequest(http.MethodPost, "/sessions", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	assert.Equal(t, http.StatusCreated, resp.Code)
}

func TestSelectPersonaRoute(t *testing.T) {
	r, _ := setupRouter(t, stubAsker{})
	_, created := do(t, r, http.MethodPost, "/sessions", nil)
	id := created["id"].(string)

	resp, view := do(t, r, http.MethodPut, "/sessions/"+id+"/persona", map[string]string{"label": "3P INBOUND App"})
	require.Equal(t, http.StatusOK, resp.Code)
	p := view["persona"].(map[string]any)
	assert.Equal(t, "3P INBOUND APP ASSISTANT", p["title"])

	resp, _ = do(t, r, http.MethodPut, "/sessions/"+id+"/persona", map[string]string{"label": "nope"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAskErrors(t *testing.T) {
	r, _ := setupRouter(t, stubAsker{err: &assistant.UpstreamError{Op: "poll run", Err: assistant.ErrRunTimeout}})
	_, created := do(t, r, http.MethodPost, "/sessions", nil)
	id := created["id"].(string)

	resp, body := do(t, r, http.MethodPost, "/sessions/"+id+"/ask", map[string]string{"question": " "})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, deskService.ErrMissingInput.Error(), body["error"])

	resp, _ = do(t, r, http.MethodPost, "/sessions/"+id+"/ask", map[string]string{"question": "q"})
	assert.Equal(t, http.StatusBadGateway, resp.Code)

	req := httptest.NewRequest(http.MethodPost, "/sessions/"+id+"/ask", bytes.NewReader([]byte("{")))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{deskService.ErrMissingInput, http.StatusBadRequest},
		{feedback.ErrInvalidRating, http.StatusBadRequest},
		{deskService.ErrSessionNotFound, http.StatusNotFound},
		{persona.ErrNotFound, http.StatusNotFound},
		{deskService.ErrNoAnswer, http.StatusConflict},
		{deskService.ErrFeedbackSubmitted, http.StatusConflict},
		{deskService.ErrLoggingDisabled, http.StatusServiceUnavailable},
		{&feedback.LogWriteError{Err: errors.New("x")}, http.StatusBadGateway},
		{&assistant.UpstreamError{Op: "start run", Err: errors.New("x")}, http.StatusBadGateway},
		{errors.New("other"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}
