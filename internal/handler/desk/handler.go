package desk

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/autoapp-desk/backend/internal/model/persona"
	"github.com/zhouzirui/autoapp-desk/backend/internal/service/assistant"
	deskService "github.com/zhouzirui/autoapp-desk/backend/internal/service/desk"
	"github.com/zhouzirui/autoapp-desk/backend/internal/service/feedback"
	"github.com/zhouzirui/autoapp-desk/backend/pkg/utils"
)

// Handler 表单会话的 JSON 接口
type Handler struct {
	deskSvc *deskService.Service
}

// New 创建会话处理器
func New(deskSvc *deskService.Service) *Handler {
	return &Handler{deskSvc: deskSvc}
}

// RegisterRoutes 注册会话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleCreateSession)
	r.Route("/sessions/{sessionID}", func(r chi.Router) {
		r.Get("/", h.handleView)
		r.Delete("/", h.handleEnd)
		r.Put("/persona", h.handleSelectPersona)
		r.Post("/ask", h.handleAsk)
		r.Post("/feedback", h.handleFeedback)
		r.Post("/hide", h.handleHide)
	})
}

// handleCreateSession 创建会话，personaLabel 为空时使用第一个persona
func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		PersonaLabel string `json:"personaLabel"`
	}
	if r.ContentLength != 0 && !utils.DecodeJSON(w, r, &payload) {
		return
	}

	view, err := h.deskSvc.CreateSession(r.Context(), payload.PersonaLabel)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusCreated, view)
}

// handleView 刷新路径：到期的反馈区会在这里被隐藏
func (h *Handler) handleView(w http.ResponseWriter, r *http.Request) {
	view, err := h.deskSvc.View(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleEnd(w http.ResponseWriter, r *http.Request) {
	if err := h.deskSvc.EndSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSelectPersona(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Label string `json:"label"`
	}
	if !utils.DecodeJSON(w, r, &payload) {
		return
	}

	view, err := h.deskSvc.SelectPersona(r.Context(), chi.URLParam(r, "sessionID"), payload.Label)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

// handleAsk 同步等待助手回答
func (h *Handler) handleAsk(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Question string `json:"question"`
	}
	if !utils.DecodeJSON(w, r, &payload) {
		return
	}

	view, err := h.deskSvc.Ask(r.Context(), chi.URLParam(r, "sessionID"), payload.Question)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Rating string `json:"rating"`
	}
	if !utils.DecodeJSON(w, r, &payload) {
		return
	}

	view, err := h.deskSvc.SubmitFeedback(r.Context(), chi.URLParam(r, "sessionID"), payload.Rating)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

func (h *Handler) handleHide(w http.ResponseWriter, r *http.Request) {
	view, err := h.deskSvc.Hide(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, view)
}

// StatusFor 将服务层错误映射为 HTTP 状态码
func StatusFor(err error) int {
	var upErr *assistant.UpstreamError
	var writeErr *feedback.LogWriteError

	switch {
	case errors.Is(err, deskService.ErrMissingInput), errors.Is(err, feedback.ErrInvalidRating):
		return http.StatusBadRequest
	case errors.Is(err, deskService.ErrSessionNotFound), errors.Is(err, persona.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, deskService.ErrNoAnswer),
		errors.Is(err, deskService.ErrFeedbackSubmitted),
		errors.Is(err, deskService.ErrAskSuperseded):
		return http.StatusConflict
	case errors.Is(err, deskService.ErrLoggingDisabled):
		return http.StatusServiceUnavailable
	case errors.As(err, &upErr), errors.As(err, &writeErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondServiceError(w http.ResponseWriter, err error) {
	utils.RespondError(w, StatusFor(err), err.Error())
}
