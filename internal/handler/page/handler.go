package page

import (
	"embed"
	"errors"
	"html/template"
	"math"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	deskHandler "github.com/zhouzirui/autoapp-desk/backend/internal/handler/desk"
	"github.com/zhouzirui/autoapp-desk/backend/internal/model/persona"
	deskService "github.com/zhouzirui/autoapp-desk/backend/internal/service/desk"
	"github.com/zhouzirui/autoapp-desk/backend/internal/service/feedback"
)

// CookieName 保存会话 id 的 cookie
const CookieName = "desk_session"

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// Handler 渲染单页表单。每个浏览器通过 cookie 绑定一个会话。
type Handler struct {
	deskSvc  *deskService.Service
	personas persona.Store
	notices  []string
	now      func() time.Time
}

// New 创建页面处理器。notices 是启动时发现的配置问题，会以横幅展示。
func New(deskSvc *deskService.Service, personas persona.Store, notices []string) *Handler {
	return &Handler{
		deskSvc:  deskSvc,
		personas: personas,
		notices:  notices,
		now:      time.Now,
	}
}

// RegisterRoutes 注册页面路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Post("/persona", h.handlePersona)
	r.Post("/search", h.handleSearch)
	r.Post("/feedback", h.handleFeedback)
}

type pageData struct {
	Title        string
	Personas     []persona.Persona
	Ratings      []string
	Notices      []string
	View         deskService.View
	Question     string
	Error        string
	AnswerHeight int
	RefreshAfter int
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	view, err := h.session(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, view, view.Question, "")
}

func (h *Handler) handlePersona(w http.ResponseWriter, r *http.Request) {
	view, err := h.session(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if _, err := h.deskSvc.SelectPersona(r.Context(), view.ID, r.PostFormValue("label")); err != nil {
		h.render(w, r, deskHandler.StatusFor(err), view, view.Question, userMessage(err))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	view, err := h.session(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	question := r.PostFormValue("question")
	if _, err := h.deskSvc.Ask(r.Context(), view.ID, question); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("search failed")
		h.render(w, r, deskHandler.StatusFor(err), view, question, userMessage(err))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleFeedback(w http.ResponseWriter, r *http.Request) {
	view, err := h.session(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if _, err := h.deskSvc.SubmitFeedback(r.Context(), view.ID, r.PostFormValue("rating")); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("feedback failed")
		h.render(w, r, deskHandler.StatusFor(err), view, view.Question, userMessage(err))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// session 取 cookie 对应的会话，不存在或已过期时新建一个。
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (deskService.View, error) {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		view, err := h.deskSvc.View(r.Context(), c.Value)
		if err == nil {
			return view, nil
		}
		if !errors.Is(err, deskService.ErrSessionNotFound) {
			return deskService.View{}, err
		}
	}

	view, err := h.deskSvc.CreateSession(r.Context(), "")
	if err != nil {
		return deskService.View{}, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    view.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return view, nil
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, view deskService.View, question, errMsg string) {
	data := pageData{
		Title:        view.Persona.Title,
		Personas:     h.personas.List(),
		Ratings:      feedback.Ratings,
		Notices:      h.notices,
		View:         view,
		Question:     question,
		Error:        errMsg,
		AnswerHeight: AnswerHeight(view.Answer),
	}
	if view.HideAt != nil {
		data.RefreshAfter = refreshSeconds(view.HideAt.Sub(h.now()))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := indexTemplate.Execute(w, data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("render page")
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	hlog.FromRequest(r).Error().Err(err).Msg("session unavailable")
	http.Error(w, err.Error(), deskHandler.StatusFor(err))
}

// userMessage turns service errors into the text shown under the form.
func userMessage(err error) string {
	switch {
	case errors.Is(err, deskService.ErrMissingInput):
		return "Please enter a question before searching."
	case errors.Is(err, deskService.ErrFeedbackSubmitted):
		return "Feedback for this answer was already submitted."
	default:
		return "There was an error processing your request. Please try again. (" + err.Error() + ")"
	}
}

// AnswerHeight sizes the answer box from its character count, clamped to
// 200..800px.
func AnswerHeight(answer string) int {
	n := utf8.RuneCountInString(answer)
	if n < 200 {
		return 200
	}
	if n > 800 {
		return 800
	}
	return n
}

func refreshSeconds(d time.Duration) int {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}
