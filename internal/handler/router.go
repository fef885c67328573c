package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/zhouzirui/autoapp-desk/backend/internal/handler/desk"
	"github.com/zhouzirui/autoapp-desk/backend/internal/handler/page"
	"github.com/zhouzirui/autoapp-desk/backend/internal/handler/persona"
	personaModel "github.com/zhouzirui/autoapp-desk/backend/internal/model/persona"
	deskService "github.com/zhouzirui/autoapp-desk/backend/internal/service/desk"
	"github.com/zhouzirui/autoapp-desk/backend/pkg/utils"
)

// Options carries the HTTP-level settings for NewRouter.
type Options struct {
	CORSOrigins []string
	// Notices are startup configuration problems shown on the page.
	Notices []string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(personas personaModel.Store, deskSvc *deskService.Service, opts Options, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.AccessHandler(accessLog))
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler)

	page.New(deskSvc, personas, opts.Notices).RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		persona.New(personas).RegisterRoutes(api)
		desk.New(deskSvc).RegisterRoutes(api)

		api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"status":         "ok",
				"loggingEnabled": deskSvc.LoggingEnabled(),
			})
		})
	})

	return r
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Msg("request")
}
