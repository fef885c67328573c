package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zhouzirui/autoapp-desk/backend/internal/config"
	"github.com/zhouzirui/autoapp-desk/backend/internal/handler"
	"github.com/zhouzirui/autoapp-desk/backend/internal/logger"
	"github.com/zhouzirui/autoapp-desk/backend/internal/model/persona"
	"github.com/zhouzirui/autoapp-desk/backend/internal/service/assistant"
	"github.com/zhouzirui/autoapp-desk/backend/internal/service/desk"
	"github.com/zhouzirui/autoapp-desk/backend/internal/service/feedback"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger, err := logger.New(cfg.Log, os.Stdout)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialise logger")
	}
	if envErr != nil {
		appLogger.Warn().Err(envErr).Msg("no .env file loaded, continuing with system environment variables only")
	}

	personaStore, err := loadPersonas(cfg.Desk.PersonasFile)
	if err != nil {
		appLogger.Fatal().Err(err).Msg("failed to load personas")
	}

	// 配置问题只在启动时报告一次，并以横幅形式展示在页面上
	var notices []string

	asker, err := newAsker(cfg.Assistant, appLogger)
	if err != nil {
		appLogger.Error().Err(err).Msg("assistant service not configured, questions will fail until it is")
		notices = append(notices, err.Error())
	}

	recorder, err := newRecorder(ctx, cfg.Sheets, appLogger)
	if err != nil {
		appLogger.Error().Err(err).Msg("feedback logging disabled")
		notices = append(notices, "Failed to load credentials or connect to Google Sheets: "+err.Error())
	} else {
		appLogger.Info().Msg("feedback logging enabled")
	}

	deskSvc := desk.NewService(personaStore, asker, recorder, desk.Options{HideDelay: cfg.Desk.HideDelay}, appLogger)
	go sweepSessions(ctx, deskSvc, cfg.Desk.SessionIdleTTL)

	router := handler.NewRouter(personaStore, deskSvc, handler.Options{
		CORSOrigins: cfg.Server.CORSOrigins,
		Notices:     notices,
	}, appLogger)

	startServer(ctx, cfg.Server, router, appLogger)
}

func loadPersonas(path string) (*persona.MemoryStore, error) {
	if path == "" {
		return persona.NewMemoryStore(persona.Seed()), nil
	}
	items, err := persona.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return persona.NewMemoryStore(items), nil
}

// unavailableAsker stands in for the assistant client when it cannot be
// configured, so the rest of the page keeps working.
type unavailableAsker struct {
	err error
}

func (a unavailableAsker) Ask(context.Context, string, string) (string, error) {
	return "", &assistant.UpstreamError{Op: "configure", Err: a.err}
}

func newAsker(cfg config.AssistantConfig, logger zerolog.Logger) (desk.Asker, error) {
	if err := cfg.Check(); err != nil {
		return unavailableAsker{err: err}, err
	}

	api := assistant.NewOpenAIAPI(assistant.OpenAIOptions{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		MaxRetries: cfg.MaxRetries,
	})
	return assistant.NewClient(api, assistant.Config{
		PollInterval:    cfg.PollInterval,
		PollMaxAttempts: cfg.PollMaxAttempts,
	}, logger), nil
}

func newRecorder(ctx context.Context, cfg config.SheetsConfig, logger zerolog.Logger) (desk.Recorder, error) {
	creds, err := cfg.Credentials()
	if err != nil {
		return nil, err
	}

	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	sheet, err := feedback.NewGoogleSheet(openCtx, feedback.GoogleSheetConfig{
		CredentialsJSON: creds,
		SpreadsheetID:   cfg.SpreadsheetID,
		Range:           cfg.Range,
	})
	if err != nil {
		return nil, &config.ConfigError{Setting: "GOOGLE_SHEET_ID", Err: err}
	}

	logger.Debug().Str("range", sheet.Range()).Msg("feedback sheet resolved")
	return feedback.NewLogger(sheet, logger), nil
}

func sweepSessions(ctx context.Context, svc *desk.Service, maxIdle time.Duration) {
	if maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(maxIdle / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			svc.Sweep(maxIdle)
		}
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger zerolog.Logger) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", addr).Msg("assistant desk listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
