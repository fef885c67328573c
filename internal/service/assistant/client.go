package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	DefaultPollInterval    = time.Second
	DefaultPollMaxAttempts = 120
)

// Config bounds how long Ask waits on a run.
type Config struct {
	PollInterval    time.Duration
	PollMaxAttempts int
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollMaxAttempts <= 0 {
		c.PollMaxAttempts = DefaultPollMaxAttempts
	}
	return c
}

// Client answers one question per call on a fresh thread.
type Client struct {
	api    API
	cfg    Config
	logger zerolog.Logger
}

// NewClient wires a Client to the given API.
func NewClient(api API, cfg Config, logger zerolog.Logger) *Client {
	return &Client{
		api:    api,
		cfg:    cfg.withDefaults(),
		logger: logger.With().Str("component", "assistant").Logger(),
	}
}

// Ask checks that assistantID exists, posts question to a new thread, runs
// the assistant on it with the fixed Instructions and blocks until the run completes, fails, runs out of poll
// attempts or ctx is done. Every failure is an *UpstreamError.
func (c *Client) Ask(ctx context.Context, assistantID, question string) (string, error) {
	started := time.Now()

	if err := c.api.GetAssistant(ctx, assistantID); err != nil {
		return "", upstream("retrieve assistant", err)
	}

	threadID, err := c.api.CreateThread(ctx)
	if err != nil {
		return "", upstream("create thread", err)
	}

	if err := c.api.AddUserMessage(ctx, threadID, question); err != nil {
		return "", upstream("post message", err)
	}

	run, err := c.api.StartRun(ctx, threadID, assistantID, Instructions)
	if err != nil {
		return "", upstream("start run", err)
	}

	logger := c.logger.With().
		Str("assistant_id", assistantID).
		Str("thread_id", threadID).
		Str("run_id", run.ID).
		Logger()
	logger.Debug().Str("status", string(run.Status)).Msg("run started")

	if run.Status != RunStatusCompleted {
		run, err = c.waitForRun(ctx, logger, threadID, run.ID)
		if err != nil {
			logger.Warn().Err(err).Dur("elapsed", time.Since(started)).Msg("run did not complete")
			return "", upstream("poll run", err)
		}
	}

	answer, err := c.api.LatestMessageText(ctx, threadID)
	if err == nil && answer == "" {
		err = ErrEmptyAnswer
	}
	if err != nil {
		return "", upstream("read answer", err)
	}

	logger.Info().
		Int("answer_len", len(answer)).
		Dur("elapsed", time.Since(started)).
		Msg("run completed")
	return answer, nil
}

// waitForRun polls at a constant interval for at most PollMaxAttempts reads.
func (c *Client) waitForRun(ctx context.Context, logger zerolog.Logger, threadID, runID string) (Run, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.PollInterval), uint64(c.cfg.PollMaxAttempts-1)),
		ctx,
	)

	errPending := errors.New("run pending")
	attempts := 0

	poll := func() (Run, error) {
		attempts++
		run, err := c.api.GetRun(ctx, threadID, runID)
		if err != nil {
			return Run{}, backoff.Permanent(err)
		}
		switch {
		case run.Status == RunStatusCompleted:
			return run, nil
		case run.Status.Pending():
			return run, errPending
		default:
			return run, backoff.Permanent(runFailure(run))
		}
	}

	notify := func(_ error, next time.Duration) {
		logger.Trace().Int("attempt", attempts).Dur("next", next).Msg("run pending")
	}

	run, err := backoff.RetryNotifyWithData(poll, policy, notify)
	if errors.Is(err, errPending) {
		return run, fmt.Errorf("%w after %d polls (status %s)", ErrRunTimeout, attempts, run.Status)
	}
	return run, err
}

func runFailure(run Run) error {
	var b strings.Builder
	b.WriteString("status ")
	b.WriteString(string(run.Status))
	if run.LastError != "" {
		b.WriteString(": ")
		b.WriteString(run.LastError)
	}
	return fmt.Errorf("%w: %s", ErrRunFailed, b.String())
}
