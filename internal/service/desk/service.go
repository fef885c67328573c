package desk

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/zhouzirui/autoapp-desk/backend/internal/model/desk"
	"github.com/zhouzirui/autoapp-desk/backend/internal/model/persona"
	"github.com/zhouzirui/autoapp-desk/backend/internal/service/assistant"
	"github.com/zhouzirui/autoapp-desk/backend/internal/service/feedback"
)

// DefaultHideDelay is how long the thank-you stays up after feedback.
const DefaultHideDelay = 3 * time.Second

var (
	ErrSessionNotFound   = errors.New("session not found")
	ErrMissingInput      = errors.New("please enter a question before searching")
	ErrNoAnswer          = errors.New("there is no answer to rate")
	ErrFeedbackSubmitted = errors.New("feedback already submitted for this answer")
	ErrLoggingDisabled   = errors.New("feedback logging is not configured")
	// ErrAskSuperseded is returned when the session ended or a newer ask
	// started while the assistant was working. The answer is discarded.
	ErrAskSuperseded = errors.New("answer discarded: session moved on")
)

// Asker answers a question with a remote assistant.
type Asker interface {
	Ask(ctx context.Context, assistantID, question string) (string, error)
}

// Recorder appends a feedback row.
type Recorder interface {
	Record(ctx context.Context, row feedback.Row) error
}

// Options tunes a Service.
type Options struct {
	HideDelay time.Duration
	// Now defaults to time.Now. Only the refresh-path expiry check and the
	// feedback timestamp read it; the hide timer runs on wall time.
	Now func() time.Time
}

// View is a session snapshot plus what the page needs to render it.
type View struct {
	desk.Session
	State          desk.State `json:"state"`
	CanRate        bool       `json:"canRate"`
	LoggingEnabled bool       `json:"loggingEnabled"`
	HideAt         *time.Time `json:"hideAt,omitempty"`
}

type entry struct {
	mu       sync.Mutex
	session  desk.Session
	lastSeen time.Time
	ended    bool

	// askGen increments per ask; a returning ask applies only if it is
	// still the latest.
	askGen uint64
	// answerGen increments whenever the displayed answer changes, so a
	// feedback write can tell whether it still refers to what is on screen.
	answerGen uint64
	recording bool
	hideTimer *time.Timer
	hideGen   uint64
}

// Service owns every open form session and drives the
// idle -> answer -> feedback -> idle cycle for each of them.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	personas  persona.Store
	asker     Asker
	recorder  Recorder
	hideDelay time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

// NewService builds a Service. recorder may be nil, in which case asking
// works and feedback submission reports ErrLoggingDisabled.
func NewService(personas persona.Store, asker Asker, recorder Recorder, opts Options, logger zerolog.Logger) *Service {
	if opts.HideDelay <= 0 {
		opts.HideDelay = DefaultHideDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		sessions:  make(map[string]*entry),
		personas:  personas,
		asker:     asker,
		recorder:  recorder,
		hideDelay: opts.HideDelay,
		now:       opts.Now,
		logger:    logger.With().Str("component", "desk").Logger(),
	}
}

// LoggingEnabled reports whether feedback can be recorded.
func (s *Service) LoggingEnabled() bool {
	return s.recorder != nil
}

// HideDelay returns the configured thank-you duration.
func (s *Service) HideDelay() time.Duration {
	return s.hideDelay
}

// CreateSession opens an idle session on the persona with the given label,
// or on the first registered persona when label is empty.
func (s *Service) CreateSession(_ context.Context, label string) (View, error) {
	p, err := s.resolvePersona(label)
	if err != nil {
		return View{}, err
	}

	now := s.now()
	e := &entry{
		session: desk.Session{
			ID:        uuid.NewString(),
			Persona:   p,
			CreatedAt: now.UTC(),
		},
		lastSeen: now,
	}

	view := s.viewLocked(e)

	s.mu.Lock()
	s.sessions[e.session.ID] = e
	s.mu.Unlock()

	s.logger.Debug().Str("session_id", view.ID).Str("persona", p.Label).Msg("session created")
	return view, nil
}

// SelectPersona switches the persona used by subsequent asks. A displayed
// answer is left as is.
func (s *Service) SelectPersona(_ context.Context, sessionID, label string) (View, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return View{}, err
	}
	p, err := s.resolvePersona(label)
	if err != nil {
		return View{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.Persona = p
	e.lastSeen = s.now()
	return s.viewLocked(e), nil
}

// Ask sends question to the session's current persona and blocks until the
// assistant answers. A blank question fails with ErrMissingInput without
// calling the assistant; any other question is sent and stored as typed.
// An empty answer is an upstream failure. On any failure the session is left
// unchanged.
func (s *Service) Ask(ctx context.Context, sessionID, question string) (View, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return View{}, err
	}

	if strings.TrimSpace(question) == "" {
		return View{}, ErrMissingInput
	}

	e.mu.Lock()
	e.askGen++
	gen := e.askGen
	p := e.session.Persona
	e.lastSeen = s.now()
	e.mu.Unlock()

	logger := s.logger.With().Str("session_id", sessionID).Str("persona", p.Label).Logger()
	logger.Info().Int("question_len", len(question)).Msg("asking assistant")

	answer, err := s.asker.Ask(ctx, p.AssistantID, question)
	if err != nil {
		logger.Error().Err(err).Msg("ask failed")
		return View{}, err
	}
	if answer == "" {
		err = &assistant.UpstreamError{Op: "read answer", Err: assistant.ErrEmptyAnswer}
		logger.Error().Err(err).Msg("ask returned no answer")
		return View{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ended || e.askGen != gen {
		logger.Info().Msg("discarding answer for abandoned ask")
		return View{}, ErrAskSuperseded
	}

	s.stopHideLocked(e)
	e.answerGen++
	e.session.Question = question
	e.session.Answer = answer
	e.session.AnsweredBy = p
	e.session.FeedbackVisible = true
	e.session.FeedbackSubmitted = false
	e.session.SubmittedAt = time.Time{}
	e.lastSeen = s.now()
	return s.viewLocked(e), nil
}

// SubmitFeedback records rating for the displayed answer and arms the hide
// timer. At most one row is recorded per answer. If the write fails the
// answer stays on screen and the prompt stays open.
func (s *Service) SubmitFeedback(ctx context.Context, sessionID, rating string) (View, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return View{}, err
	}
	if s.recorder == nil {
		return View{}, ErrLoggingDisabled
	}
	if !feedback.ValidRating(rating) {
		return View{}, feedback.ErrInvalidRating
	}

	e.mu.Lock()
	if !e.session.CanRate() {
		submitted := e.session.FeedbackSubmitted
		e.mu.Unlock()
		if submitted {
			return View{}, ErrFeedbackSubmitted
		}
		return View{}, ErrNoAnswer
	}
	if e.recording {
		e.mu.Unlock()
		return View{}, ErrFeedbackSubmitted
	}
	e.recording = true
	gen := e.answerGen
	row := feedback.NewRow(s.now(), e.session.AnsweredBy.Title, rating, e.session.Question, e.session.Answer)
	e.mu.Unlock()

	err = s.recorder.Record(ctx, row)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.recording = false
	if err != nil {
		return View{}, err
	}
	if e.ended || e.answerGen != gen {
		// The row belongs to an answer that is no longer displayed.
		return s.viewLocked(e), nil
	}

	e.session.FeedbackSubmitted = true
	e.session.SubmittedAt = s.now()
	e.lastSeen = e.session.SubmittedAt
	s.armHideLocked(e)
	return s.viewLocked(e), nil
}

// Hide clears the answer and the feedback section. Calling it any number of
// times, or concurrently with the timer, has the effect of calling it once.
func (s *Service) Hide(_ context.Context, sessionID string) (View, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return View{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	s.hideLocked(e)
	return s.viewLocked(e), nil
}

// View returns the current state. It also applies the hide if the delay has
// passed and the timer has not fired yet.
func (s *Service) View(_ context.Context, sessionID string) (View, error) {
	e, err := s.lookup(sessionID)
	if err != nil {
		return View{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	now := s.now()
	if e.session.FeedbackSubmitted && now.Sub(e.session.SubmittedAt) >= s.hideDelay {
		s.hideLocked(e)
	}
	e.lastSeen = now
	return s.viewLocked(e), nil
}

// EndSession drops the session and its timer. An ask still in flight for it
// finishes with ErrAskSuperseded.
func (s *Service) EndSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	e, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	e.mu.Lock()
	e.ended = true
	s.stopHideLocked(e)
	e.mu.Unlock()
	return nil
}

// Sweep ends sessions untouched for longer than maxIdle and returns how many
// it removed.
func (s *Service) Sweep(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)

	s.mu.RLock()
	var stale []string
	for id, e := range s.sessions {
		e.mu.Lock()
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, id)
		}
		e.mu.Unlock()
	}
	s.mu.RUnlock()

	removed := 0
	for _, id := range stale {
		if err := s.EndSession(context.Background(), id); err == nil {
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("swept idle sessions")
	}
	return removed
}

func (s *Service) lookup(sessionID string) (*entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

func (s *Service) resolvePersona(label string) (persona.Persona, error) {
	if label == "" {
		items := s.personas.List()
		if len(items) == 0 {
			return persona.Persona{}, persona.ErrNotFound
		}
		return items[0], nil
	}
	p, ok := s.personas.FindByLabel(label)
	if !ok {
		return persona.Persona{}, persona.ErrNotFound
	}
	return p, nil
}

// armHideLocked replaces any pending hide with one that fires after
// hideDelay. e.mu must be held.
func (s *Service) armHideLocked(e *entry) {
	s.stopHideLocked(e)
	gen := e.hideGen
	e.hideTimer = time.AfterFunc(s.hideDelay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.ended || e.hideGen != gen {
			return
		}
		s.hideLocked(e)
		s.logger.Debug().Str("session_id", e.session.ID).Msg("feedback section hidden")
	})
}

// stopHideLocked cancels a pending hide. A callback already waiting on e.mu
// sees the bumped generation and does nothing.
func (s *Service) stopHideLocked(e *entry) {
	if e.hideTimer != nil {
		e.hideTimer.Stop()
		e.hideTimer = nil
	}
	e.hideGen++
}

func (s *Service) hideLocked(e *entry) {
	s.stopHideLocked(e)
	if e.session.Answer != "" {
		e.answerGen++
	}
	e.session.Answer = ""
	e.session.AnsweredBy = persona.Persona{}
	e.session.FeedbackVisible = false
	e.session.FeedbackSubmitted = false
	e.session.SubmittedAt = time.Time{}
}

func (s *Service) viewLocked(e *entry) View {
	v := View{
		Session:        e.session,
		State:          e.session.State(),
		CanRate:        e.session.CanRate(),
		LoggingEnabled: s.LoggingEnabled(),
	}
	if e.session.FeedbackSubmitted {
		at := e.session.SubmittedAt.Add(s.hideDelay)
		v.HideAt = &at
	}
	return v
}
