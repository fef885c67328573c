package desk

import (
	"time"

	"github.com/zhouzirui/autoapp-desk/backend/internal/model/persona"
)

// State is the position of a session in the ask/feedback cycle.
type State string

const (
	StateIdle              State = "idle"
	StateAnswerShown       State = "answer_shown"
	StateFeedbackOpen      State = "feedback_open"
	StateFeedbackSubmitted State = "feedback_submitted"
)

// Session is the form state of one user.
type Session struct {
	ID        string          `json:"id"`
	Persona   persona.Persona `json:"persona"`
	CreatedAt time.Time       `json:"createdAt"`

	Question string `json:"question"`
	Answer   string `json:"answer"`
	// AnsweredBy is the persona that produced Answer. The selector may have
	// moved on since, but feedback belongs to the answering persona.
	AnsweredBy persona.Persona `json:"answeredBy"`

	FeedbackVisible   bool      `json:"feedbackVisible"`
	FeedbackSubmitted bool      `json:"feedbackSubmitted"`
	SubmittedAt       time.Time `json:"submittedAt,omitempty"`
}

// State derives the cycle position from the flags.
func (s Session) State() State {
	switch {
	case s.Answer == "":
		return StateIdle
	case s.FeedbackSubmitted:
		return StateFeedbackSubmitted
	case s.FeedbackVisible:
		return StateFeedbackOpen
	default:
		return StateAnswerShown
	}
}

// CanRate reports whether the rating prompt accepts a submission. Once
// feedback is submitted the section stays visible with a thank-you until it
// is hidden, but no longer offers the prompt.
func (s Session) CanRate() bool {
	return s.Answer != "" && s.FeedbackVisible && !s.FeedbackSubmitted
}
