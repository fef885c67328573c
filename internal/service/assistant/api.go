package assistant

import "context"

// RunStatus mirrors the lifecycle states reported by the assistant service.
type RunStatus string

const (
	RunStatusQueued         RunStatus = "queued"
	RunStatusInProgress     RunStatus = "in_progress"
	RunStatusRequiresAction RunStatus = "requires_action"
	RunStatusCancelling     RunStatus = "cancelling"
	RunStatusCancelled      RunStatus = "cancelled"
	RunStatusFailed         RunStatus = "failed"
	RunStatusCompleted      RunStatus = "completed"
	RunStatusIncomplete     RunStatus = "incomplete"
	RunStatusExpired        RunStatus = "expired"
)

// Pending reports whether the run may still change status on its own.
func (s RunStatus) Pending() bool {
	switch s {
	case RunStatusQueued, RunStatusInProgress, RunStatusCancelling:
		return true
	default:
		return false
	}
}

// Run is the subset of a remote run the client cares about.
type Run struct {
	ID        string
	Status    RunStatus
	LastError string
}

// API is the thread/run surface of the assistant service.
type API interface {
	// GetAssistant checks that assistantID exists and is reachable.
	GetAssistant(ctx context.Context, assistantID string) error
	CreateThread(ctx context.Context) (string, error)
	AddUserMessage(ctx context.Context, threadID, content string) error
	StartRun(ctx context.Context, threadID, assistantID, instructions string) (Run, error)
	GetRun(ctx context.Context, threadID, runID string) (Run, error)
	// LatestMessageText returns the first content block of the newest message
	// in the thread. It fails with ErrEmptyAnswer when there is none, the
	// block is not text or the text is empty.
	LatestMessageText(ctx context.Context, threadID string) (string, error)
}
