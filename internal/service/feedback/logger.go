package feedback

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// LogWriteError wraps any failure to append a row.
type LogWriteError struct {
	Err error
}

func (e *LogWriteError) Error() string {
	return fmt.Sprintf("record feedback: %v", e.Err)
}

func (e *LogWriteError) Unwrap() error {
	return e.Err
}

// Sheet is the append-only spreadsheet the rows go to.
type Sheet interface {
	AppendRow(ctx context.Context, values []string) error
	LastRow(ctx context.Context) ([]string, error)
}

// Logger appends feedback rows to a Sheet.
type Logger struct {
	sheet  Sheet
	logger zerolog.Logger
}

// NewLogger wires a Logger to sheet.
func NewLogger(sheet Sheet, logger zerolog.Logger) *Logger {
	return &Logger{
		sheet:  sheet,
		logger: logger.With().Str("component", "feedback").Logger(),
	}
}

// Record appends row exactly once. It does not retry.
func (l *Logger) Record(ctx context.Context, row Row) error {
	if err := l.sheet.AppendRow(ctx, row.Values()); err != nil {
		l.logger.Error().Err(err).Str("persona", row.PersonaName).Msg("append feedback row failed")
		return &LogWriteError{Err: err}
	}

	l.logger.Info().
		Str("persona", row.PersonaName).
		Str("rating", row.Rating).
		Str("timestamp", row.Timestamp).
		Msg("feedback recorded")
	return nil
}

// Last reads back the most recently appended row.
func (l *Logger) Last(ctx context.Context) (Row, error) {
	values, err := l.sheet.LastRow(ctx)
	if err != nil {
		return Row{}, fmt.Errorf("read last feedback row: %w", err)
	}
	return RowFromValues(values), nil
}
