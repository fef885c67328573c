package feedback

import (
	"context"
	"errors"
	"sync"
)

// MemorySheet is an in-process Sheet, used when rows only need to be kept
// for the lifetime of the process (local runs and tests).
type MemorySheet struct {
	mu   sync.Mutex
	rows [][]string
	err  error
}

// NewMemorySheet returns an empty MemorySheet.
func NewMemorySheet() *MemorySheet {
	return &MemorySheet{}
}

// FailWith makes subsequent appends fail with err. nil clears it.
func (m *MemorySheet) FailWith(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *MemorySheet) AppendRow(_ context.Context, values []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, append([]string(nil), values...))
	return nil
}

func (m *MemorySheet) LastRow(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rows) == 0 {
		return nil, errors.New("sheet is empty")
	}
	return append([]string(nil), m.rows[len(m.rows)-1]...), nil
}

// Rows returns a copy of every appended row.
func (m *MemorySheet) Rows() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.rows))
	for i, r := range m.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
