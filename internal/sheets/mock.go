package sheets

import (
	"context"
	"sync"

	"github.com/Veraticus/ledger-sieve/internal/model"
	"github.com/Veraticus/ledger-sieve/internal/service"
)

// MockWriter is a mock implementation of ReportWriter for testing.
type MockWriter struct {
	WriteFunc      func(ctx context.Context, filtered *model.Table, summary *service.ReportSummary) error
	LastSummary    *service.ReportSummary
	LastTable      *model.Table
	WriteCalls     []WriteCall
	WriteCallCount int
	mu             sync.Mutex
}

// WriteCall represents a single call to Write.
type WriteCall struct {
	Error   error
	Summary *service.ReportSummary
	Table   *model.Table
}

// NewMockWriter creates a new mock writer.
func NewMockWriter() *MockWriter {
	return &MockWriter{
		WriteCalls: make([]WriteCall, 0),
	}
}

// Write implements the ReportWriter interface.
func (m *MockWriter) Write(ctx context.Context, filtered *model.Table, summary *service.ReportSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCallCount++
	m.LastTable = filtered
	m.LastSummary = summary

	var err error
	if m.WriteFunc != nil {
		err = m.WriteFunc(ctx, filtered, summary)
	}

	m.WriteCalls = append(m.WriteCalls, WriteCall{
		Table:   filtered,
		Summary: summary,
		Error:   err,
	})

	return err
}

// Reset clears all recorded calls.
func (m *MockWriter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteCallCount = 0
	m.WriteCalls = make([]WriteCall, 0)
	m.LastTable = nil
	m.LastSummary = nil
}

// GetWriteCalls returns a copy of all write calls.
func (m *MockWriter) GetWriteCalls() []WriteCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]WriteCall, len(m.WriteCalls))
	copy(calls, m.WriteCalls)
	return calls
}

// AssertWriteCalled verifies that Write was called the expected number of times.
func (m *MockWriter) AssertWriteCalled(t interface{ Fatalf(string, ...any) }, expectedCalls int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.WriteCallCount != expectedCalls {
		t.Fatalf("expected Write to be called %d times, but was called %d times", expectedCalls, m.WriteCallCount)
	}
}

// SetWriteError configures the mock to return an error on every Write call.
func (m *MockWriter) SetWriteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.WriteFunc = func(_ context.Context, _ *model.Table, _ *service.ReportSummary) error {
		return err
	}
}
