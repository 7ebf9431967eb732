package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInterruptHandler(t *testing.T) {
	tests := []struct {
		writer io.Writer
		name   string
	}{
		{
			name:   "with custom writer",
			writer: &bytes.Buffer{},
		},
		{
			name:   "with nil writer",
			writer: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewInterruptHandler(tt.writer)
			assert.NotNil(t, handler)
			assert.NotNil(t, handler.writer)
			assert.False(t, handler.WasInterrupted())
		})
	}
}

func TestInterruptCancelsContext(t *testing.T) {
	var output bytes.Buffer
	handler := NewInterruptHandler(&output)

	parent, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx := handler.HandleInterrupts(parent, "Nothing was written.")

	select {
	case <-ctx.Done():
		t.Fatal("context should not be canceled initially")
	default:
	}

	handler.interrupt()

	<-ctx.Done()
	require.True(t, handler.WasInterrupted())
	assert.Contains(t, output.String(), "Run interrupted!")
	assert.Contains(t, output.String(), "Nothing was written.")
}

func TestParentCancelIsNotAnInterrupt(t *testing.T) {
	var output bytes.Buffer
	handler := NewInterruptHandler(&output)

	parent, cancel := context.WithCancel(context.Background())
	ctx := handler.HandleInterrupts(parent, "")
	cancel()

	<-ctx.Done()
	assert.False(t, handler.WasInterrupted())
	assert.Empty(t, output.String())
}

func TestMultipleInterrupts(t *testing.T) {
	var output bytes.Buffer
	handler := NewInterruptHandler(&output)
	_ = handler.HandleInterrupts(context.Background(), "")

	handler.interrupt()
	handler.interrupt()

	count := strings.Count(output.String(), "Run interrupted!")
	assert.Equal(t, 1, count, "interrupt message should only be shown once")
}

func TestShowInterruptMessage(t *testing.T) {
	tests := []struct {
		name        string
		hint        string
		expected    []string
		notExpected []string
	}{
		{
			name:     "with hint",
			hint:     "Rerun with: sieve predict ledger.xlsx",
			expected: []string{"Run interrupted!", "Rerun with: sieve predict ledger.xlsx"},
		},
		{
			name:        "without hint",
			expected:    []string{"Run interrupted!"},
			notExpected: []string{"Rerun with"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output bytes.Buffer
			handler := &InterruptHandler{
				writer: &output,
				hint:   tt.hint,
			}

			handler.showInterruptMessage()

			outputStr := output.String()
			for _, expected := range tt.expected {
				assert.Contains(t, outputStr, expected)
			}
			for _, notExpected := range tt.notExpected {
				assert.NotContains(t, outputStr, notExpected)
			}
		})
	}
}
