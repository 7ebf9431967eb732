package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/ledger-sieve/internal/model"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("string parameter cannot be empty")
	ErrNilParameter = errors.New("parameter cannot be nil")
	ErrInvalidRun   = errors.New("invalid run")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateRun validates a run record before it is written.
func validateRun(run *model.Run) error {
	if run == nil {
		return fmt.Errorf("%w: run", ErrNilParameter)
	}
	if strings.TrimSpace(run.ID) == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidRun)
	}
	if strings.TrimSpace(run.FileName) == "" {
		return fmt.Errorf("%w: missing file name", ErrInvalidRun)
	}
	if run.StartedAt.IsZero() {
		return fmt.Errorf("%w: missing start time", ErrInvalidRun)
	}
	if run.Rows < 0 || run.Matched < 0 || run.Matched > run.Rows {
		return fmt.Errorf("%w: matched %d of %d rows", ErrInvalidRun, run.Matched, run.Rows)
	}
	return nil
}
