package cli

import (
	"errors"

	"github.com/vk/seedgrid/internal/catalogue"
	"github.com/vk/seedgrid/internal/store"
	"github.com/vk/seedgrid/internal/synth"
)

// Process exit codes.
const (
	ExitOK         = 0
	ExitFailure    = 1
	ExitExhausted  = 2
	ExitWriteError = 3
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// exitError maps an application error to its exit code. Descriptor
// problems and anything unclassified exit with 1.
func exitError(err error) *ExitError {
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee
	}
	var we *store.WriteError
	var de *catalogue.DescriptorError
	switch {
	case errors.As(err, &we):
		return &ExitError{Code: ExitWriteError, Message: err.Error()}
	case errors.Is(err, synth.ErrSynthesisExhausted):
		return &ExitError{Code: ExitExhausted, Message: err.Error()}
	case errors.As(err, &de):
		return &ExitError{Code: ExitFailure, Message: err.Error()}
	}
	return &ExitError{Code: ExitFailure, Message: err.Error()}
}
