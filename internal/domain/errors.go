package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures in run summaries and the ledger.
type ErrorKind string

const (
	KindConfiguration    ErrorKind = "configuration"
	KindModelUnavailable ErrorKind = "model_unavailable"
	KindModelRejected    ErrorKind = "model_rejected"
	KindStage            ErrorKind = "stage"
	KindInternal         ErrorKind = "internal"
)

// ConfigurationError aborts a run before any project is processed.
type ConfigurationError struct {
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("configuration: %s: %v", e.Reason, e.Err)
	}
	return "configuration: " + e.Reason
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ModelUnavailableError is returned once transient failures exhausted the retry budget.
type ModelUnavailableError struct {
	Model    string
	Attempts int
	Err      error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model %s unavailable after %d attempt(s): %v", e.Model, e.Attempts, e.Err)
}

func (e *ModelUnavailableError) Unwrap() error { return e.Err }

// ModelRejectedError is a non-retriable refusal from the remote model.
type ModelRejectedError struct {
	Model      string
	StatusCode int
	Err        error
}

func (e *ModelRejectedError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("model %s rejected request (status %d): %v", e.Model, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("model %s rejected request: %v", e.Model, e.Err)
}

func (e *ModelRejectedError) Unwrap() error { return e.Err }

// StageError reports a stage that could not complete for its project.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// NewStageError wraps err for stage unless it is already a StageError.
func NewStageError(stage string, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// KindOf maps err to the most specific ErrorKind. Model errors win over
// the StageError that wraps them.
func KindOf(err error) ErrorKind {
	var (
		cfg         *ConfigurationError
		unavailable *ModelUnavailableError
		rejected    *ModelRejectedError
		stage       *StageError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &cfg):
		return KindConfiguration
	case errors.As(err, &unavailable):
		return KindModelUnavailable
	case errors.As(err, &rejected):
		return KindModelRejected
	case errors.As(err, &stage):
		return KindStage
	default:
		return KindInternal
	}
}

// TransportError is returned by model transports to let the gateway decide
// whether a failure is worth retrying.
type TransportError struct {
	StatusCode int
	Retriable  bool
	RetryAfter int // seconds, 0 when unknown
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transport status %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
