package model

import (
	"errors"
	"fmt"
)

// Error kinds. Pipeline failures wrap one of these so callers can branch with
// errors.Is without caring which step produced them.
var (
	ErrAccessDenied    = errors.New("agent is not active")
	ErrInvalidAction   = errors.New("invalid action")
	ErrUnsupportedKind = errors.New("unsupported agent type")
	ErrEnrichment      = errors.New("context enrichment failed")
	ErrInsights        = errors.New("insight generation failed")
	ErrGeneration      = errors.New("message generation failed")
	ErrAnalysis        = errors.New("message analysis failed")
	ErrRetrieval       = errors.New("example retrieval failed")
	ErrConnectivity    = errors.New("tracing backend unreachable")
	ErrScoringParse    = errors.New("could not parse scoring response")
	ErrTicketBusy      = errors.New("outreach generation already in progress for ticket")
	ErrStreamClosed    = errors.New("progress stream closed")
)

// ValidationError reports a missing or malformed input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("validation: %s is required", e.Field)
}

// InvalidActionError names the action an agent does not support.
type InvalidActionError struct {
	Action string
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("invalid action %q", e.Action)
}

func (e *InvalidActionError) Unwrap() error { return ErrInvalidAction }

// UnsupportedAgentTypeError names a stored role with no agent implementation.
type UnsupportedAgentTypeError struct {
	Kind AgentKind
}

func (e *UnsupportedAgentTypeError) Error() string {
	return fmt.Sprintf("unsupported agent type %q", string(e.Kind))
}

func (e *UnsupportedAgentTypeError) Unwrap() error { return ErrUnsupportedKind }

// StepError is a failure of a named pipeline step. It matches both its kind
// sentinel and its cause under errors.Is.
type StepError struct {
	Kind error
	Step string
	Err  error
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Step, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
