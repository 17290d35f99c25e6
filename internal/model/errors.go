package model

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when caller input is invalid. It never reaches the network.
	ErrValidation = errors.New("invalid input")

	// ErrTransportFailure is returned when the provider could not be reached or timed out.
	ErrTransportFailure = errors.New("transport failure")

	// ErrProviderRejected is returned when the provider answered with an application-level failure.
	ErrProviderRejected = errors.New("provider rejected request")

	// ErrMalformedResponse is returned when the provider response did not match the expected shape.
	ErrMalformedResponse = errors.New("malformed provider response")

	// ErrPollExhausted is returned when a poller gives up before a terminal state.
	ErrPollExhausted = errors.New("video job still running after max poll attempts")
)

// ValidationError describes invalid caller input.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// NewValidationError creates a validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

// Is makes errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// ValidationErrors groups several field errors.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ErrValidation.Error()
	}
	msg := e[0].Error()
	if len(e) > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, len(e)-1)
	}
	return msg
}

// Is makes errors.Is(err, ErrValidation) match.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// ProviderError is a failure talking to the generation provider.
// Kind is one of ErrTransportFailure, ErrProviderRejected or ErrMalformedResponse.
type ProviderError struct {
	Kind    error  `json:"-"`
	Op      string `json:"op,omitempty"`
	Code    int    `json:"provider_code,omitempty"`
	Message string `json:"provider_message,omitempty"`
	Err     error  `json:"-"`
}

// NewTransportFailure creates a transport failure.
func NewTransportFailure(op string, err error) *ProviderError {
	return &ProviderError{Kind: ErrTransportFailure, Op: op, Message: errString(err), Err: err}
}

// NewProviderRejected creates a provider rejection carrying the provider's status code and message.
func NewProviderRejected(op string, code int, message string) *ProviderError {
	return &ProviderError{Kind: ErrProviderRejected, Op: op, Code: code, Message: message}
}

// NewMalformedResponse creates a malformed response error.
func NewMalformedResponse(op, message string, err error) *ProviderError {
	return &ProviderError{Kind: ErrMalformedResponse, Op: op, Message: message, Err: err}
}

func (e *ProviderError) Error() string {
	kind := "provider error"
	if e.Kind != nil {
		kind = e.Kind.Error()
	}
	switch {
	case e.Code != 0:
		return fmt.Sprintf("%s: %s: code=%d %s", e.Op, kind, e.Code, e.Message)
	case e.Message != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, kind, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Op, kind)
	}
}

// Is makes errors.Is match the error kind.
func (e *ProviderError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

// Unwrap returns the underlying cause.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsProviderError reports whether err is any provider failure.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
