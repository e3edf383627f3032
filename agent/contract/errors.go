package contract

import "errors"

var (
	ErrModelInvoke        = errors.New("model invoke failed")
	ErrSchemaViolation    = errors.New("model response violates schema")
	ErrPromptMissing      = errors.New("required prompt is missing")
	ErrValidation         = errors.New("validation failed")
	ErrUnknownAgent       = errors.New("unknown agent")
	ErrHopLimit           = errors.New("dispatch hop limit exceeded")
	ErrBackendUnavailable = errors.New("backend unavailable")
)
