package contract

import "errors"

var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrUpstream    = errors.New("upstream call failed")
	ErrSuperseded  = errors.New("superseded by a newer query")
	ErrClosed      = errors.New("closed")
	ErrUnknownTool = errors.New("unknown tool")
)
