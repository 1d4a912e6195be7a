// Package proto defines the realtime wire format: envelopes, event names and payloads.
package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Error codes carried by handler_error.
const (
	CodeBadRequest   = "bad_request"
	CodeValidation   = "validation_failed"
	CodeUnknownEvent = "unknown_event"
	CodeRateLimited  = "rate_limited"
	CodeInternal     = "internal_error"
)

// Error describes a command-local failure. It is only ever sent to the sender.
type Error struct {
	Code   string  `json:"code"`
	Msg    string  `json:"msg"`
	Issues []Issue `json:"issues,omitempty"`
}

func (e *Error) Error() string {
	return e.Msg
}

// Issue points at one offending field of a rejected payload.
type Issue struct {
	Path    []string `json:"path"`
	Code    string   `json:"code"`
	Message string   `json:"message"`
}

// Issue codes.
const (
	IssueInvalidType = "invalid_type"
	IssueTooSmall    = "too_small"
	IssueTooBig      = "too_big"
	IssueCustom      = "custom"
)

// NewError builds an Error without field issues.
func NewError(code, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}
