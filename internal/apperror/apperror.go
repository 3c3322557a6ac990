// Package apperror converts failures of any origin into the single shape
// shown to users.
package apperror

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// UnknownMessage is shown when a failure carries no usable message
const UnknownMessage = "An unknown error occurred"

const (
	CodeTimeout    = "timeout"
	CodeCanceled   = "canceled"
	CodeValidation = "validation"
)

// Normalized is the error shape every page and API response receives
type Normalized struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type coded interface{ ErrorCode() string }

type detailed interface{ ErrorDetails() string }

type statused interface{ HTTPStatus() int }

type messager interface{ Message() string }

// Normalize accepts any failure value. Errors keep their message and, when
// they expose one, their code and details. Values with a Message method and
// maps carrying a non-empty "message" string keep that message too (maps
// also give up "code" and "details"). Anything else (nil, strings, numbers)
// yields UnknownMessage. It has no side effects.
func Normalize(v any) Normalized {
	switch t := v.(type) {
	case nil:
		return Normalized{Message: UnknownMessage}
	case error:
		return normalizeError(t)
	case messager:
		if msg := strings.TrimSpace(t.Message()); msg != "" {
			return Normalized{Message: msg}
		}
	case map[string]any:
		return normalizeFields(func(k string) string { return field(t[k]) })
	case map[string]string:
		return normalizeFields(func(k string) string { return t[k] })
	}
	return Normalized{Message: UnknownMessage}
}

func normalizeError(err error) Normalized {
	n := Normalized{Message: message(err)}

	var c coded
	if errors.As(err, &c) {
		n.Code = c.ErrorCode()
	}
	var d detailed
	if errors.As(err, &d) {
		n.Details = d.ErrorDetails()
	}

	if n.Code == "" {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			n.Code = CodeTimeout
		case errors.Is(err, context.Canceled):
			n.Code = CodeCanceled
		}
	}

	return n
}

func normalizeFields(get func(string) string) Normalized {
	msg := strings.TrimSpace(get("message"))
	if msg == "" {
		return Normalized{Message: UnknownMessage}
	}
	return Normalized{
		Message: msg,
		Code:    strings.TrimSpace(get("code")),
		Details: strings.TrimSpace(get("details")),
	}
}

// field reads a map value that is expected to be text. Numeric codes, as
// decoded from JSON, are printed; other shapes are ignored.
func field(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case json.Number:
		return t.String()
	}
	return ""
}

// message prefers the innermost coded error's own text over wrapping prefixes
func message(err error) string {
	var c coded
	if errors.As(err, &c) {
		if e, ok := c.(error); ok {
			if msg := strings.TrimSpace(e.Error()); msg != "" {
				return msg
			}
		}
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return UnknownMessage
}

// Status picks the HTTP status a handler should answer with for err
func Status(err error) int {
	var s statused
	if errors.As(err, &s) {
		switch status := s.HTTPStatus(); {
		case status == http.StatusNotAcceptable:
			// singular fetch with zero rows
			return http.StatusNotFound
		case status >= 400 && status < 500:
			return status
		case status >= 500:
			return http.StatusBadGateway
		}
	}

	var c coded
	if errors.As(err, &c) && c.ErrorCode() == CodeValidation {
		return http.StatusBadRequest
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case err != nil:
		return http.StatusBadGateway
	}
	return http.StatusOK
}

// ValidationError reports rejected input fields
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "Validation failed"
}

func (e *ValidationError) ErrorCode() string {
	return CodeValidation
}

// ErrorDetails lists "field: reason" pairs in field order
func (e *ValidationError) ErrorDetails() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return strings.Join(parts, "; ")
}

// Error is a failure raised by this process rather than a remote service
type Error struct {
	Status  int
	Code    string
	Message string
}

// New creates an Error answered with status
func New(status int, code, message string) *Error {
	return &Error{Status: status, Code: code, Message: message}
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) ErrorCode() string {
	return e.Code
}

func (e *Error) HTTPStatus() int {
	return e.Status
}
