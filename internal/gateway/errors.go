package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrMissingURL    = errors.New("gateway: missing service URL")
	ErrMissingAPIKey = errors.New("gateway: missing API key")
	ErrMissingFilter = errors.New("gateway: update and delete require at least one filter")
)

// Codes attached to failures that never reached the remote service
const (
	CodeNetwork  = "network"
	CodeDecode   = "decode"
	CodeNotFound = "PGRST116" // PostgREST: singular response with zero rows
)

// Error is a failure reported by, or while talking to, the remote service.
type Error struct {
	Status  int    `json:"status,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`

	err error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.err
}

// ErrorCode is the remote error code (PostgREST, auth or storage specific)
func (e *Error) ErrorCode() string {
	return e.Code
}

// ErrorDetails joins the details and hint reported by the remote service
func (e *Error) ErrorDetails() string {
	switch {
	case e.Details != "" && e.Hint != "":
		return e.Details + " (" + e.Hint + ")"
	case e.Details != "":
		return e.Details
	default:
		return e.Hint
	}
}

// HTTPStatus is the response status, zero for transport failures
func (e *Error) HTTPStatus() int {
	return e.Status
}

// IsStatus reports whether err wraps an *Error with the given status code.
func IsStatus(err error, code int) bool {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Status == code
	}
	return false
}

// IsNotFound reports whether err means the requested row or object does not exist.
func IsNotFound(err error) bool {
	var gwErr *Error
	if !errors.As(err, &gwErr) {
		return false
	}
	return gwErr.Code == CodeNotFound || gwErr.Status == http.StatusNotFound
}

// remoteError is the union of the error bodies returned by the database,
// auth and storage APIs.
type remoteError struct {
	Code             json.RawMessage `json:"code"`
	Message          string          `json:"message"`
	Details          string          `json:"details"`
	Hint             string          `json:"hint"`
	Msg              string          `json:"msg"`
	ErrorCode        string          `json:"error_code"`
	ErrorName        string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	StatusCode       json.RawMessage `json:"statusCode"`
}

// decodeError converts a non-2xx response body into an *Error
func decodeError(status int, body []byte) *Error {
	e := &Error{Status: status}

	var re remoteError
	if err := json.Unmarshal(body, &re); err != nil {
		e.Message = strings.TrimSpace(string(body))
		if e.Message == "" {
			e.Message = http.StatusText(status)
		}
		return e
	}

	e.Code = rawString(re.Code)
	if e.Code == "" {
		e.Code = re.ErrorCode
	}
	if e.Code == "" {
		e.Code = re.ErrorName
	}

	for _, m := range []string{re.Message, re.Msg, re.ErrorDescription, re.ErrorName} {
		if m != "" {
			e.Message = m
			break
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}

	e.Details = re.Details
	e.Hint = re.Hint
	return e
}

// rawString accepts either a JSON string or number (auth returns numeric codes)
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func networkError(op string, err error) *Error {
	return &Error{
		Code:    CodeNetwork,
		Message: fmt.Sprintf("%s: %v", op, err),
		err:     err,
	}
}
