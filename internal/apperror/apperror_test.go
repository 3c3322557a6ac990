package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/islandvows/islandvows/internal/gateway"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  Normalized
	}{
		{
			name:  "error with message",
			input: errors.New("duplicate key"),
			want:  Normalized{Message: "duplicate key"},
		},
		{
			name:  "gateway error keeps code and details",
			input: fmt.Errorf("insert pages: %w", &gateway.Error{Status: 409, Code: "23505", Message: "duplicate key", Details: "Key (slug)=(about) already exists."}),
			want:  Normalized{Message: "duplicate key", Code: "23505", Details: "Key (slug)=(about) already exists."},
		},
		{
			name:  "gateway not found",
			input: &gateway.Error{Status: 406, Code: gateway.CodeNotFound, Message: "JSON object requested, multiple (or no) rows returned"},
			want:  Normalized{Message: "JSON object requested, multiple (or no) rows returned", Code: "PGRST116"},
		},
		{
			name:  "deadline",
			input: fmt.Errorf("session check: %w", context.DeadlineExceeded),
			want:  Normalized{Message: "session check: context deadline exceeded", Code: CodeTimeout},
		},
		{
			name:  "validation",
			input: &ValidationError{Fields: map[string]string{"title": "is required", "email": "must be a valid email"}},
			want:  Normalized{Message: "Validation failed", Code: CodeValidation, Details: "email: must be a valid email; title: is required"},
		},
		{
			name:  "plain string",
			input: "timeout",
			want:  Normalized{Message: UnknownMessage},
		},
		{
			name:  "nil",
			input: nil,
			want:  Normalized{Message: UnknownMessage},
		},
		{
			name:  "typed nil error",
			input: error(nil),
			want:  Normalized{Message: UnknownMessage},
		},
		{
			name:  "map with message field",
			input: map[string]string{"message": "duplicate key"},
			want:  Normalized{Message: "duplicate key"},
		},
		{
			name:  "decoded error body",
			input: map[string]any{"message": "duplicate key value", "code": "23505", "details": "Key (slug)=(about) already exists."},
			want:  Normalized{Message: "duplicate key value", Code: "23505", Details: "Key (slug)=(about) already exists."},
		},
		{
			name:  "numeric code",
			input: map[string]any{"message": "Bucket not found", "code": float64(404)},
			want:  Normalized{Message: "Bucket not found", Code: "404"},
		},
		{
			name:  "map with blank message",
			input: map[string]any{"message": " ", "code": "23505"},
			want:  Normalized{Message: UnknownMessage},
		},
		{
			name:  "map with non-string message",
			input: map[string]any{"message": 42},
			want:  Normalized{Message: UnknownMessage},
		},
		{
			name:  "map without message",
			input: map[string]string{"error": "boom"},
			want:  Normalized{Message: UnknownMessage},
		},
		{
			name:  "message method",
			input: remoteFailure{msg: "Storage quota exceeded"},
			want:  Normalized{Message: "Storage quota exceeded"},
		},
		{
			name:  "empty message method",
			input: remoteFailure{},
			want:  Normalized{Message: UnknownMessage},
		},
		{
			name:  "error with empty message",
			input: errors.New("  "),
			want:  Normalized{Message: UnknownMessage},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.input)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, got.Message)
			assert.Equal(t, got, Normalize(tt.input), "normalization must be repeatable")
		})
	}
}

type remoteFailure struct{ msg string }

func (f remoteFailure) Message() string { return f.msg }

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "not found", err: &gateway.Error{Status: 406, Code: gateway.CodeNotFound}, want: http.StatusNotFound},
		{name: "conflict", err: &gateway.Error{Status: 409}, want: http.StatusConflict},
		{name: "forbidden", err: fmt.Errorf("x: %w", &gateway.Error{Status: 403}), want: http.StatusForbidden},
		{name: "upstream failure", err: &gateway.Error{Status: 500}, want: http.StatusBadGateway},
		{name: "network", err: &gateway.Error{Code: gateway.CodeNetwork}, want: http.StatusBadGateway},
		{name: "validation", err: &ValidationError{}, want: http.StatusBadRequest},
		{name: "deadline", err: context.DeadlineExceeded, want: http.StatusGatewayTimeout},
		{name: "local", err: New(http.StatusUnauthorized, "no_refresh_token", "No refresh token"), want: http.StatusUnauthorized},
		{name: "nil", err: nil, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.err))
		})
	}
}

func TestNew(t *testing.T) {
	err := fmt.Errorf("refresh: %w", New(http.StatusUnauthorized, "no_refresh_token", "No refresh token"))
	assert.Equal(t, Normalized{Message: "No refresh token", Code: "no_refresh_token"}, Normalize(err))
}
