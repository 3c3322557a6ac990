package gateway

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantCode    string
		wantMessage string
		wantDetails string
	}{
		{
			name:        "rest error",
			status:      http.StatusBadRequest,
			body:        `{"code":"22P02","message":"invalid input syntax for type uuid","details":null,"hint":"check the id"}`,
			wantCode:    "22P02",
			wantMessage: "invalid input syntax for type uuid",
			wantDetails: "check the id",
		},
		{
			name:        "auth error with numeric code",
			status:      http.StatusUnauthorized,
			body:        `{"code":401,"error_code":"bad_jwt","msg":"invalid JWT"}`,
			wantCode:    "401",
			wantMessage: "invalid JWT",
		},
		{
			name:        "auth error with error_code only",
			status:      http.StatusUnprocessableEntity,
			body:        `{"error_code":"email_exists","msg":"A user with this email address has already been registered"}`,
			wantCode:    "email_exists",
			wantMessage: "A user with this email address has already been registered",
		},
		{
			name:        "plain text body",
			status:      http.StatusBadGateway,
			body:        "upstream unavailable\n",
			wantMessage: "upstream unavailable",
		},
		{
			name:        "empty body",
			status:      http.StatusServiceUnavailable,
			body:        "",
			wantMessage: "Service Unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := decodeError(tt.status, []byte(tt.body))
			assert.Equal(t, tt.status, e.Status)
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Equal(t, tt.wantMessage, e.Message)
			assert.Equal(t, tt.wantDetails, e.ErrorDetails())
		})
	}
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", &Error{Status: http.StatusNotFound})))
	assert.True(t, IsNotFound(&Error{Status: http.StatusNotAcceptable, Code: CodeNotFound}))
	assert.False(t, IsNotFound(&Error{Status: http.StatusConflict}))
	assert.False(t, IsNotFound(fmt.Errorf("plain")))
}
