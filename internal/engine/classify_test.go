package engine

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type statusErr struct{ code int }

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e statusErr) StatusCode() int { return e.code }

func TestClassifyRateLimit(t *testing.T) {
	inputs := []any{
		map[string]any{"status": 429},
		map[string]any{"message": "Rate limit exceeded"},
		map[string]any{"statusCode": 429, "message": "x"},
		map[string]any{"status_code": "429"},
		map[string]any{"ok": false, "error": "ratelimited"},
		map[string]any{"category": "RATE_LIMITS", "message": "You have reached your secondly limit."},
		"Too Many Requests",
		&APIError{StatusCode: 429},
		fmt.Errorf("wrapped: %w", &APIError{Source: "crm", StatusCode: 429, Message: "slow down"}),
		statusErr{code: 429},
	}
	for _, in := range inputs {
		c := Classify(in)
		assert.Equal(t, RateLimited, c.Kind, "Classify(%#v)", in)
		assert.True(t, c.Retryable())
	}
}

func TestClassifyUnknownMessage(t *testing.T) {
	c := Classify(map[string]any{"message": "Unknown error"})
	assert.Equal(t, Unknown, c.Kind)
	assert.Equal(t, "Unknown error", c.Message)
}

func TestClassifyKinds(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want ErrorKind
		msg  string
	}{
		{"404 status", map[string]any{"status": 404, "message": "gone"}, NotFound, "gone"},
		{"object not found code", map[string]any{"category": "OBJECT_NOT_FOUND", "message": "resource missing"}, NotFound, "resource missing"},
		{"slack channel not found", map[string]any{"ok": false, "error": "channel_not_found"}, NotFound, "channel_not_found"},
		{"not found without message", map[string]any{"code": "NOT_FOUND"}, NotFound, "resource not found"},
		{"401", &APIError{StatusCode: 401, Message: "Unauthorized"}, AuthFailure, "Unauthorized"},
		{"invalid auth code", map[string]any{"error": "invalid_auth"}, AuthFailure, "invalid_auth"},
		{"validation 422", &APIError{StatusCode: 422, Message: "amount is invalid"}, Validation, "amount is invalid"},
		{"validation code", map[string]any{"category": "VALIDATION_ERROR", "message": "Property values were not valid"}, Validation, "Property values were not valid"},
		{"graphql error", map[string]any{"errors": []any{map[string]any{"message": "Too many requests, slow down", "extensions": map[string]any{"code": "too_many_requests"}}}}, RateLimited, "Too many requests, slow down"},
		{"graphql auth", map[string]any{"errors": []any{map[string]any{"message": "bad key", "extensions": map[string]any{"code": "UNAUTHENTICATED"}}}}, AuthFailure, "bad key"},
		{"nested error object", map[string]any{"error": map[string]any{"status": 400, "message": "bad"}}, Validation, "bad"},
		{"plain error", errors.New("connection reset"), Unknown, "connection reset"},
		{"500 keeps message", &APIError{StatusCode: 500, Message: "internal"}, Unknown, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.in)
			assert.Equal(t, tt.want, c.Kind)
			assert.Equal(t, tt.msg, c.Message)
		})
	}
}

func TestClassifyNoUsableMessage(t *testing.T) {
	for _, in := range []any{nil, "", "   ", map[string]any{}, map[string]any{"status": 500}, &APIError{StatusCode: 401}} {
		c := Classify(in)
		assert.Equal(t, Unknown, c.Kind, "Classify(%#v)", in)
		assert.Equal(t, UnknownErrorMessage, c.Message)
	}
}

func TestClassifyNeverPanics(t *testing.T) {
	var nilErr *APIError
	inputs := []any{
		42,
		[]int{1, 2},
		map[string]any{"errors": "not a list"},
		map[string]any{"errors": []any{"not an object"}},
		map[string]any{"error": 12},
		struct{ A chan int }{},
		nilErr,
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { Classify(in) }, "Classify(%#v)", in)
	}
}

func TestClassificationString(t *testing.T) {
	assert.Equal(t, "rate limited: slow", Classification{Kind: RateLimited, Message: "slow"}.String())
	assert.Equal(t, "auth failure: denied", Classification{Kind: AuthFailure, Message: "denied"}.String())
	assert.Equal(t, "boom", Classification{Kind: Unknown, Message: "boom"}.String())
	assert.Equal(t, "not found: resource not found", ClassifyMessage(map[string]any{"status": 404}))
}

func TestAPIErrorString(t *testing.T) {
	err := &APIError{Source: "billing", StatusCode: 422, Code: "invalid", Message: "bad amount"}
	assert.Equal(t, "billing: HTTP 422 [invalid] bad amount", err.Error())
	assert.Equal(t, "HTTP 500", (&APIError{StatusCode: 500}).Error())
}
