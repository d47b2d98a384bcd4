package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrorKind is the taxonomy every integration reports failures in.
type ErrorKind string

const (
	RateLimited ErrorKind = "rate_limited"
	NotFound    ErrorKind = "not_found"
	AuthFailure ErrorKind = "auth"
	Validation  ErrorKind = "validation"
	Unknown     ErrorKind = "unknown"
)

// UnknownErrorMessage is used when a failure carries no usable message.
const UnknownErrorMessage = "unknown error"

var rateLimitPhrases = []string{"rate limit", "ratelimit", "too many requests"}

var rateLimitCodes = map[string]bool{
	"RATE_LIMITS":       true,
	"RATE_LIMITED":      true,
	"RATELIMITED":       true,
	"TOO_MANY_REQUESTS": true,
}

var notFoundCodes = map[string]bool{
	"NOT_FOUND":          true,
	"OBJECT_NOT_FOUND":   true,
	"CHANNEL_NOT_FOUND":  true,
	"RESOURCE_NOT_FOUND": true,
}

var authCodes = map[string]bool{
	"INVALID_AUTH":           true,
	"NOT_AUTHED":             true,
	"TOKEN_REVOKED":          true,
	"UNAUTHENTICATED":        true,
	"INVALID_AUTHENTICATION": true,
	"MISSING_SCOPES":         true,
	"FORBIDDEN":              true,
}

var validationCodes = map[string]bool{
	"VALIDATION_ERROR":  true,
	"BAD_REQUEST":       true,
	"INVALID_PARAMS":    true,
	"INVALID_ARGUMENTS": true,
}

// Classification is the normalized view of an external failure.
type Classification struct {
	Kind    ErrorKind `json:"kind"`
	Status  int       `json:"status,omitempty"`
	Code    string    `json:"code,omitempty"`
	Message string    `json:"message"`
}

// Retryable reports whether the next scheduled run may succeed without
// operator intervention.
func (c Classification) Retryable() bool {
	return c.Kind == RateLimited || c.Kind == Unknown
}

// String renders the classification for run error lists.
func (c Classification) String() string {
	switch c.Kind {
	case RateLimited:
		return "rate limited: " + c.Message
	case NotFound:
		return "not found: " + c.Message
	case AuthFailure:
		return "auth failure: " + c.Message
	case Validation:
		return "validation failed: " + c.Message
	default:
		return c.Message
	}
}

// APIError is the error shape returned by every external client.
type APIError struct {
	Source     string
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	var sb strings.Builder
	if e.Source != "" {
		sb.WriteString(e.Source)
		sb.WriteString(": ")
	}
	if e.StatusCode != 0 {
		sb.WriteString(fmt.Sprintf("HTTP %d", e.StatusCode))
		if e.Code != "" || e.Message != "" {
			sb.WriteString(" ")
		}
	}
	if e.Code != "" {
		sb.WriteString("[" + e.Code + "]")
		if e.Message != "" {
			sb.WriteString(" ")
		}
	}
	sb.WriteString(e.Message)
	return sb.String()
}

// Classify maps an arbitrary failure (error, decoded JSON object, string)
// to the error taxonomy. It never panics.
//
// Priority: status 429, rate-limit wording, not-found status or code,
// missing message, auth, validation.
func Classify(v any) (c Classification) {
	defer func() {
		if r := recover(); r != nil {
			c = Classification{Kind: Unknown, Message: UnknownErrorMessage}
		}
	}()

	status, code, msg := inspect(v)
	msg = strings.TrimSpace(msg)
	c = Classification{Status: status, Code: code, Message: msg}
	upperCode := strings.ToUpper(code)
	lowerMsg := strings.ToLower(msg)

	switch {
	case status == 429 || rateLimitCodes[upperCode]:
		c.Kind = RateLimited
	case containsAny(lowerMsg, rateLimitPhrases):
		c.Kind = RateLimited
	case status == 404 || notFoundCodes[upperCode]:
		c.Kind = NotFound
	case msg == "":
		c.Kind = Unknown
	case status == 401 || status == 403 || authCodes[upperCode]:
		c.Kind = AuthFailure
	case status == 400 || status == 409 || status == 422 || validationCodes[upperCode]:
		c.Kind = Validation
	default:
		c.Kind = Unknown
	}

	if c.Message == "" {
		switch c.Kind {
		case RateLimited:
			c.Message = "rate limit exceeded"
		case NotFound:
			c.Message = "resource not found"
		default:
			c.Message = UnknownErrorMessage
		}
	}
	return c
}

// ClassifyMessage is shorthand for Classify(v).String().
func ClassifyMessage(v any) string {
	return Classify(v).String()
}

// Inspect extracts the status, machine code and message from a failure
// shape without classifying it.
func Inspect(v any) (status int, code, msg string) {
	defer func() {
		if r := recover(); r != nil {
			status, code, msg = 0, "", ""
		}
	}()
	status, code, msg = inspect(v)
	return status, code, strings.TrimSpace(msg)
}

type statusCoder interface {
	StatusCode() int
}

func inspect(v any) (status int, code, msg string) {
	switch t := v.(type) {
	case nil:
		return 0, "", ""
	case string:
		return 0, "", t
	case map[string]any:
		return inspectMap(t)
	case map[string]string:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = val
		}
		return inspectMap(m)
	case error:
		var apiErr *APIError
		if errors.As(t, &apiErr) {
			return apiErr.StatusCode, apiErr.Code, apiErr.Message
		}
		var sc statusCoder
		if errors.As(t, &sc) {
			return sc.StatusCode(), "", t.Error()
		}
		return 0, "", t.Error()
	case fmt.Stringer:
		return 0, "", t.String()
	default:
		return 0, "", fmt.Sprintf("%v", t)
	}
}

func inspectMap(m map[string]any) (status int, code, msg string) {
	for _, key := range []string{"status", "statusCode", "status_code", "code"} {
		raw, ok := m[key]
		if !ok {
			continue
		}
		if n, ok := asInt(raw); ok {
			if status == 0 {
				status = n
			}
			continue
		}
		if s, ok := raw.(string); ok && key != "status" && code == "" {
			code = s
		}
	}
	if s, ok := m["category"].(string); ok && code == "" {
		code = s
	}

	for _, key := range []string{"message", "error_description", "msg", "detail"} {
		if s, ok := m[key].(string); ok && strings.TrimSpace(s) != "" {
			msg = s
			break
		}
	}

	// "error" is either a message or a machine code depending on the source
	switch e := m["error"].(type) {
	case string:
		if msg == "" {
			msg = e
		}
		if code == "" {
			code = e
		}
	case map[string]any:
		s, c, m2 := inspectMap(e)
		if status == 0 {
			status = s
		}
		if code == "" {
			code = c
		}
		if msg == "" {
			msg = m2
		}
	}

	// GraphQL style {"errors": [{"message": ..., "extensions": {"code": ...}}]}
	if list, ok := m["errors"].([]any); ok && len(list) > 0 {
		if first, ok := list[0].(map[string]any); ok {
			s, c, m2 := inspectMap(first)
			if ext, ok := first["extensions"].(map[string]any); ok {
				es, ec, _ := inspectMap(ext)
				if s == 0 {
					s = es
				}
				if c == "" {
					c = ec
				}
			}
			if status == 0 {
				status = s
			}
			if code == "" {
				code = c
			}
			if msg == "" {
				msg = m2
			}
		}
	}
	return status, code, msg
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
