package ai

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAllEndpointsExhausted is matched (errors.Is) by the error Complete
// returns when every endpoint was skipped or failed during one pass.
var ErrAllEndpointsExhausted = errors.New("all endpoints exhausted")

// ErrorKind says which failure path produced an AIError.
type ErrorKind string

const (
	// ErrorKindTransport covers timeouts, connection errors, non-2xx
	// statuses and bodies that are not a usable completion.
	ErrorKindTransport ErrorKind = "transport"
	// ErrorKindEmptyContent is a well formed response with null or blank
	// content, whatever finish_reason says.
	ErrorKindEmptyContent ErrorKind = "empty_content"
	ErrorKindExhausted    ErrorKind = "all_endpoints_exhausted"
)

// AIError represents an enriched error from an AI provider
type AIError struct {
	Kind ErrorKind `json:"kind"`
	// OriginalErr is the underlying cause (if any)
	OriginalErr error `json:"-"`
	// ProviderName is the endpoint name from configuration
	ProviderName string `json:"provider_name"`
	// ModelName is the model name where the error occurred
	ModelName string `json:"model_name"`
	// HTTPStatusCode is the HTTP response status code (if applicable)
	HTTPStatusCode int `json:"http_status_code"`
	// ErrorCode is the provider's error code (e.g. "insufficient_quota")
	ErrorCode string `json:"error_code"`
	// FinishReason is set for empty content failures
	FinishReason string `json:"finish_reason"`
	// Message is a human-readable error message
	Message string `json:"message"`
}

func (e *AIError) Error() string {
	msg := e.Message
	if msg == "" && e.OriginalErr != nil {
		msg = e.OriginalErr.Error()
	}
	if e.ProviderName != "" && e.ModelName != "" {
		msg = fmt.Sprintf("[%s:%s] %s", e.ProviderName, e.ModelName, msg)
	}
	if e.FinishReason != "" {
		msg = fmt.Sprintf("%s (finish_reason: %s)", msg, e.FinishReason)
	}
	if e.ErrorCode != "" {
		msg = fmt.Sprintf("%s (code: %s)", msg, e.ErrorCode)
	}
	if e.HTTPStatusCode != 0 {
		msg = fmt.Sprintf("%d %s", e.HTTPStatusCode, msg)
	}
	return msg
}

func (e *AIError) Unwrap() error {
	return e.OriginalErr
}

func (e *AIError) Is(target error) bool {
	return target == ErrAllEndpointsExhausted && e.Kind == ErrorKindExhausted
}

// ErrorType returns the error type based on HTTP status code and error code
func (e *AIError) ErrorType() ErrorType {
	switch {
	case e.Kind == ErrorKindEmptyContent:
		return ErrorTypeEmpty
	case e.HTTPStatusCode == 429:
		return ErrorTypeRateLimit
	case e.HTTPStatusCode >= 500:
		return ErrorTypeServer
	case e.HTTPStatusCode == 400 && strings.Contains(strings.ToLower(e.Message), "policy"):
		return ErrorTypeContentPolicy
	case e.HTTPStatusCode >= 400 && e.HTTPStatusCode < 500:
		return ErrorTypeClient
	case e.HTTPStatusCode == 0 && e.OriginalErr != nil:
		return ErrorTypeNetwork
	default:
		return ErrorTypeUnknown
	}
}

// ErrorType for errors classification, used as a log field.
type ErrorType string

const (
	ErrorTypeNetwork       ErrorType = "network"        // Network error, timeout
	ErrorTypeRateLimit     ErrorType = "rate_limit"     // 429, provider limits
	ErrorTypeServer        ErrorType = "server"         // 5xx, provider-side error
	ErrorTypeClient        ErrorType = "client"         // 4xx (except 429), invalid request, API key, model not found
	ErrorTypeContentPolicy ErrorType = "content_policy" // 400, content policy violation
	ErrorTypeEmpty         ErrorType = "empty"          // null or blank content
	ErrorTypeUnknown       ErrorType = "unknown"
)

func GetErrorType(err error) ErrorType {
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr.ErrorType()
	}
	return ErrorTypeUnknown
}

func IsErrorType(err error, errorType ErrorType) bool {
	return GetErrorType(err) == errorType
}

// IsErrorKind reports whether the outermost AIError in err's chain has kind.
func IsErrorKind(err error, kind ErrorKind) bool {
	var aiErr *AIError
	if errors.As(err, &aiErr) {
		return aiErr.Kind == kind
	}
	return false
}
