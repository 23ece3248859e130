package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// Error codes carried by ProviderError.
const (
	CodeInvalidAPIKey = "invalid_api_key"
	CodeRateLimited   = "rate_limited"
	CodeBadRequest    = "bad_request"
	CodeUnavailable   = "unavailable"
	CodeTimeout       = "timeout"
	CodeEmpty         = "empty_response"
	CodeUnknown       = "unknown"
)

type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %s", e.Provider, e.Code, e.Message)
	}
	return fmt.Sprintf("%s %s", e.Provider, e.Code)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// IsFatal reports whether retrying the same request cannot succeed.
func IsFatal(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code == CodeInvalidAPIKey
	}
	return false
}

func newProviderError(provider, code, message string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Code: code, Message: message, Err: err}
}

func codeForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return CodeInvalidAPIKey
	case status == http.StatusTooManyRequests:
		return CodeRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return CodeTimeout
	case status >= 500:
		return CodeUnavailable
	case status >= 400:
		return CodeBadRequest
	default:
		return CodeUnknown
	}
}

func classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newProviderError(provider, CodeTimeout, "", err)
	}

	var (
		oaiAPI    *openai.APIError
		oaiReq    *openai.RequestError
		anthErr   *anthropic.Error
		geminiErr genai.APIError
	)
	switch {
	case errors.As(err, &oaiAPI):
		return newProviderError(provider, codeForStatus(oaiAPI.HTTPStatusCode), oaiAPI.Message, err)
	case errors.As(err, &oaiReq):
		return newProviderError(provider, codeForStatus(oaiReq.HTTPStatusCode), oaiReq.HTTPStatus, err)
	case errors.As(err, &anthErr):
		return newProviderError(provider, codeForStatus(anthErr.StatusCode), "", err)
	case errors.As(err, &geminiErr):
		return newProviderError(provider, codeForStatus(geminiErr.Code), geminiErr.Message, err)
	default:
		return newProviderError(provider, CodeUnknown, err.Error(), err)
	}
}
