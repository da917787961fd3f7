package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"google.golang.org/genai"

	"github.com/zhouzirui/article-rag/backend/internal/apperr"
)

func upstream(message string, err error) error {
	return apperr.New(apperr.KindUpstream, message, err)
}

// classify translates a failed SDK call into the local error taxonomy. ctx is
// the context the call ran under; its deadline identifies timeouts no matter
// how the transport reported them.
func classify(ctx context.Context, err error) error {
	if status, message, ok := apiError(err); ok {
		return upstream(StatusMessage(status, message), err)
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return apperr.New(apperr.KindUpstreamTimeout, "Request to Gemini API timed out", err)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return apperr.New(apperr.KindUpstreamTimeout, "Request to Gemini API timed out", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || urlErr != nil {
		return apperr.New(apperr.KindUpstreamUnavailable, fmt.Sprintf("Network error: %v", err), err)
	}

	if errors.Is(err, context.Canceled) {
		return upstream("Request to Gemini API was canceled", err)
	}

	return upstream(err.Error(), err)
}

func apiError(err error) (int, string, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, apiErr.Message, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, apiErrPtr.Message, true
	}
	return 0, "", false
}

// StatusMessage renders the client-facing message for a non-200 upstream
// response.
func StatusMessage(status int, message string) string {
	if message == "" {
		message = fmt.Sprintf("HTTP %d", status)
	}
	switch status {
	case http.StatusBadRequest:
		return "Bad request: " + message
	case http.StatusForbidden:
		return "API key invalid or expired: " + message
	case http.StatusTooManyRequests:
		return "Rate limit exceeded: " + message
	default:
		return "API error: " + message
	}
}
