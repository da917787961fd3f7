// Package gemini implements an eino [model.BaseChatModel] backed by the
// Google Gemini generateContent endpoint.
//
// It wraps the google.golang.org/genai SDK. Each call builds a client for the
// API key passed with [WithAPIKey], so one Client serves requests that bring
// their own credentials. Failures are reported as *apperr.Error values that
// separate upstream-reported errors from timeouts and connection failures.
package gemini

import "time"

const (
	DefaultModel   = "gemini-1.5-flash"
	DefaultTimeout = 30 * time.Second

	defaultTemperature float32 = 0.3
	defaultMaxTokens           = 1000
	defaultTopP        float32 = 0.8
	defaultTopK        float32 = 40
)
