package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ClientInput("too short"), http.StatusBadRequest},
		{NotFound("Chat session not found"), http.StatusNotFound},
		{New(KindUpstreamTimeout, "timed out", nil), http.StatusGatewayTimeout},
		{New(KindUpstreamUnavailable, "unreachable", nil), http.StatusServiceUnavailable},
		{New(KindUpstream, "Rate limit exceeded: quota", nil), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), "err=%v", tc.err)
	}
}

func TestKindOfWrapped(t *testing.T) {
	base := New(KindUpstreamTimeout, "Request to Gemini API timed out", errors.New("deadline"))
	wrapped := fmt.Errorf("summarize: %w", base)

	require.Equal(t, KindUpstreamTimeout, KindOf(wrapped))
	require.Equal(t, "Request to Gemini API timed out", MessageOf(wrapped))
	require.Contains(t, wrapped.Error(), "deadline")
}

func TestMessageOfPlainError(t *testing.T) {
	require.Equal(t, "boom", MessageOf(errors.New("boom")))
	require.Equal(t, "", MessageOf(nil))
	require.Equal(t, KindInternal, KindOf(nil))
}
