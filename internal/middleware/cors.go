package middleware

import (
	"net/http"
	"slices"

	"github.com/go-chi/cors"
)

// CORS answers preflight requests and decorates responses for the given
// origins. A "*" entry allows every origin. The allowed origin is always
// echoed back rather than "*", so credentialed requests from the browser
// extension (chrome-extension://...) keep working.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowAll := slices.Contains(origins, "*")

	return cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return origin != "" && (allowAll || slices.Contains(origins, origin))
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
