package chi

import (
	"crypto/subtle"
	"net/http"
	"strings"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// openRoutes answer probes from load balancers and scrapers without a key.
var openRoutes = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// APIKeyAuth guards the search and document routes with static API keys. A key
// is sent as "Authorization: Bearer <key>" or in the X-Api-Key header. With no
// non-empty keys configured the middleware is a no-op.
func APIKeyAuth(apiKeys []string, logger *zap.Logger) func(http.Handler) http.Handler {
	var keys [][]byte
	for _, k := range apiKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := openRoutes[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			key, reason := presentedKey(r)
			if reason == "" && !knownKey(keys, key) {
				reason = "invalid api key"
			}
			if reason != "" {
				logger.Warn("Rejected search request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("reason", reason),
					zap.String("request_id", chiMiddleware.GetReqID(r.Context())),
				)
				writeError(w, http.StatusUnauthorized, CodeUnauthorized, reason)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// presentedKey extracts the caller's key, or names why none could be read.
func presentedKey(r *http.Request) (string, string) {
	if key := r.Header.Get("X-Api-Key"); key != "" {
		return key, ""
	}
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", "missing api key"
	}
	const bearer = "Bearer "
	if !strings.HasPrefix(auth, bearer) {
		return "", "authorization header must use Bearer scheme"
	}
	return auth[len(bearer):], ""
}

func knownKey(keys [][]byte, key string) bool {
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(k, []byte(key))
	}
	return found == 1
}
