package auth

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/sha1n/mcp-catalog-search/internal/config"
)

// APIKeyHeader carries the key checked by apikey authentication
const APIKeyHeader = "X-API-Key"

// openPaths are served without credentials
var openPaths = map[string]bool{
	"/health": true,
}

// Middleware wraps a handler with an authentication check
type Middleware func(http.Handler) http.Handler

// NewMiddleware returns the middleware configured by settings. An empty or
// "none" type leaves handlers untouched.
func NewMiddleware(settings config.AuthSettings) (Middleware, error) {
	switch settings.Type {
	case config.AuthTypeNone, "":
		return func(next http.Handler) http.Handler { return next }, nil
	case config.AuthTypeBasic:
		if settings.Basic.Username == "" || settings.Basic.Password == "" {
			return nil, fmt.Errorf("basic auth requires non-empty username and password")
		}
		return guard(basicCheck(settings.Basic), `Basic realm="catalog-search"`), nil
	case config.AuthTypeAPIKey:
		if len(settings.APIKeys) == 0 {
			return nil, fmt.Errorf("apikey auth requires at least one API key")
		}
		return guard(apiKeyCheck(settings.APIKeys), ""), nil
	default:
		return nil, fmt.Errorf("unknown auth type: %s", settings.Type)
	}
}

// guard rejects requests failing allowed with 401, except on open paths.
// A non-empty challenge is sent as WWW-Authenticate.
func guard(allowed func(*http.Request) bool, challenge string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if openPaths[r.URL.Path] || allowed(r) {
				next.ServeHTTP(w, r)
				return
			}
			if challenge != "" {
				w.Header().Set("WWW-Authenticate", challenge)
			}
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		})
	}
}

func basicCheck(creds config.BasicAuthSettings) func(*http.Request) bool {
	return func(r *http.Request) bool {
		user, pass, ok := r.BasicAuth()
		if !ok {
			return false
		}
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(creds.Username)) == 1
		passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(creds.Password)) == 1
		return userOK && passOK
	}
}

func apiKeyCheck(keys []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		key := r.Header.Get(APIKeyHeader)
		if key == "" {
			return false
		}
		for _, k := range keys {
			if subtle.ConstantTimeCompare([]byte(key), []byte(k)) == 1 {
				return true
			}
		}
		return false
	}
}
