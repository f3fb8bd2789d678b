package auth

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sha1n/mcp-tossdocs-server/internal/config"
)

// APIKeyHeader is the header carrying an API key. A bearer token in the
// Authorization header is accepted as well.
const APIKeyHeader = "X-API-Key"

// excludedPaths bypass authentication.
var excludedPaths = map[string]bool{
	"/health": true,
}

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// NewMiddleware creates the authentication middleware selected by settings.
func NewMiddleware(settings config.AuthSettings) (Middleware, error) {
	switch settings.Type {
	case config.AuthTypeNone, "":
		return func(next http.Handler) http.Handler {
			return next
		}, nil
	case config.AuthTypeBasic:
		if settings.Basic.Username == "" || settings.Basic.Password == "" {
			return nil, fmt.Errorf("basic auth requires non-empty username and password")
		}
		return guard(basicAuthenticator(settings.Basic), basicChallenge), nil
	case config.AuthTypeAPIKey:
		if len(settings.APIKeys) == 0 {
			return nil, fmt.Errorf("apikey auth requires at least one API key")
		}
		return guard(apiKeyAuthenticator(settings.APIKeys), nil), nil
	default:
		return nil, fmt.Errorf("unknown auth type: %s", settings.Type)
	}
}

// authenticator reports whether a request carries valid credentials.
type authenticator func(r *http.Request) bool

// guard rejects unauthenticated requests to any path not in excludedPaths.
// challenge, if set, adds headers to the 401 response.
func guard(authenticate authenticator, challenge func(http.Header)) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if excludedPaths[r.URL.Path] || authenticate(r) {
				next.ServeHTTP(w, r)
				return
			}

			slog.Debug("Rejected unauthenticated request", "path", r.URL.Path, "remote", r.RemoteAddr)
			if challenge != nil {
				challenge(w.Header())
			}
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		})
	}
}

func basicChallenge(h http.Header) {
	h.Set("WWW-Authenticate", `Basic realm="Restricted"`)
}

func basicAuthenticator(settings config.BasicAuthSettings) authenticator {
	return func(r *http.Request) bool {
		user, pass, ok := r.BasicAuth()
		userMatch := secureEqual(user, settings.Username)
		passMatch := secureEqual(pass, settings.Password)
		return ok && userMatch && passMatch
	}
}

func apiKeyAuthenticator(apiKeys []string) authenticator {
	return func(r *http.Request) bool {
		key := requestAPIKey(r)
		if key == "" {
			return false
		}
		valid := false
		for _, validKey := range apiKeys {
			// No early exit, every key is compared.
			if secureEqual(key, validKey) {
				valid = true
			}
		}
		return valid
	}
}

// requestAPIKey returns the key from the API key header, falling back to an
// "Authorization: Bearer" token.
func requestAPIKey(r *http.Request) string {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

func secureEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
