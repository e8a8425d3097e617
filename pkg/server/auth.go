package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"drivelogic-hq/reasoner/pkg/config"
)

// HeaderAPIKey carries an API key for clients that cannot set
// Authorization.
const HeaderAPIKey = "X-API-Key"

type clientKey struct{}

// ClientFromContext returns the name of the authenticated API client.
func ClientFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(clientKey{}).(string)
	return name, ok
}

// APIKeyAuth checks requests against a fixed set of API keys.
type APIKeyAuth struct {
	keys   map[string]string // key -> client name
	logger *slog.Logger
}

// NewAPIKeyAuth returns nil when no enabled key is configured, which
// leaves the API open.
func NewAPIKeyAuth(cfg config.AuthConfig, logger *slog.Logger) *APIKeyAuth {
	keys := make(map[string]string, len(cfg.APIKeys))
	for i, k := range cfg.APIKeys {
		if k.Disabled || k.Key == "" {
			continue
		}
		name := k.Name
		if name == "" {
			name = "client-" + strconv.Itoa(i)
		}
		keys[k.Key] = name
	}
	if len(keys) == 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &APIKeyAuth{keys: keys, logger: logger}
}

// Middleware rejects requests without a known key with 401.
func (a *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractAPIKey(r)
		if key == "" {
			a.logger.Warn("missing API key", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			w.Header().Set("WWW-Authenticate", `Bearer realm="drivelogic"`)
			writeError(w, http.StatusUnauthorized, ErrorTypeAuthentication, "missing API key")
			return
		}
		name, ok := a.keys[key]
		if !ok {
			a.logger.Warn("invalid API key", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized, ErrorTypeAuthentication, "invalid API key")
			return
		}

		a.logger.Debug("API key authenticated", "client", name, "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), clientKey{}, name)))
	})
}

func extractAPIKey(r *http.Request) string {
	if v := r.Header.Get("Authorization"); v != "" {
		if key, ok := strings.CutPrefix(v, "Bearer "); ok {
			return strings.TrimSpace(key)
		}
	}
	return strings.TrimSpace(r.Header.Get(HeaderAPIKey))
}
