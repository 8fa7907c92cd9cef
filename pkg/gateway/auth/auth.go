// Package auth carries the caller identity through the request context.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
)

type Principal struct {
	APIKey string
}

// Key returns a stable non-reversible identifier for rate limiting and logs.
func (p *Principal) Key() string {
	if p == nil || p.APIKey == "" {
		return "anonymous"
	}
	sum := sha256.Sum256([]byte(p.APIKey))
	return "k_" + hex.EncodeToString(sum[:16])
}

type ctxKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKey{}, p)
}

func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(ctxKey{}).(*Principal)
	return p, ok && p != nil
}

// ParseToken extracts the caller's key from the Authorization header, or,
// for WebSocket endpoints where browsers cannot set headers, from the
// api_key query parameter.
func ParseToken(r *http.Request) (string, bool) {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz != "" {
		const prefix = "Bearer "
		if !strings.HasPrefix(authz, prefix) {
			return "", false
		}
		token := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
		if token == "" {
			return "", false
		}
		return token, true
	}
	if token := strings.TrimSpace(r.URL.Query().Get("api_key")); token != "" {
		return token, true
	}
	return "", false
}
