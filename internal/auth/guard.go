// ABOUTME: Route guard middleware enforcing session authentication on protected prefixes
// ABOUTME: Pages redirect to the landing page, APIs get a bare 401; valid identities are forwarded

package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/oneblock/oneblock-gateway/internal/identity"
)

// RouteKind selects how the guard rejects unauthenticated requests.
type RouteKind string

const (
	RouteKindPage RouteKind = "page"
	RouteKindAPI  RouteKind = "api"
)

// Valid reports whether k is a known kind.
func (k RouteKind) Valid() bool {
	return k == RouteKindPage || k == RouteKindAPI
}

// RouteRule protects every path at or below Prefix.
type RouteRule struct {
	Prefix string
	Kind   RouteKind
}

// GuardConfig configures a RouteGuard.
type GuardConfig struct {
	Rules      []RouteRule
	Sessions   *SessionManager
	CookieName string
	RedirectTo string // defaults to "/"
	Logger     *slog.Logger
}

// RouteGuard authenticates requests for protected paths.
type RouteGuard struct {
	rules      []RouteRule
	sessions   *SessionManager
	cookieName string
	redirectTo string
	logger     *slog.Logger
}

// NewRouteGuard validates the rules and builds a guard.
func NewRouteGuard(cfg GuardConfig) (*RouteGuard, error) {
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("route guard requires a session manager")
	}

	rules := make([]RouteRule, 0, len(cfg.Rules))
	for _, r := range cfg.Rules {
		if !strings.HasPrefix(r.Prefix, "/") {
			return nil, fmt.Errorf("route prefix %q must start with /", r.Prefix)
		}
		if !r.Kind.Valid() {
			return nil, fmt.Errorf("route %q: unknown kind %q", r.Prefix, r.Kind)
		}
		prefix := r.Prefix
		if len(prefix) > 1 {
			prefix = strings.TrimRight(prefix, "/")
		}
		rules = append(rules, RouteRule{Prefix: prefix, Kind: r.Kind})
	}

	// Longest prefix first so the most specific rule wins.
	sort.SliceStable(rules, func(i, j int) bool {
		return len(rules[i].Prefix) > len(rules[j].Prefix)
	})

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	redirectTo := cfg.RedirectTo
	if redirectTo == "" {
		redirectTo = "/"
	}
	cookieName := cfg.CookieName
	if cookieName == "" {
		cookieName = DefaultCookieName
	}

	return &RouteGuard{
		rules:      rules,
		sessions:   cfg.Sessions,
		cookieName: cookieName,
		redirectTo: redirectTo,
		logger:     logger.With("component", "guard"),
	}, nil
}

// Match returns the rule protecting path, if any. Matching is segment aware:
// "/dashboard" covers "/dashboard" and "/dashboard/x" but not "/dashboardx".
func (g *RouteGuard) Match(path string) (RouteRule, bool) {
	for _, r := range g.rules {
		if r.Prefix == "/" || path == r.Prefix || strings.HasPrefix(path, r.Prefix+"/") {
			return r, true
		}
	}
	return RouteRule{}, false
}

// Authenticate validates the token presented on r. A valid token whose role
// is pending is reported as unauthenticated.
func (g *RouteGuard) Authenticate(r *http.Request) (*Claims, string, string) {
	token := TokenFromRequest(r, g.cookieName)
	if token == "" {
		return nil, "", "missing token"
	}

	claims, err := g.sessions.Validate(token)
	if err != nil {
		if errors.Is(err, ErrExpiredToken) {
			return nil, "", "expired token"
		}
		return nil, "", "invalid token"
	}

	if claims.Role == identity.RolePending {
		return nil, "", "pending approval"
	}
	return claims, token, ""
}

// Middleware enforces the rules. Unprotected paths pass through unchanged.
func (g *RouteGuard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rule, protected := g.Match(r.URL.Path)
		if !protected {
			next.ServeHTTP(w, r)
			return
		}

		claims, token, reason := g.Authenticate(r)
		if reason != "" {
			g.logger.Warn("auth failure",
				"reason", reason,
				"path", r.URL.Path,
				"kind", rule.Kind,
				"remote_addr", r.RemoteAddr,
			)
			g.reject(w, r, rule.Kind)
			return
		}

		r = r.Clone(WithClaims(r.Context(), claims, token))
		r.Header.Set("Authorization", "Bearer "+token)
		next.ServeHTTP(w, r)
	})
}

func (g *RouteGuard) reject(w http.ResponseWriter, r *http.Request, kind RouteKind) {
	if kind == RouteKindPage {
		http.Redirect(w, r, g.redirectTo, http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
}
