// ABOUTME: HTTP routes for health, wallet sign-in, sessions, registration and guarded resources
// ABOUTME: Maps login and registration errors onto status codes without leaking internals

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oneblock/oneblock-gateway/internal/auth"
	"github.com/oneblock/oneblock-gateway/internal/enroll"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 64 << 10

// readyTimeout bounds the store ping behind /health/ready.
const readyTimeout = 2 * time.Second

// SignInRequest is the JSON body for POST /api/auth/signin.
type SignInRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// SignInResponse is returned for every sign-in that passed signature verification.
type SignInResponse struct {
	Status    string     `json:"status"`
	Token     string     `json:"token,omitempty"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Role      string     `json:"role,omitempty"`
	SubjectID string     `json:"subjectId,omitempty"`
}

// RegisterResponse is returned by a successful POST /api/register.
type RegisterResponse struct {
	Message        string `json:"message"`
	StudentID      string `json:"studentId"`
	ApprovalStatus string `json:"approvalStatus"`
}

// ClaimsResponse is the public view of a session's claims.
type ClaimsResponse struct {
	Address        string    `json:"address"`
	Role           string    `json:"role"`
	ApprovalStatus string    `json:"approvalStatus"`
	SubjectID      string    `json:"subjectId,omitempty"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

func claimsResponse(c *auth.Claims) ClaimsResponse {
	resp := ClaimsResponse{
		Address:        c.Address,
		Role:           c.Role,
		ApprovalStatus: c.ApprovalStatus,
		SubjectID:      c.SubjectID,
	}
	if c.ExpiresAt != nil {
		resp.ExpiresAt = c.ExpiresAt.Time
	}
	return resp
}

// newRouter builds the chi router. The route guard runs ahead of routing so
// every protected prefix is enforced even for paths with no handler.
func (g *Gateway) newRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(g.guard.Middleware)

	// Health endpoints - no auth required
	r.Get("/health", g.handleHealth)
	r.Get("/health/ready", g.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Get("/auth/challenge", g.handleChallenge)
		r.Post("/auth/signin", g.handleSignIn)
		r.Get("/auth/session", g.handleSession)
		r.Post("/auth/signout", g.handleSignOut)
		r.Post("/register", g.handleRegister)

		// Guarded by the default route rules.
		r.Get("/me", g.handleMe)
	})

	r.Get("/dashboard", g.handleDashboard)
	r.Get("/dashboard/*", g.handleDashboard)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sendStatusError writes the {"status":"error"} shape used by sign-in failures.
func sendStatusError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": message})
}

// sendMessage writes the {"message": ...} shape used by registration responses.
func sendMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the store answers a ping.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := g.store.Ping(ctx); err != nil {
		g.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (g *Gateway) handleChallenge(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": g.authenticator.Challenge()})
}

func (g *Gateway) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if err := decodeJSON(r, &req); err != nil {
		sendStatusError(w, http.StatusBadRequest, "Missing credentials")
		return
	}

	result, err := g.authenticator.Login(r.Context(), req.Address, req.Signature)
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		sendStatusError(w, http.StatusBadRequest, "Missing credentials")
		return
	case errors.Is(err, auth.ErrSignatureInvalid):
		sendStatusError(w, http.StatusUnauthorized, "Invalid signature")
		return
	case err != nil:
		g.logger.Error("sign-in failed", "error", err)
		sendStatusError(w, http.StatusInternalServerError, "Server error")
		return
	}

	resp := SignInResponse{Status: string(result.Status)}
	if result.Token != "" {
		resp.Token = result.Token
		resp.ExpiresAt = &result.ExpiresAt
		resp.Role = result.Claims.Role
		resp.SubjectID = result.Claims.SubjectID
	}
	if result.Status == auth.LoginApproved {
		auth.SetSessionCookie(w, g.cookie, result.Token, result.ExpiresAt)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSession reports the claims of the presented token, pending included.
func (g *Gateway) handleSession(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromRequest(r, g.cookie.Name)
	if token == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	claims, err := g.sessions.Validate(token)
	if err != nil {
		g.logger.Debug("session check failed", "error", err)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, claimsResponse(claims))
}

func (g *Gateway) handleSignOut(w http.ResponseWriter, _ *http.Request) {
	auth.ClearSessionCookie(w, g.cookie)
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleRegister(w http.ResponseWriter, r *http.Request) {
	var profile enroll.Profile
	if err := decodeJSON(r, &profile); err != nil {
		sendMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	reg, err := g.enrollment.Register(r.Context(), profile)
	switch {
	case errors.Is(err, enroll.ErrInvalidProfile):
		sendMessage(w, http.StatusBadRequest, "Missing required fields")
		return
	case errors.Is(err, enroll.ErrConflict):
		sendMessage(w, http.StatusConflict, "Address already registered")
		return
	case err != nil:
		g.logger.Error("registration failed", "error", err)
		sendMessage(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	writeJSON(w, http.StatusOK, RegisterResponse{
		Message:        "Registration successful",
		StudentID:      reg.StudentID,
		ApprovalStatus: string(reg.ApprovalStatus),
	})
}

// handleMe echoes the identity forwarded by the route guard.
func (g *Gateway) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, claimsResponse(claims))
}

var dashboardTemplate = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html>
<head><title>Oneblock</title></head>
<body>
<h1>Dashboard</h1>
<p>Signed in as <code>{{.Address}}</code> ({{.Role}}{{if .SubjectID}}, {{.SubjectID}}{{end}})</p>
</body>
</html>
`))

// handleDashboard renders a placeholder page for the guarded identity.
func (g *Gateway) handleDashboard(w http.ResponseWriter, r *http.Request) {
	claims := auth.FromContext(r.Context())
	if claims == nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboardTemplate.Execute(w, claimsResponse(claims)); err != nil {
		g.logger.Error("rendering dashboard", "error", err)
	}
}
