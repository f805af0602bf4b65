// Package httpapi exposes the engine over HTTP. All auth routes sit behind
// the per-client rate limiter; request bodies are validated before any
// engine call.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	tokengate "github.com/tokengate/tokengate"
	"github.com/tokengate/tokengate/middleware"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

type confirmTokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// Handler serves the auth API.
type Handler struct {
	engine   *tokengate.Engine
	validate *validator.Validate
	log      *slog.Logger
	timeout  time.Duration
}

// NewRouter builds the full route tree. Auth routes are rate limited by
// client IP; /healthz and /metrics bypass the limiter.
func NewRouter(engine *tokengate.Engine, log *slog.Logger, timeout time.Duration) http.Handler {
	h := &Handler{
		engine:   engine,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
		timeout:  timeout,
	}

	api := http.NewServeMux()
	api.HandleFunc("POST /api/auth/token", h.login)
	api.HandleFunc("POST /api/auth/refresh", h.refresh)
	api.HandleFunc("POST /api/auth/revoke", h.revoke)
	api.HandleFunc("POST /api/auth/forgot-password", h.forgotPassword)
	api.HandleFunc("POST /api/auth/reset-password", h.resetPassword)
	api.HandleFunc("POST /api/auth/verify-email/request", h.requestVerification)
	api.HandleFunc("POST /api/auth/verify-email/confirm", h.confirmVerification)

	limited := middleware.RateLimit(engine, middleware.ClientIP)(api)

	root := http.NewServeMux()
	root.Handle("/api/", limited)
	root.HandleFunc("GET /healthz", h.healthz)
	root.Handle("GET /metrics", promhttp.Handler())
	return root
}

// decode parses the body into v and runs struct validation.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeJSON(r, v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request: "+validationMessage(err))
		return false
	}
	return true
}

func (h *Handler) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.timeout)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	pair, err := h.engine.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	pair, err := h.engine.Refresh(ctx, req.RefreshToken)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (h *Handler) revoke(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	if err := h.engine.Logout(ctx, req.RefreshToken); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	if err := h.engine.RequestPasswordReset(ctx, req.Email); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	// Same response whether or not the account exists.
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	if err := h.engine.ConfirmPasswordReset(ctx, req.Token, req.NewPassword); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requestVerification(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	if err := h.engine.RequestEmailVerification(ctx, req.Email); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) confirmVerification(w http.ResponseWriter, r *http.Request) {
	var req confirmTokenRequest
	if !h.decode(w, r, &req) {
		return
	}

	ctx, cancel := h.withTimeout(r)
	defer cancel()

	if err := h.engine.ConfirmEmailVerification(ctx, req.Token); err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tokengate.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, tokengate.ErrTokenNotFound), errors.Is(err, tokengate.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, tokengate.ErrStoreUnavailable):
		h.log.ErrorContext(r.Context(), "backing store unavailable", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	default:
		h.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
