// Package authapi exposes the authentication engine over HTTP. Status codes
// are part of the contract; the mapping from engine errors lives in one
// pure function (status.go).
package authapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"aegis/cmd/identity"
	"aegis/cmd/internal/audit"
	"aegis/cmd/internal/auth/engine"
)

// Config holds transport-level settings.
type Config struct {
	// MaxBodyBytes caps request bodies. Defaults to 64 KiB.
	MaxBodyBytes int64

	// TrustProxy enables X-Forwarded-For / X-Real-IP when resolving the
	// client address. Leave off unless a trusted proxy fronts the server.
	TrustProxy bool

	// Login throttling windows, counted over the audit trail.
	LoginIPMax       int
	LoginIPWindow    time.Duration
	LoginEmailMax    int
	LoginEmailWindow time.Duration
}

// DefaultConfig returns the production transport settings.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:     64 << 10,
		LoginIPMax:       20,
		LoginIPWindow:    5 * time.Minute,
		LoginEmailMax:    5,
		LoginEmailWindow: 15 * time.Minute,
	}
}

// Handler wires the HTTP auth endpoints to the authentication engine.
type Handler struct {
	log     *slog.Logger
	cfg     Config
	engine  *engine.Engine
	audit   audit.Recorder
	metrics *Metrics
}

// NewHandler constructs a Handler. The audit recorder and metrics may be
// nil; a nil recorder disables both the event trail and login throttling.
func NewHandler(log *slog.Logger, cfg Config, eng *engine.Engine, auditRec audit.Recorder, metrics *Metrics) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultConfig().MaxBodyBytes
	}
	return &Handler{log: log, cfg: cfg, engine: eng, audit: auditRec, metrics: metrics}
}

func (h *Handler) record(ctx context.Context, now time.Time, e audit.Entry) {
	if h.audit == nil {
		return
	}
	h.audit.Record(ctx, now, e)
}

// Register wires auth routes onto the provided mux.
func (h *Handler) Register(mux *http.ServeMux) {
	if h == nil || mux == nil {
		return
	}
	mux.HandleFunc("/auth/login", h.handleLogin)
	mux.HandleFunc("/auth/otp/verify", h.handleOTPVerify)
	mux.HandleFunc("/auth/token/refresh", h.handleRefresh)
	mux.HandleFunc("/auth/2fa", h.handleTwoFactor)
	mux.HandleFunc("/auth/2fa/company", h.handleCompanyTwoFactor)
}

func (h *Handler) fail(w http.ResponseWriter, err error) (code string) {
	status, code, msg, action := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error("authapi.request.fail", "err", err)
	}
	writeError(w, status, code, msg, action)
	return code
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body", "")
		return
	}

	in := engine.LoginInput{
		Type:         engine.LoginType(req.LoginType),
		Email:        req.Email,
		Password:     req.Password,
		Code:         req.Code,
		CodeVerifier: req.CodeVerifier,
	}

	// Field presence is resolved here, before any store call.
	switch in.Type {
	case engine.LoginStandard:
		if req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required", "")
			return
		}
	case engine.LoginSocial:
		if req.Code == "" || req.CodeVerifier == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "code and code_verifier are required", "")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", "loginType must be standard or social", "")
		return
	}

	now := time.Now().UTC()
	ip := clientIP(r, h.cfg.TrustProxy)
	ua := r.UserAgent()
	// Throttle windows and audit rows key on the same normalized form the
	// engine resolves accounts with, so case-varied spellings share one window.
	email := identity.NormalizeEmail(req.Email)

	throttled, retryAfter, err := h.checkLoginThrottle(r.Context(), ip, email, now)
	if err != nil {
		// Counting errors fail open; an unavailable audit store must not
		// take logins down with it.
		h.log.Warn("authapi.throttle.check.fail", "err", err)
	}
	if throttled {
		h.record(r.Context(), now, audit.Entry{
			Action: audit.ActionLoginThrottled, Email: email, IP: ip, UserAgent: ua,
			Meta: map[string]any{"retry_after_s": int64(retryAfter.Seconds())},
		})
		h.metrics.login("rate_limited")
		writeRateLimited(w, retryAfter)
		return
	}

	res, err := h.engine.Login(r.Context(), now, in)
	if err != nil {
		code := h.fail(w, err)
		if code != "server_error" {
			h.record(r.Context(), now, audit.Entry{
				Action: audit.ActionLoginFailed, Email: email, IP: ip, UserAgent: ua,
				Meta: map[string]any{"reason": code},
			})
		}
		h.metrics.login(code)
		return
	}

	if res.TwoFactorRequired {
		h.metrics.login("two_factor_gate")
		writeJSON(w, http.StatusOK, twoFactorGateResponse{TwoFactorEnabled: true})
		return
	}

	userID := res.Session.User.ID
	h.record(r.Context(), now, audit.Entry{
		Action: audit.ActionLoginSuccess, UserID: &userID, Email: res.Session.User.Email, IP: ip, UserAgent: ua,
	})
	h.metrics.login("ok")
	writeJSON(w, http.StatusOK, toSessionResponse(res.Session))
}

func (h *Handler) handleOTPVerify(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req otpVerifyRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body", "")
		return
	}
	if req.Email == "" || req.OTP == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and otp are required", "")
		return
	}

	now := time.Now().UTC()
	sess, err := h.engine.VerifyOTP(r.Context(), now, req.Email, req.OTP)
	if err != nil {
		code := h.fail(w, err)
		if code != "server_error" {
			h.record(r.Context(), now, audit.Entry{
				Action: audit.ActionOTPFailed, Email: identity.NormalizeEmail(req.Email),
				IP: clientIP(r, h.cfg.TrustProxy), UserAgent: r.UserAgent(),
				Meta: map[string]any{"reason": code},
			})
		}
		h.metrics.otp(code)
		return
	}

	h.metrics.otp("ok")
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body", "")
		return
	}
	if req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "refreshToken is required", "")
		return
	}

	now := time.Now().UTC()
	sess, err := h.engine.Refresh(r.Context(), now, req.RefreshToken)
	if err != nil {
		if errors.Is(err, engine.ErrRefreshReuse) {
			h.record(r.Context(), now, audit.Entry{
				Action: audit.ActionRefreshReuse,
				IP:     clientIP(r, h.cfg.TrustProxy), UserAgent: r.UserAgent(),
			})
		}
		h.metrics.refresh(h.fail(w, err))
		return
	}

	h.metrics.refresh("ok")
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (h *Handler) handleTwoFactor(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req twoFactorRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body", "")
		return
	}
	if req.UserID == "" || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "userId and enabled are required", "")
		return
	}

	if err := h.engine.SetTwoFactor(r.Context(), time.Now().UTC(), req.UserID, *req.Enabled, req.Password); err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, twoFactorToggleResponse{Updated: true})
}

func (h *Handler) handleCompanyTwoFactor(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	var req companyTwoFactorRequest
	if err := decodeJSON(w, r, h.cfg.MaxBodyBytes, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid request body", "")
		return
	}
	if req.ActorID == "" || req.CompanyID == "" || req.Enabled == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "actorId, companyId and enabled are required", "")
		return
	}

	warnings, err := h.engine.SetCompanyTwoFactor(r.Context(), time.Now().UTC(), req.ActorID, req.CompanyID, *req.Enabled, req.Password)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, twoFactorToggleResponse{Updated: true, Warnings: warnings})
}
