package authapi

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"aegis/cmd/internal/audit"
)

// checkLoginThrottle answers whether a login attempt from this IP against
// this email should be refused. Counting runs over the audit trail, so the
// limiter needs no state of its own. A nil recorder disables throttling.
func (h *Handler) checkLoginThrottle(ctx context.Context, ip net.IP, email string, now time.Time) (bool, time.Duration, error) {
	if h.audit == nil {
		return false, 0, nil
	}

	if ip != nil && h.cfg.LoginIPMax > 0 {
		cut := now.Add(-h.cfg.LoginIPWindow)
		count, err := h.audit.CountByIP(ctx, audit.ActionLoginFailed, ip, cut)
		if err != nil {
			return false, 0, err
		}
		if count >= h.cfg.LoginIPMax {
			return true, h.cfg.LoginIPWindow, nil
		}
	}

	if email != "" && h.cfg.LoginEmailMax > 0 {
		cut := now.Add(-h.cfg.LoginEmailWindow)
		count, err := h.audit.CountByEmail(ctx, audit.ActionLoginFailed, email, cut)
		if err != nil {
			return false, 0, err
		}
		if count >= h.cfg.LoginEmailMax {
			return true, h.cfg.LoginEmailWindow, nil
		}
	}

	return false, 0, nil
}

func writeRateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(retryAfter.Seconds()), 10))
	}
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many attempts", "")
}

func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if ip := parseForwardedIP(r.Header.Get("X-Forwarded-For")); ip != nil {
			return ip
		}
		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		if ip := net.ParseIP(host); ip != nil {
			return ip
		}
	}
	return nil
}

func parseForwardedIP(raw string) net.IP {
	if raw == "" {
		return nil
	}
	for _, p := range strings.Split(raw, ",") {
		if ip := net.ParseIP(strings.TrimSpace(p)); ip != nil {
			return ip
		}
	}
	return nil
}
