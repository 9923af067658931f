// Package audit persists a security event trail for the authentication
// endpoints. Entries are best-effort: a failed insert is logged and dropped,
// it never fails the request that produced it.
//
// The same table doubles as the data source for login throttling: the
// rate limiter counts recent auth.login.failed rows per client IP and per
// email instead of keeping a separate in-memory counter, so throttling
// survives restarts and is shared across replicas.
package audit

import (
	"context"
	"encoding/json"
	"net"
	"strings"
	"time"
)

// Actions recorded by the auth endpoints.
const (
	ActionLoginFailed    = "auth.login.failed"
	ActionLoginSuccess   = "auth.login.success"
	ActionLoginThrottled = "auth.login.throttled"
	ActionOTPFailed      = "auth.otp.failed"
	ActionRefreshReuse   = "auth.refresh.reuse_detected"
)

// Entry is one audit event. UserID is nil when the principal is unknown,
// which is the common case for failed logins.
type Entry struct {
	Action    string
	UserID    *string
	Email     string
	IP        net.IP
	UserAgent string
	Meta      map[string]any
}

// Recorder persists entries and answers the throttle counting queries.
type Recorder interface {
	Record(ctx context.Context, now time.Time, e Entry)
	CountByIP(ctx context.Context, action string, ip net.IP, since time.Time) (int, error)
	CountByEmail(ctx context.Context, action, email string, since time.Time) (int, error)
}

func marshalMeta(meta map[string]any) *string {
	if len(meta) == 0 {
		return nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}
