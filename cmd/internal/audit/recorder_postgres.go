package audit

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRecorder implements Recorder using PostgreSQL (aegis.audit_log).
type PostgresRecorder struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPostgresRecorder creates a Postgres-backed audit recorder.
func NewPostgresRecorder(pool *pgxpool.Pool, log *slog.Logger) *PostgresRecorder {
	if log == nil {
		log = slog.Default()
	}
	return &PostgresRecorder{pool: pool, log: log}
}

// Record inserts one entry. Insert failures are logged and swallowed.
func (r *PostgresRecorder) Record(ctx context.Context, now time.Time, e Entry) {
	if r == nil || r.pool == nil || e.Action == "" {
		return
	}

	var ipVal any
	if e.IP != nil {
		ipVal = e.IP.String()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO aegis.audit_log (action, user_id, email, ip, user_agent, meta, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7)
	`, e.Action, e.UserID, trimOrNil(e.Email), ipVal, trimOrNil(e.UserAgent), marshalMeta(e.Meta), now)
	if err != nil {
		r.log.Error("audit.insert.fail", "err", err, "action", e.Action)
	}
}

// CountByIP counts entries for an action from one client IP since a cutoff.
func (r *PostgresRecorder) CountByIP(ctx context.Context, action string, ip net.IP, since time.Time) (int, error) {
	if r == nil || r.pool == nil || ip == nil {
		return 0, nil
	}
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM aegis.audit_log
		WHERE action = $1
		  AND ip = $2
		  AND created_at >= $3
	`, action, ip.String(), since).Scan(&n)
	return n, err
}

// CountByEmail counts entries for an action against one email since a cutoff.
func (r *PostgresRecorder) CountByEmail(ctx context.Context, action, email string, since time.Time) (int, error) {
	if r == nil || r.pool == nil || email == "" {
		return 0, nil
	}
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM aegis.audit_log
		WHERE action = $1
		  AND email = $2
		  AND created_at >= $3
	`, action, email, since).Scan(&n)
	return n, err
}
