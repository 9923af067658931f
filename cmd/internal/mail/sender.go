// Package mail is the outbound notification boundary. The engine only ever
// asks for a template plus substitutions; rendering and delivery live behind
// the Sender interface so a real provider can be swapped in without touching
// the auth flows.
package mail

import (
	"context"
	"log/slog"
)

// Template names a transactional message.
type Template string

const (
	// TemplateOTP carries a one-time password to the account email.
	TemplateOTP Template = "otp"

	// TemplateSuspiciousActivity warns the account owner after a failed
	// OTP verification.
	TemplateSuspiciousActivity Template = "suspicious_activity"
)

// Sender delivers a templated message to a single recipient.
type Sender interface {
	Send(ctx context.Context, tmpl Template, recipient string, substitutions map[string]string) error
}

// LogSender writes messages to the log instead of delivering them. It is the
// default in development and in tests.
type LogSender struct {
	log *slog.Logger
}

// NewLogSender creates a log-backed sender.
func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

// Send logs the message. Substitution values may contain secrets (OTP codes),
// so only the keys are logged.
func (s *LogSender) Send(_ context.Context, tmpl Template, recipient string, substitutions map[string]string) error {
	keys := make([]string, 0, len(substitutions))
	for k := range substitutions {
		keys = append(keys, k)
	}
	s.log.Info("mail send", "template", string(tmpl), "recipient", recipient, "fields", keys)
	return nil
}
