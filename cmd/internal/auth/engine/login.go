package engine

import (
	"context"
	"errors"
	"time"

	"aegis/cmd/identity"
	"aegis/cmd/internal/codes"
	"aegis/cmd/internal/mail"
)

// LoginType selects the credential path for a login attempt.
type LoginType string

const (
	// LoginStandard authenticates with email + password.
	LoginStandard LoginType = "standard"

	// LoginSocial exchanges a single-use code + PKCE verifier; the email is
	// bound from the stored code record, never from client input.
	LoginSocial LoginType = "social"
)

// LoginInput is a classified login attempt. The HTTP layer validates field
// presence per type before calling the engine.
type LoginInput struct {
	Type     LoginType
	Email    string
	Password string

	Code         string
	CodeVerifier string
}

// Login runs the login state machine: social code exchange, credential
// verification, blocked-account check, 2FA gate, then finalize. Terminal on
// first failure.
func (e *Engine) Login(ctx context.Context, now time.Time, in LoginInput) (LoginResult, error) {
	aid := attemptID()
	log := e.log.With("attempt", aid, "login_type", string(in.Type))

	email := identity.NormalizeEmail(in.Email)

	if in.Type == LoginSocial {
		challenge := codes.ChallengeFromVerifier(in.CodeVerifier)
		boundEmail, err := e.codes.ConsumeLoginCode(ctx, in.Code, challenge)
		switch {
		case errors.Is(err, codes.ErrCodeNotFound), errors.Is(err, codes.ErrChallengeMismatch):
			log.Info("auth.login.code_exchange.fail", "reason", err.Error())
			return LoginResult{}, ErrLoginCodeInvalid
		case err != nil:
			return LoginResult{}, err
		}
		email = boundEmail
	}

	var (
		status identity.CredentialStatus
		p      identity.Principal
		err    error
	)
	switch in.Type {
	case LoginStandard:
		status, p, err = e.creds.ValidateLoginCredential(ctx, email, in.Password)
	case LoginSocial:
		status, p, err = e.creds.ValidateGoogleLoginCredential(ctx, email)
	default:
		return LoginResult{}, ErrUnsupportedLoginType
	}
	if err != nil {
		return LoginResult{}, err
	}

	switch status {
	case identity.CredentialValid:
	case identity.CredentialLocked:
		log.Info("auth.login.fail", "reason", "locked")
		return LoginResult{}, ErrAccountLocked
	case identity.CredentialNotFound:
		log.Info("auth.login.fail", "reason", "not_found")
		return LoginResult{}, ErrUserNotFound
	default:
		log.Info("auth.login.fail", "reason", "invalid_credentials")
		return LoginResult{}, ErrInvalidCredentials
	}

	// Blocked accounts never authenticate, even with correct credentials.
	if p.AccountBlocked {
		log.Info("auth.login.fail", "reason", "blocked", "user_id", p.ID)
		return LoginResult{}, ErrAccountBlocked
	}

	if p.TwoFactorEnabled {
		otp, err := e.creds.GenerateOTP(ctx, p.ID, now)
		if identity.IsLocked(err) {
			// The account was locked between the credential check and here.
			log.Info("auth.login.fail", "reason", "locked", "user_id", p.ID)
			return LoginResult{}, ErrAccountLocked
		}
		if err != nil {
			return LoginResult{}, err
		}
		e.sendMail(mail.TemplateOTP, p.Email, map[string]string{"otp": otp, "firstname": p.FirstName})
		log.Info("auth.login.two_factor_gate", "user_id", p.ID)
		return LoginResult{TwoFactorRequired: true}, nil
	}

	sess, err := e.finalizeSession(ctx, now, p, false)
	if err != nil {
		return LoginResult{}, err
	}
	log.Info("auth.login.ok", "user_id", p.ID)
	return LoginResult{Session: sess}, nil
}

// VerifyOTP is the second entry point of a 2FA login. The verdict, including
// expiry and lockout counting, is computed by the credential store.
func (e *Engine) VerifyOTP(ctx context.Context, now time.Time, email, otp string) (*Session, error) {
	aid := attemptID()
	log := e.log.With("attempt", aid)

	email = identity.NormalizeEmail(email)

	verdict, p, err := e.creds.ValidateCredentialAndOTP(ctx, email, otp, now)
	if err != nil {
		return nil, err
	}

	switch verdict {
	case identity.OTPValid:
	case identity.OTPExpired:
		log.Info("auth.otp.fail", "reason", "expired")
		return nil, ErrOTPExpired
	case identity.OTPLocked:
		log.Info("auth.otp.fail", "reason", "locked")
		return nil, ErrOTPLocked
	default:
		// A wrong code against a live OTP is a security signal, not just a
		// validation error.
		log.Warn("auth.otp.fail", "reason", "invalid", "user_id", p.ID)
		e.sendMail(mail.TemplateSuspiciousActivity, email, map[string]string{"firstname": p.FirstName})
		return nil, ErrOTPInvalid
	}

	if p.AccountBlocked {
		log.Info("auth.otp.fail", "reason", "blocked", "user_id", p.ID)
		return nil, ErrAccountBlocked
	}

	sess, err := e.finalizeSession(ctx, now, p, true)
	if err != nil {
		return nil, err
	}
	log.Info("auth.otp.ok", "user_id", p.ID)
	return sess, nil
}
