package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"aegis/cmd/identity"
	"aegis/cmd/internal/auth/session"
	"aegis/cmd/internal/auth/token"
	"aegis/cmd/internal/codes"
	"aegis/cmd/internal/mail"
)

// DefaultLoginCodeTTL bounds how long a social login code stays redeemable.
const DefaultLoginCodeTTL = 5 * time.Minute

// Engine is the authentication core. All collaborators are injected as
// interfaces so tests can substitute fakes.
type Engine struct {
	creds    identity.Store
	sessions session.Store
	codes    codes.Store
	issuer   *token.Issuer
	mailer   mail.Sender
	log      *slog.Logger

	loginCodeTTL time.Duration
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLoginCodeTTL overrides the social login code lifetime.
func WithLoginCodeTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.loginCodeTTL = ttl }
}

// New constructs an Engine with the provided collaborators.
func New(creds identity.Store, sessions session.Store, codeStore codes.Store, issuer *token.Issuer, mailer mail.Sender, log *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		creds:        creds,
		sessions:     sessions,
		codes:        codeStore,
		issuer:       issuer,
		mailer:       mailer,
		log:          log,
		loginCodeTTL: DefaultLoginCodeTTL,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// User is the sanitized principal projection returned alongside tokens.
// It never carries hashes, lock flags, or OTP state.
type User struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	Role      string
	CompanyID string
}

// Meta is per-user metadata merged into the projection after OTP step-up.
type Meta struct {
	CloudSyncEnabled bool
	Currency         string
}

// Session is the result of a finalized authentication attempt.
type Session struct {
	User    User
	Company *identity.Company
	Meta    *Meta

	AccessToken      string
	RefreshToken     string
	ExpiresIn        int // seconds, access token
	RefreshExpiresAt time.Time
}

// LoginResult is either a finalized session or a 2FA gate. When
// TwoFactorRequired is set, no tokens have been minted.
type LoginResult struct {
	TwoFactorRequired bool
	Session           *Session
}

// MintLoginCode stores a fresh single-use social login code bound to the
// email and PKCE challenge, and returns the code. Called by the OAuth
// callback after the provider has proven the email.
func (e *Engine) MintLoginCode(ctx context.Context, email, challenge string) (string, error) {
	return e.codes.CreateLoginCode(ctx, email, challenge, e.loginCodeTTL)
}

// attemptID tags the log lines of one authentication attempt.
func attemptID() string {
	return ulid.Make().String()
}

// sendMail delivers a notification without blocking the attempt. Failures
// are logged and swallowed; mail must never gate token issuance.
func (e *Engine) sendMail(tmpl mail.Template, recipient string, subs map[string]string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	go func() {
		defer cancel()
		if err := e.mailer.Send(ctx, tmpl, recipient, subs); err != nil {
			e.log.Error("auth.mail.send.fail", "template", string(tmpl), "err", err)
		}
	}()
}

// minted is one freshly signed token pair plus the resolved company context.
type minted struct {
	access     string
	refresh    string
	refreshExp time.Time
	company    *identity.Company
	companyID  string
}

// mintPair resolves the company projection and signs a fresh access+refresh
// pair. The refresh record expiry is decoded from the token just minted so
// the store and the token can never disagree.
func (e *Engine) mintPair(ctx context.Context, now time.Time, p identity.Principal) (minted, error) {
	var m minted

	if p.CompanyID != nil && *p.CompanyID != "" {
		m.companyID = *p.CompanyID
		c, err := e.creds.GetCompany(ctx, m.companyID)
		if err != nil {
			return minted{}, err
		}
		m.company = &c
	}

	access, err := e.issuer.IssueAccess(token.AccessClaims{
		UserID:    p.ID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		Role:      p.Role,
		CompanyID: m.companyID,
	}, now)
	if err != nil {
		return minted{}, err
	}
	refresh, err := e.issuer.IssueRefresh(p.ID, now)
	if err != nil {
		return minted{}, err
	}
	refreshExp, err := token.DecodeExpiry(refresh)
	if err != nil {
		return minted{}, err
	}

	m.access = access
	m.refresh = refresh
	m.refreshExp = refreshExp
	return m, nil
}

func (e *Engine) buildSession(p identity.Principal, m minted, withMeta bool) *Session {
	sess := &Session{
		User: User{
			ID:        p.ID,
			Email:     p.Email,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Role:      p.Role,
			CompanyID: m.companyID,
		},
		Company:          m.company,
		AccessToken:      m.access,
		RefreshToken:     m.refresh,
		ExpiresIn:        int(e.issuer.AccessTTL().Seconds()),
		RefreshExpiresAt: m.refreshExp,
	}
	if withMeta {
		sess.Meta = &Meta{CloudSyncEnabled: p.CloudSyncEnabled, Currency: p.Currency}
	}
	return sess
}

// finalizeSession is the shared terminal step of login and OTP verification:
// mint a pair and replace whatever refresh record the user had.
func (e *Engine) finalizeSession(ctx context.Context, now time.Time, p identity.Principal, withMeta bool) (*Session, error) {
	m, err := e.mintPair(ctx, now, p)
	if err != nil {
		return nil, err
	}

	// Upsert, not delete+insert: a racing reader must never observe a
	// half-applied rotation.
	if err := e.sessions.Replace(ctx, now, p.ID, m.refresh, m.refreshExp); err != nil {
		return nil, err
	}

	return e.buildSession(p, m, withMeta), nil
}
