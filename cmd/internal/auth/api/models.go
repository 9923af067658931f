package authapi

import (
	"time"

	"aegis/cmd/internal/auth/engine"
)

type loginRequest struct {
	LoginType    string `json:"loginType"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Code         string `json:"code"`
	CodeVerifier string `json:"code_verifier"`
}

type otpVerifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Enabled is a pointer so a missing field is distinguishable from false.
// String-typed booleans fail JSON decoding outright.
type twoFactorRequest struct {
	UserID   string `json:"userId"`
	Enabled  *bool  `json:"enabled"`
	Password string `json:"password"`
}

type companyTwoFactorRequest struct {
	ActorID   string `json:"actorId"`
	CompanyID string `json:"companyId"`
	Enabled   *bool  `json:"enabled"`
	Password  string `json:"password"`
}

type userResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Role      string `json:"role,omitempty"`
	CompanyID string `json:"companyId,omitempty"`
}

type companyResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Currency string `json:"currency,omitempty"`
}

type metaResponse struct {
	CloudSyncEnabled bool   `json:"cloudSyncEnabled"`
	Currency         string `json:"currency,omitempty"`
}

type sessionResponse struct {
	User    userResponse     `json:"user"`
	Company *companyResponse `json:"company,omitempty"`
	Meta    *metaResponse    `json:"meta,omitempty"`

	AccessToken           string    `json:"accessToken"`
	RefreshToken          string    `json:"refreshToken"`
	ExpiresIn             int       `json:"expiresIn"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
}

type twoFactorGateResponse struct {
	TwoFactorEnabled bool `json:"twoFactorEnabled"`
}

type twoFactorToggleResponse struct {
	Updated  bool     `json:"updated"`
	Warnings []string `json:"warnings,omitempty"`
}

func toSessionResponse(s *engine.Session) sessionResponse {
	resp := sessionResponse{
		User: userResponse{
			ID:        s.User.ID,
			Email:     s.User.Email,
			Firstname: s.User.FirstName,
			Lastname:  s.User.LastName,
			Role:      s.User.Role,
			CompanyID: s.User.CompanyID,
		},
		AccessToken:           s.AccessToken,
		RefreshToken:          s.RefreshToken,
		ExpiresIn:             s.ExpiresIn,
		RefreshTokenExpiresAt: s.RefreshExpiresAt,
	}
	if s.Company != nil {
		resp.Company = &companyResponse{ID: s.Company.ID, Name: s.Company.Name, Currency: s.Company.Currency}
	}
	if s.Meta != nil {
		resp.Meta = &metaResponse{CloudSyncEnabled: s.Meta.CloudSyncEnabled, Currency: s.Meta.Currency}
	}
	return resp
}
