package engine

import (
	"context"
	"fmt"
	"time"

	"aegis/cmd/identity"
)

// SetTwoFactor toggles 2FA enrollment for one user. If the account has a
// password credential, the current password must be re-presented and pass
// standard validation first. Toggling to the current state is a conflict.
func (e *Engine) SetTwoFactor(ctx context.Context, now time.Time, userID string, enabled bool, password string) error {
	p, err := e.creds.GetPrincipalByID(ctx, userID)
	if identity.IsNotFound(err) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}

	if p.PasswordSet() {
		status, _, err := e.creds.ValidateLoginCredential(ctx, p.Email, password)
		if err != nil {
			return err
		}
		switch status {
		case identity.CredentialValid:
		case identity.CredentialLocked:
			return ErrAccountLocked
		default:
			return ErrInvalidCredentials
		}
	}

	// The store owns the unchanged-state check, so a concurrent toggle
	// cannot slip between a read here and the write.
	if err := e.creds.SetTwoFactor(ctx, userID, enabled, now); err != nil {
		if identity.IsConflict(err) {
			return ErrTwoFactorUnchanged
		}
		if identity.IsNotFound(err) {
			return ErrUserNotFound
		}
		return err
	}

	e.log.Info("auth.two_factor.set", "user_id", userID, "enabled", enabled)
	return nil
}

// SetCompanyTwoFactor applies a 2FA toggle to every member of a company.
// The actor re-presents their password under the same rule as SetTwoFactor.
// Member failures do not abort the batch; they come back as warnings.
func (e *Engine) SetCompanyTwoFactor(ctx context.Context, now time.Time, actorID, companyID string, enabled bool, password string) ([]string, error) {
	actor, err := e.creds.GetPrincipalByID(ctx, actorID)
	if identity.IsNotFound(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if actor.PasswordSet() {
		status, _, err := e.creds.ValidateLoginCredential(ctx, actor.Email, password)
		if err != nil {
			return nil, err
		}
		switch status {
		case identity.CredentialValid:
		case identity.CredentialLocked:
			return nil, ErrAccountLocked
		default:
			return nil, ErrInvalidCredentials
		}
	}

	members, err := e.creds.ListCompanyMembers(ctx, companyID)
	if identity.IsNotFound(err) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	var warnings []string
	changed := 0
	for _, m := range members {
		if m.TwoFactorEnabled == enabled {
			warnings = append(warnings, fmt.Sprintf("%s: already in requested state", m.Email))
			continue
		}
		if err := e.creds.SetTwoFactor(ctx, m.ID, enabled, now); err != nil {
			if identity.IsConflict(err) {
				// Someone else flipped this member since the snapshot.
				warnings = append(warnings, fmt.Sprintf("%s: already in requested state", m.Email))
				continue
			}
			e.log.Error("auth.two_factor.company.member_fail", "company_id", companyID, "user_id", m.ID, "err", err)
			warnings = append(warnings, fmt.Sprintf("%s: update failed", m.Email))
			continue
		}
		changed++
	}

	// A batch where nothing needed changing mirrors the single-user conflict.
	if changed == 0 && len(members) > 0 && len(warnings) == len(members) {
		allUnchanged := true
		for _, m := range members {
			if m.TwoFactorEnabled != enabled {
				allUnchanged = false
				break
			}
		}
		if allUnchanged {
			return warnings, ErrTwoFactorUnchanged
		}
	}

	e.log.Info("auth.two_factor.company.set", "company_id", companyID, "enabled", enabled, "changed", changed, "warnings", len(warnings))
	return warnings, nil
}
