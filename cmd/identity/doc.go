// Package identity is the credential store boundary: principals, companies,
// password verification, and per-user OTP state (value, expiry, failure
// counter). OTP verdicts are computed here so callers never reimplement
// lockout counting.
package identity
