// Package engine orchestrates authentication attempts: credential
// verification, the PKCE social exchange, the 2FA/OTP gate, token minting,
// and refresh rotation with reuse detection.
//
// Each entry point is a terminal state machine per attempt. Token issuance
// always funnels through one finalize step so login, OTP verification, and
// refresh can never diverge on how a session is rotated.
package engine
