package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

const (
	otpDigits = 6

	// OTPLifetime bounds how long a generated code is accepted.
	OTPLifetime = 5 * time.Minute

	// otpMaxAttempts is the number of failed submissions before the
	// account is locked.
	otpMaxAttempts = 5
)

// newOTPCode returns a uniformly random zero-padded numeric code.
func newOTPCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n), nil
}

// hashOTP returns the hex SHA-256 of a code. Codes are never stored in plain.
func hashOTP(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func otpHashEqual(a, b string) bool {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
