package identity

import "testing"

func TestNewOTPCodeShape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := newOTPCode()
		if err != nil {
			t.Fatalf("newOTPCode: %v", err)
		}
		if len(code) != otpDigits {
			t.Fatalf("code %q length = %d, want %d", code, len(code), otpDigits)
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("code %q contains non-digit", code)
			}
		}
		seen[code] = true
	}
	// 50 draws from a million values colliding down to one would mean a
	// broken generator.
	if len(seen) < 2 {
		t.Fatal("generator produced a single repeated code")
	}
}

func TestOTPHashEqual(t *testing.T) {
	h := hashOTP("246813")

	if !otpHashEqual(hashOTP("246813"), h) {
		t.Fatal("equal hashes reported unequal")
	}
	if otpHashEqual(hashOTP("246814"), h) {
		t.Fatal("different codes reported equal")
	}
	if otpHashEqual("", h) || otpHashEqual(h, "") {
		t.Fatal("empty hash must never match")
	}
}
