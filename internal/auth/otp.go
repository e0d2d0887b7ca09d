package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

// otpShape is the strict shape a one-time code must have before any hash
// comparison is attempted.
var otpShape = regexp.MustCompile(`^\d{6}$`)

// GenerateOTP produces a 6-digit numeric code uniformly distributed in
// [100000, 999999].
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// ValidOTPShape reports whether the given code is exactly six digits.
// Codes failing this check must be rejected without touching stored hashes.
func ValidOTPShape(code string) bool {
	return otpShape.MatchString(code)
}
