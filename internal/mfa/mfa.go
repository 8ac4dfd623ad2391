package mfa

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

// Enrollment is what a client needs to provision an authenticator app.
type Enrollment struct {
	Secret string
	KeyURI string
}

// Enroll generates a fresh TOTP secret and its otpauth:// provisioning URI.
func Enroll(issuer, account string) (Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: account,
	})
	if err != nil {
		return Enrollment{}, fmt.Errorf("generate totp secret: %w", err)
	}
	return Enrollment{Secret: key.Secret(), KeyURI: key.URL()}, nil
}

// Verify checks a 6-digit code against the secret, tolerating standard clock
// skew windows.
func Verify(secret, code string) bool {
	return totp.Validate(code, secret)
}

// GenerateBackupCodes mints single-use recovery codes (10 hex characters
// each). Only the bcrypt hashes should be stored.
func GenerateBackupCodes(count int) ([]string, error) {
	if count <= 0 {
		count = 10
	}
	codes := make([]string, count)
	for i := range codes {
		raw := make([]byte, 5)
		if _, err := rand.Read(raw); err != nil {
			return nil, fmt.Errorf("generate backup code: %w", err)
		}
		codes[i] = hex.EncodeToString(raw)
	}
	return codes, nil
}

// HashBackupCode returns the storable form of a backup code.
func HashBackupCode(code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash backup code: %w", err)
	}
	return string(hash), nil
}

// CheckBackupCode reports whether the presented code matches a stored hash.
func CheckBackupCode(hash, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
