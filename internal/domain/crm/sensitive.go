package crm

import (
	"context"
	"strings"
	"unicode"
)

// FieldCipher encrypts PII before it reaches storage
type FieldCipher interface {
	EncryptString(ctx context.Context, plaintext string) (string, error)
	DecryptString(ctx context.Context, ciphertext string) (string, error)
}

// SensitiveValue is an encrypted identifier (SSN, EIN) plus its last four digits
// so it can be displayed masked without decryption.
type SensitiveValue struct {
	Ciphertext string
	Last4      string
}

// IsSet reports whether a value is stored
func (v SensitiveValue) IsSet() bool {
	return v.Ciphertext != ""
}

// Masked renders the value in the given layout, e.g. "***-**-1234"
func (v SensitiveValue) Masked(layout string) string {
	if !v.IsSet() {
		return ""
	}
	if len(layout) < len(v.Last4) {
		return v.Last4
	}
	return layout[:len(layout)-len(v.Last4)] + v.Last4
}

// SealSensitive normalizes digits, checks their count and encrypts the value
func SealSensitive(ctx context.Context, cipher FieldCipher, raw string, digits int, code string) (SensitiveValue, error) {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, raw)
	if len(clean) != digits {
		return SensitiveValue{}, newInvalid(code, "must contain exactly the expected number of digits")
	}
	ct, err := cipher.EncryptString(ctx, clean)
	if err != nil {
		return SensitiveValue{}, err
	}
	return SensitiveValue{Ciphertext: ct, Last4: clean[len(clean)-4:]}, nil
}
