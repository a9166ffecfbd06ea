package crypto

import (
	"context"

	"github.com/taxcrm/backend/internal/domain/crm"
)

// FieldCipher adapts FernetCipher to the context-aware cipher the CRM aggregates use
type FieldCipher struct {
	cipher *FernetCipher
}

// NewFieldCipher wraps a FernetCipher
func NewFieldCipher(cipher *FernetCipher) *FieldCipher {
	return &FieldCipher{cipher: cipher}
}

// EncryptString encrypts one PII value
func (f *FieldCipher) EncryptString(ctx context.Context, plaintext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.cipher.EncryptString(plaintext)
}

// DecryptString decrypts one PII value
func (f *FieldCipher) DecryptString(ctx context.Context, ciphertext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.cipher.DecryptString(ciphertext)
}

var _ crm.FieldCipher = (*FieldCipher)(nil)
