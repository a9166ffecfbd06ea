// Package crypto encrypts PII fields and backup archives with Fernet tokens.
package crypto

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fernet/fernet-go"
)

var (
	// ErrInvalidKey is returned for a malformed key
	ErrInvalidKey = errors.New("invalid fernet key")

	// ErrDecrypt is returned when a token fails verification
	ErrDecrypt = errors.New("fernet token could not be verified")
)

// a negative ttl disables the timestamp check
const noExpiry time.Duration = -1

// FernetCipher encrypts with the primary key and decrypts with any configured key,
// which allows key rotation by prepending the new key.
type FernetCipher struct {
	keys []*fernet.Key
}

// NewFernetCipher parses a comma-separated list of base64 keys; the first one encrypts
func NewFernetCipher(encodedKeys string) (*FernetCipher, error) {
	var keys []*fernet.Key
	for _, part := range strings.Split(encodedKeys, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, err := fernet.DecodeKey(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return nil, ErrInvalidKey
	}
	return &FernetCipher{keys: keys}, nil
}

// GenerateKey returns a new random key in its encoded form
func GenerateKey() (string, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return "", err
	}
	return k.Encode(), nil
}

// Seal encrypts plaintext into a Fernet token
func (c *FernetCipher) Seal(plaintext []byte) ([]byte, error) {
	tok, err := fernet.EncryptAndSign(plaintext, c.keys[0])
	if err != nil {
		return nil, fmt.Errorf("fernet encrypt: %w", err)
	}
	return tok, nil
}

// Open verifies and decrypts a token. Tokens never expire.
func (c *FernetCipher) Open(token []byte) ([]byte, error) {
	msg := fernet.VerifyAndDecrypt(token, noExpiry, c.keys)
	if msg == nil {
		return nil, ErrDecrypt
	}
	return msg, nil
}

// EncryptString encrypts a field value; empty stays empty
func (c *FernetCipher) EncryptString(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	tok, err := c.Seal([]byte(plain))
	if err != nil {
		return "", err
	}
	return string(tok), nil
}

// DecryptString decrypts a field value; empty stays empty
func (c *FernetCipher) DecryptString(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	msg, err := c.Open([]byte(token))
	if err != nil {
		return "", err
	}
	return string(msg), nil
}
