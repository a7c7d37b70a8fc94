// Package cryptox implements the field-encryption layer: sensitive fields
// of captured entities are sealed with AES-GCM before they reach the local
// store, while non-sensitive fields stay plain so storage indexes keep
// working.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/JohnF-code/financeflow-app-cobrador/internal/common"
)

const (
	// KeySize is the AES-256 key length in bytes. One key per installation.
	KeySize = 32

	nonceSize = 12
)

// Cipher seals and opens individual field values. The zero value is not
// usable; construct with NewCipher or NewPassthrough.
//
// A passthrough cipher is the degraded mode used when no key material is
// available: all operations return their input unchanged and Enabled()
// reports false. Callers must check Enabled() rather than assume encryption
// occurred.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher returns a Cipher sealing with AES-256-GCM under key.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", common.ErrEncryptionUnsupported, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrEncryptionUnsupported, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrEncryptionUnsupported, err)
	}
	return &Cipher{aead: aead}, nil
}

// NewPassthrough returns a disabled Cipher that leaves values untouched.
func NewPassthrough() *Cipher {
	return &Cipher{}
}

// Enabled reports whether the cipher actually encrypts.
func (c *Cipher) Enabled() bool {
	return c.aead != nil
}

// SealField encrypts a single field value into a base64 envelope of
// nonce ++ ciphertext ++ tag. The value is sealed as its JSON encoding so
// OpenField restores it exactly, numeric strings included.
func (c *Cipher) SealField(value any) (string, error) {
	plaintext, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("serializing field: %w", err)
	}

	nonce := common.GenerateRandByteArray(nonceSize)
	sealed := c.aead.Seal(nil, nonce, plaintext, nil)

	combined := make([]byte, 0, nonceSize+len(sealed))
	combined = append(combined, nonce...)
	combined = append(combined, sealed...)
	return base64.StdEncoding.EncodeToString(combined), nil
}

// OpenField reverses SealField. Envelopes written by older builds sealed
// bare strings rather than JSON; those come back as the raw string.
func (c *Cipher) OpenField(encoded string) (any, error) {
	combined, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	if len(combined) < nonceSize {
		return nil, fmt.Errorf("envelope too short: %d bytes", len(combined))
	}

	plaintext, err := c.aead.Open(nil, combined[:nonceSize], combined[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("opening envelope: %w", err)
	}

	var v any
	if err := json.Unmarshal(plaintext, &v); err != nil {
		return string(plaintext), nil
	}
	return v, nil
}
