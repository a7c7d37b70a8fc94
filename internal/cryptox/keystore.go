package cryptox

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"

	"github.com/JohnF-code/financeflow-app-cobrador/internal/common"
)

// Key lifecycle: one 256-bit key per installation, generated on first run
// and persisted next to the local database. Rotation is explicit and
// destructive: previously encrypted data becomes unreadable.

const saltSize = 16

// LoadOrCreateKey returns the device key stored at path, generating and
// persisting a fresh random key when the file does not exist yet.
func LoadOrCreateKey(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err == nil {
		key, decErr := base64.StdEncoding.DecodeString(string(b))
		if decErr != nil || len(key) != KeySize {
			return nil, fmt.Errorf("%w: corrupt key file %s", common.ErrEncryptionUnsupported, path)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading key file: %w", err)
	}

	key := common.GenerateRandByteArray(KeySize)
	if err := writeKeyFile(path, key); err != nil {
		return nil, err
	}
	return key, nil
}

// DeriveKey derives the device key from an operator passphrase with
// argon2id. The salt is generated once per installation and persisted at
// saltPath, so the derivation stays stable across restarts.
func DeriveKey(passphrase string, saltPath string) ([]byte, error) {
	salt, err := os.ReadFile(saltPath)
	if os.IsNotExist(err) {
		salt = common.GenerateRandByteArray(saltSize)
		if err := writeKeyFile(saltPath, salt); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("reading salt file: %w", err)
	} else {
		if salt, err = base64.StdEncoding.DecodeString(string(salt)); err != nil {
			return nil, fmt.Errorf("%w: corrupt salt file %s", common.ErrEncryptionUnsupported, saltPath)
		}
	}

	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, KeySize), nil
}

// RotateKey discards the stored key and generates a new one. All data
// encrypted under the previous key is unrecoverable afterwards.
func RotateKey(path string) ([]byte, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("removing old key: %w", err)
	}
	return LoadOrCreateKey(path)
}

// Fingerprint returns a short stable identifier for a key, safe to log and
// store in device metadata.
func Fingerprint(key []byte) string {
	sum := sha256.Sum256(key)
	return hex.EncodeToString(sum[:8])
}

func writeKeyFile(path string, raw []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating key dir: %w", err)
		}
	}
	encoded := base64.StdEncoding.EncodeToString(raw)
	if err := os.WriteFile(path, []byte(encoded), 0o600); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}
	return nil
}
