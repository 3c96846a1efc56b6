package crypto

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const argon2idPrefix = "$argon2id$"

// dummyHash is compared against when no stored hash exists.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("realm-auth-dummy"), bcrypt.DefaultCost)

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches encoded. bcrypt hashes and
// legacy argon2id PHC strings are both accepted. An empty encoded hash never
// matches.
func VerifyPassword(password, encoded string) bool {
	if encoded == "" {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return false
	}
	if strings.HasPrefix(encoded, argon2idPrefix) {
		ok, err := verifyArgon2id(password, encoded)
		return err == nil && ok
	}
	return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
}

// NeedsRehash reports whether encoded was produced by a legacy scheme.
func NeedsRehash(encoded string) bool {
	return strings.HasPrefix(encoded, argon2idPrefix)
}

type argonParams struct {
	time    uint32
	memory  uint32
	threads uint8
}

var errBadPHC = errors.New("invalid PHC hash")

func verifyArgon2id(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, errBadPHC
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false, fmt.Errorf("%w: version: %w", errBadPHC, err)
	}
	if version != argon2.Version {
		return false, fmt.Errorf("%w: unsupported version %d", errBadPHC, version)
	}

	var p argonParams
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return false, fmt.Errorf("%w: parameters: %w", errBadPHC, err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("%w: salt: %w", errBadPHC, err)
	}
	hash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("%w: hash: %w", errBadPHC, err)
	}

	candidate := argon2.IDKey([]byte(password), salt, p.time, p.memory, p.threads, uint32(len(hash)))
	return subtle.ConstantTimeCompare(hash, candidate) == 1, nil
}
