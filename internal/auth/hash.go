package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// HashAlgorithm represents supported hashing algorithms.
type HashAlgorithm string

const (
	AlgorithmBcrypt HashAlgorithm = "bcrypt"
	AlgorithmArgon2 HashAlgorithm = "argon2"
)

// TokenLength is the length of a share token.
const TokenLength = 8

// ErrEmptyPassword is returned when hashing an empty password.
var ErrEmptyPassword = errors.New("empty password")

// GenerateToken returns a new share token: the first TokenLength characters
// of a random UUID.
func GenerateToken() string {
	return uuid.NewString()[:TokenLength]
}

// HashPassword hashes a password using the configured algorithm.
func HashPassword(password string, cfg Config) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	switch HashAlgorithm(cfg.HashAlgorithm) {
	case AlgorithmArgon2:
		return hashArgon2(password, cfg)
	default:
		return hashBcrypt(password, cfg.BcryptCost)
	}
}

// VerifyPassword checks a password against a stored hash. The algorithm is
// detected from the hash prefix, so hashes survive a config change.
func VerifyPassword(password, storedHash string) bool {
	if password == "" {
		return false
	}
	if strings.HasPrefix(storedHash, "$2") {
		return verifyBcrypt(password, storedHash)
	}
	if strings.HasPrefix(storedHash, "$argon2") {
		return verifyArgon2(password, storedHash)
	}
	return false
}

func hashBcrypt(data string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(data), cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash failed: %w", err)
	}
	return string(hash), nil
}

func verifyBcrypt(data, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(data)) == nil
}

// hashArgon2 hashes using Argon2id.
func hashArgon2(data string, cfg Config) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(data), salt, cfg.Argon2Time, cfg.Argon2Memory, cfg.Argon2Threads, 32)

	// $argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
	return fmt.Sprintf("$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		cfg.Argon2Memory, cfg.Argon2Time, cfg.Argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

// verifyArgon2 re-derives the key with the parameters encoded in the hash.
func verifyArgon2(data, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return false
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}
	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(data), salt, time, memory, threads, uint32(len(expectedHash)))
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}
