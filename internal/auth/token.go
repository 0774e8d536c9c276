package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const tokenFileName = "api_token"

// LoadOrCreateToken reads the API token from configDir/api_token, or generates
// and persists a new 256-bit hex-encoded token if the file is missing or empty.
func LoadOrCreateToken(configDir string) (string, error) {
	path := filepath.Join(configDir, tokenFileName)

	data, err := os.ReadFile(path)
	if err == nil {
		if token := strings.TrimSpace(string(data)); token != "" {
			return token, nil
		}
	}

	return RotateToken(configDir)
}

// RotateToken generates a new API token, replacing the existing one.
// Clients holding the old token are rejected from then on.
func RotateToken(configDir string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}

	if err := writeToken(configDir, filepath.Join(configDir, tokenFileName), token); err != nil {
		return "", err
	}

	return token, nil
}

// HashToken returns the hex SHA-256 of a token.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// Verifier checks presented bearer tokens against the configured one without
// keeping it in plain text.
type Verifier struct {
	hash [sha256.Size]byte
}

// NewVerifier creates a Verifier for token.
func NewVerifier(token string) *Verifier {
	return &Verifier{hash: sha256.Sum256([]byte(token))}
}

// Valid reports whether presented matches the configured token.
func (v *Verifier) Valid(presented string) bool {
	if presented == "" {
		return false
	}
	h := sha256.Sum256([]byte(presented))
	return subtle.ConstantTimeCompare(h[:], v.hash[:]) == 1
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func writeToken(configDir, path, token string) error {
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(token), 0600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return nil
}
