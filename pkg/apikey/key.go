package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// Prefix starts every key issued by the service.
	Prefix = "sf_"
	// secretBytes of randomness, 43 characters once base64url encoded.
	secretBytes = 32
	bodyLength  = 43
	// displayChars of the body are kept in the display prefix.
	displayChars = 8
)

// Key is a stored API key. The raw key is never part of it.
type Key struct {
	ID          uuid.UUID
	PrincipalID uuid.UUID
	Name        string
	Prefix      string // display prefix, safe to log and show
	Hash        string // hex SHA-256 of the raw key
	RateLimit   int    // requests per rolling hour
	Active      bool
	LastUsedAt  *time.Time
	CreatedAt   time.Time
	RevokedAt   *time.Time
}

// Generate returns a new raw key, its hash and its display prefix.
func Generate() (raw, hash, prefix string, err error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", "", errors.Join(ErrFailedToGenerate, err)
	}

	raw = Prefix + base64.RawURLEncoding.EncodeToString(buf)
	return raw, Hash(raw), DisplayPrefix(raw), nil
}

// Hash computes the lookup hash of a raw key. It is byte-exact: keys differing
// only in case hash differently.
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// ValidFormat reports whether raw looks like a key this service issued.
func ValidFormat(raw string) bool {
	body, ok := strings.CutPrefix(raw, Prefix)
	if !ok || len(body) != bodyLength {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(body)
	return err == nil
}

// DisplayPrefix returns the identifying head of a key, e.g. "sf_Ab12Cd34".
func DisplayPrefix(raw string) string {
	body := strings.TrimPrefix(raw, Prefix)
	if len(body) > displayChars {
		body = body[:displayChars]
	}
	return Prefix + body
}
