package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignedURLSigner mints and validates download tokens for stored
// artifacts (component images, history exports). Tokens embed the
// resource id, an expiry and the storage path, sealed with HMAC-SHA256.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewSignedURLSigner constructs a signer. A non-positive ttl defaults
// to 24 hours.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{secret: []byte(secret), ttl: ttl}
}

func (s *SignedURLSigner) seal(resourceID, tsRaw, encodedPath string) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s|%s|%s", resourceID, tsRaw, encodedPath)
	return hex.EncodeToString(mac.Sum(nil))
}

// Generate returns a token granting access to relPath until the TTL runs out.
func (s *SignedURLSigner) Generate(resourceID, relPath string) (string, time.Time, error) {
	if resourceID == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("resourceID and relPath required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}

	expiresAt := time.Now().Add(s.ttl)
	tsRaw := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	sig := s.seal(resourceID, tsRaw, encodedPath)

	return strings.Join([]string{resourceID, tsRaw, encodedPath, sig}, "."), expiresAt, nil
}

// Parse validates a token and returns its resource id, storage path and
// expiry. allowExpired skips the expiry check for cleanup routines.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (resourceID, relPath string, expiresAt time.Time, err error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", "", time.Time{}, fmt.Errorf("invalid token format")
	}
	resourceID, tsRaw, encodedPath, sig := parts[0], parts[1], parts[2], parts[3]

	expected := s.seal(resourceID, tsRaw, encodedPath)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return "", "", time.Time{}, fmt.Errorf("invalid token signature")
	}

	expUnix, err := strconv.ParseInt(tsRaw, 10, 64)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("invalid timestamp")
	}
	expiresAt = time.Unix(expUnix, 0)
	if !allowExpired && time.Now().After(expiresAt) {
		return "", "", time.Time{}, fmt.Errorf("token expired")
	}

	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("decode path: %w", err)
	}
	return resourceID, string(rawPath), expiresAt, nil
}
