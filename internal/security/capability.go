package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

// DefaultCapabilityTTL is how long a studio capability stays valid.
const DefaultCapabilityTTL = 12 * time.Hour

var (
	ErrMalformedCapability = errors.New("security: malformed capability")
	ErrBadSignature        = errors.New("security: capability signature mismatch")
	ErrExpiredCapability   = errors.New("security: capability expired")
)

// Capabilities mints and verifies studio capabilities: short-lived tokens the
// server hands to the studio page so that uploads made from it can be
// recognised without trusting a client-supplied header.
//
// A token has the form "{expiryUnix}.{base64url(hmac-sha256(expiryUnix))}".
type Capabilities struct {
	secret []byte
	ttl    time.Duration
}

// NewCapabilities returns a Capabilities keyed with secret. An empty secret
// is replaced by 32 random bytes, which invalidates tokens across restarts.
func NewCapabilities(secret string, ttl time.Duration) (*Capabilities, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
	}
	if ttl <= 0 {
		ttl = DefaultCapabilityTTL
	}
	return &Capabilities{secret: key, ttl: ttl}, nil
}

// TTL reports the lifetime of minted tokens.
func (c *Capabilities) TTL() time.Duration { return c.ttl }

// Mint returns a token that expires ttl after now.
func (c *Capabilities) Mint(now time.Time) string {
	exp := strconv.FormatInt(now.Add(c.ttl).Unix(), 10)
	return exp + "." + c.sign(exp)
}

// Verify checks the token's signature and expiry.
func (c *Capabilities) Verify(token string, now time.Time) error {
	exp, sig, ok := strings.Cut(token, ".")
	if !ok || exp == "" || sig == "" {
		return ErrMalformedCapability
	}
	expiry, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return ErrMalformedCapability
	}
	if !hmac.Equal([]byte(sig), []byte(c.sign(exp))) {
		return ErrBadSignature
	}
	if !now.Before(time.Unix(expiry, 0)) {
		return ErrExpiredCapability
	}
	return nil
}

func (c *Capabilities) sign(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte("studio:" + payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
