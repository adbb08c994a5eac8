// Package media is the playback gateway: it issues time-limited signed
// URLs for stored clip sources and serves the bytes with HTTP Range
// support.
package media

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	ErrExpiredURL   = errors.New("playback url expired")
	ErrBadSignature = errors.New("playback url signature invalid")
)

// Signer issues and checks HMAC-signed expiring playback paths. Signing
// the same clip repeatedly is cheap and side-effect free, so callers
// may re-request URLs freely.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret []byte, ttl time.Duration) *Signer {
	return &Signer{secret: secret, ttl: ttl, now: time.Now}
}

// SignedPath returns a relative playback path for a clip, valid until
// the TTL elapses.
func (s *Signer) SignedPath(clipID string) (string, time.Time) {
	expires := s.now().Add(s.ttl)
	sig := s.sign(clipID, expires.Unix())
	return fmt.Sprintf("/media/stream/%s?exp=%d&sig=%s", clipID, expires.Unix(), sig), expires
}

// Verify checks a presented expiry and signature for a clip. The
// signature is checked before the expiry so an expired-but-valid URL
// reports ErrExpiredURL rather than ErrBadSignature.
func (s *Signer) Verify(clipID string, expUnix string, sig string) error {
	expires, err := strconv.ParseInt(expUnix, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	if !hmac.Equal([]byte(s.sign(clipID, expires)), []byte(sig)) {
		return ErrBadSignature
	}
	if s.now().Unix() > expires {
		return ErrExpiredURL
	}
	return nil
}

func (s *Signer) sign(clipID string, expUnix int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s\n%d", clipID, expUnix)
	return hex.EncodeToString(mac.Sum(nil))
}
