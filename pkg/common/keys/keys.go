package keys

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/quipper/poc/spotify-auth/be/pkg/common/logger"
)

// minSecretLen is the minimum decoded length of COOKIE_SECRET.
const minSecretLen = 32

const valueClaim = "v"

// ErrSecretTooShort is returned when the configured secret decodes to fewer than 32 bytes.
var ErrSecretTooShort = errors.New("keys: cookie secret must decode to at least 32 bytes")

// Signer protects cookie values with an HS256 JWT so the browser cannot
// alter the stored state or return URL.
type Signer struct {
	key jwk.Key
	now func() time.Time
}

// NewSigner builds a Signer from a base64 encoded secret. An empty secret
// generates an ephemeral key; cookies issued with it do not survive a restart.
func NewSigner(secretB64 string) (*Signer, error) {
	var secret []byte
	if secretB64 != "" {
		raw, err := base64.StdEncoding.DecodeString(secretB64)
		if err != nil {
			return nil, fmt.Errorf("keys: decode cookie secret: %w", err)
		}
		if len(raw) < minSecretLen {
			return nil, ErrSecretTooShort
		}
		secret = raw
	} else {
		secret = make([]byte, minSecretLen)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("keys: generate cookie secret: %w", err)
		}
		logger.Warn("generated ephemeral cookie signing key; to persist, set COOKIE_SECRET='%s'",
			base64.StdEncoding.EncodeToString(secret))
	}

	key, err := jwk.FromRaw(secret)
	if err != nil {
		return nil, fmt.Errorf("keys: build jwk: %w", err)
	}
	_ = key.Set(jwk.KeyIDKey, uuid.NewString())
	_ = key.Set(jwk.AlgorithmKey, jwa.HS256)
	return &Signer{key: key, now: time.Now}, nil
}

// Sign wraps value in a token bound to the cookie name and valid for ttl.
func (s *Signer) Sign(name, value string, ttl time.Duration) (string, error) {
	now := s.now()
	tok, err := jwt.NewBuilder().
		Subject(name).
		IssuedAt(now).
		Expiration(now.Add(ttl)).
		Claim(valueClaim, value).
		Build()
	if err != nil {
		return "", fmt.Errorf("keys: build token: %w", err)
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, s.key))
	if err != nil {
		return "", fmt.Errorf("keys: sign token: %w", err)
	}
	return string(signed), nil
}

// Verify returns the value stored by Sign for the same cookie name.
// Tampered, expired or foreign tokens are rejected.
func (s *Signer) Verify(name, signed string) (string, error) {
	tok, err := jwt.ParseString(signed,
		jwt.WithKey(jwa.HS256, s.key),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(s.now)),
		jwt.WithSubject(name),
	)
	if err != nil {
		return "", fmt.Errorf("keys: verify %s: %w", name, err)
	}
	raw, ok := tok.Get(valueClaim)
	if !ok {
		return "", fmt.Errorf("keys: verify %s: missing value claim", name)
	}
	value, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("keys: verify %s: value claim is %T", name, raw)
	}
	return value, nil
}
