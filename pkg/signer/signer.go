package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// DefaultSalt is mixed into the key derivation for message tokens.
	DefaultSalt = "futurism message verifier"
	// DefaultIterations mirrors the PBKDF2 cost used for derived signing keys.
	DefaultIterations = 1000

	separator = "--"
	keyLength = 32
)

var (
	// ErrInvalidSignature reports a token that was not produced by Sign with the
	// current secret and purpose. No payload is ever returned alongside it.
	ErrInvalidSignature = errors.New("signer: invalid signature")
	// ErrMissingSecret is returned when a Signer is constructed without key material.
	ErrMissingSecret = errors.New("signer: secret is required")
)

// Option configures the signer before the key is derived.
type Option func(*config)

type config struct {
	salt       string
	iterations int
}

// WithSalt overrides the key derivation salt.
func WithSalt(salt string) Option {
	return func(cfg *config) {
		if trimmed := strings.TrimSpace(salt); trimmed != "" {
			cfg.salt = trimmed
		}
	}
}

// WithIterations overrides the PBKDF2 iteration count.
func WithIterations(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.iterations = n
		}
	}
}

// Signer produces and verifies HMAC-SHA256 tokens over JSON payloads. The
// derived key is fixed at construction so a Signer is safe for concurrent use.
type Signer struct {
	key []byte
}

// New derives the signing key from secret. Rotating the secret means building
// a new Signer; tokens issued under the previous one stop verifying.
func New(secret []byte, options ...Option) (*Signer, error) {
	if len(secret) == 0 {
		return nil, ErrMissingSecret
	}
	cfg := config{salt: DefaultSalt, iterations: DefaultIterations}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	key := pbkdf2.Key(secret, []byte(cfg.salt), cfg.iterations, keyLength, sha256.New)
	return &Signer{key: key}, nil
}

// MustNew panics when the signer cannot be built. Useful for init-time wiring.
func MustNew(secret []byte, options ...Option) *Signer {
	s, err := New(secret, options...)
	if err != nil {
		panic(err)
	}
	return s
}

type envelope struct {
	Message json.RawMessage `json:"message"`
	Purpose string          `json:"purpose,omitempty"`
}

// Sign serialises value as JSON and returns an opaque token bound to purpose.
func (s *Signer) Sign(value any, purpose string) (string, error) {
	if s == nil || len(s.key) == 0 {
		return "", ErrMissingSecret
	}
	message, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("signer: encode message: %w", err)
	}
	payload, err := json.Marshal(envelope{Message: message, Purpose: purpose})
	if err != nil {
		return "", fmt.Errorf("signer: encode envelope: %w", err)
	}

	data := base64.RawURLEncoding.EncodeToString(payload)
	return data + separator + s.digest(data), nil
}

// VerifyRaw checks the token and returns the signed JSON message.
func (s *Signer) VerifyRaw(token, purpose string) (json.RawMessage, error) {
	if s == nil || len(s.key) == 0 {
		return nil, ErrInvalidSignature
	}
	idx := strings.LastIndex(token, separator)
	if idx <= 0 {
		return nil, ErrInvalidSignature
	}
	data, digest := token[:idx], token[idx+len(separator):]
	if digest == "" || subtle.ConstantTimeCompare([]byte(digest), []byte(s.digest(data))) != 1 {
		return nil, ErrInvalidSignature
	}

	payload, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, ErrInvalidSignature
	}
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, ErrInvalidSignature
	}
	if env.Purpose != purpose || len(env.Message) == 0 {
		return nil, ErrInvalidSignature
	}
	return env.Message, nil
}

// Verify checks the token and decodes its message into out. Decoding failures
// are reported as ErrInvalidSignature and out must then be discarded.
func (s *Signer) Verify(token, purpose string, out any) error {
	message, err := s.VerifyRaw(token, purpose)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(message, out); err != nil {
		return ErrInvalidSignature
	}
	return nil
}

// Valid reports whether token verifies under purpose.
func (s *Signer) Valid(token, purpose string) bool {
	_, err := s.VerifyRaw(token, purpose)
	return err == nil
}

func (s *Signer) digest(data string) string {
	mac := hmac.New(sha256.New, s.key)
	_, _ = mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
