// Package signature verifies QStash webhook deliveries.
//
// QStash signs each request with a JWT (HS256) carried in the
// Upstash-Signature header. The token's "body" claim is the base64url encoded
// SHA-256 of the raw request body. Two signing keys are valid at any time so
// keys can be rotated without a coordinated cutover.
package signature

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HeaderName is the request header carrying the signature.
const HeaderName = "Upstash-Signature"

const issuer = "Upstash"

var (
	ErrMissingSignature = errors.New("signature is missing")
	ErrInvalidSignature = errors.New("signature is invalid")
	ErrBodyMismatch     = errors.New("body hash does not match")
)

// Claims is the QStash token payload.
type Claims struct {
	jwt.RegisteredClaims
	Body string `json:"body"`
}

// Receiver verifies signatures against the current and next signing keys.
type Receiver struct {
	currentSigningKey string
	nextSigningKey    string
	clockTolerance    time.Duration
	now               func() time.Time
}

// Option configures a Receiver.
type Option func(*Receiver)

// WithClockTolerance allows for skew between the sender's and our clock.
func WithClockTolerance(d time.Duration) Option {
	return func(r *Receiver) { r.clockTolerance = d }
}

// WithClock overrides time.Now; used by tests.
func WithClock(now func() time.Time) Option {
	return func(r *Receiver) { r.now = now }
}

func NewReceiver(currentSigningKey, nextSigningKey string, opts ...Option) *Receiver {
	r := &Receiver{
		currentSigningKey: currentSigningKey,
		nextSigningKey:    nextSigningKey,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// VerifyRequest is the input to Verify.
type VerifyRequest struct {
	Signature string
	Body      []byte
	// URL is compared with the token subject when non-empty.
	URL string
}

// Verify returns nil when the signature is valid under either signing key.
func (r *Receiver) Verify(req VerifyRequest) error {
	if strings.TrimSpace(req.Signature) == "" {
		return ErrMissingSignature
	}

	err := r.verifyWithKey(r.currentSigningKey, req)
	if err == nil {
		return nil
	}
	// a body mismatch cannot be fixed by the other key
	if errors.Is(err, ErrBodyMismatch) {
		return err
	}
	if nextErr := r.verifyWithKey(r.nextSigningKey, req); nextErr != nil {
		return nextErr
	}
	return nil
}

func (r *Receiver) verifyWithKey(key string, req VerifyRequest) error {
	if key == "" {
		return fmt.Errorf("%w: signing key not configured", ErrInvalidSignature)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithLeeway(r.clockTolerance),
		jwt.WithTimeFunc(r.now),
		jwt.WithExpirationRequired(),
	}
	if req.URL != "" {
		opts = append(opts, jwt.WithSubject(req.URL))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(req.Signature, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(key), nil
	}, opts...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	if trimPadding(claims.Body) != trimPadding(BodyHash(req.Body)) {
		return ErrBodyMismatch
	}
	return nil
}

// BodyHash returns the base64url encoded SHA-256 digest of body, as QStash
// places it in the "body" claim.
func BodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.URLEncoding.EncodeToString(sum[:])
}

func trimPadding(s string) string {
	return strings.TrimRight(s, "=")
}

// Sign issues a token the way QStash does, for local tooling and fixtures.
func Sign(key, url string, body []byte, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   url,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Body: BodyHash(body),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
}
