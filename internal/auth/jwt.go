// Package auth authenticates signers at the service edge.
//
// Identities are ed25519 public keys. A caller proves control of its key once
// by signing a freshness challenge and receives a short-lived bearer token;
// the middleware then injects the proven identity into the request context as
// the signer. Transaction-level signing stays with the caller's wallet.
package auth

import (
	"crypto/ed25519"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"timevault/pkg/domain"
	dErrors "timevault/pkg/domain-errors"
)

const (
	// challengePrefix versions the signed challenge format.
	challengePrefix = "timevault:auth:v1"
	// challengeWindow bounds how stale a signed challenge may be.
	challengeWindow = 5 * time.Minute
)

// Manager issues and validates signer tokens.
type Manager struct {
	signingKey []byte
	tokenTTL   time.Duration
}

// NewManager builds a Manager with an HMAC signing key.
func NewManager(signingKey string, tokenTTL time.Duration) *Manager {
	return &Manager{signingKey: []byte(signingKey), tokenTTL: tokenTTL}
}

// ChallengeBytes returns the message a caller must sign to authenticate as
// the identity at the given unix timestamp.
func ChallengeBytes(identity domain.Address, unixTime int64) []byte {
	return fmt.Appendf(nil, "%s|%s|%d", challengePrefix, identity.String(), unixTime)
}

// VerifyChallenge checks freshness and the ed25519 signature, treating the
// identity's key material as the public key.
func VerifyChallenge(identity domain.Address, unixTime int64, signature []byte, now time.Time) error {
	age := now.Unix() - unixTime
	if age < 0 {
		age = -age
	}
	if age > int64(challengeWindow/time.Second) {
		return dErrors.New(dErrors.CodeUnauthorized, "challenge timestamp outside freshness window")
	}
	if len(signature) != ed25519.SignatureSize {
		return dErrors.New(dErrors.CodeUnauthorized, "malformed signature")
	}
	if !ed25519.Verify(ed25519.PublicKey(identity.Bytes()), ChallengeBytes(identity, unixTime), signature) {
		return dErrors.New(dErrors.CodeUnauthorized, "signature does not verify against identity")
	}
	return nil
}

// IssueToken mints a bearer token whose subject is the proven identity.
func (m *Manager) IssueToken(identity domain.Address, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   identity.String(),
		ID:        uuid.New().String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses a bearer token and returns the signer identity.
func (m *Manager) ValidateToken(tokenString string) (domain.Address, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return m.signingKey, nil
	})
	if err != nil {
		return domain.Address{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return domain.Address{}, dErrors.New(dErrors.CodeUnauthorized, "invalid token claims")
	}
	identity, err := domain.ParseAddress(claims.Subject)
	if err != nil {
		return domain.Address{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid token subject")
	}
	return identity, nil
}
