package main

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// ErrUnauthorized covers every credential failure. Callers never learn which
// check failed.
var ErrUnauthorized = errors.New("invalid credentials")

// AuthGate verifies the shared admin secret and authorizes privileged
// operations. Two distinct mechanisms live here by design: short-lived random
// bearer tokens for the interactive admin (upload/download), and a weaker
// date-keyed credential for the machine-to-machine raw data endpoint. They
// protect different endpoints and are intentionally not unified.
type AuthGate struct {
	secret     string
	secretHash []byte
	tokens     *TokenStore
	now        func() time.Time
}

// NewAuthGate hashes the plaintext admin secret at startup and keeps only the
// hash on the verification path.
func NewAuthGate(secret string, tokens *TokenStore) (*AuthGate, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &AuthGate{secret: secret, secretHash: hash, tokens: tokens, now: time.Now}, nil
}

// VerifySecret compares a candidate against the stored hash.
func (a *AuthGate) VerifySecret(candidate string) bool {
	return bcrypt.CompareHashAndPassword(a.secretHash, []byte(candidate)) == nil
}

// Login verifies the secret and mints a bearer token bound to ip. Any failure
// surfaces as the same generic ErrUnauthorized.
func (a *AuthGate) Login(candidate, ip string) (IssuedToken, error) {
	if !a.VerifySecret(candidate) {
		return IssuedToken{}, ErrUnauthorized
	}
	token, err := a.tokens.Issue(ip)
	if err != nil {
		logWarn("Token issuance failed: %v", err)
		return IssuedToken{}, ErrUnauthorized
	}
	return token, nil
}

// Authorize reports whether a presented bearer token is valid from ip.
func (a *AuthGate) Authorize(token, ip string) bool {
	return a.tokens.Validate(token, ip)
}

// machineCredential derives the day-scoped raw-data credential: a hash of the
// shared secret and the current UTC calendar date, valid for that whole day.
// Deliberately coarser than the bearer-token scheme.
func (a *AuthGate) machineCredential() string {
	date := a.now().UTC().Format("2006-01-02")
	sum := sha256.Sum256([]byte(a.secret + date))
	return "Bearer " + hex.EncodeToString(sum[:])
}

// AuthorizeMachine checks an Authorization header against today's credential.
func (a *AuthGate) AuthorizeMachine(header string) bool {
	if header == "" {
		return false
	}
	expected := a.machineCredential()
	return subtle.ConstantTimeCompare([]byte(header), []byte(expected)) == 1
}
