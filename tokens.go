package main

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TokenStore persists bearer tokens in a single JSON document keyed by token
// value. Every mutation is a whole-document read-modify-write under an
// exclusive in-process lock; there is no cross-process coordination because
// exactly one admin actor is supported.
type TokenStore struct {
	Path string
	TTL  time.Duration

	mu  sync.Mutex
	now func() time.Time
}

// NewTokenStore returns a store backed by the JSON document at path, issuing
// tokens valid for ttl from issuance. Lifetime is fixed: use does not renew it.
func NewTokenStore(path string, ttl time.Duration) *TokenStore {
	return &TokenStore{Path: path, TTL: ttl, now: time.Now}
}

// Issue mints a 256-bit random bearer token for ip and persists it.
func (ts *TokenStore) Issue(ip string) (IssuedToken, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return IssuedToken{}, err
	}
	token := IssuedToken{
		Value:   hex.EncodeToString(buf),
		Expires: ts.now().Add(ts.TTL).Unix(),
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	tokens := ts.load()
	tokens[token.Value] = TokenInfo{Expires: token.Expires, IP: ip}
	if err := ts.save(tokens); err != nil {
		return IssuedToken{}, err
	}
	logInfo("Issued token for %s, expires %d", ip, token.Expires)
	return token, nil
}

// Validate reports whether token is live for requestIP. It fails closed on an
// empty token. Before the check it sweeps every expired entry from the
// document, so a Validate call can shrink global state even when it returns
// false. A token is valid iff it survived the sweep, its issuing IP matches
// the caller (when one was recorded), and it has not expired.
func (ts *TokenStore) Validate(token, requestIP string) bool {
	if token == "" {
		return false
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	tokens := ts.load()
	if ts.sweep(tokens) {
		if err := ts.save(tokens); err != nil {
			logWarn("Failed to persist token sweep: %v", err)
		}
	}

	info, ok := tokens[token]
	if !ok {
		return false
	}
	if info.IP != "" && info.IP != requestIP {
		logWarn("Token IP mismatch: issued to %s, presented from %s", info.IP, requestIP)
		return false
	}
	return info.Expires >= ts.now().Unix()
}

// sweep removes expired entries in place and reports whether any were removed.
func (ts *TokenStore) sweep(tokens map[string]TokenInfo) bool {
	now := ts.now().Unix()
	changed := false
	for value, info := range tokens {
		if info.Expires < now {
			delete(tokens, value)
			changed = true
		}
	}
	return changed
}

// load reads the token document, treating a missing or corrupt file as empty.
func (ts *TokenStore) load() map[string]TokenInfo {
	data, err := os.ReadFile(ts.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			logWarn("Failed to read token store %s: %v", ts.Path, err)
		}
		return map[string]TokenInfo{}
	}
	var tokens map[string]TokenInfo
	if err := json.Unmarshal(data, &tokens); err != nil || tokens == nil {
		logWarn("Token store %s is corrupt, starting empty: %v", ts.Path, err)
		return map[string]TokenInfo{}
	}
	return tokens
}

func (ts *TokenStore) save(tokens map[string]TokenInfo) error {
	if err := os.MkdirAll(filepath.Dir(ts.Path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(ts.Path, data, 0644)
}
