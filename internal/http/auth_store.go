package httpapi

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// OperatorAccount is one operator login. Operators are the human identity
// behind unit actions; fixtures and print agents use shared tokens instead.
type OperatorAccount struct {
	OperatorID   string
	Email        string
	PasswordHash string
}

// OperatorStore is a minimal in-memory credential DB for dev mode. A real
// deployment resolves operators against the company directory; the MES
// only needs "email + password -> operator id".
type OperatorStore struct {
	mu      sync.RWMutex
	byEmail map[string]OperatorAccount
}

func NewOperatorStore() *OperatorStore {
	return &OperatorStore{byEmail: map[string]OperatorAccount{}}
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// HashPassword hashes password only, independent of the account.
func HashPassword(password string) string {
	return sha256Hex(password)
}

func (s *OperatorStore) Upsert(email, password string) OperatorAccount {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := normalizeEmail(email)
	acc, ok := s.byEmail[key]
	if !ok {
		acc = OperatorAccount{OperatorID: uuid.NewString(), Email: key}
	}
	acc.PasswordHash = HashPassword(password)
	s.byEmail[key] = acc
	return acc
}

func (s *OperatorStore) Authenticate(email, password string) (OperatorAccount, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.byEmail[normalizeEmail(email)]
	if !ok {
		return OperatorAccount{}, false
	}
	if acc.PasswordHash != HashPassword(password) {
		return OperatorAccount{}, false
	}
	return acc, true
}
