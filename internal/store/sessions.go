package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrSessionMiss 会话不存在或已过期
var ErrSessionMiss = errors.New("session not found")

const sessionKeyPrefix = "mes:session:"

// Operator is the resolved identity behind an operator bearer token.
type Operator struct {
	OperatorID string `json:"operator_id"`
	Email      string `json:"email"`
}

// SessionStore issues and resolves operator bearer tokens. Backed by any
// KV so production uses Redis and dev mode/tests run without it.
type SessionStore struct {
	kv  KV
	ttl time.Duration
}

func NewSessionStore(kv KV, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionStore{kv: kv, ttl: ttl}
}

// Create issues a fresh opaque token for the operator.
func (s *SessionStore) Create(ctx context.Context, op Operator) (string, error) {
	raw, err := json.Marshal(op)
	if err != nil {
		return "", err
	}
	token := uuid.NewString()
	if err := s.kv.Set(ctx, sessionKeyPrefix+token, string(raw), s.ttl); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}
	return token, nil
}

// Resolve maps a bearer token back to its operator.
func (s *SessionStore) Resolve(ctx context.Context, token string) (*Operator, error) {
	raw, err := s.kv.Get(ctx, sessionKeyPrefix+token)
	if errors.Is(err, ErrMiss) {
		return nil, ErrSessionMiss
	}
	if err != nil {
		return nil, err
	}
	var op Operator
	if err := json.Unmarshal([]byte(raw), &op); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &op, nil
}

// Revoke drops the session. Resolving the token afterwards misses.
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	return s.kv.Del(ctx, sessionKeyPrefix+token)
}
