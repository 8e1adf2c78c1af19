package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSessionStore_CreateResolveRevoke(t *testing.T) {
	s := NewSessionStore(NewMemoryKV(), 0)
	ctx := context.Background()

	token, err := s.Create(ctx, Operator{OperatorID: "op-1", Email: "operator@flexavolt.local"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	op, err := s.Resolve(ctx, token)
	require.NoError(t, err)
	require.Equal(t, "op-1", op.OperatorID)
	require.Equal(t, "operator@flexavolt.local", op.Email)

	require.NoError(t, s.Revoke(ctx, token))
	_, err = s.Resolve(ctx, token)
	require.ErrorIs(t, err, ErrSessionMiss)
}

func TestSessionStore_UnknownToken(t *testing.T) {
	s := NewSessionStore(NewMemoryKV(), 0)
	_, err := s.Resolve(context.Background(), "no-such-token")
	require.ErrorIs(t, err, ErrSessionMiss)
}

func TestSessionStore_TTLExpiry(t *testing.T) {
	s := NewSessionStore(NewMemoryKV(), 5*time.Millisecond)
	ctx := context.Background()

	token, err := s.Create(ctx, Operator{OperatorID: "op-1"})
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = s.Resolve(ctx, token)
	require.ErrorIs(t, err, ErrSessionMiss)
}

func TestMemoryKV_TTL(t *testing.T) {
	kv := NewMemoryKV()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "k", "v", 0))
	got, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", got)

	require.NoError(t, kv.Set(ctx, "short", "v", time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, err = kv.Get(ctx, "short")
	require.ErrorIs(t, err, ErrMiss)
}
