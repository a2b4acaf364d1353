package shared

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryIdempotency struct {
	keys map[string]string
}

func (m *memoryIdempotency) CheckAndInsert(_ context.Context, key, module string) error {
	if _, ok := m.keys[key]; ok {
		return ErrIdempotencyConflict
	}
	m.keys[key] = module
	return nil
}

func (m *memoryIdempotency) Delete(_ context.Context, key string) error {
	delete(m.keys, key)
	return nil
}

func TestRunOnce(t *testing.T) {
	ctx := context.Background()
	store := &memoryIdempotency{keys: map[string]string{}}
	calls := 0
	fn := func() error { calls++; return nil }

	require.NoError(t, RunOnce(ctx, store, "k1", "sales", fn))
	err := RunOnce(ctx, store, "k1", "sales", fn)
	require.ErrorIs(t, err, ErrConflict)
	require.Equal(t, 1, calls)

	boom := errors.New("boom")
	require.ErrorIs(t, RunOnce(ctx, store, "k2", "sales", func() error { return boom }), boom)
	require.NotContains(t, store.keys, "k2")

	require.NoError(t, RunOnce(ctx, nil, "k1", "sales", fn))
	require.NoError(t, RunOnce(ctx, store, "", "sales", fn))
	require.Equal(t, 3, calls)
}

func TestParseIdempotencyKey(t *testing.T) {
	key, err := ParseIdempotencyKey("6F9619FF-8B86-D011-B42D-00C04FC964FF")
	require.NoError(t, err)
	require.Equal(t, "6f9619ff-8b86-d011-b42d-00c04fc964ff", key)

	_, err = ParseIdempotencyKey("not-a-key")
	require.ErrorIs(t, err, ErrValidation)
}
