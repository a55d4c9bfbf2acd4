package cooldown

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	t0 := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)

	t.Run("window boundary is strict", func(t *testing.T) {
		s := NewInMemoryStore(12 * time.Hour)
		p := id.NewPrincipalID()
		require.NoError(t, s.Acquire(ctx, p, t0))

		err := s.Acquire(ctx, p, t0.Add(12*time.Hour))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeCooldownActive))
		assert.NoError(t, s.Acquire(ctx, p, t0.Add(12*time.Hour+time.Nanosecond)))
	})

	t.Run("proposers are independent", func(t *testing.T) {
		s := NewInMemoryStore(time.Hour)
		require.NoError(t, s.Acquire(ctx, id.NewPrincipalID(), t0))
		assert.NoError(t, s.Acquire(ctx, id.NewPrincipalID(), t0))
	})

	t.Run("release frees only the matching acquire", func(t *testing.T) {
		s := NewInMemoryStore(time.Hour)
		p := id.NewPrincipalID()
		require.NoError(t, s.Acquire(ctx, p, t0))
		require.NoError(t, s.Release(ctx, p, t0.Add(time.Minute)))
		assert.Error(t, s.Acquire(ctx, p, t0.Add(2*time.Minute)))

		require.NoError(t, s.Release(ctx, p, t0))
		assert.NoError(t, s.Acquire(ctx, p, t0.Add(2*time.Minute)))
	})

	t.Run("non-positive window falls back to default", func(t *testing.T) {
		s := NewInMemoryStore(0)
		p := id.NewPrincipalID()
		require.NoError(t, s.Acquire(ctx, p, t0))
		assert.Error(t, s.Acquire(ctx, p, t0.Add(DefaultWindow)))
	})
}
