package apikey

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sahilchouksey/college-explorer-api/model"
	"github.com/sahilchouksey/college-explorer-api/utils/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	provider := cache.NewClientProvider("redis://" + mr.Addr())
	t.Cleanup(func() { _ = provider.Close() })
	return NewService(provider), mr
}

func TestGenerateAndLookup(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	k, err := svc.Generate(ctx, "")
	require.NoError(t, err)
	assert.Regexp(t, `^cei_[0-9a-f]{32}$`, k.Key)
	assert.Equal(t, model.TierFree, k.Tier)

	info, err := svc.Lookup(ctx, k.Key)
	require.NoError(t, err)
	assert.True(t, info.Active)

	_, err = svc.Lookup(ctx, "cei_missing")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = svc.Generate(ctx, "platinum")
	assert.ErrorIs(t, err, ErrUnknownTier)
}

func TestDeactivate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	k, err := svc.Generate(ctx, model.TierPro)
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(ctx, k.Key))

	info, err := svc.Lookup(ctx, k.Key)
	assert.ErrorIs(t, err, ErrInactiveKey)
	assert.Equal(t, model.TierPro, info.Tier)

	assert.ErrorIs(t, svc.Deactivate(ctx, "cei_nope"), ErrInvalidKey)

	keys, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.False(t, keys[0].Active)
}

func TestConsumeEnforcesTierBudget(t *testing.T) {
	svc, mr := newService(t)
	ctx := context.Background()

	original := model.TierLimits[model.TierFree]
	model.TierLimits[model.TierFree] = model.RateLimit{WindowSeconds: 60, Max: 2}
	t.Cleanup(func() { model.TierLimits[model.TierFree] = original })

	u, err := svc.Consume(ctx, "cei_a", model.TierFree)
	require.NoError(t, err)
	assert.Equal(t, 1, u.Remaining)
	assert.Equal(t, 60*time.Second, mr.TTL("usage:cei_a"))

	u, err = svc.Consume(ctx, "cei_a", model.TierFree)
	require.NoError(t, err)
	assert.False(t, u.Exceeded)
	assert.Equal(t, 0, u.Remaining)

	u, err = svc.Consume(ctx, "cei_a", model.TierFree)
	require.NoError(t, err)
	assert.True(t, u.Exceeded)
	assert.Equal(t, 60*time.Second, u.RetryAfter)

	mr.FastForward(61 * time.Second)
	u, err = svc.Consume(ctx, "cei_a", model.TierFree)
	require.NoError(t, err)
	assert.False(t, u.Exceeded)
}

func TestConsumeEnterpriseIsUnlimited(t *testing.T) {
	svc, mr := newService(t)
	u, err := svc.Consume(context.Background(), "cei_big", model.TierEnterprise)
	require.NoError(t, err)
	assert.True(t, u.Unlimited)
	assert.False(t, mr.Exists("usage:cei_big"))
}
