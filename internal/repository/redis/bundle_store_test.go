package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"soilsense/internal/testsupport"
	"soilsense/pkg/errors"
)

func TestBundleStore_SaveLoadCurrent(t *testing.T) {
	client := testsupport.NewRedisClient(t)
	store := NewBundleStore(client, "test:bundle")
	ctx := context.Background()

	_, err := store.Current(ctx)
	require.ErrorIs(t, err, errors.ErrNoModel)

	first := testsupport.NewTwoClusterBundle(t)
	require.NoError(t, store.Save(ctx, first))

	second := testsupport.NewTwoClusterBundle(t)
	second.CreatedAt = first.CreatedAt.Add(time.Minute)
	require.NoError(t, store.Save(ctx, second))

	current, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.Version, current)

	versions, err := store.Versions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{first.Version, second.Version}, versions)

	loaded, err := store.Load(ctx, first.Version)
	require.NoError(t, err)
	assert.Equal(t, first.Version, loaded.Version)
	assert.Equal(t, first.Model.Centers, loaded.Model.Centers)
	assert.Equal(t, first.Scaler.Mean, loaded.Scaler.Mean)
	assert.Equal(t, 2, loaded.K())
}

func TestBundleStore_LoadMissing(t *testing.T) {
	client := testsupport.NewRedisClient(t)
	store := NewBundleStore(client, "test:bundle")

	_, err := store.Load(context.Background(), "missing")
	require.ErrorIs(t, err, errors.ErrNotFound)
}

func TestBundleStore_RejectsMixedArtifacts(t *testing.T) {
	client := testsupport.NewRedisClient(t)
	store := NewBundleStore(client, "test:bundle")
	ctx := context.Background()

	a := testsupport.NewTwoClusterBundle(t)
	b := testsupport.NewTwoClusterBundle(t)
	require.NoError(t, store.Save(ctx, a))
	require.NoError(t, store.Save(ctx, b))

	// graft the model of b onto version a
	model, err := client.HGet(ctx, "test:bundle:"+b.Version, "model.json").Result()
	require.NoError(t, err)
	require.NoError(t, client.HSet(ctx, "test:bundle:"+a.Version, "model.json", model).Err())

	_, err = store.Load(ctx, a.Version)
	require.ErrorIs(t, err, errors.ErrArtifactMismatch)
}
