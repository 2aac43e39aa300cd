package keys

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/models"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	pairs map[int64]models.KeyPair
	// latest is returned by GetLatestKeyPair; mutable so tests can
	// simulate a rotation happening mid-session.
	latest int64

	byRotationCalls int
	latestCalls     int
}

func (f *fakeProvider) GetKeyPairByRotation(ctx context.Context, vault models.Vault, rotation int64) (models.KeyPair, error) {
	f.byRotationCalls++
	kp, ok := f.pairs[rotation]
	if !ok {
		return models.KeyPair{}, common.ErrKeyNotFound
	}
	return kp, nil
}

func (f *fakeProvider) GetLatestKeyPair(ctx context.Context, vault models.Vault) (models.KeyPair, error) {
	f.latestCalls++
	return f.pairs[f.latest], nil
}

func pair(rotation int64) models.KeyPair {
	return models.KeyPair{
		Rotation:   rotation,
		VaultKey:   []byte{byte(rotation), 1},
		ItemKey:    []byte{byte(rotation), 2},
		CanEncrypt: true,
	}
}

func testVault() models.Vault {
	return models.Vault{VaultID: "v1", UserID: "u1", AddressID: "a1"}
}

func TestResolve_CachesByRotation(t *testing.T) {
	p := &fakeProvider{pairs: map[int64]models.KeyPair{1: pair(1)}}
	r := NewResolver(p)

	kp, err := r.Resolve(context.Background(), testVault(), 1)
	require.NoError(t, err)
	require.Equal(t, pair(1), kp)

	kp, err = r.Resolve(context.Background(), testVault(), 1)
	require.NoError(t, err)
	require.Equal(t, pair(1), kp)

	require.Equal(t, 1, p.byRotationCalls, "second resolve must be served from cache")
}

func TestResolve_UnknownRotation(t *testing.T) {
	p := &fakeProvider{pairs: map[int64]models.KeyPair{}}
	r := NewResolver(p)

	_, err := r.Resolve(context.Background(), testVault(), 7)
	require.ErrorIs(t, err, common.ErrKeyNotFound)
}

func TestResolve_DistinctVaultsDoNotShareCache(t *testing.T) {
	p := &fakeProvider{pairs: map[int64]models.KeyPair{1: pair(1)}}
	r := NewResolver(p)

	_, err := r.Resolve(context.Background(), models.Vault{VaultID: "v1"}, 1)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), models.Vault{VaultID: "v2"}, 1)
	require.NoError(t, err)

	require.Equal(t, 2, p.byRotationCalls)
}

func TestResolveLatest_AlwaysAsksProvider(t *testing.T) {
	p := &fakeProvider{pairs: map[int64]models.KeyPair{1: pair(1), 2: pair(2)}, latest: 1}
	r := NewResolver(p)

	kp, err := r.ResolveLatest(context.Background(), testVault())
	require.NoError(t, err)
	require.EqualValues(t, 1, kp.Rotation)

	// The vault rotates; the very next write must see rotation 2.
	p.latest = 2
	kp, err = r.ResolveLatest(context.Background(), testVault())
	require.NoError(t, err)
	require.EqualValues(t, 2, kp.Rotation)

	require.Equal(t, 2, p.latestCalls)
}

func TestResolveLatest_PrimesRotationCache(t *testing.T) {
	p := &fakeProvider{pairs: map[int64]models.KeyPair{3: pair(3)}, latest: 3}
	r := NewResolver(p)

	_, err := r.ResolveLatest(context.Background(), testVault())
	require.NoError(t, err)

	_, err = r.Resolve(context.Background(), testVault(), 3)
	require.NoError(t, err)
	require.Equal(t, 0, p.byRotationCalls, "rotation fetched via latest must be cached")
}
