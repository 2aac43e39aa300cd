package keys

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/passvault/internal/models"
)

type cacheKey struct {
	vaultID  string
	rotation int64
}

// Resolver resolves (vault, rotation) to a key pair, caching results in
// memory. It is a pure lookup over the provider: no retries, no backoff;
// retry policy belongs to the caller.
//
// The cache is append-only. Concurrent misses for the same rotation may
// both hit the provider; last write wins, which is harmless because the
// pair for a rotation never changes.
type Resolver struct {
	provider VaultKeyProvider

	mu    sync.RWMutex
	cache map[cacheKey]models.KeyPair
}

func NewResolver(provider VaultKeyProvider) *Resolver {
	return &Resolver{
		provider: provider,
		cache:    make(map[cacheKey]models.KeyPair),
	}
}

// Resolve returns the key pair for an exact rotation. A rotation unknown
// to the vault surfaces the provider's common.ErrKeyNotFound; callers
// should treat that as "refresh vault metadata and retry once", never as
// a silent skip.
func (r *Resolver) Resolve(ctx context.Context, vault models.Vault, rotation int64) (models.KeyPair, error) {
	ck := cacheKey{vaultID: vault.VaultID, rotation: rotation}

	r.mu.RLock()
	kp, ok := r.cache[ck]
	r.mu.RUnlock()
	if ok {
		return kp, nil
	}

	kp, err := r.provider.GetKeyPairByRotation(ctx, vault, rotation)
	if err != nil {
		return models.KeyPair{}, fmt.Errorf("resolving key for vault %s rotation %d: %w", vault.VaultID, rotation, err)
	}

	r.put(ck, kp)
	return kp, nil
}

// ResolveLatest returns the pair for the vault's current rotation. It
// always asks the provider: a cached "latest" marker could go stale
// across a key rotation, and new writes must pick up the new rotation
// immediately. The returned pair is still cached under its rotation for
// later Resolve calls.
func (r *Resolver) ResolveLatest(ctx context.Context, vault models.Vault) (models.KeyPair, error) {
	kp, err := r.provider.GetLatestKeyPair(ctx, vault)
	if err != nil {
		return models.KeyPair{}, fmt.Errorf("resolving latest key for vault %s: %w", vault.VaultID, err)
	}

	r.put(cacheKey{vaultID: vault.VaultID, rotation: kp.Rotation}, kp)
	return kp, nil
}

func (r *Resolver) put(ck cacheKey, kp models.KeyPair) {
	r.mu.Lock()
	r.cache[ck] = kp
	r.mu.Unlock()
}
