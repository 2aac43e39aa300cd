// Package session loads the material established at login (tokens,
// vault list, key pairs, address keys) from a JSON file and exposes it
// through the provider interfaces the sync core consumes.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/models"
)

type keyPairJSON struct {
	Rotation   int64  `json:"rotation"`
	VaultKey   []byte `json:"vault_key"`
	ItemKey    []byte `json:"item_key"`
	CanEncrypt bool   `json:"can_encrypt"`
}

type vaultJSON struct {
	VaultID         string        `json:"vault_id"`
	AddressID       string        `json:"address_id"`
	SigningKeyID    string        `json:"signing_key_id"`
	CurrentRotation int64         `json:"current_rotation"`
	KeyPairs        []keyPairJSON `json:"key_pairs"`
}

type sessionJSON struct {
	AccessToken  string              `json:"access_token"`
	RefreshToken string              `json:"refresh_token"`
	UserID       string              `json:"user_id"`
	AuthorEmail  string              `json:"author_email"`
	SigningKey   []byte              `json:"signing_key"`
	Vaults       []vaultJSON         `json:"vaults"`
	PublicKeys   map[string][][]byte `json:"public_keys"`
}

// Session is the in-memory form of one login's material. It implements
// keys.VaultKeyProvider and keys.AddressKeyProvider.
type Session struct {
	AccessToken  string
	RefreshToken string
	UserID       string

	authorEmail string
	signingKey  []byte
	vaults      []models.Vault
	pairs       map[string]map[int64]models.KeyPair
	publicKeys  map[string][]models.PublicKey
}

// Load reads and validates a session file.
func Load(path string) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	var sj sessionJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return nil, fmt.Errorf("parsing session file: %w", err)
	}
	if sj.UserID == "" || len(sj.Vaults) == 0 {
		return nil, fmt.Errorf("session file %s is incomplete", path)
	}

	s := &Session{
		AccessToken:  sj.AccessToken,
		RefreshToken: sj.RefreshToken,
		UserID:       sj.UserID,
		authorEmail:  sj.AuthorEmail,
		signingKey:   sj.SigningKey,
		pairs:        make(map[string]map[int64]models.KeyPair),
		publicKeys:   make(map[string][]models.PublicKey),
	}

	for _, v := range sj.Vaults {
		s.vaults = append(s.vaults, models.Vault{
			VaultID:         v.VaultID,
			UserID:          sj.UserID,
			AddressID:       v.AddressID,
			SigningKeyID:    v.SigningKeyID,
			CurrentRotation: v.CurrentRotation,
		})
		byRotation := make(map[int64]models.KeyPair, len(v.KeyPairs))
		for _, kp := range v.KeyPairs {
			byRotation[kp.Rotation] = models.KeyPair{
				Rotation:   kp.Rotation,
				VaultKey:   kp.VaultKey,
				ItemKey:    kp.ItemKey,
				CanEncrypt: kp.CanEncrypt,
			}
		}
		s.pairs[v.VaultID] = byRotation
	}

	for email, raw := range sj.PublicKeys {
		for _, key := range raw {
			s.publicKeys[email] = append(s.publicKeys[email], models.PublicKey{Email: email, Key: key})
		}
	}

	return s, nil
}

// Vaults returns the vaults this session has key material for.
func (s *Session) Vaults() []models.Vault {
	return s.vaults
}

func (s *Session) GetKeyPairByRotation(ctx context.Context, vault models.Vault, rotation int64) (models.KeyPair, error) {
	kp, ok := s.pairs[vault.VaultID][rotation]
	if !ok {
		return models.KeyPair{}, fmt.Errorf("vault %s rotation %d: %w", vault.VaultID, rotation, common.ErrKeyNotFound)
	}
	return kp, nil
}

func (s *Session) GetLatestKeyPair(ctx context.Context, vault models.Vault) (models.KeyPair, error) {
	return s.GetKeyPairByRotation(ctx, vault, vault.CurrentRotation)
}

func (s *Session) GetPublicKeysForEmail(ctx context.Context, userID, email string) ([]models.PublicKey, error) {
	pks, ok := s.publicKeys[email]
	if !ok {
		return nil, fmt.Errorf("address %s: %w", email, common.ErrKeyNotFound)
	}
	return pks, nil
}

func (s *Session) GetAuthorSigningContext(ctx context.Context, userID string) (models.SigningContext, error) {
	if len(s.signingKey) == 0 {
		return models.SigningContext{}, fmt.Errorf("no signing key in session: %w", common.ErrKeyNotFound)
	}
	return models.SigningContext{Email: s.authorEmail, PrivateKey: s.signingKey}, nil
}
