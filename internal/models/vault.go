// Package models defines the domain model shared by the key resolver,
// codec, repositories and the sync engine: vaults, key pairs, items in
// both entity and wire form, and the item content union.
package models

// Vault identifies one share: a named collection of items with its own
// key-rotation history. SigningKeyID authorizes key lookups against the
// key provider; CurrentRotation is an informational hint only and must
// never substitute for asking the provider for the latest pair.
type Vault struct {
	VaultID         string
	UserID          string
	AddressID       string
	SigningKeyID    string
	CurrentRotation int64
}

// KeyPair is one generation of a vault's key material. VaultKey encrypts
// item overviews (type and title), ItemKey encrypts full item content.
// Pairs are immutable once issued; resolution is by exact rotation.
// CanEncrypt is false for read-only key material (e.g. keys shared into
// a vault the user may not write to).
type KeyPair struct {
	Rotation   int64
	VaultKey   []byte
	ItemKey    []byte
	CanEncrypt bool
}

// PublicKey is one verification key attached to an address, identified
// by the email it was fetched for.
type PublicKey struct {
	Email string
	Key   []byte
}

// SigningContext carries what the codec needs to author a signed
// revision: the signer's email and Ed25519 private key.
type SigningContext struct {
	Email      string
	PrivateKey []byte
}
