// Package cryptox implements the raw cryptographic capability consumed
// by the item codec: AES-GCM content encryption with HKDF-derived
// subkeys, Ed25519 detached signatures for authorship, and an
// HMAC-SHA256 key-possession tag bound to the item key.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const NonceSize = 12

var ErrBadSignature = errors.New("cryptox: signature does not verify")

// DeriveSubKey expands a raw 32-byte key into a purpose-bound AES key
// using HKDF-SHA256. Distinct info strings ("overview", "content")
// guarantee the same vault key never encrypts two domains with the same
// key stream.
func DeriveSubKey(key []byte, info string) ([]byte, error) {
	out := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, nil, []byte(info)), out); err != nil {
		return nil, err
	}
	return out, nil
}

// EncryptJSON serializes v to JSON and encrypts it with AES-GCM under
// the given key. A fresh random 12-byte nonce is generated per call and
// returned alongside the ciphertext.
func EncryptJSON(v any, key []byte) (ciphertext, nonce []byte, err error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, err
	}

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	ciphertext = aesgcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

// DecryptJSON decrypts an AES-GCM ciphertext produced by EncryptJSON and
// unmarshals the plaintext into v.
func DecryptJSON(ciphertext, nonce, key []byte, v any) error {
	aesgcm, err := newGCM(key)
	if err != nil {
		return err
	}

	plaintext, err := aesgcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return err
	}

	return json.Unmarshal(plaintext, v)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Sign produces a detached Ed25519 signature over msg.
func Sign(privateKey, msg []byte) ([]byte, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, errors.New("cryptox: invalid ed25519 private key size")
	}
	return ed25519.Sign(ed25519.PrivateKey(privateKey), msg), nil
}

// VerifyAny checks the signature against every candidate public key and
// succeeds if any of them verifies. Returns ErrBadSignature otherwise.
// An address may legitimately hold several keys, so "any" is the
// correct quantifier.
func VerifyAny(publicKeys [][]byte, msg, sig []byte) error {
	for _, pub := range publicKeys {
		if len(pub) != ed25519.PublicKeySize {
			continue
		}
		if ed25519.Verify(ed25519.PublicKey(pub), msg, sig) {
			return nil
		}
	}
	return ErrBadSignature
}

// KeyTag computes the HMAC-SHA256 key-possession tag over msg. It proves
// the author held the item key, independently of the address signature.
func KeyTag(key, msg []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(msg)
	return mac.Sum(nil)
}

// VerifyKeyTag checks a tag produced by KeyTag in constant time.
func VerifyKeyTag(key, msg, tag []byte) bool {
	return hmac.Equal(KeyTag(key, msg), tag)
}
