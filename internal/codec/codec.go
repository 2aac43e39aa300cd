// Package codec turns plaintext item content into encrypted, signed wire
// form and back. It is a pure transformation: all key and verification
// material is passed in, no I/O happens here.
//
// Layout of one encoded item:
//
//   - Content: AES-GCM over the versioned content envelope, under a
//     subkey derived from the item key ("content").
//   - Overview: AES-GCM over type+title, under a subkey derived from the
//     vault key ("overview"), so list views never need the item key.
//   - UserSignature: detached Ed25519 signature by the author's address
//     key over the content ciphertext.
//   - ItemKeySignature: HMAC-SHA256 tag keyed by the item key over the
//     same ciphertext, proving the author held the vault's key material.
package codec

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/cryptox"
	"github.com/dmitrijs2005/passvault/internal/models"
)

const (
	subKeyInfoContent  = "content"
	subKeyInfoOverview = "overview"
)

var ErrKeyCannotEncrypt = errors.New("key pair has no encryption capability")

// EncodedItem is the output of Encode: everything a create/update
// request needs besides the concurrency token.
type EncodedItem struct {
	ContentFormatVersion int
	Rotation             int64
	Content              []byte
	ContentNonce         []byte
	Overview             []byte
	OverviewNonce        []byte
	UserSignature        []byte
	ItemKeySignature     []byte
	SignatureEmail       string
}

type Codec struct{}

func New() *Codec {
	return &Codec{}
}

// Encode encrypts and signs content under the given key pair. The
// written schema version is always the current one; older versions exist
// only on the decode path.
func (c *Codec) Encode(content models.Content, kp models.KeyPair, signer models.SigningContext) (*EncodedItem, error) {
	if !kp.CanEncrypt {
		return nil, ErrKeyCannotEncrypt
	}

	contentKey, err := cryptox.DeriveSubKey(kp.ItemKey, subKeyInfoContent)
	if err != nil {
		return nil, fmt.Errorf("deriving content key: %w", err)
	}
	overviewKey, err := cryptox.DeriveSubKey(kp.VaultKey, subKeyInfoOverview)
	if err != nil {
		return nil, fmt.Errorf("deriving overview key: %w", err)
	}

	ct, ctNonce, err := cryptox.EncryptJSON(content, contentKey)
	if err != nil {
		return nil, fmt.Errorf("encrypting content: %w", err)
	}

	ov, ovNonce, err := cryptox.EncryptJSON(content.Overview(), overviewKey)
	if err != nil {
		return nil, fmt.Errorf("encrypting overview: %w", err)
	}

	sig, err := cryptox.Sign(signer.PrivateKey, ct)
	if err != nil {
		return nil, fmt.Errorf("signing content: %w", err)
	}

	return &EncodedItem{
		ContentFormatVersion: common.ContentFormatVersion,
		Rotation:             kp.Rotation,
		Content:              ct,
		ContentNonce:         ctNonce,
		Overview:             ov,
		OverviewNonce:        ovNonce,
		UserSignature:        sig,
		ItemKeySignature:     cryptox.KeyTag(kp.ItemKey, ct),
		SignatureEmail:       signer.Email,
	}, nil
}

// Decode verifies and decrypts one wire revision. Order matters:
// signatures are checked before any plaintext is produced, and a
// verification failure is fatal for the revision. verifyKeys must be the
// public keys fetched for the revision's claimed signer email.
func (c *Codec) Decode(rev models.ItemRevision, kp models.KeyPair, verifyKeys [][]byte) (models.Content, error) {
	if kp.Rotation != rev.Rotation {
		return models.Content{}, fmt.Errorf("key rotation %d does not match revision rotation %d: %w",
			kp.Rotation, rev.Rotation, common.ErrKeyNotFound)
	}

	if !cryptox.VerifyKeyTag(kp.ItemKey, rev.Content, rev.ItemKeySignature) {
		return models.Content{}, fmt.Errorf("item key tag for item %s: %w", rev.ItemID, common.ErrSignatureVerification)
	}
	if err := cryptox.VerifyAny(verifyKeys, rev.Content, rev.UserSignature); err != nil {
		return models.Content{}, fmt.Errorf("user signature for item %s by %s: %w",
			rev.ItemID, rev.SignatureEmail, common.ErrSignatureVerification)
	}

	contentKey, err := cryptox.DeriveSubKey(kp.ItemKey, subKeyInfoContent)
	if err != nil {
		return models.Content{}, fmt.Errorf("deriving content key: %w", err)
	}

	var raw json.RawMessage
	if err := cryptox.DecryptJSON(rev.Content, rev.ContentNonce, contentKey, &raw); err != nil {
		return models.Content{}, fmt.Errorf("decrypting content of item %s: %w", rev.ItemID, err)
	}

	return parseContent(rev.ContentFormatVersion, raw)
}

// DecodeOverview decrypts only the list-view part (type and title) of a
// revision, which needs the vault key but not the item key.
func (c *Codec) DecodeOverview(rev models.ItemRevision, kp models.KeyPair) (models.Overview, error) {
	overviewKey, err := cryptox.DeriveSubKey(kp.VaultKey, subKeyInfoOverview)
	if err != nil {
		return models.Overview{}, fmt.Errorf("deriving overview key: %w", err)
	}

	var ov models.Overview
	if err := cryptox.DecryptJSON(rev.Overview, rev.OverviewNonce, overviewKey, &ov); err != nil {
		return models.Overview{}, fmt.Errorf("decrypting overview of item %s: %w", rev.ItemID, err)
	}
	return ov, nil
}

// parseContent applies version-specific decoding rules to the decrypted
// plaintext. Unknown versions fail hard rather than best-effort parse.
func parseContent(version int, raw json.RawMessage) (models.Content, error) {
	switch version {
	case 1:
		return parseContentV1(raw)
	case 2:
		var content models.Content
		if err := json.Unmarshal(raw, &content); err != nil {
			return models.Content{}, fmt.Errorf("parsing content v2: %w", err)
		}
		return content, nil
	default:
		return models.Content{}, fmt.Errorf("version %d: %w", version, common.ErrUnsupportedContentVersion)
	}
}

// contentV1 is the legacy flat schema: no custom metadata, no package
// associations, and at most one login URL carried in a plain field.
type contentV1 struct {
	Type     models.ItemType `json:"type"`
	Title    string          `json:"title"`
	Note     string          `json:"note"`
	Username string          `json:"username,omitempty"`
	Password string          `json:"password,omitempty"`
	URL      string          `json:"url,omitempty"`
}

func parseContentV1(raw json.RawMessage) (models.Content, error) {
	var legacy contentV1
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return models.Content{}, fmt.Errorf("parsing content v1: %w", err)
	}

	content := models.Content{
		Type:  legacy.Type,
		Title: legacy.Title,
		Note:  legacy.Note,
	}

	var details models.TypedDetails
	switch legacy.Type {
	case models.ItemTypeLogin:
		details = models.Login{Username: legacy.Username, Password: legacy.Password}
		if legacy.URL != "" {
			content.Websites = []string{legacy.URL}
		}
	case models.ItemTypeNote:
		details = models.Note{}
	case models.ItemTypeAlias:
		details = models.Alias{}
	case models.ItemTypeCreditCard:
		details = models.CreditCard{}
	default:
		return models.Content{}, fmt.Errorf("v1 content with unknown type %q: %w",
			legacy.Type, common.ErrUnsupportedContentVersion)
	}

	b, err := json.Marshal(details)
	if err != nil {
		return models.Content{}, err
	}
	content.Details = b
	return content, nil
}
