// Package reconcile turns wire revisions into local cache entities and
// cache entities into decrypted domain items. Nothing is ever persisted
// without having passed signature verification and decryption first.
package reconcile

import (
	"fmt"

	"github.com/dmitrijs2005/passvault/internal/codec"
	"github.com/dmitrijs2005/passvault/internal/models"
)

type Reconciler struct {
	codec *codec.Codec
}

func New(c *codec.Codec) *Reconciler {
	return &Reconciler{codec: c}
}

// ToEntity validates one wire revision against the vault's key material
// and materializes the local entity. Decode runs first: if the revision
// cannot be verified and decrypted it never becomes a row. The mapping
// is deterministic, so re-applying the same revision is idempotent.
func (r *Reconciler) ToEntity(vaultID string, rev models.ItemRevision, kp models.KeyPair, verifyKeys [][]byte) (*models.Item, error) {
	content, err := r.codec.Decode(rev, kp, verifyKeys)
	if err != nil {
		return nil, fmt.Errorf("validating revision %d of item %s: %w", rev.Revision, rev.ItemID, err)
	}

	// Classifying the type must succeed too; a revision whose content
	// cannot be typed is as unreadable as one that fails to decrypt.
	if _, err := content.Unwrap(); err != nil {
		return nil, fmt.Errorf("classifying item %s: %w", rev.ItemID, err)
	}

	return &models.Item{
		VaultID:              vaultID,
		ItemID:               rev.ItemID,
		Revision:             rev.Revision,
		Rotation:             rev.Rotation,
		ContentFormatVersion: rev.ContentFormatVersion,
		Content:              rev.Content,
		ContentNonce:         rev.ContentNonce,
		Overview:             rev.Overview,
		OverviewNonce:        rev.OverviewNonce,
		UserSignature:        rev.UserSignature,
		ItemKeySignature:     rev.ItemKeySignature,
		State:                rev.State,
		SignatureEmail:       rev.SignatureEmail,
		CreateTime:           rev.CreateTime,
		ModifyTime:           rev.ModifyTime,
	}, nil
}

// ToDomain decrypts a cached entity into its domain form.
func (r *Reconciler) ToDomain(item *models.Item, kp models.KeyPair, verifyKeys [][]byte) (*models.DecryptedItem, error) {
	content, err := r.codec.Decode(RevisionFromEntity(item), kp, verifyKeys)
	if err != nil {
		return nil, fmt.Errorf("decrypting cached item %s: %w", item.ItemID, err)
	}

	return &models.DecryptedItem{
		VaultID:    item.VaultID,
		ItemID:     item.ItemID,
		Revision:   item.Revision,
		State:      item.State,
		Content:    content,
		CreateTime: item.CreateTime,
		ModifyTime: item.ModifyTime,
	}, nil
}

// RevisionFromEntity rebuilds the wire form of a cached entity, e.g. to
// re-run decoding or to seed request payloads.
func RevisionFromEntity(item *models.Item) models.ItemRevision {
	return models.ItemRevision{
		ItemID:               item.ItemID,
		Revision:             item.Revision,
		ContentFormatVersion: item.ContentFormatVersion,
		Rotation:             item.Rotation,
		Content:              item.Content,
		ContentNonce:         item.ContentNonce,
		Overview:             item.Overview,
		OverviewNonce:        item.OverviewNonce,
		UserSignature:        item.UserSignature,
		ItemKeySignature:     item.ItemKeySignature,
		State:                item.State,
		SignatureEmail:       item.SignatureEmail,
		CreateTime:           item.CreateTime,
		ModifyTime:           item.ModifyTime,
	}
}
