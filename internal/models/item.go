package models

import "time"

// ItemState is the lifecycle state of an item. The state machine is
// Active -> Trashed -> deleted; Trashed -> Active is the only reverse
// transition.
type ItemState int

const (
	ItemStateActive  ItemState = 1
	ItemStateTrashed ItemState = 2
)

// Item is the locally cached form of one item revision: ciphertext plus
// enough metadata to resolve keys and detect conflicts. It is written
// only from server-confirmed revisions (with the single documented
// exception of the optimistic untrash flip).
type Item struct {
	VaultID              string
	ItemID               string
	Revision             int64
	Rotation             int64
	ContentFormatVersion int
	Content              []byte
	ContentNonce         []byte
	Overview             []byte
	OverviewNonce        []byte
	UserSignature        []byte
	ItemKeySignature     []byte
	State                ItemState
	SignatureEmail       string
	CreateTime           time.Time
	ModifyTime           time.Time
}

// DecryptedItem is the materialized, verified form handed to callers:
// entity metadata plus decrypted content.
type DecryptedItem struct {
	VaultID    string
	ItemID     string
	Revision   int64
	State      ItemState
	Content    Content
	CreateTime time.Time
	ModifyTime time.Time
}

// ItemRevision is the wire form of one server-confirmed item state.
// One Item entity is the locally persisted materialization of one
// ItemRevision plus the vault's key set at processing time.
type ItemRevision struct {
	ItemID               string    `json:"item_id"`
	Revision             int64     `json:"revision"`
	ContentFormatVersion int       `json:"content_format_version"`
	Rotation             int64     `json:"rotation"`
	Content              []byte    `json:"content"`
	ContentNonce         []byte    `json:"content_nonce"`
	Overview             []byte    `json:"overview"`
	OverviewNonce        []byte    `json:"overview_nonce"`
	UserSignature        []byte    `json:"user_signature"`
	ItemKeySignature     []byte    `json:"item_key_signature"`
	State                ItemState `json:"state"`
	SignatureEmail       string    `json:"signature_email"`
	CreateTime           time.Time `json:"create_time"`
	ModifyTime           time.Time `json:"modify_time"`
}

// VaultEvents is one batch of the remote change log for a vault:
// upserts, deletions, and the cursor to resume from next time.
type VaultEvents struct {
	UpdatedItems   []ItemRevision `json:"updated_items"`
	DeletedItemIDs []string       `json:"deleted_item_ids"`
	LatestEventID  string         `json:"latest_event_id"`
	EventsPending  bool           `json:"events_pending"`
}
