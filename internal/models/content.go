package models

import (
	"encoding/json"
	"errors"
	"net"
	"net/url"
	"strings"
)

// ItemType classifies an item kind.
type ItemType string

const (
	ItemTypeLogin      ItemType = "login"
	ItemTypeNote       ItemType = "note"
	ItemTypeAlias      ItemType = "alias"
	ItemTypeCreditCard ItemType = "credit_card"
)

var ErrIncorrectMetadata = errors.New("metadata item must be name=value")

// Metadata is a simple key/value pair (custom item fields).
type Metadata struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func MetadataFromString(s []string) ([]Metadata, error) {
	data := make([]Metadata, len(s))
	for n, item := range s {
		parts := strings.SplitN(item, "=", 2)
		if len(parts) != 2 {
			return nil, ErrIncorrectMetadata
		}
		data[n] = Metadata{Name: parts[0], Value: parts[1]}
	}
	return data, nil
}

// Overview is the part of an item visible in list views. It is encrypted
// separately from the full content so listing never needs the item key.
type Overview struct {
	Type  ItemType `json:"type"`
	Title string   `json:"title"`
}

// Content is the full plaintext payload of one item: common fields plus
// a type-tagged Details blob. PackageNames and Websites carry autofill
// associations (Android package ids and login URLs).
type Content struct {
	Type         ItemType        `json:"type"`
	Title        string          `json:"title"`
	Note         string          `json:"note"`
	Metadata     []Metadata      `json:"metadata,omitempty"`
	PackageNames []string        `json:"package_names,omitempty"`
	Websites     []string        `json:"websites,omitempty"`
	Details      json.RawMessage `json:"details"`
}

// Wrap builds a Content envelope around a typed details value.
func Wrap[T TypedDetails](title, note string, md []Metadata, v T) (Content, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Content{}, err
	}
	return Content{Type: v.GetType(), Title: title, Note: note, Metadata: md, Details: b}, nil
}

// Unwrap decodes Details into the concrete type named by Type. Unknown
// types yield an error: the union is closed and every arm is handled
// explicitly here and in the codec.
func (c Content) Unwrap() (TypedDetails, error) {
	switch c.Type {
	case ItemTypeLogin:
		var v Login
		return v, json.Unmarshal(c.Details, &v)
	case ItemTypeNote:
		var v Note
		return v, json.Unmarshal(c.Details, &v)
	case ItemTypeAlias:
		var v Alias
		return v, json.Unmarshal(c.Details, &v)
	case ItemTypeCreditCard:
		var v CreditCard
		return v, json.Unmarshal(c.Details, &v)
	default:
		return nil, errors.New("unknown item type: " + string(c.Type))
	}
}

func (c Content) Overview() Overview {
	return Overview{Type: c.Type, Title: c.Title}
}

// HasPackage reports whether the given application package id is already
// associated with this content. Packages match by exact string.
func (c Content) HasPackage(packageName string) bool {
	for _, p := range c.PackageNames {
		if p == packageName {
			return true
		}
	}
	return false
}

// HasWebsite reports whether the given URL is already associated with
// this content. URLs match by host; two explicit ports must be equal,
// while an absent port matches any port.
func (c Content) HasWebsite(rawURL string) bool {
	for _, w := range c.Websites {
		if websitesMatch(w, rawURL) {
			return true
		}
	}
	return false
}

// websitesMatch compares two URLs for autofill purposes. Hosts compare
// case-insensitively. A port present on both sides must be identical;
// a side with no explicit port matches whatever port the other uses.
func websitesMatch(a, b string) bool {
	ha, pa, ok := splitURLHostPort(a)
	if !ok {
		return false
	}
	hb, pb, ok := splitURLHostPort(b)
	if !ok {
		return false
	}
	if !strings.EqualFold(ha, hb) {
		return false
	}
	if pa != "" && pb != "" && pa != pb {
		return false
	}
	return true
}

func splitURLHostPort(raw string) (host, port string, ok bool) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "", "", false
	}
	host, port, err = net.SplitHostPort(u.Host)
	if err != nil {
		// No explicit port.
		return u.Host, "", true
	}
	return host, port, true
}

// TypedDetails is implemented by every member of the item content union.
type TypedDetails interface {
	GetType() ItemType
}

// Login stores credentials.
type Login struct {
	Username string `json:"username"`
	Password string `json:"password"`
	TOTPURI  string `json:"totp_uri,omitempty"`
}

func (x Login) GetType() ItemType { return ItemTypeLogin }

// Note has no fields beyond the envelope's note text.
type Note struct{}

func (x Note) GetType() ItemType { return ItemTypeNote }

// Alias stores a forwarding email address and its mailboxes.
type Alias struct {
	AliasEmail string   `json:"alias_email"`
	Mailboxes  []string `json:"mailboxes,omitempty"`
}

func (x Alias) GetType() ItemType { return ItemTypeAlias }

// CreditCard stores payment card details.
type CreditCard struct {
	Number     string `json:"number"`
	Expiration string `json:"expiration"`
	CVV        string `json:"cvv"`
	Holder     string `json:"holder"`
	PIN        string `json:"pin,omitempty"`
}

func (x CreditCard) GetType() ItemType { return ItemTypeCreditCard }
