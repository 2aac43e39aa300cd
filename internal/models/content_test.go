package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapUnwrap(t *testing.T) {
	in := Login{Username: "u", Password: "p"}
	content, err := Wrap("title", "note", nil, in)
	require.NoError(t, err)
	require.Equal(t, ItemTypeLogin, content.Type)
	require.Equal(t, Overview{Type: ItemTypeLogin, Title: "title"}, content.Overview())

	out, err := content.Unwrap()
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestUnwrap_UnknownType(t *testing.T) {
	content := Content{Type: "mystery", Details: []byte(`{}`)}
	_, err := content.Unwrap()
	require.Error(t, err)
}

func TestMetadataFromString(t *testing.T) {
	md, err := MetadataFromString([]string{"env=prod", "team=core"})
	require.NoError(t, err)
	require.Equal(t, []Metadata{{Name: "env", Value: "prod"}, {Name: "team", Value: "core"}}, md)

	_, err = MetadataFromString([]string{"noequalsign"})
	require.ErrorIs(t, err, ErrIncorrectMetadata)
}

func TestHasPackage(t *testing.T) {
	c := Content{PackageNames: []string{"com.example.app"}}
	require.True(t, c.HasPackage("com.example.app"))
	require.False(t, c.HasPackage("com.example.other"))
	require.False(t, c.HasPackage("com.example"))
}

func TestHasWebsite_PortRules(t *testing.T) {
	tests := []struct {
		name      string
		stored    string
		candidate string
		want      bool
	}{
		{"same host no ports", "https://example.com", "https://example.com", true},
		{"absent port matches any", "https://example.com", "example.com:8080", true},
		{"absent port matches any reversed", "https://example.com:8080", "example.com", true},
		{"explicit ports differ", "https://example.com:9090", "example.com:8080", false},
		{"explicit ports equal", "https://example.com:8080", "example.com:8080", true},
		{"different hosts", "https://example.com", "example.org", false},
		{"host case insensitive", "https://Example.COM", "example.com", true},
		{"scheme ignored", "http://example.com", "https://example.com", true},
		{"subdomain is a different host", "https://app.example.com", "example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Content{Websites: []string{tt.stored}}
			require.Equal(t, tt.want, c.HasWebsite(tt.candidate))
		})
	}
}

func TestHasWebsite_UnparseableURL(t *testing.T) {
	c := Content{Websites: []string{"https://example.com"}}
	require.False(t, c.HasWebsite("://not a url"))
}
