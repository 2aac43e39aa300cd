// Package remote implements the transport collaborators (RemoteItemStore
// and EventSource) over JSON/HTTP with bearer-token auth. Wire shapes
// live entirely in this package; the core only sees domain objects and
// typed errors.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/dmitrijs2005/passvault/internal/models"
	"github.com/dmitrijs2005/passvault/internal/syncer"
	"github.com/golang-jwt/jwt/v5"
)

// refreshLeeway is how close to expiry the access token may get before
// it is refreshed pre-emptively instead of waiting for a 401.
const refreshLeeway = 30 * time.Second

type Client struct {
	baseURL string
	http    *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

func NewClient(baseURL string, httpClient *http.Client, accessToken, refreshToken string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:      baseURL,
		http:         httpClient,
		accessToken:  accessToken,
		refreshToken: refreshToken,
	}
}

// tokenNearExpiry inspects the access token's exp claim without
// verifying the signature (the server verifies; the client only wants
// to avoid a guaranteed 401 round trip).
func tokenNearExpiry(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Until(exp.Time) < refreshLeeway
}

func (c *Client) refresh(ctx context.Context) error {
	c.mu.Lock()
	refreshToken := c.refreshToken
	c.mu.Unlock()
	if refreshToken == "" {
		return common.ErrInvalidToken
	}

	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/auth/refresh", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("refreshing token: %w: %w", common.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("refreshing token: status %d: %w", resp.StatusCode, common.ErrInvalidToken)
	}

	var tokens struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return err
	}

	c.mu.Lock()
	c.accessToken = tokens.AccessToken
	c.refreshToken = tokens.RefreshToken
	c.mu.Unlock()
	return nil
}

// do sends one authenticated request and decodes the response into out
// (when out is non-nil). An expired token is refreshed pre-emptively
// when possible, otherwise on the first 401, and the request is replayed
// exactly once.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	c.mu.Lock()
	token := c.accessToken
	c.mu.Unlock()

	if tokenNearExpiry(token) {
		if err := c.refresh(ctx); err == nil {
			c.mu.Lock()
			token = c.accessToken
			c.mu.Unlock()
		}
	}

	status, err := c.send(ctx, method, path, token, body, out)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		if err := c.refresh(ctx); err != nil {
			return err
		}
		c.mu.Lock()
		token = c.accessToken
		c.mu.Unlock()
		status, err = c.send(ctx, method, path, token, body, out)
		if err != nil {
			return err
		}
	}

	return statusToError(status)
}

func (c *Client) send(ctx context.Context, method, path, token string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(common.AccessTokenHeaderName, token)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", common.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

func statusToError(status int) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusConflict:
		return common.ErrRevisionConflict
	case status == http.StatusNotFound:
		return common.ErrorNotFound
	case status == http.StatusUnauthorized:
		return common.ErrInvalidToken
	case status >= 500:
		return fmt.Errorf("status %d: %w", status, common.ErrRemoteUnavailable)
	default:
		return fmt.Errorf("unexpected status %d", status)
	}
}

type itemPayload struct {
	ItemID               string `json:"item_id"`
	ContentFormatVersion int    `json:"content_format_version"`
	Rotation             int64  `json:"rotation"`
	Content              []byte `json:"content"`
	ContentNonce         []byte `json:"content_nonce"`
	Overview             []byte `json:"overview"`
	OverviewNonce        []byte `json:"overview_nonce"`
	UserSignature        []byte `json:"user_signature"`
	ItemKeySignature     []byte `json:"item_key_signature"`
	SignatureEmail       string `json:"signature_email"`
}

func payloadFromRequest(req syncer.ItemCreateRequest) itemPayload {
	enc := req.Encoded
	return itemPayload{
		ItemID:               req.ItemID,
		ContentFormatVersion: enc.ContentFormatVersion,
		Rotation:             enc.Rotation,
		Content:              enc.Content,
		ContentNonce:         enc.ContentNonce,
		Overview:             enc.Overview,
		OverviewNonce:        enc.OverviewNonce,
		UserSignature:        enc.UserSignature,
		ItemKeySignature:     enc.ItemKeySignature,
		SignatureEmail:       enc.SignatureEmail,
	}
}

func vaultPath(userID, vaultID, suffix string) string {
	return "/v1/users/" + url.PathEscape(userID) + "/vaults/" + url.PathEscape(vaultID) + suffix
}

func (c *Client) CreateItem(ctx context.Context, userID, vaultID string, req syncer.ItemCreateRequest) (*models.ItemRevision, error) {
	var rev models.ItemRevision
	err := c.do(ctx, http.MethodPost, vaultPath(userID, vaultID, "/items"), payloadFromRequest(req), &rev)
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

func (c *Client) CreateAlias(ctx context.Context, userID, vaultID string, req syncer.AliasCreateRequest) (*models.ItemRevision, error) {
	body := struct {
		Item        itemPayload `json:"item"`
		AliasPrefix string      `json:"alias_prefix"`
		SuffixID    string      `json:"suffix_id"`
		MailboxIDs  []string    `json:"mailbox_ids"`
	}{payloadFromRequest(req.ItemCreateRequest), req.AliasPrefix, req.SuffixID, req.MailboxIDs}

	var rev models.ItemRevision
	if err := c.do(ctx, http.MethodPost, vaultPath(userID, vaultID, "/aliases"), body, &rev); err != nil {
		return nil, err
	}
	return &rev, nil
}

func (c *Client) UpdateItem(ctx context.Context, userID, vaultID string, lastRevision int64, req syncer.ItemCreateRequest) (*models.ItemRevision, error) {
	body := struct {
		LastRevision int64       `json:"last_revision"`
		Item         itemPayload `json:"item"`
	}{lastRevision, payloadFromRequest(req)}

	var rev models.ItemRevision
	path := vaultPath(userID, vaultID, "/items/"+url.PathEscape(req.ItemID))
	if err := c.do(ctx, http.MethodPut, path, body, &rev); err != nil {
		return nil, err
	}
	return &rev, nil
}

type batchRefs struct {
	Items []syncer.RevisionRef `json:"items"`
}

type batchUpdates struct {
	Items []syncer.RevisionUpdate `json:"items"`
}

func (c *Client) SendToTrash(ctx context.Context, userID, vaultID string, refs []syncer.RevisionRef) ([]syncer.RevisionUpdate, error) {
	var resp batchUpdates
	err := c.do(ctx, http.MethodPost, vaultPath(userID, vaultID, "/items/trash"), batchRefs{refs}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) Untrash(ctx context.Context, userID, vaultID string, refs []syncer.RevisionRef) ([]syncer.RevisionUpdate, error) {
	var resp batchUpdates
	err := c.do(ctx, http.MethodPost, vaultPath(userID, vaultID, "/items/untrash"), batchRefs{refs}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) DeleteBatch(ctx context.Context, userID, vaultID string, refs []syncer.RevisionRef) error {
	return c.do(ctx, http.MethodPost, vaultPath(userID, vaultID, "/items/delete"), batchRefs{refs}, nil)
}

func (c *Client) FetchAllForVault(ctx context.Context, userID, vaultID string) ([]models.ItemRevision, error) {
	var resp struct {
		Items []models.ItemRevision `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, vaultPath(userID, vaultID, "/items"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (c *Client) FetchLatestEventCursor(ctx context.Context, userID, addressID, vaultID string) (string, error) {
	var resp struct {
		EventID string `json:"event_id"`
	}
	path := "/v1/users/" + url.PathEscape(userID) + "/addresses/" + url.PathEscape(addressID) +
		"/vaults/" + url.PathEscape(vaultID) + "/events/latest"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.EventID, nil
}

func (c *Client) FetchEventsSince(ctx context.Context, userID, vaultID, cursor string) (*models.VaultEvents, error) {
	var events models.VaultEvents
	path := vaultPath(userID, vaultID, "/events?since="+url.QueryEscape(cursor))
	if err := c.do(ctx, http.MethodGet, path, nil, &events); err != nil {
		return nil, err
	}
	return &events, nil
}
