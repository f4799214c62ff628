package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
)

// Remote implements Backend against a remote vault authority over JSON
// HTTP. The location is the server-assigned vault identifier. Remote
// vaults are flat: there is no structure channel, any hierarchy lives
// solely in metadata.parent_id.
type Remote struct {
	baseURL string
	token   string
	vaultID string // configured default for ChooseLocation, may be empty
	client  *http.Client
}

// NewRemote creates a Remote backend. vaultID may be empty, in which
// case ChooseLocation provisions a fresh vault on the server.
func NewRemote(baseURL, token, vaultID string, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		vaultID: vaultID,
		client:  &http.Client{Timeout: timeout},
	}
}

// ChooseLocation returns the configured vault id, or asks the server to
// provision a new vault when none is configured.
func (r *Remote) ChooseLocation(ctx context.Context) (string, error) {
	if r.vaultID != "" {
		return r.vaultID, nil
	}
	var resp struct {
		ID string `json:"id"`
	}
	if err := r.do(ctx, http.MethodPost, "/api/v1/vaults", nil, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Initialize verifies the vault exists on the server.
func (r *Remote) Initialize(ctx context.Context, location string) error {
	return r.do(ctx, http.MethodGet, r.vaultPath(location), nil, nil)
}

// ListIDs returns every document id in the vault.
func (r *Remote) ListIDs(ctx context.Context, location string) ([]string, error) {
	docs, err := r.ReadAll(ctx, location)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

// ReadAll fetches the metadata list; bodies stay on the server until a
// document is opened.
func (r *Remote) ReadAll(ctx context.Context, location string) ([]models.Document, error) {
	var resp struct {
		Documents []models.Document `json:"documents"`
	}
	if err := r.do(ctx, http.MethodGet, r.vaultPath(location)+"/documents", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Documents, nil
}

// Read fetches one document, body included.
func (r *Remote) Read(ctx context.Context, location, id string) (*models.Document, error) {
	var doc models.Document
	if err := r.do(ctx, http.MethodGet, r.docPath(location, id), nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Write replaces a document's metadata and body.
func (r *Remote) Write(ctx context.Context, location, id string, meta models.Metadata, body string) error {
	req := models.Document{ID: id, Metadata: meta, Body: body, Version: models.SchemaVersion}
	return r.do(ctx, http.MethodPut, r.docPath(location, id), req, nil)
}

// Create asks the server for a new document.
func (r *Remote) Create(ctx context.Context, location, title string) (*models.Document, error) {
	req := map[string]string{"title": title}
	var doc models.Document
	if err := r.do(ctx, http.MethodPost, r.vaultPath(location)+"/documents", req, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Delete removes a document on the server.
func (r *Remote) Delete(ctx context.Context, location, id string) error {
	return r.do(ctx, http.MethodDelete, r.docPath(location, id), nil, nil)
}

// ReadStructure is not meaningful for remote vaults; callers get an
// absent structure, not an error.
func (r *Remote) ReadStructure(_ context.Context, _ string) (models.VaultStructure, error) {
	return nil, nil
}

// WriteStructure is rejected: remote vaults have no order channel.
func (r *Remote) WriteStructure(_ context.Context, _ string, _ models.VaultStructure) error {
	return fmt.Errorf("storage: write structure: %w", apperr.ErrUnsupported)
}

func (r *Remote) vaultPath(location string) string {
	return "/api/v1/vaults/" + url.PathEscape(location)
}

func (r *Remote) docPath(location, id string) string {
	return r.vaultPath(location) + "/documents/" + url.PathEscape(id)
}

// do runs one JSON request. Transport failures and 5xx map to
// ErrRemoteUnavailable; auth and missing resources map to their
// sentinels so the session can surface them unchanged.
func (r *Remote) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("storage: marshal request: %w: %v", apperr.ErrIO, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("storage: build request: %w: %v", apperr.ErrIO, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("storage: %s %s: %w: %v", method, path, apperr.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		return fmt.Errorf("storage: %s %s: %w", method, path, err)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("storage: decode response: %w: %v", apperr.ErrIO, err)
	}
	return nil
}

func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return apperr.ErrNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return apperr.ErrPermissionDenied
	case status == http.StatusConflict:
		return apperr.ErrAlreadyExists
	case status >= 500:
		return apperr.ErrRemoteUnavailable
	default:
		return apperr.ErrIO
	}
}

// Compile-time interface checks.
var (
	_ Backend = (*Local)(nil)
	_ Backend = (*Remote)(nil)
)
