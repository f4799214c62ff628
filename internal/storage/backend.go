// Package storage persists vault documents behind a capability
// interface with two variants: Local (SQLite in a vault directory) and
// Remote (HTTP against a remote authority). The backend is selected
// once per vault at load time and never switched mid-session.
package storage

import (
	"context"

	"github.com/starford/othala/internal/models"
)

// Backend is the storage capability interface. Location is a filesystem
// path for Local and a server-assigned vault identifier for Remote.
//
// Failures carry one of the apperr storage sentinels; only
// apperr.ErrRemoteUnavailable is worth a caller-driven retry.
type Backend interface {
	// ChooseLocation picks or provisions a location for a new vault.
	// An empty string with nil error means no location is available.
	ChooseLocation(ctx context.Context) (string, error)
	// Initialize prepares the location for use (creates the vault
	// database, or verifies the remote vault exists).
	Initialize(ctx context.Context, location string) error
	// ListIDs returns every document id in the vault.
	ListIDs(ctx context.Context, location string) ([]string, error)
	// ReadAll returns every document. Remote backends return documents
	// with metadata only; bodies are hydrated lazily via Read.
	ReadAll(ctx context.Context, location string) ([]models.Document, error)
	// Read returns one document, body included.
	Read(ctx context.Context, location, id string) (*models.Document, error)
	// Write persists metadata and body together. A crash mid-write
	// leaves either the old or the new document, never a torn mix.
	Write(ctx context.Context, location, id string, meta models.Metadata, body string) error
	// Create allocates a new empty document with the given title.
	Create(ctx context.Context, location, title string) (*models.Document, error)
	// Delete removes a document.
	Delete(ctx context.Context, location, id string) error
	// ReadStructure returns the persisted hierarchy. Remote vaults are
	// flat: they return (nil, nil) rather than erroring.
	ReadStructure(ctx context.Context, location string) (models.VaultStructure, error)
	// WriteStructure replaces the persisted hierarchy.
	WriteStructure(ctx context.Context, location string, s models.VaultStructure) error
}
