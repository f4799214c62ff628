// Package models defines the domain types for Othala.
package models

import "time"

// Document types.
const (
	TypeDocument = "document"
	TypeFolder   = "folder"
)

// SchemaVersion tags documents written by this version of the engine.
const SchemaVersion = "v1"

// Document represents a single note: metadata plus an opaque encoded
// replicated-state body owned by the CRDT runtime.
type Document struct {
	ID       string   `json:"id"`
	Metadata Metadata `json:"metadata"`
	Body     string   `json:"body,omitempty"`
	Version  string   `json:"version"`
}

// Metadata holds everything about a document except its body. It is
// mutated independently of the body.
type Metadata struct {
	Title       string    `json:"title"`
	Created     time.Time `json:"created"`
	Modified    time.Time `json:"modified"`
	Tags        []string  `json:"tags,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Description string    `json:"description,omitempty"`
	ParentID    string    `json:"parent_id,omitempty"` // empty = root
	Type        string    `json:"type,omitempty"`      // "document" or "folder"
	Order       *int      `json:"order,omitempty"`     // meaning defined by VaultStructure
}

// IsFolder reports whether the document can hold children.
func (m Metadata) IsFolder() bool {
	return m.Type == TypeFolder
}

// StructureEntry is one document's position in the vault hierarchy.
type StructureEntry struct {
	ParentID string `json:"parent_id,omitempty"` // empty = root
	Order    int    `json:"order"`
}

// VaultStructure maps document id to its parent/order assignment. It is
// the ordering source of truth for local vaults. Remote vaults carry a
// nil structure (flat, server-ordered).
//
// Invariant: within any sibling group the order values form a dense
// permutation 0..n-1 after every resolver operation.
type VaultStructure map[string]StructureEntry

// Clone returns a deep copy, so resolver output never aliases the
// published snapshot.
func (s VaultStructure) Clone() VaultStructure {
	if s == nil {
		return nil
	}
	out := make(VaultStructure, len(s))
	for id, e := range s {
		out[id] = e
	}
	return out
}

// Header is one heading extracted from a document body.
type Header struct {
	Level int    `json:"level"` // 1..6
	Text  string `json:"text"`
	Slug  string `json:"slug"`
}

// DocumentIndex is the derived per-document view: outgoing links,
// inferred backlinks, and the heading outline. Never persisted.
type DocumentIndex struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Links     []string `json:"links"`
	Backlinks []string `json:"backlinks"`
	Headers   []Header `json:"headers"`
}

// VaultIndex is the derived view over the whole vault. It is rebuilt in
// full from a point-in-time document snapshot; consumers must treat a
// stale VaultIndex as fully superseded once a newer one exists.
type VaultIndex struct {
	Documents   map[string]DocumentIndex `json:"documents"`
	LastUpdated time.Time                `json:"last_updated"`
}
