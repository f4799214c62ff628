package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/session"
	"github.com/starford/othala/internal/structure"
)

// CreateDocumentRequest is the request body for creating a document.
type CreateDocumentRequest struct {
	Title string `json:"title" example:"Meeting notes" validate:"required"`
}

// Validate implements request validation.
func (r CreateDocumentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 512)),
	)
}

// SaveBodyRequest is the request body for PUT /documents/{id}/body.
// Body carries the encoded replicated state as produced by the editor.
type SaveBodyRequest struct {
	Body string `json:"body" validate:"required"`
}

// MetadataPatchRequest is the request body for PATCH /documents/{id}
// (aliased from the domain layer).
type MetadataPatchRequest = session.MetadataPatch

// MoveRequest is the request body for POST /structure/move.
type MoveRequest struct {
	ActiveID string `json:"active_id" validate:"required"`
	TargetID string `json:"target_id" validate:"required"`
	Kind     string `json:"kind" example:"reorder" validate:"required"`
}

// Validate implements request validation.
func (r MoveRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ActiveID, validation.Required),
		validation.Field(&r.TargetID, validation.Required),
		validation.Field(&r.Kind, validation.Required,
			validation.In(string(structure.KindReorder), string(structure.KindReparent))),
	)
}

// DocumentListItem is a lightweight item in a list response.
type DocumentListItem struct {
	ID       string          `json:"id" validate:"required"`
	Metadata models.Metadata `json:"metadata" validate:"required"`
	Version  string          `json:"version" example:"v1"`
}

// DocumentListResponse wraps document listings.
type DocumentListResponse struct {
	Documents []DocumentListItem `json:"documents" validate:"required"`
	Total     int                `json:"total" example:"42" validate:"required"`
}

// SearchResult is a single title match in the API response.
type SearchResult struct {
	ID    string `json:"id" validate:"required"`
	Title string `json:"title" validate:"required"`
	Exact bool   `json:"exact"`
}

// DocumentDetail is the full single-document response: metadata, the
// encoded body, its checksum, and the backlinks derived by the index.
type DocumentDetail struct {
	ID        string          `json:"id" validate:"required"`
	Metadata  models.Metadata `json:"metadata" validate:"required"`
	Body      string          `json:"body"`
	Checksum  string          `json:"checksum"`
	Version   string          `json:"version" example:"v1"`
	Backlinks []string        `json:"backlinks"`
}

// StatusResponse reports session and backend health.
type StatusResponse struct {
	Backend   string `json:"backend" example:"local"`
	Loaded    bool   `json:"loaded"`
	Connected bool   `json:"connected"`
	Synced    bool   `json:"synced"`
	Error     string `json:"error,omitempty"`
	Documents int    `json:"documents"`
	Clients   int    `json:"clients"`
}
