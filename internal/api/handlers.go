package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/session"
	"github.com/starford/othala/internal/structure"
)

// Handler holds API route handlers.
type Handler struct {
	sess *session.Session
}

// NewHandler creates a new Handler.
func NewHandler(sess *session.Session) *Handler {
	return &Handler{sess: sess}
}

// writeDomainErr maps domain sentinel errors to HTTP responses.
func writeDomainErr(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("already exists"))
	case errors.Is(err, apperr.ErrInvalidMove):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrUnsupported):
		writeJSON(w, http.StatusBadRequest, errorBody("not supported for this vault"))
	case errors.Is(err, apperr.ErrPermissionDenied):
		writeJSON(w, http.StatusForbidden, errorBody("permission denied"))
	case errors.Is(err, apperr.ErrRemoteUnavailable):
		writeJSON(w, http.StatusBadGateway, errorBody("vault backend unavailable"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListDocuments handles GET /api/documents.
//
//	@Summary		List documents (metadata only)
//	@Tags			documents
//	@Produce		json
//	@Success		200	{object}	DocumentListResponse
//	@Security		BearerAuth
//	@Router			/documents [get]
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	docs := h.sess.Documents()
	items := make([]DocumentListItem, 0, len(docs))
	for _, d := range docs {
		items = append(items, DocumentListItem{ID: d.ID, Metadata: d.Metadata, Version: d.Version})
	}
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: items, Total: len(items)})
}

// GetDocument handles GET /api/documents/{id}.
//
//	@Summary		Get a single document including its encoded body
//	@Tags			documents
//	@Produce		json
//	@Param			id	path		string	true	"Document id"
//	@Success		200	{object}	DocumentDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := h.sess.GetDocument(r.Context(), id)
	if err != nil {
		writeDomainErr(w, "get document", err)
		return
	}
	detail := DocumentDetail{
		ID:        doc.ID,
		Metadata:  doc.Metadata,
		Body:      doc.Body,
		Checksum:  checksum.Sum([]byte(doc.Body)),
		Version:   doc.Version,
		Backlinks: []string{},
	}
	if entry, ok := h.sess.Index().Documents[id]; ok {
		detail.Backlinks = entry.Backlinks
	}
	writeJSON(w, http.StatusOK, detail)
}

// CreateDocument handles POST /api/documents.
//
//	@Summary		Create a new document
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateDocumentRequest	true	"Document to create"
//	@Success		201		{object}	models.Document
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [post]
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	var req CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	doc, err := h.sess.CreateDocument(r.Context(), req.Title)
	if err != nil {
		writeDomainErr(w, "create document", err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

// SaveBody handles PUT /api/documents/{id}/body.
//
// The write is debounced server-side; 202 means accepted for
// persistence, not persisted.
//
//	@Summary		Save a document's encoded body (debounced)
//	@Tags			documents
//	@Accept			json
//	@Param			id		path	string			true	"Document id"
//	@Param			body	body	SaveBodyRequest	true	"Encoded state"
//	@Success		202		"Accepted"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id}/body [put]
func (h *Handler) SaveBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	id := chi.URLParam(r, "id")
	var req SaveBodyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Body == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("body is required"))
		return
	}
	h.sess.SaveBody(id, req.Body)
	w.WriteHeader(http.StatusAccepted)
}

// UpdateMetadata handles PATCH /api/documents/{id}.
//
//	@Summary		Partially update document metadata
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Document id"
//	@Param			body	body		MetadataPatchRequest	true	"Fields to change"
//	@Success		200		{object}	models.Document
//	@Failure		404		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id} [patch]
func (h *Handler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	id := chi.URLParam(r, "id")
	var patch MetadataPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	doc, err := h.sess.UpdateMetadata(r.Context(), id, patch)
	if err != nil {
		writeDomainErr(w, "update metadata", err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /api/documents/{id}.
//
//	@Summary		Delete a document, promoting its children
//	@Tags			documents
//	@Param			id	path	string	true	"Document id"
//	@Success		204	"Document deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{id} [delete]
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.sess.DeleteDocument(r.Context(), id); err != nil {
		writeDomainErr(w, "delete document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetStructure handles GET /api/structure.
//
//	@Summary		Get the vault hierarchy
//	@Tags			structure
//	@Produce		json
//	@Success		200	{object}	models.VaultStructure
//	@Security		BearerAuth
//	@Router			/structure [get]
func (h *Handler) GetStructure(w http.ResponseWriter, r *http.Request) {
	st := h.sess.Structure()
	if st == nil {
		// Flat vault: an empty object keeps clients simple.
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Move handles POST /api/structure/move.
//
//	@Summary		Reorder or reparent a document
//	@Tags			structure
//	@Accept			json
//	@Param			body	body	MoveRequest	true	"Move gesture"
//	@Success		204		"Move applied"
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/structure/move [post]
func (h *Handler) Move(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	err := h.sess.ApplyStructureMove(r.Context(), structure.Move{
		ActiveID: req.ActiveID,
		TargetID: req.TargetID,
		Kind:     structure.Kind(req.Kind),
	})
	if err != nil {
		writeDomainErr(w, "structure move", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetIndex handles GET /api/index.
//
//	@Summary		Get the derived vault index (links, backlinks, outlines)
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	models.VaultIndex
//	@Security		BearerAuth
//	@Router			/index [get]
func (h *Handler) GetIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sess.Index())
}

// Search handles GET /api/search.
//
//	@Summary		Search document titles
//	@Tags			search
//	@Produce		json
//	@Param			q	query		string	true	"Title query"
//	@Success		200	{object}	map[string][]SearchResult
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	matches := index.MatchTitles(h.sess.Index(), q)
	results := make([]SearchResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, SearchResult{ID: m.ID, Title: m.Title, Exact: m.Exact})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// Status handles GET /api/status.
//
//	@Summary		Session health
//	@Tags			status
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Router			/status [get]
func (h *Handler) Status(backendKind string, clients func() int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		loaded, loadErr := h.sess.Status()
		resp := StatusResponse{
			Backend:   backendKind,
			Loaded:    loaded,
			Connected: h.sess.Connected(),
			Synced:    h.sess.Synced(),
			Documents: len(h.sess.Documents()),
		}
		if loadErr != nil {
			resp.Error = loadErr.Error()
		}
		if clients != nil {
			resp.Clients = clients()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
