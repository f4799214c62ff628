// Package session orchestrates a single active vault: it loads
// documents through the chosen storage backend, keeps the derived index
// and hierarchy consistent under mutation, and exposes document CRUD to
// presentation layers.
//
// Mutating operations serialize on an internal lock and follow the same
// shape: storage write, full index rebuild, wholesale snapshot swap.
// Readers always observe a consistent (documents, index, structure)
// triple, possibly one mutation stale.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/codec"
	"github.com/starford/othala/internal/crdt"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/storage"
	"github.com/starford/othala/internal/structure"
)

// Event kinds published to the UI layer.
const (
	EventCreated   = "created"
	EventUpdated   = "updated"
	EventDeleted   = "deleted"
	EventStructure = "structure"
	EventIndex     = "index"
)

// EventFunc receives vault events. id is empty for vault-wide kinds.
type EventFunc func(kind, id string)

// MetadataPatch is a partial metadata update; nil fields are untouched.
type MetadataPatch struct {
	Title       *string   `json:"title,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Icon        *string   `json:"icon,omitempty"`
	Description *string   `json:"description,omitempty"`
	ParentID    *string   `json:"parent_id,omitempty"`
	Type        *string   `json:"type,omitempty"`
}

// Session owns the currently active vault.
type Session struct {
	backend storage.Backend
	loc     string
	logger  *slog.Logger
	events  EventFunc

	mu        sync.RWMutex
	loaded    bool
	loadErr   error
	docs      map[string]models.Document
	index     models.VaultIndex
	structure models.VaultStructure // nil for remote vaults
	currentID string

	// Live replicated-document instances, keyed by id. This cache is
	// owned by the session and dies with it; nothing process-wide.
	open map[string]*crdt.Doc

	saver *saver
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithEvents sets the event sink.
func WithEvents(fn EventFunc) Option {
	return func(s *Session) { s.events = fn }
}

// WithSaveDebounce overrides the body-save quiescence window.
func WithSaveDebounce(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.saver.delay = d
		}
	}
}

// New creates a session over backend at the given location.
func New(backend storage.Backend, location string, opts ...Option) *Session {
	s := &Session{
		backend: backend,
		loc:     location,
		logger:  slog.Default(),
		docs:    make(map[string]models.Document),
		open:    make(map[string]*crdt.Doc),
	}
	s.saver = newSaver(500*time.Millisecond, s.flushBody)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the whole vault and builds the first index. For local
// vaults the persisted structure is reconciled against the document set
// before publishing. For remote vaults structure stays absent and the
// UI falls back to flat presentation.
func (s *Session) Load(ctx context.Context) error {
	docs, err := s.backend.ReadAll(ctx, s.loc)
	if err != nil {
		s.setLoadErr(err)
		return err
	}
	st, err := s.backend.ReadStructure(ctx, s.loc)
	if err != nil {
		s.setLoadErr(err)
		return err
	}
	if st != nil {
		normalized, changed := structure.Normalize(st, docs)
		if changed {
			if err := s.backend.WriteStructure(ctx, s.loc, normalized); err != nil {
				s.setLoadErr(err)
				return err
			}
		}
		st = normalized
	}

	m := make(map[string]models.Document, len(docs))
	for _, d := range docs {
		m[d.ID] = d
	}
	idx := index.Build(docs, s.logger)

	s.mu.Lock()
	s.docs = m
	s.structure = st
	s.index = idx
	s.loaded = true
	s.loadErr = nil
	s.mu.Unlock()

	s.publish(EventIndex, "")
	s.logger.Info("vault loaded",
		slog.String("location", s.loc),
		slog.Int("documents", len(docs)),
		slog.Bool("structured", st != nil))
	return nil
}

// CreateDocument allocates a new document and, for structured vaults,
// appends it at the end of the root group.
func (s *Session) CreateDocument(ctx context.Context, title string) (*models.Document, error) {
	doc, err := s.backend.Create(ctx, s.loc, title)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.structure != nil {
		st := s.structure.Clone()
		st[doc.ID] = models.StructureEntry{Order: rootCount(st)}
		if err := s.backend.WriteStructure(ctx, s.loc, st); err != nil {
			s.mu.Unlock()
			return nil, err
		}
		s.structure = st
	}
	s.docs[doc.ID] = *doc
	s.rebuildLocked()
	s.mu.Unlock()

	s.publish(EventCreated, doc.ID)
	s.publish(EventIndex, "")
	return doc, nil
}

// OpenDocument returns the live replicated instance for id, hydrating
// the body from storage on first open. A body that fails to decode is
// logged and the document opens empty; the encoded state on disk is not
// touched.
func (s *Session) OpenDocument(ctx context.Context, id string) (*crdt.Doc, error) {
	s.mu.Lock()
	if d, ok := s.open[id]; ok {
		s.currentID = id
		s.mu.Unlock()
		return d, nil
	}
	s.mu.Unlock()

	stored, err := s.backend.Read(ctx, s.loc, id)
	if err != nil {
		return nil, err
	}

	d := crdt.NewDoc()
	if err := codec.Decode(stored.Body, d); err != nil {
		s.logger.Error("open: body decode failed, opening empty",
			slog.String("id", id),
			slog.String("error", err.Error()))
	}

	s.mu.Lock()
	if existing, ok := s.open[id]; ok {
		// Lost the race to another opener; keep the first instance.
		d = existing
	} else {
		s.open[id] = d
	}
	s.docs[id] = *stored
	s.currentID = id
	s.mu.Unlock()
	return d, nil
}

// SaveBody schedules a debounced write of the encoded state. Calls for
// the same document coalesce over the quiescence window; the index is
// deliberately not rebuilt here.
func (s *Session) SaveBody(id, encoded string) {
	s.saver.enqueue(id, encoded)
}

// flushBody performs the actual storage write once the debounce window
// closes.
func (s *Session) flushBody(id, encoded string) {
	s.mu.Lock()
	doc, ok := s.docs[id]
	s.mu.Unlock()
	if !ok {
		return // deleted while a save was pending
	}

	meta := doc.Metadata
	meta.Modified = time.Now().UTC()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.backend.Write(ctx, s.loc, id, meta, encoded); err != nil {
		s.logger.Error("save body failed",
			slog.String("id", id),
			slog.String("error", err.Error()))
		return
	}

	s.mu.Lock()
	if doc, ok := s.docs[id]; ok {
		doc.Body = encoded
		doc.Metadata.Modified = meta.Modified
		s.docs[id] = doc
	}
	s.mu.Unlock()
	s.publish(EventUpdated, id)
}

// Flush forces all pending body saves through immediately.
func (s *Session) Flush() {
	s.saver.flushAll()
}

// UpdateMetadata applies a partial metadata update. A ParentID change
// on a structured vault is mirrored into the hierarchy (appended at the
// end of the new parent's children).
func (s *Session) UpdateMetadata(ctx context.Context, id string, patch MetadataPatch) (*models.Document, error) {
	s.mu.Lock()
	doc, st, err := s.updateMetadataLocked(ctx, id, patch)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.publish(EventUpdated, id)
	if st != nil {
		s.publish(EventStructure, "")
	}
	s.publish(EventIndex, "")
	return doc, nil
}

func (s *Session) updateMetadataLocked(ctx context.Context, id string, patch MetadataPatch) (*models.Document, models.VaultStructure, error) {
	doc, ok := s.docs[id]
	if !ok {
		return nil, nil, fmt.Errorf("update metadata: %w", apperr.ErrNotFound)
	}

	meta := applyPatch(doc.Metadata, patch)
	meta.Modified = time.Now().UTC()

	var st models.VaultStructure
	if s.structure != nil && patch.ParentID != nil && *patch.ParentID != s.structure[id].ParentID {
		var err error
		st, err = structure.SetParent(s.structure, id, *patch.ParentID)
		if err != nil {
			return nil, nil, err
		}
	}

	if err := s.backend.Write(ctx, s.loc, id, meta, doc.Body); err != nil {
		return nil, nil, err
	}
	if st != nil {
		if err := s.backend.WriteStructure(ctx, s.loc, st); err != nil {
			return nil, nil, err
		}
		s.structure = st
	}

	doc.Metadata = meta
	s.docs[id] = doc
	s.rebuildLocked()
	return &doc, st, nil
}

// ApplyStructureMove resolves a reorder/reparent gesture, persists the
// replacement structure, and only then swaps the in-memory snapshot.
func (s *Session) ApplyStructureMove(ctx context.Context, move structure.Move) error {
	s.mu.Lock()
	err := s.applyStructureMoveLocked(ctx, move)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.publish(EventStructure, "")
	s.publish(EventIndex, "")
	return nil
}

func (s *Session) applyStructureMoveLocked(ctx context.Context, move structure.Move) error {
	if s.structure == nil {
		return fmt.Errorf("structure move on flat vault: %w", apperr.ErrUnsupported)
	}
	next, err := structure.Resolve(move, s.docs, s.structure)
	if err != nil {
		return err
	}
	if err := s.backend.WriteStructure(ctx, s.loc, next); err != nil {
		return err
	}
	s.structure = next
	s.rebuildLocked()
	return nil
}

// DeleteDocument removes a document. Its children are promoted to the
// deleted document's own parent (root when it sat at root), appended
// after that group's existing members; cascade delete is deliberately
// not implemented.
func (s *Session) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	err := s.deleteDocumentLocked(ctx, id)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.publish(EventDeleted, id)
	s.publish(EventStructure, "")
	s.publish(EventIndex, "")
	return nil
}

func (s *Session) deleteDocumentLocked(ctx context.Context, id string) error {
	doc, ok := s.docs[id]
	if !ok {
		return fmt.Errorf("delete: %w", apperr.ErrNotFound)
	}

	if err := s.backend.Delete(ctx, s.loc, id); err != nil {
		return err
	}

	if s.structure != nil {
		st := s.structure.Clone()
		parent := st[id].ParentID
		delete(st, id)
		children := childrenOf(st, id)
		for _, child := range children {
			next, err := structure.SetParent(st, child, parent)
			if err != nil {
				// Promotion cannot cycle; any failure here means the
				// persisted structure was already inconsistent.
				s.logger.Warn("delete: child promotion failed",
					slog.String("child", child),
					slog.String("error", err.Error()))
				continue
			}
			st = next
		}
		remaining := docsExcept(s.docs, id)
		st, _ = structure.Normalize(st, remaining)
		if err := s.backend.WriteStructure(ctx, s.loc, st); err != nil {
			return err
		}
		s.structure = st
	} else {
		// Flat vault: promote children through their metadata.
		for childID, child := range s.docs {
			if child.Metadata.ParentID != id {
				continue
			}
			meta := child.Metadata
			meta.ParentID = doc.Metadata.ParentID
			if err := s.backend.Write(ctx, s.loc, childID, meta, child.Body); err != nil {
				return err
			}
			child.Metadata = meta
			s.docs[childID] = child
		}
	}

	delete(s.docs, id)
	delete(s.open, id)
	s.saver.drop(id)
	if s.currentID == id {
		s.currentID = ""
	}
	s.rebuildLocked()
	return nil
}

// Reload re-reads the vault after an external change, publishing
// per-document diff events. Pending body saves win over reloaded
// content for documents being actively edited.
func (s *Session) Reload(ctx context.Context) error {
	docs, err := s.backend.ReadAll(ctx, s.loc)
	if err != nil {
		return err
	}
	st, err := s.backend.ReadStructure(ctx, s.loc)
	if err != nil {
		return err
	}
	if st != nil {
		st, _ = structure.Normalize(st, docs)
	}

	m := make(map[string]models.Document, len(docs))
	for _, d := range docs {
		m[d.ID] = d
	}
	idx := index.Build(docs, s.logger)

	s.mu.Lock()
	before := s.docs
	s.docs = m
	s.structure = st
	s.index = idx
	s.mu.Unlock()

	for id, doc := range m {
		prev, existed := before[id]
		switch {
		case !existed:
			s.publish(EventCreated, id)
		case checksum.Sum([]byte(prev.Body)) != checksum.Sum([]byte(doc.Body)) ||
			prev.Metadata.Modified != doc.Metadata.Modified:
			s.publish(EventUpdated, id)
		}
	}
	for id := range before {
		if _, ok := m[id]; !ok {
			s.publish(EventDeleted, id)
		}
	}
	s.publish(EventIndex, "")
	return nil
}

// Close flushes pending saves and drops the live-document cache. The
// session must not be used afterwards; switching vaults means a new
// session.
func (s *Session) Close() {
	s.saver.close()
	s.mu.Lock()
	s.open = make(map[string]*crdt.Doc)
	s.currentID = ""
	s.mu.Unlock()
}

// Documents returns a snapshot of all documents, ordered by creation
// time for determinism; hierarchical ordering lives in Structure.
func (s *Session) Documents() []models.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Document, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Metadata.Created, out[j].Metadata.Created
		if !a.Equal(b) {
			return a.Before(b)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// GetDocument returns one document with its body, reading through to
// the backend when the cached copy has no body (remote listings are
// metadata-only). Unlike OpenDocument it does not touch the selection
// or the live-document cache.
func (s *Session) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	doc, ok := s.docs[id]
	s.mu.RUnlock()
	if ok && doc.Body != "" {
		return &doc, nil
	}
	if !ok {
		return nil, fmt.Errorf("get document: %w", apperr.ErrNotFound)
	}

	stored, err := s.backend.Read(ctx, s.loc, id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	if cached, ok := s.docs[id]; ok {
		cached.Body = stored.Body
		s.docs[id] = cached
	}
	s.mu.Unlock()
	return stored, nil
}

// Index returns the current derived index snapshot.
func (s *Session) Index() models.VaultIndex {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// Structure returns a copy of the current hierarchy, nil for flat
// (remote) vaults.
func (s *Session) Structure() models.VaultStructure {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.structure.Clone()
}

// Current returns the most recently opened document, if any.
func (s *Session) Current() (models.Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[s.currentID]
	return doc, ok
}

// Status reports whether the vault finished loading and the last load
// error, for the UI's loading/error states.
func (s *Session) Status() (loaded bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded, s.loadErr
}

// Connected reports whether the vault loaded and no load error is
// outstanding.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded && s.loadErr == nil
}

// Synced reports whether every accepted body save has reached storage.
func (s *Session) Synced() bool {
	return s.saver.pendingCount() == 0
}

// rebuildLocked recomputes the index from the current document map.
// Callers hold s.mu.
func (s *Session) rebuildLocked() {
	docs := make([]models.Document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	s.index = index.Build(docs, s.logger)
}

func (s *Session) setLoadErr(err error) {
	s.mu.Lock()
	s.loadErr = err
	s.mu.Unlock()
}

func (s *Session) publish(kind, id string) {
	if s.events != nil {
		s.events(kind, id)
	}
}

func applyPatch(meta models.Metadata, p MetadataPatch) models.Metadata {
	if p.Title != nil {
		meta.Title = *p.Title
	}
	if p.Tags != nil {
		meta.Tags = *p.Tags
	}
	if p.Icon != nil {
		meta.Icon = *p.Icon
	}
	if p.Description != nil {
		meta.Description = *p.Description
	}
	if p.ParentID != nil {
		meta.ParentID = *p.ParentID
	}
	if p.Type != nil {
		meta.Type = *p.Type
	}
	return meta
}

func rootCount(st models.VaultStructure) int {
	n := 0
	for _, e := range st {
		if e.ParentID == "" {
			n++
		}
	}
	return n
}

func childrenOf(st models.VaultStructure, parent string) []string {
	var out []string
	for id, e := range st {
		if e.ParentID == parent {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := st[out[i]], st[out[j]]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return out[i] < out[j]
	})
	return out
}

func docsExcept(m map[string]models.Document, exclude string) []models.Document {
	out := make([]models.Document, 0, len(m))
	for id, d := range m {
		if id != exclude {
			out = append(out, d)
		}
	}
	return out
}
