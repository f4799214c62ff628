// Package structure computes new parent/order assignments for documents
// under move gestures. The resolver is pure: it takes the current
// structure and returns a complete replacement, leaving persistence to
// the vault session.
package structure

import (
	"fmt"
	"sort"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
)

// Kind selects the move semantics.
type Kind string

const (
	// KindReorder moves the active document to a sibling's position.
	KindReorder Kind = "reorder"
	// KindReparent moves the active document into a folder, appended
	// after the folder's existing children.
	KindReparent Kind = "reparent"
)

// Move is one user gesture against the hierarchy.
type Move struct {
	ActiveID string `json:"active_id"`
	TargetID string `json:"target_id"`
	Kind     Kind   `json:"kind"`
}

// Resolve applies m to s and returns the replacement structure. On any
// validation failure it returns apperr.ErrInvalidMove and the input
// structure is untouched.
//
// After Resolve, every sibling group holds a dense 0..n-1 order
// permutation.
func Resolve(m Move, docs map[string]models.Document, s models.VaultStructure) (models.VaultStructure, error) {
	active, ok := s[m.ActiveID]
	if !ok {
		return nil, fmt.Errorf("%w: unknown document %q", apperr.ErrInvalidMove, m.ActiveID)
	}
	if _, ok := s[m.TargetID]; !ok {
		return nil, fmt.Errorf("%w: unknown target %q", apperr.ErrInvalidMove, m.TargetID)
	}

	switch m.Kind {
	case KindReorder:
		return resolveReorder(m, active, s)
	case KindReparent:
		return resolveReparent(m, active, docs, s)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", apperr.ErrInvalidMove, m.Kind)
	}
}

func resolveReorder(m Move, active models.StructureEntry, s models.VaultStructure) (models.VaultStructure, error) {
	if s[m.TargetID].ParentID != active.ParentID {
		return nil, fmt.Errorf("%w: %q and %q are not siblings", apperr.ErrInvalidMove, m.ActiveID, m.TargetID)
	}

	out := s.Clone()
	if m.ActiveID == m.TargetID {
		return out, nil // already at its own position
	}

	sibs := siblings(s, active.ParentID)
	targetIdx := indexOf(sibs, m.TargetID)

	// List splice: remove active, reinsert at the target's original
	// index. With the active element gone, that index lands the active
	// document exactly where the target sat.
	removed := make([]string, 0, len(sibs)-1)
	for _, id := range sibs {
		if id != m.ActiveID {
			removed = append(removed, id)
		}
	}
	if targetIdx > len(removed) {
		targetIdx = len(removed)
	}
	reordered := make([]string, 0, len(sibs))
	reordered = append(reordered, removed[:targetIdx]...)
	reordered = append(reordered, m.ActiveID)
	reordered = append(reordered, removed[targetIdx:]...)

	assignDense(out, active.ParentID, reordered)
	return out, nil
}

func resolveReparent(m Move, active models.StructureEntry, docs map[string]models.Document, s models.VaultStructure) (models.VaultStructure, error) {
	if m.ActiveID == m.TargetID {
		return nil, fmt.Errorf("%w: cannot move %q into itself", apperr.ErrInvalidMove, m.ActiveID)
	}
	target, ok := docs[m.TargetID]
	if !ok || !target.Metadata.IsFolder() {
		return nil, fmt.Errorf("%w: target %q is not a folder", apperr.ErrInvalidMove, m.TargetID)
	}
	if isDescendant(s, m.TargetID, m.ActiveID) {
		return nil, fmt.Errorf("%w: %q is a descendant of %q", apperr.ErrInvalidMove, m.TargetID, m.ActiveID)
	}

	out := s.Clone()

	// Compact the old sibling group without the active document.
	oldGroup := make([]string, 0)
	for _, id := range siblings(s, active.ParentID) {
		if id != m.ActiveID {
			oldGroup = append(oldGroup, id)
		}
	}
	assignDense(out, active.ParentID, oldGroup)

	// Append at the end of the new parent's children.
	newGroup := make([]string, 0)
	for _, id := range siblings(s, m.TargetID) {
		if id != m.ActiveID {
			newGroup = append(newGroup, id)
		}
	}
	out[m.ActiveID] = models.StructureEntry{ParentID: m.TargetID, Order: len(newGroup)}
	return out, nil
}

// siblings returns the ids under parent sorted by order, ties broken by
// id so the sequence is deterministic.
func siblings(s models.VaultStructure, parent string) []string {
	var out []string
	for id, e := range s {
		if e.ParentID == parent {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := s[out[i]], s[out[j]]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return out[i] < out[j]
	})
	return out
}

// isDescendant reports whether id sits somewhere below ancestor. A
// visited set guards against pre-existing cycles in corrupted input.
func isDescendant(s models.VaultStructure, id, ancestor string) bool {
	visited := make(map[string]struct{})
	for cur := id; cur != ""; {
		entry, ok := s[cur]
		if !ok {
			return false
		}
		if entry.ParentID == ancestor {
			return true
		}
		if _, seen := visited[cur]; seen {
			return false
		}
		visited[cur] = struct{}{}
		cur = entry.ParentID
	}
	return false
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return len(ids)
}

func assignDense(s models.VaultStructure, parent string, ordered []string) {
	for i, id := range ordered {
		s[id] = models.StructureEntry{ParentID: parent, Order: i}
	}
}
