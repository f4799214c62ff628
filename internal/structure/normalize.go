package structure

import (
	"fmt"
	"sort"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
)

// Normalize reconciles a persisted structure against the actual
// document set: entries for unknown ids are dropped, entries pointing
// at a missing parent fall back to root, documents without an entry are
// appended at the end of the root group (oldest first), and every
// sibling group is re-densified. The second return reports whether
// anything changed.
func Normalize(s models.VaultStructure, docs []models.Document) (models.VaultStructure, bool) {
	known := make(map[string]models.Document, len(docs))
	for _, d := range docs {
		known[d.ID] = d
	}

	out := make(models.VaultStructure, len(docs))
	for id, e := range s {
		if _, ok := known[id]; !ok {
			continue
		}
		if e.ParentID != "" {
			if _, ok := known[e.ParentID]; !ok {
				e.ParentID = ""
			}
		}
		out[id] = e
	}

	var missing []string
	for _, d := range docs {
		if _, ok := out[d.ID]; !ok {
			missing = append(missing, d.ID)
		}
	}
	sort.Slice(missing, func(i, j int) bool {
		a, b := known[missing[i]].Metadata.Created, known[missing[j]].Metadata.Created
		if !a.Equal(b) {
			return a.Before(b)
		}
		return missing[i] < missing[j]
	})
	rootEnd := len(siblings(out, ""))
	for i, id := range missing {
		out[id] = models.StructureEntry{Order: rootEnd + i}
	}

	// Densify every group.
	parents := make(map[string]struct{})
	for _, e := range out {
		parents[e.ParentID] = struct{}{}
	}
	for parent := range parents {
		assignDense(out, parent, siblings(out, parent))
	}

	return out, !equal(s, out)
}

// SetParent moves id under parent, appended after the new group's
// existing members, compacting the old group. Unlike Resolve it accepts
// the root ("" parent) and does not check the target's document type;
// callers own that validation. It still refuses cycles.
func SetParent(s models.VaultStructure, id, parent string) (models.VaultStructure, error) {
	entry, ok := s[id]
	if !ok {
		return nil, fmt.Errorf("%w: unknown document %q", apperr.ErrInvalidMove, id)
	}
	if parent == id {
		return nil, fmt.Errorf("%w: cannot move %q into itself", apperr.ErrInvalidMove, id)
	}
	if parent != "" {
		if _, ok := s[parent]; !ok {
			return nil, fmt.Errorf("%w: unknown parent %q", apperr.ErrInvalidMove, parent)
		}
		if isDescendant(s, parent, id) {
			return nil, fmt.Errorf("%w: %q is a descendant of %q", apperr.ErrInvalidMove, parent, id)
		}
	}

	out := s.Clone()
	oldGroup := make([]string, 0)
	for _, sib := range siblings(s, entry.ParentID) {
		if sib != id {
			oldGroup = append(oldGroup, sib)
		}
	}
	assignDense(out, entry.ParentID, oldGroup)

	newGroup := make([]string, 0)
	for _, sib := range siblings(s, parent) {
		if sib != id {
			newGroup = append(newGroup, sib)
		}
	}
	out[id] = models.StructureEntry{ParentID: parent, Order: len(newGroup)}
	return out, nil
}

func equal(a, b models.VaultStructure) bool {
	if len(a) != len(b) {
		return false
	}
	for id, e := range a {
		if b[id] != e {
			return false
		}
	}
	return true
}
