package structure

import (
	"errors"
	"testing"
	"time"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/models"
)

func docAt(id string, created time.Time) models.Document {
	return models.Document{ID: id, Metadata: models.Metadata{Title: id, Created: created}}
}

func TestNormalize_AppendsMissingAtRoot(t *testing.T) {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	docs := []models.Document{
		docAt("a", base),
		docAt("new2", base.Add(2*time.Hour)),
		docAt("new1", base.Add(time.Hour)),
	}
	s := models.VaultStructure{"a": {Order: 0}}

	out, changed := Normalize(s, docs)
	if !changed {
		t.Fatal("expected change")
	}
	if out["a"].Order != 0 || out["new1"].Order != 1 || out["new2"].Order != 2 {
		t.Errorf("orders = a:%d new1:%d new2:%d", out["a"].Order, out["new1"].Order, out["new2"].Order)
	}
}

func TestNormalize_DropsStaleAndCompacts(t *testing.T) {
	docs := []models.Document{docAt("a", time.Time{}), docAt("c", time.Time{})}
	s := models.VaultStructure{
		"a":    {Order: 0},
		"gone": {Order: 1},
		"c":    {Order: 2},
	}
	out, changed := Normalize(s, docs)
	if !changed {
		t.Fatal("expected change")
	}
	if _, ok := out["gone"]; ok {
		t.Error("stale entry kept")
	}
	if out["a"].Order != 0 || out["c"].Order != 1 {
		t.Errorf("group not compacted: %+v", out)
	}
}

func TestNormalize_OrphanedParentFallsBackToRoot(t *testing.T) {
	docs := []models.Document{docAt("child", time.Time{})}
	s := models.VaultStructure{"child": {ParentID: "vanished", Order: 0}}

	out, changed := Normalize(s, docs)
	if !changed {
		t.Fatal("expected change")
	}
	if out["child"].ParentID != "" {
		t.Errorf("parent = %q, want root", out["child"].ParentID)
	}
}

func TestNormalize_NoChangeIsStable(t *testing.T) {
	docs := []models.Document{docAt("a", time.Time{}), docAt("b", time.Time{})}
	s := models.VaultStructure{"a": {Order: 0}, "b": {Order: 1}}
	out, changed := Normalize(s, docs)
	if changed {
		t.Errorf("unexpected change: %+v", out)
	}
}

func TestSetParent_MoveToRoot(t *testing.T) {
	s := models.VaultStructure{
		"F": {Order: 0},
		"x": {ParentID: "F", Order: 0},
		"y": {ParentID: "F", Order: 1},
	}
	out, err := SetParent(s, "x", "")
	if err != nil {
		t.Fatalf("SetParent: %v", err)
	}
	if out["x"].ParentID != "" || out["x"].Order != 1 {
		t.Errorf("x = %+v, want root order 1", out["x"])
	}
	if out["y"].Order != 0 {
		t.Errorf("old group not compacted: y = %+v", out["y"])
	}
}

func TestSetParent_RefusesCycle(t *testing.T) {
	s := models.VaultStructure{
		"F": {Order: 0},
		"x": {ParentID: "F", Order: 0},
	}
	if _, err := SetParent(s, "F", "x"); !errors.Is(err, apperr.ErrInvalidMove) {
		t.Errorf("err = %v, want ErrInvalidMove", err)
	}
}
