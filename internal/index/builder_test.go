package index

import (
	"reflect"
	"testing"

	"github.com/starford/othala/internal/codec"
	"github.com/starford/othala/internal/crdt"
	"github.com/starford/othala/internal/models"
)

func doc(id, title string, blocks ...crdt.Block) models.Document {
	d := crdt.NewDoc()
	d.SetBlocks(blocks)
	return models.Document{
		ID:       id,
		Metadata: models.Metadata{Title: title, Type: models.TypeDocument},
		Body:     codec.Encode(d),
		Version:  models.SchemaVersion,
	}
}

func para(text string) crdt.Block {
	return crdt.Block{Type: crdt.BlockParagraph, Text: text}
}

func heading(level int, text string) crdt.Block {
	return crdt.Block{Type: crdt.BlockHeading, Level: level, Text: text}
}

func TestBuild_BacklinkScenario(t *testing.T) {
	a := doc("A", "Alpha")
	b := doc("B", "Beta", para("see [[A]]"))
	c := doc("C", "Gamma", para("see [[A]] and [[B#intro]]"))

	idx := Build([]models.Document{a, b, c}, nil)

	if got := idx.Documents["A"].Backlinks; !reflect.DeepEqual(got, []string{"B", "C"}) {
		t.Errorf("backlinks(A) = %v, want [B C]", got)
	}
	if got := idx.Documents["B"].Backlinks; !reflect.DeepEqual(got, []string{"C"}) {
		t.Errorf("backlinks(B) = %v, want [C]", got)
	}
	if got := idx.Documents["C"].Backlinks; len(got) != 0 {
		t.Errorf("backlinks(C) = %v, want empty", got)
	}
	if got := idx.Documents["C"].Links; !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("links(C) = %v, want [A B]", got)
	}
}

func TestBuild_BacklinkSymmetry(t *testing.T) {
	docs := []models.Document{
		doc("x", "X", para("[[y]] [[z]] [[x]]")),
		doc("y", "Y", para("[[x]]")),
		doc("z", "Z"),
	}
	idx := Build(docs, nil)

	contains := func(s []string, v string) bool {
		for _, e := range s {
			if e == v {
				return true
			}
		}
		return false
	}
	for aID, a := range idx.Documents {
		for bID, b := range idx.Documents {
			inLinks := contains(b.Links, aID)
			inBacklinks := contains(a.Backlinks, bID)
			if inLinks != inBacklinks {
				t.Errorf("symmetry broken: %s in links(%s)=%v, %s in backlinks(%s)=%v",
					aID, bID, inLinks, bID, aID, inBacklinks)
			}
		}
	}
}

func TestBuild_DanglingLinkKeptWithoutBacklink(t *testing.T) {
	idx := Build([]models.Document{doc("a", "A", para("[[ghost]]"))}, nil)

	if got := idx.Documents["a"].Links; !reflect.DeepEqual(got, []string{"ghost"}) {
		t.Errorf("links = %v, want [ghost]", got)
	}
	if _, ok := idx.Documents["ghost"]; ok {
		t.Error("dangling target must not create an index entry")
	}
}

func TestBuild_CorruptBodyIsolation(t *testing.T) {
	bad := models.Document{
		ID:       "bad",
		Metadata: models.Metadata{Title: "Broken"},
		Body:     "%%% definitely not encoded state %%%",
	}
	good := doc("good", "Fine", para("[[bad]]"))

	idx := Build([]models.Document{bad, good}, nil)

	entry, ok := idx.Documents["bad"]
	if !ok {
		t.Fatal("corrupt document missing from index")
	}
	if entry.Title != "Broken" {
		t.Errorf("title = %q, want Broken", entry.Title)
	}
	if len(entry.Links) != 0 || len(entry.Headers) != 0 {
		t.Errorf("corrupt document should degrade to empty links/headers, got %+v", entry)
	}
	// The healthy document still links to it.
	if got := idx.Documents["bad"].Backlinks; !reflect.DeepEqual(got, []string{"good"}) {
		t.Errorf("backlinks = %v, want [good]", got)
	}
}

func TestBuild_Headers(t *testing.T) {
	d := doc("h", "Headers",
		heading(1, "Getting Started"),
		para("body text"),
		heading(3, "FAQ (v2)"),
		heading(9, "Clamped"),
	)
	idx := Build([]models.Document{d}, nil)

	headers := idx.Documents["h"].Headers
	want := []models.Header{
		{Level: 1, Text: "Getting Started", Slug: "getting-started"},
		{Level: 3, Text: "FAQ (v2)", Slug: "faq-v2"},
		{Level: 6, Text: "Clamped", Slug: "clamped"},
	}
	if !reflect.DeepEqual(headers, want) {
		t.Errorf("headers = %+v, want %+v", headers, want)
	}
}

func TestBuild_SlugCollisionsAllowed(t *testing.T) {
	d := doc("s", "Slugs", heading(2, "Setup"), heading(2, "Setup"))
	idx := Build([]models.Document{d}, nil)
	headers := idx.Documents["s"].Headers
	if len(headers) != 2 || headers[0].Slug != headers[1].Slug {
		t.Errorf("colliding slugs must both survive: %+v", headers)
	}
}

func TestBuild_StampsLastUpdated(t *testing.T) {
	idx := Build(nil, nil)
	if idx.LastUpdated.IsZero() {
		t.Error("LastUpdated not stamped")
	}
	if idx.Documents == nil {
		t.Error("Documents map must be non-nil")
	}
}

func TestMatchTitles(t *testing.T) {
	idx := Build([]models.Document{
		doc("1", "Project Notes"),
		doc("2", "notes"),
		doc("3", "Unrelated"),
	}, nil)

	got := MatchTitles(idx, "Notes")
	if len(got) != 2 {
		t.Fatalf("hits = %d, want 2", len(got))
	}
	if !got[0].Exact || got[0].ID != "2" {
		t.Errorf("first hit should be the exact match, got %+v", got[0])
	}
	if got[1].ID != "1" {
		t.Errorf("second hit = %+v, want id 1", got[1])
	}
	if MatchTitles(idx, "  ") != nil {
		t.Error("blank query should return nothing")
	}
}
