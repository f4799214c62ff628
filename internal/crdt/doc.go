// Package crdt is the bridge to the replicated-document runtime. The
// engine never constructs wire-level replication updates itself; it only
// holds live Doc instances, reads their block content, and replaces it
// wholesale when a transported state is applied.
package crdt

import (
	"strings"
	"sync"
)

// Block types.
const (
	BlockParagraph = "paragraph"
	BlockHeading   = "heading"
)

// Block is one content block of a replicated document.
type Block struct {
	Type  string `json:"type"`
	Level int    `json:"level,omitempty"` // 1..6, headings only
	Text  string `json:"text"`
}

// Doc is an in-memory replicated document instance. Concurrent mutation
// is possible: a live collaborative peer may apply state while the
// session reads content for an index rebuild, so access is guarded.
type Doc struct {
	mu     sync.Mutex
	blocks []Block
	subs   []func()
}

// NewDoc returns an empty document instance.
func NewDoc() *Doc {
	return &Doc{}
}

// Blocks returns a copy of the current block list.
func (d *Doc) Blocks() []Block {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Block, len(d.blocks))
	copy(out, d.blocks)
	return out
}

// SetBlocks replaces the document content. This is the mutation entry
// point used by the editing surface and by state application; replacing
// wholesale is what makes re-applying the same state idempotent.
func (d *Doc) SetBlocks(blocks []Block) {
	d.mu.Lock()
	d.blocks = make([]Block, len(blocks))
	copy(d.blocks, blocks)
	subs := d.subs
	d.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// PlainText returns the concatenated text of all blocks, one block per
// line. This is the view the index builder scans for link tokens.
func (d *Doc) PlainText() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	parts := make([]string, len(d.blocks))
	for i, b := range d.blocks {
		parts[i] = b.Text
	}
	return strings.Join(parts, "\n")
}

// OnChange registers fn to run after every content replacement. The
// editing surface uses this to schedule debounced body saves.
func (d *Doc) OnChange(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = append(d.subs, fn)
}
