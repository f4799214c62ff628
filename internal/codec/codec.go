// Package codec converts in-memory replicated documents to and from a
// transportable opaque string. The encoded form is a versioned JSON
// envelope, base64-encoded so it can travel through any text channel or
// storage column.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/starford/othala/internal/crdt"
)

const envelopeVersion = 1

type envelope struct {
	V      int          `json:"v"`
	Blocks []crdt.Block `json:"blocks"`
}

// Encode produces the transportable representation of the document's
// current logical content. It is pure: equal content yields equal output.
func Encode(d *crdt.Doc) string {
	env := envelope{V: envelopeVersion, Blocks: d.Blocks()}
	if env.Blocks == nil {
		env.Blocks = []crdt.Block{}
	}
	raw, err := json.Marshal(env)
	if err != nil {
		// Envelope only contains plain strings and ints; marshal cannot
		// fail for reachable states.
		return ""
	}
	return base64.StdEncoding.EncodeToString(raw)
}

// Decode applies a previously encoded state onto d, replacing its
// content wholesale, so re-applying the same state is idempotent.
//
// An empty input is a no-op, not an error. A corrupt input returns an
// error and leaves d in its prior state; callers log and degrade rather
// than failing the enclosing operation.
func Decode(encoded string, d *crdt.Doc) error {
	if encoded == "" {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("codec: decode base64: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("codec: decode envelope: %w", err)
	}
	if env.V != envelopeVersion {
		return fmt.Errorf("codec: unsupported state version %d", env.V)
	}
	d.SetBlocks(env.Blocks)
	return nil
}
