// Package index builds the derived vault view: link graph, backlinks,
// and heading outlines. The index is recomputed in full from a
// point-in-time document snapshot on every invocation; there is no
// incremental update path, which is what keeps the backlink symmetry
// invariant trivial to uphold.
package index

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/starford/othala/internal/codec"
	"github.com/starford/othala/internal/crdt"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/parser"
)

// Build produces a fresh VaultIndex from the given documents.
//
// A document whose body fails to decode still appears in the index with
// its title and empty links/headers; one bad document never aborts the
// rebuild. Backlinks are only recorded for targets that exist in the
// snapshot; dangling targets stay in Links.
func Build(docs []models.Document, logger *slog.Logger) models.VaultIndex {
	if logger == nil {
		logger = slog.Default()
	}

	idx := models.VaultIndex{
		Documents: make(map[string]models.DocumentIndex, len(docs)),
	}

	for _, doc := range docs {
		entry := models.DocumentIndex{
			ID:        doc.ID,
			Title:     doc.Metadata.Title,
			Links:     []string{},
			Backlinks: []string{},
			Headers:   []models.Header{},
		}

		d := crdt.NewDoc()
		if err := codec.Decode(doc.Body, d); err != nil {
			logger.Warn("index: body decode failed, degrading document",
				slog.String("id", doc.ID),
				slog.String("error", err.Error()))
			idx.Documents[doc.ID] = entry
			continue
		}

		for _, b := range d.Blocks() {
			if b.Type != crdt.BlockHeading {
				continue
			}
			level := b.Level
			if level < 1 {
				level = 1
			} else if level > 6 {
				level = 6
			}
			entry.Headers = append(entry.Headers, models.Header{
				Level: level,
				Text:  b.Text,
				Slug:  parser.Slugify(b.Text),
			})
		}

		if links := parser.ExtractLinkTargets(d.PlainText()); links != nil {
			entry.Links = links
		}
		idx.Documents[doc.ID] = entry
	}

	// Invert the link relation. Iterating the input slice keeps backlink
	// order deterministic across rebuilds.
	for _, doc := range docs {
		source := idx.Documents[doc.ID]
		for _, target := range source.Links {
			dst, ok := idx.Documents[target]
			if !ok {
				continue // dangling link, no backlink entry
			}
			dst.Backlinks = append(dst.Backlinks, doc.ID)
			idx.Documents[target] = dst
		}
	}

	idx.LastUpdated = time.Now()
	return idx
}

// TitleMatch is one hit from MatchTitles.
type TitleMatch struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Exact bool   `json:"exact"`
}

// MatchTitles returns documents whose title matches query exactly or by
// case-insensitive substring, exact hits first. This is the only search
// the engine does; ranking is someone else's job.
func MatchTitles(idx models.VaultIndex, query string) []TitleMatch {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}

	var out []TitleMatch
	for _, entry := range idx.Documents {
		title := strings.ToLower(entry.Title)
		if !strings.Contains(title, q) {
			continue
		}
		out = append(out, TitleMatch{
			ID:    entry.ID,
			Title: entry.Title,
			Exact: title == q,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Exact != out[j].Exact {
			return out[i].Exact
		}
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out
}
