// Package parser extracts link tokens and heading slugs from plain text.
package parser

import (
	"regexp"
	"strings"
)

var (
	linkRe     = regexp.MustCompile(`\[\[(.*?)\]\]`)
	nonWordRe  = regexp.MustCompile(`[^\w\s-]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// ExtractLinkTargets scans text for [[<id>]] and [[<id>#<slug>]] tokens
// and returns the deduplicated target ids in order of first appearance.
// Targets are recorded whether or not they resolve to a real document.
func ExtractLinkTargets(text string) []string {
	matches := linkRe.FindAllStringSubmatch(text, -1)
	seen := make(map[string]struct{}, len(matches))
	var out []string
	for _, m := range matches {
		target := m[1]
		// Drop an optional #slug fragment.
		if i := strings.Index(target, "#"); i >= 0 {
			target = target[:i]
		}
		target = strings.TrimSpace(target)
		if target == "" {
			continue
		}
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}

// Slugify normalises a heading into its anchor slug: lowercase, strip
// non-word characters, hyphenate whitespace. Slugs are not deduplicated
// within a document; colliding headings share an anchor.
func Slugify(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	s = nonWordRe.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
