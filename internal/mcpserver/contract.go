package mcpserver

// DocumentFormatContract describes the canonical document shape that
// LLM consumers should follow when creating or referencing documents.
const DocumentFormatContract = `# Othala Document Format Contract

Every document stored in an Othala vault follows this structure.

## Identity

- Documents are addressed by an opaque **id** (a UUID), never by title.
- Titles are display metadata; duplicates are allowed.

## Metadata

` + "```" + `json
{
  "title": "Human-readable title",   // REQUIRED - used in search and sidebar
  "tags": ["tag-one", "tag-two"],    // OPTIONAL - lowercase, kebab-case
  "icon": "book",                    // OPTIONAL
  "description": "One-line summary", // OPTIONAL
  "parent_id": "",                   // OPTIONAL - hierarchy parent, "" for root
  "type": "document"                 // "document" or "folder"
}
` + "```" + `

## Body and links

- Bodies are rich-text block sequences; tools expose them as plain text.
- Reference other documents with double brackets around the target id:
  ` + "`" + `[[b2c3d4e5-...]]` + "`" + `.
- A heading anchor may follow the id: ` + "`" + `[[b2c3d4e5-...#section-slug]]` + "`" + `.
  The fragment is ignored for link-graph purposes.
- Links to ids that do not exist are allowed (dangling links); they gain
  no backlink until the target is created.

## Rules

1. **Only folders can contain children.** Setting a document's parent to
   a non-folder is rejected.
2. **Sibling order is dense.** Positions within one parent run 0..n-1
   with no gaps; use the move tools rather than editing order directly.
3. **Tags** are lowercase, kebab-case (e.g. ` + "`" + `project-x` + "`" + `, ` + "`" + `meeting-notes` + "`" + `).
4. **Heading slugs** are derived from heading text (lowercased,
   punctuation stripped, spaces to hyphens) and may collide; anchors
   resolve to the first occurrence.
`
