package mcpserver

// MarkupContract describes the stored post format that LLM consumers should
// follow when creating posts.
const MarkupContract = `# vowpost Markup Contract

Every post stored in vowpost is an HTML fragment in a file ending in ` + "`" + `.html` + "`" + `.

## Structure

` + "```" + `html
---
title: The Barn at Millbrook      # OPTIONAL, defaults to the first <h1>
tags:                             # OPTIONAL, YAML list used for filtering
  - venues
  - rustic
---
<div id="table-of-contents"></div>
<h1>The Barn at Millbrook</h1>
<p>Rustic charm twenty minutes from town.</p>
<h2>Capacity</h2>
<p>Up to 180 seated guests.</p>
<h3>Ceremony</h3>
` + "```" + `

## Rules

1. **Front matter is optional.** When present the ` + "`" + `---` + "`" + ` fences must be the first
   thing in the file. Keys are English; values may use any language.
2. **Headings are <h1> to <h6>.** Nest them in order; skipped levels are allowed but
   render shallower than expected in the table of contents.
3. **Heading ids are assigned for you.** Headings without an ` + "`" + `id` + "`" + ` receive one
   (` + "`" + `heading-0` + "`" + `, ` + "`" + `heading-1` + "`" + `, ...) the first time the post is stored. Existing ids are
   kept, so links to ` + "`" + `#heading-3` + "`" + ` stay valid across edits. Never reuse an id.
4. **Inline table of contents.** Put an empty ` + "`" + `<div id="table-of-contents"></div>` + "`" + `
   where the contents list should appear. Its children are regenerated on every write;
   anything you put inside it is replaced. Omit it for no inline list.
5. **Markdown input** is accepted by ` + "`" + `create_document` + "`" + ` with ` + "`" + `format: markdown` + "`" + `;
   it is converted to HTML before ids are assigned.
6. **File paths** end with ` + "`" + `.html` + "`" + ` and use forward slashes.
7. **Encoding** is UTF-8.

## Navigation

- ` + "`" + `get_outline` + "`" + ` returns the headings of a post with their ids and nesting.
- ` + "`" + `search_headings` + "`" + ` finds a heading across all posts; link to it with
  ` + "`" + `<path>#<id>` + "`" + `.
- ` + "`" + `sync_markup` + "`" + ` shows what a post will look like after ids are assigned, without
  storing anything.
`
