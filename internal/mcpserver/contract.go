package mcpserver

// NoteFormatContract describes the study note format that LLM consumers
// should follow when writing entry lines.
const NoteFormatContract = `# Study Note Format Contract

Notes are plain text files stored at ` + "`" + `<type>/<slug>/<kind>.md` + "`" + `, for example
` + "`" + `vocabulary/大変/meaning.md` + "`" + `. The path names the subject page the note belongs to.

## Entry lines

Each vocabulary entry is one line:

` + "```" + `
slug（metadata）meanings
` + "```" + `

- The brackets are the full-width ` + "`" + `（` + "`" + ` and ` + "`" + `）` + "`" + `.
- ` + "`" + `slug` + "`" + ` is everything before the first ` + "`" + `（` + "`" + `.
- ` + "`" + `metadata` + "`" + ` usually holds the readings, joined with ` + "`" + `・` + "`" + `.
- ` + "`" + `meanings` + "`" + ` holds the meanings, primary meaning first, joined with ` + "`" + `, ` + "`" + `.
- A line without ` + "`" + `（` + "`" + ` is not an entry.

## Markers

Markers go inside the metadata:

- ` + "`" + `not on WK` + "`" + ` or ` + "`" + `not in WK` + "`" + `: the word has no subject page. The entry gets no link
  and is never regenerated.
- ` + "`" + `override` + "`" + `: keep the line exactly as written, even when the dataset disagrees.

## Groups

Consecutive entry lines form a group. Any other line (blank, prose) ends the group.
Each group gets an All link when it has two or more linked entries and a Copy link
with its lines. An Everything link is added when two or more groups have links.

## Example

` + "```" + `
深刻（しんこく）Serious, Grave
本気（ほんき）Seriousness, Earnestness

真面目（まじめ・not on WK）Diligent
` + "```" + `
`
