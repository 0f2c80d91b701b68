package parser

import "strings"

// Line is one delimiter-separated segment of a note.
type Line struct {
	Index int
	// Raw is the segment exactly as it appears in the note.
	Raw string
	// Text is Raw with surrounding whitespace removed.
	Text string
}

// SplitLines splits note on delim, keeping both the raw and trimmed text.
func SplitLines(note, delim string) []Line {
	if delim == "" {
		delim = DefaultDelimiter
	}
	parts := strings.Split(note, delim)
	lines := make([]Line, len(parts))
	for i, raw := range parts {
		lines[i] = Line{Index: i, Raw: raw, Text: strings.TrimSpace(raw)}
	}
	return lines
}

// ParseGroups partitions note into groups of contiguous entries. Any
// non-entry line closes the current group; empty groups are dropped.
func ParseGroups(note string, opts Options) []Group {
	return GroupLines(SplitLines(note, opts.delimiter()), opts)
}

// GroupLines is ParseGroups over already split lines.
func GroupLines(lines []Line, opts Options) []Group {
	groups := []Group{{}}

	for _, line := range lines {
		current := groups[len(groups)-1]

		entry := ParseEntry(line.Text, line.Index, opts)
		if entry == nil {
			if len(current) > 0 {
				groups = append(groups, Group{})
			}
			continue
		}

		groups[len(groups)-1] = append(current, entry)
	}

	// Notes ending in blank lines or remarks leave an empty trailing group.
	out := groups[:0]
	for _, g := range groups {
		if len(g) > 0 {
			out = append(out, g)
		}
	}
	return out
}

// Entries flattens groups into a single slice preserving order.
func Entries(groups []Group) []*Entry {
	var out []*Entry
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
