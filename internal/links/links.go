// Package links derives aggregate link entries from parsed note groups and
// renders link sections.
package links

import (
	"strings"

	"github.com/starford/notelinker/internal/parser"
)

// Labels of synthesized links.
const (
	LabelAll          = "All"
	LabelEverything   = "Everything"
	LabelCopy         = "Copy"
	LabelCopyUnlinked = "Copy (unlinked)"
)

// AllEntry builds an aggregate entry opening every linkable entry except the
// current subject. Targets are de-duplicated keeping the first occurrence.
func AllEntry(entries []*parser.Entry, subject parser.Subject) *parser.Entry {
	return aggregate(parser.KindAll, LabelAll, entries, subject)
}

// EverythingEntry is AllEntry over every entry of every group.
func EverythingEntry(groups []parser.Group, subject parser.Subject) *parser.Entry {
	return aggregate(parser.KindEverything, LabelEverything, parser.Entries(groups), subject)
}

func aggregate(kind parser.Kind, label string, entries []*parser.Entry, subject parser.Subject) *parser.Entry {
	seen := make(map[string]struct{}, len(entries))
	var targets []string
	for _, e := range entries {
		if !e.IsVocab() || e.URL == "" {
			continue
		}
		if subject.Slug != "" && e.Slug == subject.Slug {
			continue
		}
		if _, dup := seen[e.URL]; dup {
			continue
		}
		seen[e.URL] = struct{}{}
		targets = append(targets, e.URL)
	}

	return &parser.Entry{
		Kind:      kind,
		LineIndex: -1,
		Link: &parser.Link{
			Kind:    kind,
			Label:   label,
			Targets: targets,
		},
	}
}

// CopyEntry builds an entry whose payload is every vocab entry of g in the
// canonical line format, joined with delim. It returns nil when g has no
// vocab entries.
func CopyEntry(g parser.Group, delim string) *parser.Entry {
	var lines []string
	linkable := false
	for _, e := range g {
		if !e.IsVocab() {
			continue
		}
		lines = append(lines, e.Line())
		if !e.NotIncluded {
			linkable = true
		}
	}
	if len(lines) == 0 {
		return nil
	}

	label := LabelCopy
	if !linkable {
		label = LabelCopyUnlinked
	}

	return &parser.Entry{
		Kind:      parser.KindCopy,
		LineIndex: -1,
		Link: &parser.Link{
			Kind:    parser.KindCopy,
			Label:   label,
			Payload: strings.Join(lines, delim),
		},
	}
}

// AddAllLinks appends an All entry to every group holding more than one
// linkable entry.
func AddAllLinks(groups []parser.Group, subject parser.Subject) []parser.Group {
	out := make([]parser.Group, len(groups))
	for i, g := range groups {
		if countLinkable(g) < 2 {
			out[i] = g
			continue
		}
		out[i] = appendEntry(g, AllEntry(g, subject))
	}
	return out
}

// AddCopyLinks appends a Copy entry to every group holding a vocab entry.
func AddCopyLinks(groups []parser.Group, delim string) []parser.Group {
	out := make([]parser.Group, len(groups))
	for i, g := range groups {
		if c := CopyEntry(g, delim); c != nil {
			out[i] = appendEntry(g, c)
			continue
		}
		out[i] = g
	}
	return out
}

// AddEverythingLink appends a trailing singleton group with an Everything
// entry when at least two groups contain a linkable entry.
func AddEverythingLink(groups []parser.Group, subject parser.Subject) []parser.Group {
	qualifying := 0
	for _, g := range groups {
		if countLinkable(g) > 0 {
			qualifying++
		}
	}
	if qualifying < 2 {
		return groups
	}

	out := make([]parser.Group, 0, len(groups)+1)
	out = append(out, groups...)
	return append(out, parser.Group{EverythingEntry(groups, subject)})
}

// Decorate applies every derivation in display order: All, Copy, Everything.
func Decorate(groups []parser.Group, opts parser.Options) []parser.Group {
	delim := opts.Delimiter
	if delim == "" {
		delim = parser.DefaultDelimiter
	}
	groups = AddAllLinks(groups, opts.Subject)
	groups = AddCopyLinks(groups, delim)
	return AddEverythingLink(groups, opts.Subject)
}

func countLinkable(g parser.Group) int {
	n := 0
	for _, e := range g {
		if e.IsVocab() && e.URL != "" {
			n++
		}
	}
	return n
}

// appendEntry never aliases the backing array of g.
func appendEntry(g parser.Group, e *parser.Entry) parser.Group {
	out := make(parser.Group, 0, len(g)+1)
	out = append(out, g...)
	return append(out, e)
}
