// Package regen recomputes note lines from the vocabulary dataset and decides
// whether a note is out of date.
package regen

import (
	"strings"

	"github.com/starford/notelinker/internal/parser"
	"github.com/starford/notelinker/internal/vocab"
)

// Default separators.
const (
	DefaultMeaningSeparator = ", "
	DefaultReadingSeparator = "・"
	// CopyReadingSeparator joins readings in the line copied for a subject.
	CopyReadingSeparator = "、"
)

// Options configures regeneration.
type Options struct {
	Parser           parser.Options
	MeaningSeparator string
	ReadingSeparator string
}

// DefaultOptions returns the default regeneration options.
func DefaultOptions() Options {
	return Options{
		Parser:           parser.DefaultOptions(),
		MeaningSeparator: DefaultMeaningSeparator,
		ReadingSeparator: DefaultReadingSeparator,
	}
}

// Change describes one rewritten line.
type Change struct {
	Line   int    `json:"line"`
	Slug   string `json:"slug"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// Regenerate returns note with every dataset-backed entry line rewritten from
// lookup. Lines of entries that are not included, overridden, or unknown to
// the lookup are preserved verbatim, as is every non-entry line.
func Regenerate(note string, lookup vocab.Lookup, opts Options) string {
	out, _ := regenerate(note, lookup, opts)
	return out
}

// Diff returns the line changes Regenerate would apply.
func Diff(note string, lookup vocab.Lookup, opts Options) []Change {
	_, changes := regenerate(note, lookup, opts)
	return changes
}

// NeedsUpdate reports whether Regenerate would change note.
func NeedsUpdate(note string, lookup vocab.Lookup, opts Options) bool {
	return Regenerate(note, lookup, opts) != note
}

func regenerate(note string, lookup vocab.Lookup, opts Options) (string, []Change) {
	if lookup == nil {
		lookup = vocab.Empty
	}
	delim := opts.Parser.Delimiter
	if delim == "" {
		delim = parser.DefaultDelimiter
	}

	lines := parser.SplitLines(note, delim)
	raw := make([]string, len(lines))
	for i, l := range lines {
		raw[i] = l.Raw
	}

	var changes []Change
	for _, e := range parser.Entries(parser.GroupLines(lines, opts.Parser)) {
		if e.NotIncluded || e.Override {
			continue
		}
		rec, ok := lookup.Get(e.Slug)
		if !ok {
			continue
		}

		meanings := clean(strings.Join(rec.OrderedMeanings(), meaningSep(opts)), delim)
		updated := strings.TrimSpace(parser.FormatLine(e.Slug, metadataFor(e, rec, opts, delim), meanings))
		before := lines[e.LineIndex]
		after := keepPadding(before.Raw, updated)
		if after == before.Raw {
			continue
		}
		raw[e.LineIndex] = after
		changes = append(changes, Change{Line: e.LineIndex, Slug: e.Slug, Before: before.Text, After: updated})
	}

	if len(changes) == 0 {
		return note, nil
	}
	return strings.Join(raw, delim), changes
}

func metadataFor(e *parser.Entry, rec *vocab.Record, opts Options, delim string) string {
	if e.Metadata != "" {
		return e.Metadata
	}
	sep := opts.ReadingSeparator
	if sep == "" {
		sep = DefaultReadingSeparator
	}
	readings := clean(strings.Join(rec.ReadingTexts(), sep), delim)
	return strings.ReplaceAll(readings, parser.CloseBracket, "")
}

// clean keeps dataset text on a single line so the note's line count and
// the entry's bracket structure survive a re-parse.
func clean(s, delim string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, delim, " "))
}

func meaningSep(opts Options) string {
	if opts.MeaningSeparator == "" {
		return DefaultMeaningSeparator
	}
	return opts.MeaningSeparator
}

// keepPadding replaces the trimmed content of raw with text, keeping the
// surrounding whitespace.
func keepPadding(raw, text string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return text
	}
	start := strings.Index(raw, trimmed)
	return raw[:start] + text + raw[start+len(trimmed):]
}

// CopyLine renders the canonical line for rec as copied from a subject page:
// readings joined with "、" and meanings primary-first.
func CopyLine(rec *vocab.Record, meaningSeparator string) string {
	if meaningSeparator == "" {
		meaningSeparator = DefaultMeaningSeparator
	}
	return parser.FormatLine(rec.Slug,
		strings.Join(rec.ReadingTexts(), CopyReadingSeparator),
		strings.Join(rec.OrderedMeanings(), meaningSeparator))
}
