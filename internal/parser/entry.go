// Package parser turns note text into typed vocabulary entries and groups.
package parser

import (
	"fmt"
	"net/url"
	"strings"
)

// Kind distinguishes real entries from synthesized link entries.
type Kind int

const (
	KindVocab Kind = iota
	KindAll
	KindCopy
	KindEverything
)

func (k Kind) String() string {
	switch k {
	case KindVocab:
		return "vocab"
	case KindAll:
		return "all"
	case KindCopy:
		return "copy"
	case KindEverything:
		return "everything"
	}
	return "unknown"
}

// MarshalText lets Kind appear as a string in JSON payloads.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	for _, c := range []Kind{KindVocab, KindAll, KindCopy, KindEverything} {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("parser: unknown entry kind %q", b)
}

// Link is a rendered navigation affordance. Formatters decide how it is
// serialized for a given surface.
type Link struct {
	Kind  Kind   `json:"kind"`
	Label string `json:"label"`
	// Target is the URL of a single-entry link.
	Target string `json:"target,omitempty"`
	// Targets lists the URLs opened by an aggregate link, in order.
	Targets []string `json:"targets,omitempty"`
	// Payload is the clipboard text of a copy link.
	Payload string `json:"payload,omitempty"`
	// Current marks the link pointing at the current subject.
	Current bool `json:"current,omitempty"`
}

// Entry is one parsed note line, or a synthesized link entry.
type Entry struct {
	Kind        Kind   `json:"kind"`
	Slug        string `json:"slug,omitempty"`
	Metadata    string `json:"metadata,omitempty"`
	Meanings    string `json:"meanings,omitempty"`
	NotIncluded bool   `json:"not_included,omitempty"`
	Override    bool   `json:"override,omitempty"`
	LineIndex   int    `json:"line_index"`
	URL         string `json:"url,omitempty"`
	Link        *Link  `json:"link,omitempty"`
}

// IsVocab reports whether e was parsed from a note line.
func (e *Entry) IsVocab() bool {
	return e != nil && e.Kind == KindVocab
}

// Group is a contiguous run of entries.
type Group []*Entry

// ParseEntry parses a single trimmed line. It returns nil when the line does
// not contain an opening bracket. Missing closing brackets yield empty
// metadata and meanings, never an error.
func ParseEntry(line string, lineIndex int, opts Options) *Entry {
	open := strings.Index(line, OpenBracket)
	if open < 0 {
		return nil
	}

	e := &Entry{
		Kind:      KindVocab,
		Slug:      line[:open],
		LineIndex: lineIndex,
	}

	rest := line[open+len(OpenBracket):]
	if closeIdx := strings.Index(rest, CloseBracket); closeIdx >= 0 {
		e.Metadata = rest[:closeIdx]
		e.Meanings = rest[closeIdx+len(CloseBracket):]
	}

	e.NotIncluded = containsAny(e.Metadata, opts.NotIncludedMarkers)
	e.Override = containsAny(e.Metadata, opts.OverrideMarkers)

	if !e.NotIncluded && e.Slug != "" {
		e.URL = EntryURL(opts.BaseURL, opts.Subject.Type, e.Slug)
		e.Link = &Link{
			Kind:    KindVocab,
			Label:   e.Slug,
			Target:  e.URL,
			Current: opts.Subject.Slug != "" && e.Slug == opts.Subject.Slug,
		}
	}

	return e
}

// EntryURL builds the navigation URL for slug under subjectType.
func EntryURL(baseURL, subjectType, slug string) string {
	base := strings.TrimRight(baseURL, "/")
	if subjectType == "" {
		return base + "/" + url.PathEscape(slug)
	}
	return base + "/" + url.PathEscape(subjectType) + "/" + url.PathEscape(slug)
}

// Line renders e in the canonical entry line format.
func (e *Entry) Line() string {
	return FormatLine(e.Slug, e.Metadata, e.Meanings)
}

// FormatLine renders the canonical `slug（metadata）meanings` line.
func FormatLine(slug, metadata, meanings string) string {
	return slug + OpenBracket + metadata + CloseBracket + meanings
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(s, m) {
			return true
		}
	}
	return false
}
