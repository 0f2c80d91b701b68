package links

import (
	"fmt"
	"html"
	"html/template"
	"strings"

	"github.com/starford/notelinker/internal/parser"
)

// Formatter serializes one link for a target surface.
type Formatter interface {
	Format(l *parser.Link) string
}

// Render serializes the link section of groups. Groups without any link are
// dropped; surviving groups are joined with delim.
func Render(groups []parser.Group, f Formatter, delim string) string {
	var sections []string
	for _, g := range groups {
		var b strings.Builder
		linked := false
		for _, e := range g {
			if e == nil || e.Link == nil {
				continue
			}
			linked = true
			b.WriteString(f.Format(e.Link))
		}
		if linked {
			sections = append(sections, b.String())
		}
	}
	return strings.Join(sections, delim)
}

// HTML renders anchors for a note page. Aggregate links open their targets
// in new tabs; copy links write their payload to the clipboard.
type HTML struct{}

// Format implements Formatter.
func (HTML) Format(l *parser.Link) string {
	label := html.EscapeString(l.Label)
	switch l.Kind {
	case parser.KindVocab:
		style := "margin-right: 15px;"
		if l.Current {
			style += "color: #666666;"
		}
		return fmt.Sprintf(`<a href="%s" style="%s" target="_blank" rel="noopener noreferrer">%s</a>`,
			html.EscapeString(l.Target), style, label)

	case parser.KindAll, parser.KindEverything:
		var js strings.Builder
		for _, u := range l.Targets {
			// _blank is required for Firefox to open every tab.
			fmt.Fprintf(&js, "window.open('%s', '_blank');", template.JSEscapeString(u))
		}
		js.WriteString("return false;")
		return fmt.Sprintf(`<a href="#" style="margin-right: 15px;" onclick="%s">%s</a>`,
			html.EscapeString(js.String()), label)

	case parser.KindCopy:
		js := fmt.Sprintf("navigator.clipboard.writeText('%s');return false;", EscapePayload(l.Payload))
		return fmt.Sprintf(`<a href="#" style="margin-right: 15px;" onclick="%s">%s</a>`,
			html.EscapeString(js), label)
	}
	return label
}

// EscapePayload escapes a clipboard payload for a single-quoted JavaScript
// string literal, including line breaks and markup-significant characters.
func EscapePayload(s string) string {
	return template.JSEscapeString(s)
}

// Plain renders links for terminals and tool output.
type Plain struct{}

// Format implements Formatter.
func (Plain) Format(l *parser.Link) string {
	switch l.Kind {
	case parser.KindVocab:
		if l.Current {
			return "[*" + l.Label + "]"
		}
		return "[" + l.Label + "]"
	case parser.KindAll, parser.KindEverything:
		return fmt.Sprintf("[%s:%d]", l.Label, len(l.Targets))
	case parser.KindCopy:
		return "[" + l.Label + "]"
	}
	return l.Label
}
