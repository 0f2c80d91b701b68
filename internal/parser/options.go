package parser

// Bracket pair delimiting the metadata of an entry line.
const (
	OpenBracket  = "（"
	CloseBracket = "）"
)

// Default configuration values.
const (
	DefaultDelimiter = "\n"
	DefaultBaseURL   = "https://www.wanikani.com"
)

// Subject identifies the page a note belongs to, e.g. {Type: "vocabulary", Slug: "大変"}.
// The zero value means "no current subject".
type Subject struct {
	Type string `json:"type"`
	Slug string `json:"slug"`
}

// Options configures entry parsing and link derivation.
type Options struct {
	// Delimiter splits a note into lines and joins them back.
	Delimiter string
	// NotIncludedMarkers mark a slug as absent from the dataset.
	NotIncludedMarkers []string
	// OverrideMarkers mark a line as manually authored.
	OverrideMarkers []string
	// BaseURL is the prefix of every derived entry URL.
	BaseURL string
	// Subject is the current page context.
	Subject Subject
}

// DefaultOptions returns options matching the markers used in existing notes.
func DefaultOptions() Options {
	return Options{
		Delimiter:          DefaultDelimiter,
		NotIncludedMarkers: []string{"not on WK", "not in WK"},
		OverrideMarkers:    []string{"override"},
		BaseURL:            DefaultBaseURL,
	}
}

// WithSubject returns a copy of o scoped to subject.
func (o Options) WithSubject(subject Subject) Options {
	o.Subject = subject
	return o
}

func (o Options) delimiter() string {
	if o.Delimiter == "" {
		return DefaultDelimiter
	}
	return o.Delimiter
}
