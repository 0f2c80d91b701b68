// Package vocab defines vocabulary dataset records and the lookup used to
// regenerate notes.
package vocab

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Reading is one reading of a vocabulary item.
type Reading struct {
	Reading string `json:"reading" yaml:"reading"`
}

// Meaning is one meaning of a vocabulary item.
type Meaning struct {
	Meaning string `json:"meaning" yaml:"meaning"`
	Primary bool   `json:"primary" yaml:"primary"`
}

// Record is one dataset row keyed by slug.
type Record struct {
	Slug     string    `json:"slug" yaml:"slug"`
	Readings []Reading `json:"readings" yaml:"readings"`
	Meanings []Meaning `json:"meanings" yaml:"meanings"`
}

// Validate validates the record.
func (r *Record) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Slug, validation.Required),
		validation.Field(&r.Meanings, validation.Each(validation.By(func(v any) error {
			m, _ := v.(Meaning)
			return validation.Validate(m.Meaning, validation.Required)
		}))),
	)
}

// OrderedMeanings returns meaning texts with primary meanings first, keeping
// the dataset order within each class.
func (r *Record) OrderedMeanings() []string {
	out := make([]string, 0, len(r.Meanings))
	for _, m := range r.Meanings {
		if m.Primary {
			out = append(out, m.Meaning)
		}
	}
	for _, m := range r.Meanings {
		if !m.Primary {
			out = append(out, m.Meaning)
		}
	}
	return out
}

// ReadingTexts returns reading texts in dataset order.
func (r *Record) ReadingTexts() []string {
	out := make([]string, 0, len(r.Readings))
	for _, rd := range r.Readings {
		out = append(out, rd.Reading)
	}
	return out
}

// Lookup resolves slugs to dataset records. Implementations are treated as
// immutable snapshots for the duration of one call.
type Lookup interface {
	Get(slug string) (*Record, bool)
}

// Map is an in-memory Lookup.
type Map map[string]*Record

// Get implements Lookup.
func (m Map) Get(slug string) (*Record, bool) {
	r, ok := m[slug]
	return r, ok && r != nil
}

// NewMap indexes records by slug. Later records replace earlier ones.
func NewMap(records []Record) Map {
	m := make(Map, len(records))
	for i := range records {
		r := records[i]
		m[r.Slug] = &r
	}
	return m
}

// Empty is the lookup used when the dataset is unavailable.
var Empty Lookup = Map{}
