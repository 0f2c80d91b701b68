package vocab

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Decode parses a dataset document. The document is either a YAML/JSON list
// of records or a mapping with a top-level "records" list.
func Decode(data []byte) ([]Record, error) {
	var records []Record
	if err := yaml.Unmarshal(data, &records); err != nil {
		var doc struct {
			Records []Record `yaml:"records"`
		}
		if err2 := yaml.Unmarshal(data, &doc); err2 != nil {
			return nil, fmt.Errorf("vocab: decode dataset: %w", err)
		}
		records = doc.Records
	}

	for i := range records {
		if err := records[i].Validate(); err != nil {
			return nil, fmt.Errorf("vocab: record %d (%q): %w", i, records[i].Slug, err)
		}
	}
	return records, nil
}

// LoadFile reads and decodes a dataset file.
func LoadFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: read dataset %s: %w", path, err)
	}
	return Decode(data)
}
