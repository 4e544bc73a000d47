package reference

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mitchellh/mapstructure"
)

// Load reads a JSON array of reference evaluations from path.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference dataset: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode parses a JSON array of reference evaluations. Records are decoded
// through mapstructure so that loosely typed values, such as numeric
// ratings, are accepted as strings.
func Decode(r io.Reader) (*Dataset, error) {
	var raw []map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode reference dataset: %w", err)
	}

	var items []Evaluation
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &items,
	})
	if err != nil {
		return nil, fmt.Errorf("create record decoder: %w", err)
	}

	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("decode reference records: %w", err)
	}

	return NewDataset(items), nil
}
