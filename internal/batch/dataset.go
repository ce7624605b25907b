package batch

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LoadDataset reads and validates a dataset file.
func LoadDataset(path string) (*Dataset, error) {
	if path == "" {
		return nil, ErrNoInput
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()
	return DecodeDataset(f)
}

// DecodeDataset parses a dataset and rejects invalid or duplicated records.
func DecodeDataset(r io.Reader) (*Dataset, error) {
	var ds Dataset
	if err := json.NewDecoder(r).Decode(&ds); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDataset, err)
	}

	seen := make(map[string]bool, len(ds.Fichas))
	for i, f := range ds.Fichas {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("%w: fichas[%d]: %w", ErrInvalidDataset, i, err)
		}
		if seen[f.ID] {
			return nil, fmt.Errorf("%w: duplicate ficha id %q", ErrInvalidDataset, f.ID)
		}
		seen[f.ID] = true
	}

	clear(seen)
	for i, h := range ds.Hallazgos {
		if err := h.Validate(); err != nil {
			return nil, fmt.Errorf("%w: hallazgos[%d]: %w", ErrInvalidDataset, i, err)
		}
		if seen[h.ID] {
			return nil, fmt.Errorf("%w: duplicate hallazgo id %q", ErrInvalidDataset, h.ID)
		}
		seen[h.ID] = true
	}
	return &ds, nil
}
