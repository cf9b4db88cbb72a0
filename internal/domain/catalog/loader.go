package catalog

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/okian/shaker/internal/domain/model"
)

// Format is the encoding of a catalog file.
type Format int

const (
	// FormatJSON is a JSON array of drinks or an object keyed by drink id.
	FormatJSON Format = iota
	// FormatYAML is a YAML sequence of drinks.
	FormatYAML
)

// FormatFor picks the format from a file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrFormat, filepath.Ext(path))
	}
}

// LoadFile reads drinks from a JSON or YAML file.
func LoadFile(path string) ([]model.Drink, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path) //nolint:gosec // operator-supplied catalog path
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f, format)
}

// Decode reads drinks from r.
func Decode(r io.Reader, format Format) ([]model.Drink, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	switch format {
	case FormatJSON:
		return decodeJSON(raw)
	case FormatYAML:
		var drinks []model.Drink
		if err := yaml.Unmarshal(raw, &drinks); err != nil {
			return nil, fmt.Errorf("decode yaml catalog: %w", err)
		}
		return drinks, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrFormat, format)
	}
}

func decodeJSON(raw []byte) ([]model.Drink, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		var keyed map[string]model.Drink
		if err := json.Unmarshal(raw, &keyed); err != nil {
			return nil, fmt.Errorf("decode json catalog: %w", err)
		}
		ids := make([]string, 0, len(keyed))
		for id := range keyed {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		drinks := make([]model.Drink, 0, len(keyed))
		for _, id := range ids {
			d := keyed[id]
			if d.ID == "" {
				d.ID = id
			}
			drinks = append(drinks, d)
		}
		return drinks, nil
	}
	var drinks []model.Drink
	if err := json.Unmarshal(raw, &drinks); err != nil {
		return nil, fmt.Errorf("decode json catalog: %w", err)
	}
	return drinks, nil
}
