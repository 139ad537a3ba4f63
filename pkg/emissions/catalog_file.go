package emissions

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// CatalogFile is the on-disk layout of a transport mode catalog.
type CatalogFile struct {
	Modes   Catalog          `yaml:"modes"`
	Offsets *OffsetConstants `yaml:"offsets,omitempty"`
}

// LoadCatalogFile reads and validates a YAML catalog from path.
func LoadCatalogFile(path string) (Catalog, OffsetConstants, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, OffsetConstants{}, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(bytes.NewReader(data))
}

// ParseCatalog decodes a YAML catalog. Unknown keys are rejected so that a
// misspelt factor field does not silently load as zero. When the offsets
// block is omitted the default constants apply.
func ParseCatalog(r io.Reader) (Catalog, OffsetConstants, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file CatalogFile
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, OffsetConstants{}, fmt.Errorf("%w: catalog document is empty", ErrInvalidCatalog)
		}
		return nil, OffsetConstants{}, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	if err := file.Modes.Validate(); err != nil {
		return nil, OffsetConstants{}, err
	}

	offsets := DefaultOffsets()
	if file.Offsets != nil {
		offsets = *file.Offsets
	}
	if err := offsets.Validate(); err != nil {
		return nil, OffsetConstants{}, err
	}

	return file.Modes, offsets, nil
}
