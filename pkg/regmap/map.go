package regmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"
)

var (
	// ErrUnknownRegister indicates a register absent from the loaded map
	ErrUnknownRegister = errors.New("register not defined in map")

	// ErrInvalidField indicates an impossible field layout
	ErrInvalidField = errors.New("invalid register field")
)

// Field describes where a register lives in the SX1301 address space.
type Field struct {
	Page     int8  `yaml:"page" json:"page"` // -1 when visible on every page
	Addr     uint8 `yaml:"addr" json:"addr"`
	Offset   uint8 `yaml:"offset" json:"offset"`
	Len      uint8 `yaml:"len" json:"len"`
	Signed   bool  `yaml:"signed,omitempty" json:"signed,omitempty"`
	ReadOnly bool  `yaml:"read_only,omitempty" json:"read_only,omitempty"`
}

// Bytes returns the number of consecutive addresses spanned by the field.
func (f Field) Bytes() int {
	return (int(f.Offset) + int(f.Len) + 7) / 8
}

// Validate checks the field layout.
func (f Field) Validate() error {
	switch {
	case f.Len == 0 || f.Len > 32:
		return fmt.Errorf("%w: length %d", ErrInvalidField, f.Len)
	case f.Len < 8 && f.Offset+f.Len > 8:
		return fmt.Errorf("%w: %d bits at offset %d cross a byte", ErrInvalidField, f.Len, f.Offset)
	case f.Len >= 8 && f.Offset != 0:
		return fmt.Errorf("%w: multi-byte field at offset %d", ErrInvalidField, f.Offset)
	case f.Addr > 0x7F:
		return fmt.Errorf("%w: address 0x%02X", ErrInvalidField, f.Addr)
	case f.Page < -1 || f.Page > 3:
		return fmt.Errorf("%w: page %d", ErrInvalidField, f.Page)
	}
	return nil
}

// Map resolves register identifiers to field layouts.
type Map struct {
	fields map[ID]Field
}

// New builds a Map from a field table.
func New(fields map[ID]Field) (*Map, error) {
	m := &Map{fields: make(map[ID]Field, len(fields))}
	for id, f := range fields {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", id, err)
		}
		m.fields[id] = f
	}
	if err := m.checkPaging(); err != nil {
		return nil, err
	}
	return m, nil
}

// Field returns the layout of id.
func (m *Map) Field(id ID) (Field, error) {
	f, ok := m.fields[id]
	if !ok {
		return Field{}, fmt.Errorf("%w: %s", ErrUnknownRegister, id)
	}
	return f, nil
}

// Has reports whether id is defined.
func (m *Map) Has(id ID) bool {
	_, ok := m.fields[id]
	return ok
}

// Missing returns the identifiers from want that the map does not define.
func (m *Map) Missing(want ...ID) []ID {
	var missing []ID
	for _, id := range want {
		if !m.Has(id) {
			missing = append(missing, id)
		}
	}
	return missing
}

// Require fails with ErrUnknownRegister if any of want is undefined.
func (m *Map) Require(want ...ID) error {
	missing := m.Missing(want...)
	if len(missing) == 0 {
		return nil
	}
	names := make([]string, len(missing))
	for i, id := range missing {
		names[i] = id.String()
	}
	return fmt.Errorf("%w: %s", ErrUnknownRegister, strings.Join(names, ", "))
}

func (m *Map) checkPaging() error {
	for id, f := range m.fields {
		if f.Page >= 0 && id != PageReg && !m.Has(PageReg) {
			return fmt.Errorf("%w: %s is paged but PAGE_REG is not defined", ErrInvalidField, id)
		}
	}
	return nil
}

// document is the on-disk form of a register map.
type document struct {
	Name      string           `yaml:"name" json:"name"`
	Registers map[string]Field `yaml:"registers" json:"registers"`
}

// Parse decodes a register definition document. format is "yaml" or "json".
func Parse(data []byte, format string) (*Map, error) {
	var doc document
	var err error
	switch format {
	case "yaml", "yml":
		err = yaml.Unmarshal(data, &doc)
	case "json":
		err = json.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("unsupported register map format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse register map: %w", err)
	}

	fields := make(map[ID]Field, len(doc.Registers))
	for name, f := range doc.Registers {
		id, ok := ByName(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown register name %q", ErrInvalidField, name)
		}
		fields[id] = f
	}
	return New(fields)
}

// Load reads a register definition file; the format follows the extension.
func Load(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read register map: %w", err)
	}
	return Parse(data, formatOf(path))
}

// Save writes the map to path, creating parent directories.
func (m *Map) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	doc := document{Registers: make(map[string]Field, len(m.fields))}
	for id, f := range m.fields {
		doc.Registers[id.String()] = f
	}

	var data []byte
	var err error
	if formatOf(path) == "json" {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = yaml.Marshal(doc)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal register map: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// IDs returns the defined identifiers in ascending order.
func (m *Map) IDs() []ID {
	ids := make([]ID, 0, len(m.fields))
	for id := range m.fields {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	default:
		return "yaml"
	}
}
