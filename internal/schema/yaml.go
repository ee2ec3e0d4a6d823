package schema

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/queelius/arkiv/pkg/types"
)

// yamlHeader opens every schema file written by SaveYAML.
const yamlHeader = "# Auto-generated by arkiv. Edit descriptions and values freely;\n" +
	"# types and counts are refreshed from the data on every import.\n" +
	"# Deleting a description here does not clear one already stored.\n"

// LoadYAML reads a schema file mapping collection names to schemas. A
// missing file yields an error wrapping fs.ErrNotExist; an empty file yields
// an empty map. Numbers in values and examples are normalized.
func LoadYAML(path string) (map[string]types.CollectionSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema %s: %w", path, err)
	}
	return ParseYAML(data)
}

// ParseYAML decodes schema YAML from memory. See LoadYAML.
func ParseYAML(data []byte) (map[string]types.CollectionSchema, error) {
	var raw map[string]types.CollectionSchema
	if err := UnmarshalYAML(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding schema: %w", err)
	}

	out := make(map[string]types.CollectionSchema, len(raw))
	for name, cs := range raw {
		if cs.MetadataKeys == nil {
			cs.MetadataKeys = make(map[string]types.SchemaEntry)
		}
		for key, e := range cs.MetadataKeys {
			e.Values = NormalizeAll(e.Values)
			e.Example = Normalize(e.Example)
			cs.MetadataKeys[key] = e
		}
		out[name] = cs
	}
	return out, nil
}

// UnmarshalYAML decodes data into v like yaml.Unmarshal, except that
// timestamps stay strings when decoded into an interface. An empty document leaves v untouched.
func UnmarshalYAML(data []byte, v any) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc.Kind == 0 {
		return nil
	}
	retagTimestamps(&doc)
	return doc.Decode(v)
}

func retagTimestamps(n *yaml.Node) {
	if n.Kind == yaml.ScalarNode && n.Tag == "!!timestamp" {
		n.Tag = "!!str"
	}
	for _, c := range n.Content {
		retagTimestamps(c)
	}
}

// SaveYAML writes schemas to path behind a short header comment. Collections
// and attributes appear in sorted order.
func SaveYAML(path string, schemas map[string]types.CollectionSchema) error {
	data, err := MarshalYAML(schemas)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing schema %s: %w", path, err)
	}
	return nil
}

// MarshalYAML encodes schemas the way SaveYAML writes them.
func MarshalYAML(schemas map[string]types.CollectionSchema) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(yamlHeader)

	if schemas == nil {
		schemas = map[string]types.CollectionSchema{}
	}
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(schemas); err != nil {
		return nil, fmt.Errorf("encoding schema: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding schema: %w", err)
	}
	return buf.Bytes(), nil
}
