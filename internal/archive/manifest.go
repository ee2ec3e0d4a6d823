package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/queelius/arkiv/internal/jsonl"
	"github.com/queelius/arkiv/pkg/types"
)

// Manifest is the legacy archive description: a JSON file listing the
// collection files, each optionally carrying a curated schema.
type Manifest struct {
	Name        string               `json:"name,omitempty"`
	Description string               `json:"description,omitempty"`
	Created     string               `json:"created,omitempty"`
	Metadata    map[string]any       `json:"metadata,omitempty"`
	Collections []ManifestCollection `json:"collections"`
}

// ManifestCollection is one collection file of a Manifest.
type ManifestCollection struct {
	File        string                  `json:"file"`
	Description string                  `json:"description,omitempty"`
	RecordCount *int                    `json:"record_count,omitempty"`
	Schema      *types.CollectionSchema `json:"schema,omitempty"`
}

// LoadManifest reads the manifest at path.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("reading %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decoding %s: %w", path, err)
	}
	return m, nil
}

// SaveManifest writes m to path as indented JSON.
func SaveManifest(path string, m Manifest) error {
	if m.Collections == nil {
		m.Collections = []ManifestCollection{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Readme converts the manifest into the README front matter that replaces
// it: description, created as datetime, metadata keys and the contents list.
func (m Manifest) Readme() Readme {
	fm := make(map[string]any, len(m.Metadata)+4)
	for k, v := range m.Metadata {
		fm[k] = v
	}
	if m.Name != "" {
		fm["name"] = m.Name
	}
	if m.Description != "" {
		fm["description"] = m.Description
	}
	if m.Created != "" {
		fm["datetime"] = m.Created
	}
	contents := make([]any, 0, len(m.Collections))
	for _, c := range m.Collections {
		entry := map[string]any{"path": c.File}
		if c.Description != "" {
			entry["description"] = c.Description
		}
		contents = append(contents, entry)
	}
	fm["contents"] = contents
	return Readme{Frontmatter: fm}
}

// BuildManifest describes the store as a Manifest: the name and description
// of the stored README, and every collection with its record count, schema
// and README description.
func BuildManifest(ctx context.Context, c Catalog) (Manifest, error) {
	readme, err := loadReadme(ctx, c)
	if err != nil {
		return Manifest{}, err
	}
	m := Manifest{Collections: []ManifestCollection{}}
	m.Name, _ = readme.Frontmatter["name"].(string)
	m.Description, _ = readme.Frontmatter["description"].(string)

	described := make(map[string]string)
	for _, entry := range readme.Contents() {
		described[jsonl.CollectionName(entry.Path)] = entry.Description
	}

	names, err := c.Collections(ctx)
	if err != nil {
		return Manifest{}, err
	}
	for _, name := range names {
		s, err := c.GetSchema(ctx, name)
		if err != nil {
			return Manifest{}, err
		}
		count := s.RecordCount
		m.Collections = append(m.Collections, ManifestCollection{
			File:        name + ".jsonl",
			Description: described[name],
			RecordCount: &count,
			Schema:      &s.CollectionSchema,
		})
	}
	return m, nil
}
