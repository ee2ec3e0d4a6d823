// Package archive moves whole archives in and out of the store: a README.md
// with YAML front matter listing the collection files, a sibling schema.yaml
// with the curated schema, or the older manifest.json layout.
package archive

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/queelius/arkiv/internal/schema"
)

// Conventional front matter keys, written first and in this order. Any other
// key follows in sorted order.
var conventionalKeys = []string{"name", "description", "datetime", "generator", "contents"}

const delimiter = "---"

// Readme is an archive README: free-form YAML front matter and a markdown
// body. Every front matter key is preserved.
type Readme struct {
	Frontmatter map[string]any
	Body        string
}

// ContentEntry is one item of the front matter "contents" list.
type ContentEntry struct {
	Path        string `yaml:"path"`
	Description string `yaml:"description,omitempty"`
}

// Contents returns the well-formed entries of the "contents" list. Items
// that are not maps with a string path are skipped.
func (r Readme) Contents() []ContentEntry {
	if entries, ok := r.Frontmatter["contents"].([]ContentEntry); ok {
		return slices.Clone(entries)
	}
	items, _ := r.Frontmatter["contents"].([]any)
	var out []ContentEntry
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		path, ok := m["path"].(string)
		if !ok || path == "" {
			continue
		}
		desc, _ := m["description"].(string)
		out = append(out, ContentEntry{Path: path, Description: desc})
	}
	return out
}

// SplitFrontmatter separates text into front matter and body. The front
// matter is delimited by lines holding only "---", the first of which must
// open the text. Without a complete front matter block the whole text is
// the body.
func SplitFrontmatter(text string) (frontmatter, body string) {
	lines := strings.Split(text, "\n")
	if strings.TrimSpace(lines[0]) != delimiter {
		return "", text
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) != delimiter {
			continue
		}
		frontmatter = strings.Join(lines[1:i], "\n")
		body = strings.Join(lines[i+1:], "\n")
		return frontmatter, strings.TrimPrefix(body, "\n")
	}
	return "", text
}

// ParseReadme parses README text. Front matter that is not a YAML mapping is
// treated as empty.
func ParseReadme(text string) (Readme, error) {
	fm, body := SplitFrontmatter(text)
	frontmatter, err := parseFrontmatter(fm)
	if err != nil {
		return Readme{}, err
	}
	return Readme{Frontmatter: frontmatter, Body: body}, nil
}

// LoadReadme reads and parses the README at path.
func LoadReadme(path string) (Readme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Readme{}, fmt.Errorf("reading %s: %w", path, err)
	}
	r, err := ParseReadme(string(data))
	if err != nil {
		return Readme{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return r, nil
}

// Marshal renders the README. An empty front matter is omitted; the result
// always ends with a newline.
func (r Readme) Marshal() ([]byte, error) {
	var parts []string
	if len(r.Frontmatter) > 0 {
		fm, err := marshalFrontmatter(r.Frontmatter)
		if err != nil {
			return nil, err
		}
		parts = append(parts, delimiter, strings.TrimRight(string(fm), "\n"), delimiter)
		if r.Body != "" {
			parts = append(parts, "")
		}
	}
	if r.Body != "" {
		parts = append(parts, r.Body)
	}

	text := strings.Join(parts, "\n")
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return []byte(text), nil
}

// SaveReadme writes r to path.
func SaveReadme(path string, r Readme) error {
	data, err := r.Marshal()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

func parseFrontmatter(text string) (map[string]any, error) {
	out := map[string]any{}
	if strings.TrimSpace(text) == "" {
		return out, nil
	}
	var v any
	if err := schema.UnmarshalYAML([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("decoding front matter: %w", err)
	}
	if m, ok := v.(map[string]any); ok {
		out = m
	}
	return out, nil
}

// marshalFrontmatter encodes fm as a YAML mapping with the conventional keys
// first.
func marshalFrontmatter(fm map[string]any) ([]byte, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, key := range frontmatterKeys(fm) {
		var value yaml.Node
		if err := value.Encode(fm[key]); err != nil {
			return nil, fmt.Errorf("encoding front matter %s: %w", key, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			&value,
		)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return nil, fmt.Errorf("encoding front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding front matter: %w", err)
	}
	return buf.Bytes(), nil
}

func frontmatterKeys(fm map[string]any) []string {
	keys := make([]string, 0, len(fm))
	for _, k := range conventionalKeys {
		if _, ok := fm[k]; ok {
			keys = append(keys, k)
		}
	}
	var rest []string
	for k := range fm {
		if !slices.Contains(conventionalKeys, k) {
			rest = append(rest, k)
		}
	}
	slices.Sort(rest)
	return append(keys, rest...)
}
