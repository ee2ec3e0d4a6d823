package jsonl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/queelius/arkiv/pkg/types"
)

// fixAliases maps unrecognized field names that unambiguously mean a
// recognized field. Fix duplicates them into the recognized field.
var fixAliases = map[string]string{
	"url":  types.FieldURI,
	"link": types.FieldURI,
	"href": types.FieldURI,
}

// fieldSuggestions extends fixAliases with ambiguous hints that are only
// reported, never applied.
var fieldSuggestions = func() map[string]string {
	m := maps.Clone(fixAliases)
	m["type"] = types.FieldMimetype
	m["mime"] = types.FieldMimetype
	return m
}()

// Report describes how well a JSONL file matches the record format.
type Report struct {
	Valid         bool     `json:"valid"`
	TotalRecords  int      `json:"total_records"`
	Collection    string   `json:"collection"`
	FieldsUsed    []string `json:"fields_used"`
	UnknownFields []string `json:"unknown_fields"`
	MetadataKeys  []string `json:"metadata_keys"`
	Warnings      []string `json:"warnings"`
}

// Detect scans the JSONL file at path and reports invalid lines, unknown
// top-level fields and the metadata keys in use. It never modifies the file.
func Detect(path string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	report := Report{
		Collection:    CollectionName(path),
		FieldsUsed:    []string{},
		UnknownFields: []string{},
		MetadataKeys:  []string{},
		Warnings:      []string{},
	}
	fields := make(map[string]bool)
	unknown := make(map[string]bool)
	metaKeys := make(map[string]bool)
	invalid := 0

	scanner := newScanner(f)
	lineno := 0
	for scanner.Scan() {
		lineno++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var v any
		if err := json.Unmarshal(line, &v); err != nil {
			report.Warnings = append(report.Warnings, fmt.Sprintf("Line %d: invalid JSON", lineno))
			invalid++
			continue
		}
		obj, ok := v.(map[string]any)
		if !ok {
			report.Warnings = append(report.Warnings, fmt.Sprintf("Line %d: not a JSON object", lineno))
			invalid++
			continue
		}

		report.TotalRecords++
		for key := range obj {
			if types.IsRecognizedField(key) {
				fields[key] = true
			} else {
				unknown[key] = true
			}
		}
		if m, ok := obj[types.FieldMetadata].(map[string]any); ok {
			for key := range m {
				metaKeys[key] = true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return Report{}, fmt.Errorf("scanning %s: %w", path, err)
	}

	report.FieldsUsed = sortedKeys(fields)
	report.UnknownFields = sortedKeys(unknown)
	report.MetadataKeys = sortedKeys(metaKeys)

	for _, field := range report.UnknownFields {
		if suggestion, ok := fieldSuggestions[field]; ok {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("Unknown field '%s': did you mean '%s'?", field, suggestion))
			continue
		}
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("Unknown field '%s' (will be merged into metadata on import)", field))
	}

	report.Valid = invalid == 0
	return report, nil
}

// Fix rewrites the JSONL file at path, copying each unambiguous alias (url,
// link, href) into its recognized field when that field is absent. Lines that
// need no change, including blank and malformed ones, are kept byte for byte.
// It returns the number of fields added.
func Fix(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}

	// A trailing newline produces a final empty element that writeLines
	// restores on its own.
	lines := bytes.Split(data, []byte("\n"))
	if n := len(lines); n > 0 && len(lines[n-1]) == 0 {
		lines = lines[:n-1]
	}

	aliases := make([]string, 0, len(fixAliases))
	for alias := range fixAliases {
		aliases = append(aliases, alias)
	}
	slices.Sort(aliases)

	fixed := 0
	out := make([][]byte, 0, len(lines))
	for _, line := range lines {
		trimmed := bytes.TrimSpace(line)
		obj, ok := decodeObject(trimmed)
		if len(trimmed) == 0 || !ok {
			out = append(out, line)
			continue
		}

		changed := false
		for _, alias := range aliases {
			target := fixAliases[alias]
			v, hasAlias := obj[alias]
			if _, hasTarget := obj[target]; hasAlias && !hasTarget {
				obj[target] = v
				changed = true
				fixed++
			}
		}
		if !changed {
			out = append(out, line)
			continue
		}

		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(obj); err != nil {
			return 0, fmt.Errorf("encoding fixed record: %w", err)
		}
		out = append(out, bytes.TrimRight(buf.Bytes(), "\n"))
	}

	if fixed == 0 {
		return 0, nil
	}
	if err := writeLines(path, out); err != nil {
		return 0, err
	}
	return fixed, nil
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
