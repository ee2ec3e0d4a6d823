// Package jsonl reads and writes arkiv archives: one JSON object per line,
// each describing a single resource.
//
// Parsing is best effort. Blank lines, malformed JSON and lines whose top
// level is not an object are skipped, never reported as errors.
package jsonl

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"maps"

	"github.com/queelius/arkiv/pkg/types"
)

// ParseLine parses one line of a JSONL archive. It returns false when the
// line must be skipped.
func ParseLine(line []byte) (types.Record, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return types.Record{}, false
	}

	obj, ok := decodeObject(line)
	if !ok {
		return types.Record{}, false
	}
	return ParseObject(obj), true
}

// decodeObject decodes line as a single JSON object, keeping numbers as
// json.Number. Trailing data after the object makes the line malformed.
func decodeObject(line []byte) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

// ParseObject converts a decoded JSON object into a Record.
//
// Recognized fields holding a string populate the Record. Every other key is
// added to Metadata without overwriting an attribute already present there.
// A recognized field holding a non-string value is treated like an
// unrecognized key so that nothing is lost; a non-object metadata value is
// kept under the "metadata" attribute for the same reason.
func ParseObject(obj map[string]any) types.Record {
	var rec types.Record
	var bag map[string]any

	if raw, ok := obj[types.FieldMetadata]; ok && raw != nil {
		if m, isMap := raw.(map[string]any); isMap {
			bag = maps.Clone(m)
		} else {
			bag = map[string]any{types.FieldMetadata: raw}
		}
	}

	fold := func(key string, v any) {
		if bag == nil {
			bag = make(map[string]any)
		}
		if _, exists := bag[key]; !exists {
			bag[key] = v
		}
	}

	for key, v := range obj {
		var dst **string
		switch key {
		case types.FieldMetadata:
			continue
		case types.FieldMimetype:
			dst = &rec.Mimetype
		case types.FieldURI:
			dst = &rec.URI
		case types.FieldContent:
			dst = &rec.Content
		case types.FieldTimestamp:
			dst = &rec.Timestamp
		default:
			fold(key, v)
			continue
		}

		switch s := v.(type) {
		case nil:
		case string:
			*dst = &s
		default:
			fold(key, v)
		}
	}

	if len(bag) > 0 {
		rec.Metadata = bag
	}
	return rec
}

// MarshalRecord encodes rec as a single JSON line without the trailing
// newline. HTML characters are not escaped.
func MarshalRecord(rec types.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// MarshalMetadata encodes a metadata bag for storage. An empty bag encodes
// to nil.
func MarshalMetadata(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalMetadata decodes a stored metadata bag, keeping numbers as
// json.Number. Empty input yields a nil map.
func UnmarshalMetadata(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	return m, nil
}
