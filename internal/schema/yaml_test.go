package schema

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queelius/arkiv/pkg/types"
)

func TestYAMLRoundTrip(t *testing.T) {
	schemas := map[string]types.CollectionSchema{
		"conversations": schemaOf(150, map[string]types.SchemaEntry{
			"role": {
				Type:        types.TypeString,
				Count:       150,
				Values:      []any{"assistant", "user"},
				Description: "Speaker identity",
			},
			"tokens": {Type: types.TypeNumber, Count: 150, Example: int64(512)},
			"score":  {Type: types.TypeNumber, Count: 3, Values: []any{int64(1), 2.5}},
		}),
		"bookmarks": schemaOf(5, map[string]types.SchemaEntry{}),
	}
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, SaveYAML(path, schemas))

	loaded, err := LoadYAML(path)
	require.NoError(t, err)
	assert.Equal(t, schemas, loaded)
}

func TestSaveYAMLHeaderAndDescription(t *testing.T) {
	schemas := map[string]types.CollectionSchema{
		"data": schemaOf(10, map[string]types.SchemaEntry{
			"lang": {Type: types.TypeString, Count: 10, Description: "Language code"},
		}),
	}
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, SaveYAML(path, schemas))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "# Auto-generated by arkiv"))
	assert.Contains(t, text, "does not clear one already stored")
	assert.Contains(t, text, "description: Language code")
	assert.NotContains(t, text, "example")
}

func TestLoadYAMLEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	loaded, err := LoadYAML(path)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestLoadYAMLMissing(t *testing.T) {
	_, err := LoadYAML(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseYAMLHandWritten(t *testing.T) {
	src := `
notes:
  metadata_keys:
    role:
      description: Speaker identity
      values: [user, assistant]
    score:
      values: [1, 2.0, 3.5]
`
	loaded, err := ParseYAML([]byte(src))
	require.NoError(t, err)

	notes := loaded["notes"]
	assert.Equal(t, 0, notes.RecordCount)
	assert.Equal(t, "Speaker identity", notes.MetadataKeys["role"].Description)
	assert.Equal(t, []any{"user", "assistant"}, notes.MetadataKeys["role"].Values)
	assert.Equal(t, []any{int64(1), int64(2), 3.5}, notes.MetadataKeys["score"].Values)
}

func TestParseYAMLInvalid(t *testing.T) {
	_, err := ParseYAML([]byte("notes: [unclosed"))
	assert.Error(t, err)
}

func TestParseYAMLCollectionWithoutKeys(t *testing.T) {
	loaded, err := ParseYAML([]byte("notes:\n  record_count: 2\n"))
	require.NoError(t, err)
	assert.NotNil(t, loaded["notes"].MetadataKeys)
	assert.Equal(t, 2, loaded["notes"].RecordCount)
}

func TestParseYAMLDateLikeValues(t *testing.T) {
	data := []byte(`events:
  metadata_keys:
    day:
      type: string
      values: [2024-01-15, 2024-01-16]
    at:
      type: string
      example: 2024-01-15T10:30:00Z
    tagged:
      type: string
      example: !!timestamp 2024-01-15
`)
	loaded, err := ParseYAML(data)
	require.NoError(t, err)

	keys := loaded["events"].MetadataKeys
	assert.Equal(t, []any{"2024-01-15", "2024-01-16"}, keys["day"].Values)
	assert.Equal(t, "2024-01-15T10:30:00Z", keys["at"].Example)
	assert.Equal(t, "2024-01-15", keys["tagged"].Example)

	out, err := MarshalYAML(map[string]types.CollectionSchema{"events": loaded["events"]})
	require.NoError(t, err)
	reloaded, err := ParseYAML(out)
	require.NoError(t, err)
	assert.Equal(t, keys["day"].Values, reloaded["events"].MetadataKeys["day"].Values)
}

func TestUnmarshalYAML(t *testing.T) {
	tests := []struct {
		name string
		data string
		want any
	}{
		{"empty", "", nil},
		{"date", "d: 2024-01-15", map[string]any{"d": "2024-01-15"}},
		{"nested", "a: [{b: 2001-12-14 21:59:43.10}]", map[string]any{"a": []any{map[string]any{"b": "2001-12-14 21:59:43.10"}}}},
		{"other scalars", "n: 3\nf: 1.5\nok: true", map[string]any{"n": 3, "f": 1.5, "ok": true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v any
			require.NoError(t, UnmarshalYAML([]byte(tt.data), &v))
			assert.Equal(t, tt.want, v)
		})
	}

	var v any
	assert.Error(t, UnmarshalYAML([]byte("a: [unclosed"), &v))
}
