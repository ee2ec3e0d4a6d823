package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/queelius/arkiv/pkg/types"
)

func schemaOf(n int, keys map[string]types.SchemaEntry) types.CollectionSchema {
	return types.CollectionSchema{RecordCount: n, MetadataKeys: keys}
}

func TestMergeAutoOnly(t *testing.T) {
	auto := schemaOf(100, map[string]types.SchemaEntry{
		"role": {Type: types.TypeString, Count: 100, Values: []any{"user"}},
	})
	got := Merge(auto, types.NewCollectionSchema())
	assert.Equal(t, auto, got)
}

func TestMergeCuratedDescription(t *testing.T) {
	auto := schemaOf(10, map[string]types.SchemaEntry{
		"role": {Type: types.TypeString, Count: 10, Values: []any{"assistant", "user"}},
	})
	curated := schemaOf(0, map[string]types.SchemaEntry{
		"role": {Type: types.TypeNumber, Count: 999, Description: "Speaker identity"},
	})

	role := Merge(auto, curated).MetadataKeys["role"]
	assert.Equal(t, types.TypeString, role.Type)
	assert.Equal(t, 10, role.Count)
	assert.Equal(t, "Speaker identity", role.Description)
	assert.Equal(t, []any{"assistant", "user"}, role.Values)
}

func TestMergeCuratedValuesReplaceExample(t *testing.T) {
	auto := schemaOf(50, map[string]types.SchemaEntry{
		"lang": {Type: types.TypeString, Count: 50, Example: "en"},
	})
	curated := schemaOf(0, map[string]types.SchemaEntry{
		"lang": {Values: []any{"de", "en", "fr"}},
	})

	lang := Merge(auto, curated).MetadataKeys["lang"]
	assert.Equal(t, []any{"de", "en", "fr"}, lang.Values)
	assert.Nil(t, lang.Example)
}

func TestMergeCuratedOnlyKey(t *testing.T) {
	auto := schemaOf(3, map[string]types.SchemaEntry{})
	curated := schemaOf(0, map[string]types.SchemaEntry{
		"role": {Description: "Speaker identity", Values: []any{"user", "assistant"}},
		"note": {Type: types.TypeObject, Description: "Free form", Example: "ignored"},
	})

	got := Merge(auto, curated)
	assert.Equal(t, 3, got.RecordCount)

	role := got.MetadataKeys["role"]
	assert.Equal(t, 0, role.Count)
	assert.Equal(t, types.TypeString, role.Type)
	assert.Equal(t, "Speaker identity", role.Description)
	assert.Equal(t, []any{"user", "assistant"}, role.Values)

	note := got.MetadataKeys["note"]
	assert.Equal(t, types.TypeObject, note.Type)
	assert.Nil(t, note.Example)
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	auto := schemaOf(1, map[string]types.SchemaEntry{
		"k": {Type: types.TypeString, Count: 1, Values: []any{"a"}},
	})
	curated := schemaOf(0, map[string]types.SchemaEntry{
		"k": {Description: "d"},
	})
	got := Merge(auto, curated)
	got.MetadataKeys["k"].Values[0] = "changed"

	assert.Equal(t, "a", auto.MetadataKeys["k"].Values[0])
	assert.Empty(t, auto.MetadataKeys["k"].Description)
}

func TestMergeIsIdempotent(t *testing.T) {
	auto := schemaOf(4, map[string]types.SchemaEntry{
		"a": {Type: types.TypeString, Count: 4, Values: []any{"x"}},
		"b": {Type: types.TypeNumber, Count: 2, Example: int64(7)},
	})
	curated := schemaOf(0, map[string]types.SchemaEntry{
		"a": {Description: "first"},
		"c": {Description: "absent"},
	})
	once := Merge(auto, curated)
	assert.Equal(t, once, Merge(once, curated))
}

func TestOverlay(t *testing.T) {
	base := schemaOf(0, map[string]types.SchemaEntry{
		"role": {Type: types.TypeString, Description: "old", Values: []any{"user"}},
		"kept": {Description: "only in base"},
	})
	top := schemaOf(5, map[string]types.SchemaEntry{
		"role":  {Description: "new"},
		"added": {Description: "only in top"},
	})

	got := Overlay(base, top)
	assert.Equal(t, 5, got.RecordCount)
	assert.Equal(t, "new", got.MetadataKeys["role"].Description)
	assert.Equal(t, []any{"user"}, got.MetadataKeys["role"].Values)
	assert.Equal(t, types.TypeString, got.MetadataKeys["role"].Type)
	assert.Equal(t, "only in base", got.MetadataKeys["kept"].Description)
	assert.Equal(t, "only in top", got.MetadataKeys["added"].Description)
}
