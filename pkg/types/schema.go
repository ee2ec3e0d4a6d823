package types

import "slices"

// DefaultMaxEnumValues is the cardinality threshold: an attribute with at
// most this many distinct scalar values is summarized by enumerating them.
const DefaultMaxEnumValues = 20

// SchemaEntry summarizes one metadata attribute within one collection.
//
// Values and Example are mutually exclusive. Description is only ever set by
// a curator; discovery never produces one.
type SchemaEntry struct {
	Type        ValueType `json:"type" yaml:"type"`
	Count       int       `json:"count" yaml:"count"`
	Values      []any     `json:"values,omitempty" yaml:"values,omitempty"`
	Example     any       `json:"example,omitempty" yaml:"example,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// HasValues reports whether the entry enumerates its values.
func (e SchemaEntry) HasValues() bool {
	return len(e.Values) > 0
}

// Clone returns a copy of e that shares no slice with it.
func (e SchemaEntry) Clone() SchemaEntry {
	e.Values = slices.Clone(e.Values)
	return e
}

// CollectionSchema is the schema of one collection: how many records it holds
// and a summary of every metadata attribute seen in them.
type CollectionSchema struct {
	RecordCount  int                    `json:"record_count" yaml:"record_count"`
	MetadataKeys map[string]SchemaEntry `json:"metadata_keys" yaml:"metadata_keys"`
}

// NewCollectionSchema returns an empty schema with a non-nil key map.
func NewCollectionSchema() CollectionSchema {
	return CollectionSchema{MetadataKeys: make(map[string]SchemaEntry)}
}

// Keys returns the attribute names in sorted order.
func (s CollectionSchema) Keys() []string {
	keys := make([]string, 0, len(s.MetadataKeys))
	for k := range s.MetadataKeys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// NamedSchema is a CollectionSchema labelled with its collection name, the
// shape returned by schema lookups.
type NamedSchema struct {
	Collection string `json:"collection"`
	CollectionSchema
}

// CollectionInfo reports the size of one materialized collection.
type CollectionInfo struct {
	RecordCount  int                    `json:"record_count"`
	MetadataKeys map[string]SchemaEntry `json:"metadata_keys,omitempty"`
}

// Info summarizes a store or a single JSONL file.
type Info struct {
	TotalRecords int                       `json:"total_records"`
	Collections  map[string]CollectionInfo `json:"collections"`
}
