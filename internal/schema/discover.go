package schema

import (
	"fmt"
	"iter"
	"os"

	"github.com/queelius/arkiv/internal/jsonl"
	"github.com/queelius/arkiv/pkg/types"
)

// keyStats accumulates what one scan has seen of a single attribute.
type keyStats struct {
	count   int
	typ     types.ValueType
	example any
	seen    bool // example holds the first non-null value

	// values holds distinct scalar values until it outgrows the threshold
	// or a non-scalar value shows up; from then on overflow is set and
	// values is released.
	values   map[any]struct{}
	overflow bool
}

// Discoverer builds a CollectionSchema from a stream of records. Its state is
// local to one scan: create a Discoverer, Observe every record, then call
// Schema. A Discoverer is not safe for concurrent use.
//
// When an attribute appears with different types, the type of the most
// recently observed non-null value wins. Null values count as occurrences but
// never set the type, the example or the value set.
type Discoverer struct {
	maxEnum int
	records int
	keys    map[string]*keyStats
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithMaxEnumValues sets the cardinality threshold. Values below one select
// types.DefaultMaxEnumValues.
func WithMaxEnumValues(n int) Option {
	return func(d *Discoverer) {
		if n > 0 {
			d.maxEnum = n
		}
	}
}

// NewDiscoverer returns an empty Discoverer.
func NewDiscoverer(opts ...Option) *Discoverer {
	d := &Discoverer{
		maxEnum: types.DefaultMaxEnumValues,
		keys:    make(map[string]*keyStats),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Observe folds one record into the running summary. Records without
// metadata only increase the record count.
func (d *Discoverer) Observe(rec types.Record) {
	d.records++
	for key, v := range rec.Metadata {
		st, ok := d.keys[key]
		if !ok {
			st = &keyStats{values: make(map[any]struct{})}
			d.keys[key] = st
		}
		st.count++

		t := Classify(v)
		if t == "" {
			continue
		}
		st.typ = t

		nv := Normalize(v)
		if !st.seen {
			st.example = nv
			st.seen = true
		}
		if st.overflow {
			continue
		}
		if !t.IsScalar() {
			st.spill()
			continue
		}
		st.values[nv] = struct{}{}
		if len(st.values) > d.maxEnum {
			st.spill()
		}
	}
}

// spill abandons value enumeration for the attribute.
func (st *keyStats) spill() {
	st.overflow = true
	st.values = nil
}

// RecordCount returns how many records have been observed.
func (d *Discoverer) RecordCount() int {
	return d.records
}

// Schema returns the discovered schema. Attributes with between one and the
// threshold distinct scalar values list them in sorted order; all others
// carry their first non-null value as example. Schema does not reset the
// Discoverer.
func (d *Discoverer) Schema() types.CollectionSchema {
	out := types.CollectionSchema{
		RecordCount:  d.records,
		MetadataKeys: make(map[string]types.SchemaEntry, len(d.keys)),
	}
	for key, st := range d.keys {
		entry := types.SchemaEntry{
			Type:  st.typ,
			Count: st.count,
		}
		if entry.Type == "" {
			// Only nulls were seen.
			entry.Type = types.TypeString
		}
		if !st.overflow && len(st.values) > 0 {
			values := make([]any, 0, len(st.values))
			for v := range st.values {
				values = append(values, v)
			}
			entry.Values = SortValues(values)
		} else if st.seen {
			entry.Example = st.example
		}
		out.MetadataKeys[key] = entry
	}
	return out
}

// Discover runs a full scan over records. The first read error aborts the
// scan.
func Discover(records iter.Seq2[types.Record, error], opts ...Option) (types.CollectionSchema, error) {
	d := NewDiscoverer(opts...)
	for rec, err := range records {
		if err != nil {
			return types.CollectionSchema{}, err
		}
		d.Observe(rec)
	}
	return d.Schema(), nil
}

// DiscoverFile discovers the schema of the JSONL file at path.
func DiscoverFile(path string, opts ...Option) (types.CollectionSchema, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.CollectionSchema{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	s, err := Discover(jsonl.Records(f), opts...)
	if err != nil {
		return types.CollectionSchema{}, fmt.Errorf("discovering %s: %w", path, err)
	}
	return s, nil
}
