// Package types defines the record, schema and configuration types shared by
// the arkiv engine, together with its sentinel errors.
//
// A Record is one line of a JSONL archive. A CollectionSchema summarizes the
// metadata attributes observed across one collection; each attribute is
// described by a SchemaEntry that either enumerates its values or carries a
// single example.
package types
