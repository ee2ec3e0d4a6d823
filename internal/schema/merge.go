package schema

import "github.com/queelius/arkiv/pkg/types"

// Merge combines an auto-discovered schema with a curated one. Neither input
// is modified.
//
// Type, count and record count always come from auto. A curated description
// replaces the entry's description, and a curated value list replaces both
// the discovered values and the example. Attributes known only to the curated
// schema are kept with a zero count so their documentation survives while the
// data lacks them; attributes known only to auto pass through unchanged.
func Merge(auto, curated types.CollectionSchema) types.CollectionSchema {
	out := types.CollectionSchema{
		RecordCount:  auto.RecordCount,
		MetadataKeys: make(map[string]types.SchemaEntry, len(auto.MetadataKeys)+len(curated.MetadataKeys)),
	}

	for key, a := range auto.MetadataKeys {
		entry := a.Clone()
		if c, ok := curated.MetadataKeys[key]; ok {
			if c.Description != "" {
				entry.Description = c.Description
			}
			if c.HasValues() {
				entry.Values = NormalizeAll(c.Values)
				entry.Example = nil
			}
		}
		out.MetadataKeys[key] = entry
	}

	for key, c := range curated.MetadataKeys {
		if _, ok := auto.MetadataKeys[key]; ok {
			continue
		}
		entry := types.SchemaEntry{
			Type:        c.Type,
			Count:       0,
			Description: c.Description,
		}
		if entry.Type == "" {
			entry.Type = types.TypeString
		}
		if c.HasValues() {
			entry.Values = NormalizeAll(c.Values)
		}
		out.MetadataKeys[key] = entry
	}

	return out
}

// Overlay layers one curated schema over another. For each attribute the
// top's description, values and type win when set; otherwise the base's are
// kept. Attributes of either side are retained. Record count comes from top.
func Overlay(base, top types.CollectionSchema) types.CollectionSchema {
	out := types.CollectionSchema{
		RecordCount:  top.RecordCount,
		MetadataKeys: make(map[string]types.SchemaEntry, len(base.MetadataKeys)+len(top.MetadataKeys)),
	}
	for key, b := range base.MetadataKeys {
		out.MetadataKeys[key] = b.Clone()
	}
	for key, t := range top.MetadataKeys {
		entry, ok := out.MetadataKeys[key]
		if !ok {
			out.MetadataKeys[key] = t.Clone()
			continue
		}
		if t.Type != "" {
			entry.Type = t.Type
		}
		if t.Description != "" {
			entry.Description = t.Description
		}
		if t.HasValues() {
			entry.Values = NormalizeAll(t.Values)
		}
		out.MetadataKeys[key] = entry
	}
	return out
}
