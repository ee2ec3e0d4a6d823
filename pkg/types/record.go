package types

// Recognized top-level record fields. Any other key found on a JSONL line is
// folded into Metadata.
const (
	FieldMimetype  = "mimetype"
	FieldURI       = "uri"
	FieldContent   = "content"
	FieldTimestamp = "timestamp"
	FieldMetadata  = "metadata"
)

// IsRecognizedField reports whether key is a recognized top-level field.
func IsRecognizedField(key string) bool {
	switch key {
	case FieldMimetype, FieldURI, FieldContent, FieldTimestamp, FieldMetadata:
		return true
	}
	return false
}

// Record describes a single resource. Every field is optional; a nil pointer
// means the field was absent. Metadata is nil when the record carries no
// attributes.
//
// Numbers inside Metadata are kept as json.Number when a record was parsed
// from JSONL so that export reproduces them exactly.
type Record struct {
	Mimetype  *string        `json:"mimetype,omitempty"`
	URI       *string        `json:"uri,omitempty"`
	Content   *string        `json:"content,omitempty"`
	Timestamp *string        `json:"timestamp,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// StringPtr returns a pointer to s. It keeps record literals short.
func StringPtr(s string) *string {
	return &s
}
