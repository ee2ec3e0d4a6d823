package types

import "errors"

// Config holds the parameters for attaching a store.
type Config struct {
	DatabasePath  string `json:"database" yaml:"database"`
	MaxEnumValues int    `json:"max_enum_values" yaml:"max_enum_values"`
	ReadOnly      bool   `json:"read_only" yaml:"read_only"`
}

// Config validation errors.
var (
	ErrDatabaseEmpty    = errors.New("database path must not be empty")
	ErrEnumThreshold    = errors.New("max enum values must be positive")
	ErrDatabaseInMemory = errors.New("in-memory databases are not supported")
)

// Validate checks that the Config is well-formed. A zero MaxEnumValues is
// accepted and means DefaultMaxEnumValues.
func (c Config) Validate() error {
	if c.DatabasePath == "" {
		return ErrDatabaseEmpty
	}
	if c.DatabasePath == ":memory:" {
		return ErrDatabaseInMemory
	}
	if c.MaxEnumValues < 0 {
		return ErrEnumThreshold
	}
	return nil
}

// EnumThreshold returns the effective cardinality threshold.
func (c Config) EnumThreshold() int {
	if c.MaxEnumValues == 0 {
		return DefaultMaxEnumValues
	}
	return c.MaxEnumValues
}
