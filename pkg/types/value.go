package types

// ValueType is the semantic type of an observed metadata value.
type ValueType string

// Value types reported in a SchemaEntry.
const (
	TypeString  ValueType = "string"
	TypeNumber  ValueType = "number"
	TypeBoolean ValueType = "boolean"
	TypeArray   ValueType = "array"
	TypeObject  ValueType = "object"
)

// validValueTypes is the set of recognized value types.
var validValueTypes = map[ValueType]bool{
	TypeString:  true,
	TypeNumber:  true,
	TypeBoolean: true,
	TypeArray:   true,
	TypeObject:  true,
}

// IsValid reports whether t is one of the recognized value types.
func (t ValueType) IsValid() bool {
	return validValueTypes[t]
}

// IsScalar reports whether values of type t can be enumerated in a
// SchemaEntry's Values. Arrays and objects never can.
func (t ValueType) IsScalar() bool {
	return t == TypeString || t == TypeNumber || t == TypeBoolean
}
