package dimension

// Datatype is the closed set of coordinate types a Dimension can carry. It
// replaces the original's per-type C++ template instantiation with an
// explicit tag, per spec.md §9 ("Templated per-datatype dispatch... replaced
// by a closed set of datatype tags").
type Datatype int

const (
	Int8 Datatype = iota
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Float32
	Float64
	StringAscii
)

func (dt Datatype) String() string {
	switch dt {
	case Int8:
		return "int8"
	case Int16:
		return "int16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case StringAscii:
		return "string_ascii"
	default:
		return "unknown"
	}
}

// IsInteger reports whether dt is one of the fixed-width integer types.
func (dt Datatype) IsInteger() bool {
	switch dt {
	case Int8, Int16, Int32, Int64, Uint8, Uint16, Uint32, Uint64:
		return true
	default:
		return false
	}
}

// IsSignedInteger reports whether dt is a signed integer type.
func (dt Datatype) IsSignedInteger() bool {
	switch dt {
	case Int8, Int16, Int32, Int64:
		return true
	default:
		return false
	}
}

// IsFloat reports whether dt is one of the floating-point types.
func (dt Datatype) IsFloat() bool {
	return dt == Float32 || dt == Float64
}

// IsVarLength reports whether dt is stored with a variable byte length per
// value (only StringAscii, in this closed set).
func (dt Datatype) IsVarLength() bool {
	return dt == StringAscii
}

// ByteWidth returns the fixed on-disk width of one coordinate value of dt,
// or 0 for variable-length types.
func (dt Datatype) ByteWidth() int {
	switch dt {
	case Int8, Uint8:
		return 1
	case Int16, Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	case Int64, Uint64, Float64:
		return 8
	default:
		return 0
	}
}
