// Package codec implements the PDO bit/byte codec: pure functions that
// translate between a typed value and a bit field within a byte-addressed
// process-image buffer. Grounded on the original C++ driver's PDO
// extraction/insertion logic (original_source/driver/ethercat/read_task_test.cpp,
// write_task_test.cpp) and reimplemented as two pure functions reused by
// both the engine (for offset bookkeeping only) and the reader/writer
// handles (for the actual extraction/insertion), per spec.md §2 item 4 and
// §4.2/§4.3.
package codec

import "fmt"

// DataType identifies the declared wire type of a PDO entry.
type DataType int

const (
	// Unknown means the declared type is resolved from the wire (bit length only).
	Unknown DataType = iota
	Uint8
	Int8
	Uint16
	Int16
	Uint32
	Int32
	Uint64
	Int64
	Float32
	Float64
)

// Signed reports whether the data type is a signed integer type.
func (t DataType) Signed() bool {
	switch t {
	case Int8, Int16, Int32, Int64:
		return true
	default:
		return false
	}
}

// Offset is a resolved (byte, bit) location within a process-image buffer.
type Offset struct {
	Byte int
	Bit  uint8 // 0..7
}

// ByteLength returns ceil(bitLength/8), the storage span of a PDO entry's declared type.
func ByteLength(bitLength int) int {
	return (bitLength + 7) / 8
}

// Value is a decoded PDO sample, represented as the widest integer/float
// container needed; callers cast down per the entry's declared type.
type Value struct {
	Type DataType
	I    int64   // valid when Type is an integer type (Unknown decodes to Uint8/Uint16/Uint32/Uint64 width as appropriate)
	U    uint64  // unsigned view of I, used for mask/shift arithmetic
	F64  float64 // valid when Type is Float32/Float64
}

func (v Value) String() string {
	switch v.Type {
	case Float32, Float64:
		return fmt.Sprintf("%v", v.F64)
	default:
		if v.Type.Signed() {
			return fmt.Sprintf("%d", v.I)
		}
		return fmt.Sprintf("%d", v.U)
	}
}
