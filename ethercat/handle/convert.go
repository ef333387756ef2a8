package handle

import (
	"github.com/R3E-Network/ethercat-engine/ethercat/codec"
	"github.com/R3E-Network/ethercat-engine/ethercat/master"
)

// toCodecOffset converts a master-resolved (byte, bit) address into the
// codec package's own Offset type. The two packages keep distinct types
// because master.Offset is a topology-resolved address (valid only for one
// configuration generation) while codec.Offset is a pure arithmetic
// input; handle is the seam that bridges them.
func toCodecOffset(off master.Offset) codec.Offset {
	return codec.Offset{Byte: off.Byte, Bit: off.Bit}
}

func toCodecType(t master.DataType) codec.DataType {
	switch t {
	case master.Int8:
		return codec.Int8
	case master.Uint8, master.Bool:
		return codec.Uint8
	case master.Int16:
		return codec.Int16
	case master.Uint16:
		return codec.Uint16
	case master.Int32, master.Int24:
		return codec.Int32
	case master.Uint32, master.Uint24:
		return codec.Uint32
	case master.Int64:
		return codec.Int64
	case master.Uint64:
		return codec.Uint64
	case master.Float32:
		return codec.Float32
	case master.Float64:
		return codec.Float64
	default:
		return codec.Unknown
	}
}
