// Package master defines the contract the cycle engine expects from a
// fieldbus transport driver ("the Master" in spec.md's terminology — the
// object that owns the NIC, performs bus scan, allocates the I/O image,
// and resolves PDO descriptors to byte/bit offsets). It is deliberately a
// thin interface: a live SOEM-style driver and the in-memory mock under
// master/mock both satisfy it.
package master

import "context"

// Direction is the PDO transfer direction relative to the master.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "output"
	}
	return "input"
}

// DataType mirrors the declared type a PDO entry carries on the wire; it
// may be Unknown until resolved against the slave's object dictionary.
type DataType int

const (
	Unknown DataType = iota
	Bool
	Int8
	Uint8
	Int16
	Uint16
	Int24
	Uint24
	Int32
	Uint32
	Int64
	Uint64
	Float32
	Float64
)

// PDOEntry describes one process-data field a caller wants mapped: which
// slave, which object/subindex, how wide, which direction, and (optionally)
// its declared type. Copied by value into a Registration.
type PDOEntry struct {
	Slave        int
	Index        uint16
	Subindex     uint8
	BitLength    int
	Direction    Direction
	DeclaredType DataType
}

// ByteLength returns ceil(BitLength/8).
func (e PDOEntry) ByteLength() int {
	return (e.BitLength + 7) / 8
}

// Offset is the resolved (byte, bit) address of a PDOEntry within the
// master's I/O image, valid only for the configuration generation under
// which it was resolved.
type Offset struct {
	Byte int
	Bit  uint8
}

// PDODescriptor is a slave-reported PDO entry, as seen via topology scan
// (distinct from PDOEntry, which is caller-supplied intent).
type PDODescriptor struct {
	PDOIndex     uint16
	ObjectIndex  uint16
	Subindex     uint8
	BitLength    int
	Direction    Direction
	Name         string
	DeclaredType DataType
}

// SlaveInfo is the topology record the Master reports per discovered
// device, per spec.md §3 "Slave discovery and device representation".
type SlaveInfo struct {
	Position    int
	VendorID    uint32
	ProductCode uint32
	Revision    uint32
	Serial      uint32
	Name        string
	State       string
	InputBits   int
	OutputBits  int
	InputPDOs   []PDODescriptor
	OutputPDOs  []PDODescriptor
}

// Master is the contract the cycle engine, the reconfigure coordinator, and
// the engine pool's discovery path consume. Implementations are polymorphic
// over this capability set (spec.md §9): a live driver and a mock are the
// two variants in this repository; express new ones as implementations of
// this interface, not by subclassing either.
type Master interface {
	// Initialize brings the driver up (open socket, enumerate bus) without
	// starting cyclic exchange. Idempotent after Deactivate.
	Initialize(ctx context.Context) error

	// RegisterPDOs declares the full set of entries the engine intends to
	// exchange. Called exactly once between Initialize and Activate.
	RegisterPDOs(entries []PDOEntry) error

	// Activate transitions the bus to operational state and fixes the I/O
	// image layout; PDOOffset is only valid after this returns nil.
	Activate(ctx context.Context) error

	// Deactivate tears the bus back down to pre-operational. Idempotent.
	Deactivate()

	// Receive pulls one frame's worth of inputs into the driver's input
	// image. Called once per cycle by the cycle thread.
	Receive() error

	// Send pushes the driver's output image onto the wire. Called once per
	// cycle, after Receive and after the engine has copied staged outputs
	// into the driver's output buffer.
	Send() error

	// InputData returns the driver's current input image. Only the cycle
	// thread reads this, immediately after Receive.
	InputData() []byte

	// OutputData returns the driver's output image buffer for the cycle
	// thread to copy staged writes into before Send.
	OutputData() []byte

	// PDOOffset resolves entry to its (byte, bit) address. Stable between
	// Activate and Deactivate.
	PDOOffset(entry PDOEntry) (Offset, error)

	// Slaves reports the discovered topology.
	Slaves() []SlaveInfo

	// InterfaceName reports the network interface or bus identity this
	// Master instance is bound to.
	InterfaceName() string
}

// WorkingCounterReporter is an optional capability a Master implementation
// may satisfy to let the cycle thread surface working-counter mismatches
// (spec.md's WORKING_COUNTER supplement, distinct from a transient
// Receive/Send error). A Master that doesn't implement it is treated as
// always reporting a healthy working counter.
type WorkingCounterReporter interface {
	// WorkingCounterOK reports whether the most recent Receive's working
	// counter matched the number of expected slave responses.
	WorkingCounterOK() bool
}
