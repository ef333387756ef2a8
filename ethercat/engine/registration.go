package engine

import (
	"time"

	"github.com/R3E-Network/ethercat-engine/ethercat/master"
)

// registrationKind distinguishes a reader's (input) registration from a
// writer's (output) one; both live in the same Registration shape but are
// kept in separate ordered lists (spec.md §3).
type registrationKind int

const (
	readerRegistration registrationKind = iota
	writerRegistration
)

// Registration is the engine-owned record behind one Reader or Writer
// handle: its PDO entries, their resolved offsets (valid only for the
// generation at which they were last refreshed), and its desired rate.
type Registration struct {
	ID      uint64
	Kind    registrationKind
	Entries []master.PDOEntry
	Offsets []master.Offset
	Rate    time.Duration
}

// totalBytes sums the byte length of every entry in the registration.
// Readers size their private buffer to the engine's whole input image
// (InputSize), not to this sum.
func (r *Registration) totalBytes() int {
	n := 0
	for _, e := range r.Entries {
		n += e.ByteLength()
	}
	return n
}
