// Package mock provides a deterministic, in-memory Master implementation
// for tests: no NIC, no bus scan, just byte-slice images and injectable
// failure sequences. Grounded on the teacher's canned-response test-double
// style (infrastructure/chain mocks return queued responses per call) and
// on the original driver's mock master, which returns fixed topology and
// lets a test pre-load the input image directly.
package mock

import (
	"context"
	"sync"

	"github.com/R3E-Network/ethercat-engine/ethercat/master"
	"github.com/R3E-Network/ethercat-engine/ethercat/xerrors"
)

// Master is a fully in-memory master.Master. Zero value is not usable;
// construct with New.
type Master struct {
	mu sync.Mutex

	iface  string
	slaves []master.SlaveInfo

	input  []byte
	output []byte

	offsets map[pdoKey]master.Offset

	initialized bool
	active      bool

	// errOnInitialize/Activate/RegisterPDOs, when non-nil, are returned by
	// the matching call and then cleared unless Permanent is set.
	errOnInitialize  error
	errOnActivate    error
	errOnRegister    error
	errOnReceive     error
	errOnSend        error
	permanentErrors  bool

	receiveCount int
	sendCount    int

	// wcOK is the value the next WorkingCounterOK call returns. Defaults to
	// true; tests simulate a mismatch via SetWorkingCounterOK(false).
	wcOK bool
}

type pdoKey struct {
	slave int
	index uint16
	sub   uint8
}

// New constructs a mock bound to ifaceName with the given topology. input
// and output are the backing images; callers typically size them to the
// sum of registered PDO byte lengths plus any padding under test.
func New(ifaceName string, slaves []master.SlaveInfo, inputSize, outputSize int) *Master {
	return &Master{
		iface:   ifaceName,
		slaves:  slaves,
		input:   make([]byte, inputSize),
		output:  make([]byte, outputSize),
		offsets: make(map[pdoKey]master.Offset),
		wcOK:    true,
	}
}

// SetInput overwrites the input image directly, simulating a frame
// received from the wire.
func (m *Master) SetInput(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.input, data)
}

// OutputSnapshot returns a copy of the current output image, for tests to
// assert on after a writer's value has propagated through a cycle.
func (m *Master) OutputSnapshot() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.output))
	copy(out, m.output)
	return out
}

// MapOffset pins entry's resolved offset; call before Activate in test
// setup, or between Deactivate/Activate to simulate a topology shift.
func (m *Master) MapOffset(entry master.PDOEntry, off master.Offset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offsets[keyOf(entry)] = off
}

// PadOutput grows the output image by n zero bytes at the front, shifting
// every previously-mapped offset by n, input and output entries alike (the
// offset table does not record direction) — simulating the topology-
// driven layout shift in spec.md §8 scenario 4. Must be called while
// deactivated.
func (m *Master) PadOutput(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.output = append(make([]byte, n), m.output...)
	for k, off := range m.offsets {
		m.offsets[k] = master.Offset{Byte: off.Byte + n, Bit: off.Bit}
	}
}

// FailNextInitialize/Activate/RegisterPDOs queue a one-shot failure (or a
// permanent one, if permanent is true) for the named lifecycle call.
func (m *Master) FailNextInitialize(err error, permanent bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errOnInitialize = err
	m.permanentErrors = m.permanentErrors || permanent
}

func (m *Master) FailNextActivate(err error, permanent bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errOnActivate = err
	m.permanentErrors = m.permanentErrors || permanent
}

func (m *Master) FailNextRegisterPDOs(err error, permanent bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errOnRegister = err
	m.permanentErrors = m.permanentErrors || permanent
}

func (m *Master) FailNextReceive(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errOnReceive = err
}

func (m *Master) FailNextSend(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errOnSend = err
}

func keyOf(e master.PDOEntry) pdoKey {
	return pdoKey{slave: e.Slave, index: e.Index, sub: e.Subindex}
}

func (m *Master) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errOnInitialize != nil {
		err := m.errOnInitialize
		if !m.permanentErrors {
			m.errOnInitialize = nil
		}
		return err
	}
	m.initialized = true
	return nil
}

func (m *Master) RegisterPDOs(entries []master.PDOEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errOnRegister != nil {
		err := m.errOnRegister
		if !m.permanentErrors {
			m.errOnRegister = nil
		}
		return err
	}
	return nil
}

func (m *Master) Activate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errOnActivate != nil {
		err := m.errOnActivate
		if !m.permanentErrors {
			m.errOnActivate = nil
		}
		return err
	}
	m.active = true
	return nil
}

func (m *Master) Deactivate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = false
}

func (m *Master) Receive() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receiveCount++
	if m.errOnReceive != nil {
		err := m.errOnReceive
		m.errOnReceive = nil
		return err
	}
	return nil
}

func (m *Master) Send() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendCount++
	if m.errOnSend != nil {
		err := m.errOnSend
		m.errOnSend = nil
		return err
	}
	return nil
}

func (m *Master) InputData() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.input
}

func (m *Master) OutputData() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.output
}

func (m *Master) PDOOffset(entry master.PDOEntry) (master.Offset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	off, ok := m.offsets[keyOf(entry)]
	if !ok {
		return master.Offset{}, xerrors.New(xerrors.KindPDOMapping, "no mapped offset for entry in mock")
	}
	return off, nil
}

func (m *Master) Slaves() []master.SlaveInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slaves
}

func (m *Master) InterfaceName() string {
	return m.iface
}

// ReceiveCount and SendCount report call counts, for tests asserting the
// cycle thread actually ran N cycles.
func (m *Master) ReceiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.receiveCount
}

func (m *Master) SendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sendCount
}

// WorkingCounterOK implements master.WorkingCounterReporter.
func (m *Master) WorkingCounterOK() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.wcOK
}

// SetWorkingCounterOK sets the value the next and subsequent
// WorkingCounterOK calls return, for simulating a working-counter mismatch.
func (m *Master) SetWorkingCounterOK(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wcOK = ok
}

// SetSlaveState updates the reported State of the slave at position,
// simulating a topology-observed state transition between cycles.
func (m *Master) SetSlaveState(position int, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.slaves {
		if m.slaves[i].Position == position {
			m.slaves[i].State = state
			return
		}
	}
}
