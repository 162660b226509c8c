package regport

import (
	"fmt"
	"sync"
)

// Access records one operation seen by a Memory port.
type Access struct {
	Write bool
	ID    uint32
	Value uint32
	Burst int // burst length, 0 for single register access
}

// Memory is an in-memory Port. It backs tests and simulated runs.
type Memory struct {
	mu     sync.Mutex
	regs   map[uint32]int32
	bursts map[uint32][]byte
	log    []Access

	// ReadHook, when set, replaces the value returned by Read.
	ReadHook func(id uint32, stored int32) int32
	// BurstHook, when set, supplies the data returned by ReadBurst.
	BurstHook func(id uint32, length int) []byte
	// Fail makes every operation return an ErrRegisterIO.
	Fail error
}

// NewMemory returns an empty Memory port.
func NewMemory() *Memory {
	return &Memory{
		regs:   make(map[uint32]int32),
		bursts: make(map[uint32][]byte),
	}
}

// Set stores a register value without logging an access.
func (m *Memory) Set(id uint32, value int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[id] = value
}

// Get returns the stored value of a register.
func (m *Memory) Get(id uint32) int32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[id]
}

// SetBurst stores burst data returned by ReadBurst on id.
func (m *Memory) SetBurst(id uint32, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bursts[id] = append([]byte(nil), data...)
}

// Burst returns the last data written to id with WriteBurst.
func (m *Memory) Burst(id uint32) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.bursts[id]...)
}

// Log returns a copy of every access so far.
func (m *Memory) Log() []Access {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Access(nil), m.log...)
}

// Writes returns the values written to id, in order.
func (m *Memory) Writes(id uint32) []uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var values []uint32
	for _, a := range m.log {
		if a.Write && a.Burst == 0 && a.ID == id {
			values = append(values, a.Value)
		}
	}
	return values
}

// ResetLog clears the access log.
func (m *Memory) ResetLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = m.log[:0]
}

func (m *Memory) Write(id uint32, value uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return fmt.Errorf("%w: write %d: %v", ErrRegisterIO, id, m.Fail)
	}
	m.regs[id] = int32(value)
	m.log = append(m.log, Access{Write: true, ID: id, Value: value})
	return nil
}

func (m *Memory) Read(id uint32) (int32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return 0, fmt.Errorf("%w: read %d: %v", ErrRegisterIO, id, m.Fail)
	}
	v := m.regs[id]
	if m.ReadHook != nil {
		v = m.ReadHook(id, v)
	}
	m.log = append(m.log, Access{ID: id, Value: uint32(v)})
	return v, nil
}

func (m *Memory) WriteBurst(id uint32, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return fmt.Errorf("%w: burst write %d: %v", ErrRegisterIO, id, m.Fail)
	}
	m.bursts[id] = append([]byte(nil), data...)
	m.log = append(m.log, Access{Write: true, ID: id, Burst: len(data)})
	return nil
}

// ReadBurst returns the stored burst data for id, repeated or truncated to length.
func (m *Memory) ReadBurst(id uint32, length int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return nil, fmt.Errorf("%w: burst read %d: %v", ErrRegisterIO, id, m.Fail)
	}
	m.log = append(m.log, Access{ID: id, Burst: length})
	if m.BurstHook != nil {
		return m.BurstHook(id, length), nil
	}
	out := make([]byte, length)
	if src := m.bursts[id]; len(src) > 0 {
		for i := range out {
			out[i] = src[i%len(src)]
		}
	}
	return out, nil
}
