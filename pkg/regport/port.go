// Package regport provides register-level access to an SX1301 concentrator.
//
// Register identifiers are opaque integers; their meaning is supplied by a
// register map (see package regmap). Transports only move bytes.
package regport

import (
	"errors"
	"sync"
)

// ErrRegisterIO wraps every transport failure. Callers treat it as fatal:
// register state is unknown once a write or read did not complete.
var ErrRegisterIO = errors.New("register I/O failure")

// Port reads and writes concentrator registers by identifier.
type Port interface {
	Write(id uint32, value uint32) error
	Read(id uint32) (int32, error)
	WriteBurst(id uint32, data []byte) error
	ReadBurst(id uint32, length int) ([]byte, error)
}

// Serialize returns a Port whose operations are mutually exclusive.
// Concurrent tuning through a shared port must go through it.
func Serialize(p Port) Port {
	if s, ok := p.(*serialPort); ok {
		return s
	}
	return &serialPort{port: p}
}

type serialPort struct {
	mu   sync.Mutex
	port Port
}

func (s *serialPort) Write(id uint32, value uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Write(id, value)
}

func (s *serialPort) Read(id uint32) (int32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.Read(id)
}

func (s *serialPort) WriteBurst(id uint32, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.WriteBurst(id, data)
}

func (s *serialPort) ReadBurst(id uint32, length int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port.ReadBurst(id, length)
}
