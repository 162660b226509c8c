// Package spiport is a regport.ByteBus for an SX1301 wired to a host SPI
// controller.
package spiport

import (
	"fmt"
	"sync"

	"periph.io/x/periph/conn/physic"
	"periph.io/x/periph/conn/spi"
	"periph.io/x/periph/conn/spi/spireg"
	"periph.io/x/periph/host"
)

// SPI framing
const (
	WriteFlag  = 0x80
	AddrMask   = 0x7F
	BurstChunk = 1024 // largest data transfer per packet

	DefaultSpeed = 8 * physic.MegaHertz
)

// Bus talks to the concentrator over one SPI connection.
type Bus struct {
	mu     sync.Mutex
	conn   spi.Conn
	closer spi.PortCloser
}

// Open initializes the host drivers and connects to SPI port name ("" picks
// the first one) in mode 0.
func Open(name string, speed physic.Frequency) (*Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize host drivers: %w", err)
	}
	port, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open SPI port %q: %w", name, err)
	}
	if speed == 0 {
		speed = DefaultSpeed
	}
	conn, err := port.Connect(speed, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to connect to SPI port %q: %w", name, err)
	}
	b := NewBus(conn)
	b.closer = port
	return b, nil
}

// NewBus wraps an established SPI connection.
func NewBus(conn spi.Conn) *Bus {
	return &Bus{conn: conn}
}

// Close releases the SPI port when the Bus opened it.
func (b *Bus) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// ReadBytes reads n consecutive registers starting at addr.
func (b *Bus) ReadBytes(addr uint8, n int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, n)
	if n == 1 {
		w := []byte{addr & AddrMask, 0}
		r := make([]byte, 2)
		if err := b.conn.Tx(w, r); err != nil {
			return nil, fmt.Errorf("SPI read 0x%02X: %w", addr, err)
		}
		out[0] = r[1]
		return out, nil
	}

	packets := []spi.Packet{{W: []byte{addr & AddrMask}, R: make([]byte, 1), KeepCS: true}}
	for off := 0; off < n; off += BurstChunk {
		end := off + BurstChunk
		if end > n {
			end = n
		}
		packets = append(packets, spi.Packet{
			W:      make([]byte, end-off),
			R:      out[off:end],
			KeepCS: end < n,
		})
	}
	if err := b.conn.TxPackets(packets); err != nil {
		return nil, fmt.Errorf("SPI burst read 0x%02X (%d bytes): %w", addr, n, err)
	}
	return out, nil
}

// WriteBytes writes data to consecutive registers starting at addr.
func (b *Bus) WriteBytes(addr uint8, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	header := WriteFlag | (addr & AddrMask)
	if len(data) == 1 {
		if err := b.conn.Tx([]byte{header, data[0]}, nil); err != nil {
			return fmt.Errorf("SPI write 0x%02X: %w", addr, err)
		}
		return nil
	}

	packets := []spi.Packet{{W: []byte{header}, KeepCS: true}}
	for off := 0; off < len(data); off += BurstChunk {
		end := off + BurstChunk
		if end > len(data) {
			end = len(data)
		}
		packets = append(packets, spi.Packet{W: data[off:end], KeepCS: end < len(data)})
	}
	if err := b.conn.TxPackets(packets); err != nil {
		return fmt.Errorf("SPI burst write 0x%02X (%d bytes): %w", addr, len(data), err)
	}
	return nil
}
