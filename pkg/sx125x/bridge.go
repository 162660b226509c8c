package sx125x

import (
	"fmt"

	"github.com/herlein/lgwcal/pkg/regmap"
	"github.com/herlein/lgwcal/pkg/regport"
)

// Bridge reaches a radio through the concentrator's SPI master registers.
type Bridge struct {
	port regport.Port
	regs regmap.RadioSPI
}

// NewBridge returns a RadioBus for radio 0 (A) or 1 (B) behind port.
func NewBridge(port regport.Port, radio int) (*Bridge, error) {
	regs, err := regmap.RadioSPIFor(radio)
	if err != nil {
		return nil, err
	}
	return &Bridge{port: port, regs: regs}, nil
}

func (b *Bridge) write(id regmap.ID, v uint32) error {
	return b.port.Write(uint32(id), v)
}

// WriteReg writes one radio register. The address MSB selects a write.
func (b *Bridge) WriteReg(addr uint8, value uint8) error {
	if addr >= MaxRegAddr {
		return fmt.Errorf("%w: 0x%02X", ErrAddressRange, addr)
	}
	seq := []struct {
		id regmap.ID
		v  uint32
	}{
		{b.regs.CS, 0},
		{b.regs.Addr, 0x80 | uint32(addr)},
		{b.regs.Data, uint32(value)},
		{b.regs.CS, 1},
		{b.regs.CS, 0},
	}
	for _, s := range seq {
		if err := b.write(s.id, s.v); err != nil {
			return err
		}
	}
	return nil
}

// ReadReg reads one radio register through the readback register.
func (b *Bridge) ReadReg(addr uint8) (uint8, error) {
	if addr >= MaxRegAddr {
		return 0, fmt.Errorf("%w: 0x%02X", ErrAddressRange, addr)
	}
	seq := []struct {
		id regmap.ID
		v  uint32
	}{
		{b.regs.CS, 0},
		{b.regs.Addr, uint32(addr)},
		{b.regs.Data, 0},
		{b.regs.CS, 1},
		{b.regs.CS, 0},
	}
	for _, s := range seq {
		if err := b.write(s.id, s.v); err != nil {
			return 0, err
		}
	}
	v, err := b.port.Read(uint32(b.regs.Readback))
	if err != nil {
		return 0, err
	}
	return uint8(v), nil
}
