package regport

import (
	"errors"
	"fmt"

	"github.com/herlein/lgwcal/pkg/regmap"
)

// ErrReadOnly is returned when writing a read-only register.
var ErrReadOnly = errors.New("register is read-only")

// ByteBus moves raw bytes to and from consecutive SX1301 addresses.
type ByteBus interface {
	ReadBytes(addr uint8, n int) ([]byte, error)
	WriteBytes(addr uint8, data []byte) error
}

// FieldPort implements Port on top of a ByteBus using a register map.
// Sub-byte fields are read-modify-written. Multi-byte fields are stored
// least significant byte first starting at the field address.
type FieldPort struct {
	bus  ByteBus
	regs *regmap.Map
	page int8 // currently selected page, -1 when unknown
}

// NewFieldPort wraps bus with the register layout regs.
func NewFieldPort(bus ByteBus, regs *regmap.Map) *FieldPort {
	return &FieldPort{bus: bus, regs: regs, page: -1}
}

func (p *FieldPort) selectPage(f regmap.Field) error {
	if f.Page < 0 || f.Page == p.page {
		return nil
	}
	pf, err := p.regs.Field(regmap.PageReg)
	if err != nil {
		return err
	}
	if err := p.writeField(pf, uint32(f.Page)); err != nil {
		return fmt.Errorf("failed to select page %d: %w", f.Page, err)
	}
	p.page = f.Page
	return nil
}

func (p *FieldPort) writeField(f regmap.Field, value uint32) error {
	if f.Len < 8 {
		cur, err := p.bus.ReadBytes(f.Addr, 1)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRegisterIO, err)
		}
		mask := byte((1<<f.Len)-1) << f.Offset
		b := (cur[0] &^ mask) | (byte(value)<<f.Offset)&mask
		if err := p.bus.WriteBytes(f.Addr, []byte{b}); err != nil {
			return fmt.Errorf("%w: %v", ErrRegisterIO, err)
		}
		return nil
	}

	buf := make([]byte, f.Bytes())
	for i := range buf {
		buf[i] = byte(value)
		value >>= 8
	}
	if err := p.bus.WriteBytes(f.Addr, buf); err != nil {
		return fmt.Errorf("%w: %v", ErrRegisterIO, err)
	}
	return nil
}

// Write stores value into the register field id.
func (p *FieldPort) Write(id uint32, value uint32) error {
	f, err := p.regs.Field(regmap.ID(id))
	if err != nil {
		return err
	}
	if f.ReadOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, regmap.ID(id))
	}
	if err := p.selectPage(f); err != nil {
		return err
	}
	if err := p.writeField(f, value); err != nil {
		return err
	}
	if regmap.ID(id) == regmap.PageReg {
		p.page = int8(value & 0x03)
	}
	return nil
}

// Read returns the register field id, sign-extended for signed fields.
func (p *FieldPort) Read(id uint32) (int32, error) {
	f, err := p.regs.Field(regmap.ID(id))
	if err != nil {
		return 0, err
	}
	if err := p.selectPage(f); err != nil {
		return 0, err
	}

	buf, err := p.bus.ReadBytes(f.Addr, f.Bytes())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRegisterIO, err)
	}

	var u uint32
	for i := len(buf) - 1; i >= 0; i-- {
		u = u<<8 | uint32(buf[i])
	}
	u >>= f.Offset
	if f.Len < 32 {
		u &= (1 << f.Len) - 1
	}
	if f.Signed && f.Len < 32 {
		shift := 32 - f.Len
		return int32(u<<shift) >> shift, nil
	}
	return int32(u), nil
}

// WriteBurst writes data to the byte register id in one transfer.
func (p *FieldPort) WriteBurst(id uint32, data []byte) error {
	f, err := p.burstField(id)
	if err != nil {
		return err
	}
	if f.ReadOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, regmap.ID(id))
	}
	if err := p.selectPage(f); err != nil {
		return err
	}
	if err := p.bus.WriteBytes(f.Addr, data); err != nil {
		return fmt.Errorf("%w: %v", ErrRegisterIO, err)
	}
	return nil
}

// ReadBurst reads length bytes from the byte register id in one transfer.
func (p *FieldPort) ReadBurst(id uint32, length int) ([]byte, error) {
	f, err := p.burstField(id)
	if err != nil {
		return nil, err
	}
	if err := p.selectPage(f); err != nil {
		return nil, err
	}
	data, err := p.bus.ReadBytes(f.Addr, length)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRegisterIO, err)
	}
	return data, nil
}

func (p *FieldPort) burstField(id uint32) (regmap.Field, error) {
	f, err := p.regs.Field(regmap.ID(id))
	if err != nil {
		return f, err
	}
	if f.Len != 8 || f.Offset != 0 {
		return f, fmt.Errorf("%s: burst access needs a byte-wide register", regmap.ID(id))
	}
	return f, nil
}
