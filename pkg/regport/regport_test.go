package regport

import (
	"errors"
	"sync"
	"testing"

	"github.com/herlein/lgwcal/pkg/regmap"
)

type busWrite struct {
	addr uint8
	data []byte
}

// fakeBus is a flat 128-byte address space. Paging is only observed through
// the writes to PAGE_REG.
type fakeBus struct {
	mem    [128]byte
	writes []busWrite
	fail   error
}

func (b *fakeBus) ReadBytes(addr uint8, n int) ([]byte, error) {
	if b.fail != nil {
		return nil, b.fail
	}
	out := make([]byte, n)
	copy(out, b.mem[addr:])
	return out, nil
}

func (b *fakeBus) WriteBytes(addr uint8, data []byte) error {
	if b.fail != nil {
		return b.fail
	}
	b.writes = append(b.writes, busWrite{addr, append([]byte(nil), data...)})
	copy(b.mem[addr:], data)
	return nil
}

func (b *fakeBus) pageWrites() []byte {
	var pages []byte
	for _, w := range b.writes {
		if w.addr == 0 {
			pages = append(pages, w.data[0])
		}
	}
	return pages
}

func testMap(t *testing.T) *regmap.Map {
	t.Helper()
	m, err := regmap.New(map[regmap.ID]regmap.Field{
		regmap.PageReg:       {Page: -1, Addr: 0x00, Len: 2},
		regmap.RadioAEn:      {Page: -1, Addr: 0x10, Offset: 1, Len: 1},
		regmap.RadioBEn:      {Page: -1, Addr: 0x10, Offset: 2, Len: 1},
		regmap.IFFreq0:       {Page: 1, Addr: 0x22, Len: 13, Signed: true},
		regmap.CapturePeriod: {Page: 2, Addr: 0x30, Len: 16},
		regmap.MCUPromData:   {Page: 2, Addr: 0x2A, Len: 8},
		regmap.MCUAGCStatus:  {Page: -1, Addr: 0x20, Len: 8, ReadOnly: true},
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestFieldPortSubByte(t *testing.T) {
	bus := &fakeBus{}
	p := NewFieldPort(bus, testMap(t))

	bus.mem[0x10] = 0x81
	if err := p.Write(uint32(regmap.RadioAEn), 1); err != nil {
		t.Fatal(err)
	}
	if err := p.Write(uint32(regmap.RadioBEn), 1); err != nil {
		t.Fatal(err)
	}
	if bus.mem[0x10] != 0x87 {
		t.Errorf("mem[0x10] = %#x, want 0x87", bus.mem[0x10])
	}
	if err := p.Write(uint32(regmap.RadioAEn), 0); err != nil {
		t.Fatal(err)
	}
	if v, _ := p.Read(uint32(regmap.RadioBEn)); v != 1 {
		t.Errorf("RADIO_B_EN = %d", v)
	}
	if bus.mem[0x10] != 0x85 {
		t.Errorf("mem[0x10] = %#x, want 0x85", bus.mem[0x10])
	}
}

func TestFieldPortMultiByte(t *testing.T) {
	tests := []struct {
		name  string
		id    regmap.ID
		value int32
		bytes []byte
	}{
		{"signed negative", regmap.IFFreq0, -200, []byte{0x38, 0x1F}},
		{"signed positive", regmap.IFFreq0, 204, []byte{0xCC, 0x00}},
		{"unsigned", regmap.CapturePeriod, 255, []byte{0xFF, 0x00}},
		{"unsigned wide", regmap.CapturePeriod, 0xABCD, []byte{0xCD, 0xAB}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := &fakeBus{}
			p := NewFieldPort(bus, testMap(t))
			if err := p.Write(uint32(tt.id), uint32(tt.value)); err != nil {
				t.Fatal(err)
			}
			f, _ := testMap(t).Field(tt.id)
			got := bus.mem[f.Addr : f.Addr+2]
			// the top byte of a 13-bit field carries stray sign bits
			if f.Len == 13 {
				got = []byte{got[0], got[1] & 0x1F}
			}
			if string(got) != string(tt.bytes) {
				t.Errorf("bytes = % X, want % X", got, tt.bytes)
			}
			v, err := p.Read(uint32(tt.id))
			if err != nil {
				t.Fatal(err)
			}
			if v != tt.value {
				t.Errorf("read back %d, want %d", v, tt.value)
			}
		})
	}
}

func TestFieldPortPaging(t *testing.T) {
	bus := &fakeBus{}
	p := NewFieldPort(bus, testMap(t))

	steps := []regmap.ID{regmap.IFFreq0, regmap.IFFreq0, regmap.RadioAEn, regmap.CapturePeriod, regmap.IFFreq0}
	for _, id := range steps {
		if err := p.Write(uint32(id), 1); err != nil {
			t.Fatal(err)
		}
	}
	got := bus.pageWrites()
	want := []byte{1, 2, 1}
	if string(got) != string(want) {
		t.Errorf("page selects = %v, want %v", got, want)
	}

	// an explicit PAGE_REG write is tracked
	if err := p.Write(uint32(regmap.PageReg), 2); err != nil {
		t.Fatal(err)
	}
	bus.writes = nil
	if err := p.Write(uint32(regmap.CapturePeriod), 3); err != nil {
		t.Fatal(err)
	}
	if len(bus.pageWrites()) != 0 {
		t.Error("page reselected after explicit PAGE_REG write")
	}
}

func TestFieldPortBurst(t *testing.T) {
	bus := &fakeBus{}
	p := NewFieldPort(bus, testMap(t))

	fw := []byte{1, 2, 3, 4}
	if err := p.WriteBurst(uint32(regmap.MCUPromData), fw); err != nil {
		t.Fatal(err)
	}
	last := bus.writes[len(bus.writes)-1]
	if last.addr != 0x2A || string(last.data) != string(fw) {
		t.Errorf("burst write = %+v", last)
	}
	data, err := p.ReadBurst(uint32(regmap.MCUPromData), 4)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(fw) {
		t.Errorf("burst read = % X", data)
	}

	if err := p.WriteBurst(uint32(regmap.IFFreq0), fw); err == nil {
		t.Error("burst on a 13-bit field accepted")
	}
}

func TestFieldPortErrors(t *testing.T) {
	bus := &fakeBus{}
	p := NewFieldPort(bus, testMap(t))

	if err := p.Write(uint32(regmap.MCUAGCStatus), 1); !errors.Is(err, ErrReadOnly) {
		t.Errorf("read-only write: %v", err)
	}
	if _, err := p.Read(uint32(regmap.CaptureStart)); !errors.Is(err, regmap.ErrUnknownRegister) {
		t.Errorf("undefined register: %v", err)
	}

	bus.fail = errors.New("spi down")
	if err := p.Write(uint32(regmap.RadioAEn), 1); !errors.Is(err, ErrRegisterIO) {
		t.Errorf("bus failure on write: %v", err)
	}
	if _, err := p.Read(uint32(regmap.IFFreq0)); !errors.Is(err, ErrRegisterIO) {
		t.Errorf("bus failure on read: %v", err)
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	m.Set(7, -3)
	if v, _ := m.Read(7); v != -3 {
		t.Errorf("Read = %d", v)
	}
	m.Write(7, 1)
	m.Write(8, 2)
	m.Write(7, 5)
	if got := m.Writes(7); len(got) != 2 || got[0] != 1 || got[1] != 5 {
		t.Errorf("Writes(7) = %v", got)
	}

	m.SetBurst(9, []byte{1, 2})
	data, _ := m.ReadBurst(9, 5)
	if string(data) != string([]byte{1, 2, 1, 2, 1}) {
		t.Errorf("ReadBurst = %v", data)
	}

	m.ReadHook = func(id uint32, stored int32) int32 { return stored + 100 }
	if v, _ := m.Read(8); v != 102 {
		t.Errorf("hooked Read = %d", v)
	}

	m.ResetLog()
	if len(m.Log()) != 0 {
		t.Error("log not cleared")
	}

	m.Fail = errors.New("unplugged")
	if err := m.Write(1, 1); !errors.Is(err, ErrRegisterIO) {
		t.Errorf("failing Write: %v", err)
	}
	if _, err := m.ReadBurst(9, 1); !errors.Is(err, ErrRegisterIO) {
		t.Errorf("failing ReadBurst: %v", err)
	}
}

// countingPort flags overlapping calls.
type countingPort struct {
	Port
	mu       sync.Mutex
	inside   int
	overlaps int
}

func (c *countingPort) Write(id uint32, value uint32) error {
	c.mu.Lock()
	c.inside++
	if c.inside > 1 {
		c.overlaps++
	}
	c.mu.Unlock()

	err := c.Port.Write(id, value)

	c.mu.Lock()
	c.inside--
	c.mu.Unlock()
	return err
}

func TestSerialize(t *testing.T) {
	inner := &countingPort{Port: NewMemory()}
	p := Serialize(inner)
	if Serialize(p) != p {
		t.Error("Serialize wrapped a serialized port twice")
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				p.Write(uint32(i), uint32(j))
			}
		}(i)
	}
	wg.Wait()
	if inner.overlaps != 0 {
		t.Errorf("%d overlapping writes", inner.overlaps)
	}
}
