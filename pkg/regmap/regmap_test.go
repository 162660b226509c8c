package regmap

import (
	"errors"
	"path/filepath"
	"testing"
)

const sampleYAML = `
name: test
registers:
  PAGE_REG: {page: -1, addr: 0, len: 2}
  SOFT_RESET: {page: -1, addr: 0, offset: 7, len: 1}
  IF_FREQ_0: {page: 1, addr: 34, len: 13, signed: true}
  MCU_AGC_STATUS: {page: -1, addr: 32, len: 8, read_only: true}
`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(sampleYAML), "yaml")
	if err != nil {
		t.Fatal(err)
	}
	f, err := m.Field(IFFreq(0))
	if err != nil {
		t.Fatal(err)
	}
	if f.Page != 1 || f.Addr != 34 || f.Len != 13 || !f.Signed || f.Bytes() != 2 {
		t.Errorf("IF_FREQ_0 = %+v", f)
	}
	if sr, _ := m.Field(SoftReset); sr.Offset != 7 || sr.Bytes() != 1 {
		t.Errorf("SOFT_RESET = %+v", sr)
	}
	if st, _ := m.Field(MCUAGCStatus); !st.ReadOnly {
		t.Error("MCU_AGC_STATUS not read-only")
	}
	if _, err := m.Field(CaptureStart); !errors.Is(err, ErrUnknownRegister) {
		t.Errorf("undefined field: %v", err)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		format string
	}{
		{"unknown name", `{"registers": {"NOT_A_REG": {"page": -1, "addr": 1, "len": 8}}}`, "json"},
		{"zero length", `{"registers": {"SOFT_RESET": {"page": -1, "addr": 1, "len": 0}}}`, "json"},
		{"crosses byte", `{"registers": {"SOFT_RESET": {"page": -1, "addr": 1, "offset": 6, "len": 4}}}`, "json"},
		{"wide at offset", `{"registers": {"CAPTURE_PERIOD": {"page": -1, "addr": 1, "offset": 2, "len": 16}}}`, "json"},
		{"address", `{"registers": {"SOFT_RESET": {"page": -1, "addr": 200, "len": 1}}}`, "json"},
		{"page", `{"registers": {"PAGE_REG": {"page": -1, "addr": 0, "len": 2}, "SOFT_RESET": {"page": 4, "addr": 1, "len": 1}}}`, "json"},
		{"paged without PAGE_REG", `{"registers": {"SOFT_RESET": {"page": 0, "addr": 1, "len": 1}}}`, "json"},
		{"bad format", `registers: {}`, "toml"},
		{"bad yaml", "registers: [", "yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc), tt.format); err == nil {
				t.Error("accepted")
			}
		})
	}
}

func TestRequire(t *testing.T) {
	m, err := Parse([]byte(sampleYAML), "yaml")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Require(PageReg, IFFreq(0)); err != nil {
		t.Errorf("Require: %v", err)
	}
	err = m.Require(PageReg, CaptureStart, CaptureRAMData)
	if !errors.Is(err, ErrUnknownRegister) {
		t.Fatalf("Require missing: %v", err)
	}
	if got := m.Missing(PageReg, CaptureStart, CaptureRAMData); len(got) != 2 || got[0] != CaptureStart {
		t.Errorf("Missing = %v", got)
	}
}

func TestNames(t *testing.T) {
	for _, id := range All() {
		name := id.String()
		back, ok := ByName(name)
		if !ok || back != id {
			t.Errorf("%d: name %q does not round-trip", id, name)
		}
	}
	if IFFreq(9).String() != "IF_FREQ_9" {
		t.Errorf("IFFreq(9) = %s", IFFreq(9))
	}
	if _, err := RadioSPIFor(2); err == nil {
		t.Error("RadioSPIFor(2) accepted")
	}
	b, _ := RadioSPIFor(1)
	if b.Readback != SPIRadioBDataReadback {
		t.Errorf("radio B readback = %s", b.Readback)
	}
}

func TestSaveLoad(t *testing.T) {
	m, err := Parse([]byte(sampleYAML), "yaml")
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"map.yaml", "map.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sub", name)
			if err := m.Save(path); err != nil {
				t.Fatal(err)
			}
			loaded, err := Load(path)
			if err != nil {
				t.Fatal(err)
			}
			ids := loaded.IDs()
			if len(ids) != 4 || ids[0] != PageReg {
				t.Fatalf("IDs = %v", ids)
			}
			for _, id := range ids {
				a, _ := m.Field(id)
				b, _ := loaded.Field(id)
				if a != b {
					t.Errorf("%s: %+v != %+v", id, a, b)
				}
			}
		})
	}
}
