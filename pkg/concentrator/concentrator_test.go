package concentrator

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/herlein/lgwcal/pkg/regmap"
	"github.com/herlein/lgwcal/pkg/rssi"
	"github.com/herlein/lgwcal/pkg/sweep"
)

func TestOpenRejects(t *testing.T) {
	dir := t.TempDir()
	partial := filepath.Join(dir, "partial.yaml")
	doc := "registers:\n  SOFT_RESET: {page: -1, addr: 0, offset: 7, len: 1}\n"
	if err := os.WriteFile(partial, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		opts Options
		want error
	}{
		{"unknown transport", Options{Transport: "uart"}, ErrTransport},
		{"no register map", Options{Transport: TransportSPI}, ErrNoRegisterMap},
		{"incomplete register map", Options{Transport: TransportUSB, RegMap: partial}, regmap.ErrUnknownRegister},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.opts, sweep.Registers...)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSimulatorCapture(t *testing.T) {
	sim := NewSimulator(1)
	buf, err := sim.Memory.ReadBurst(uint32(regmap.CaptureRAMData), 4096)
	if err != nil {
		t.Fatal(err)
	}
	h := rssi.New(0)
	n := h.AccumulateCapture(buf)
	report, err := h.Percentiles(uint64(n))
	if err != nil {
		t.Fatal(err)
	}
	if !report.P50.Set || report.P50.Code < SimNoiseCode-1 || report.P50.Code > SimNoiseCode+1 {
		t.Errorf("median code = %v", report.P50)
	}
	if report.P20.Code >= report.P80.Code {
		t.Errorf("no spread: %v", report)
	}

	other, _ := sim.Memory.ReadBurst(uint32(regmap.MCUPromData), 8)
	if !bytes.Equal(other, make([]byte, 8)) {
		t.Errorf("non-capture burst = % X", other)
	}
}

func TestSimulatedSweep(t *testing.T) {
	h, err := Open(Options{Transport: TransportSim, Seed: 7})
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	cfg := &sweep.Config{
		FMinHz:        868000000,
		FMaxHz:        868100000,
		FStepHz:       100000,
		Captures:      1,
		CapturePeriod: 256,
	}
	r, err := sweep.New(h.Port, cfg)
	if err != nil {
		t.Fatal(err)
	}
	r.SetSleeper(func(time.Duration) {})
	if err := r.Init(); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	steps, err := r.Run(context.Background(), &out)
	if err != nil {
		t.Fatal(err)
	}
	if len(steps) != 2 {
		t.Fatalf("%d steps", len(steps))
	}
	for _, s := range steps {
		if s.Skipped || !s.Report.P50.Set {
			t.Errorf("step %d: %+v", s.Index, s.Report)
		}
	}
	lines, err := rssi.ReadReport(&out)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 || lines[1].FrequencyHz != 868100000 {
		t.Errorf("report lines = %d", len(lines))
	}
}
