package rssi

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestPercentilesUniform(t *testing.T) {
	h := New(-137)
	for code := 40; code <= 60; code++ {
		h.Bins[code] = 476
	}

	r, err := h.Percentiles(10000)
	if err != nil {
		t.Fatal(err)
	}
	want := []struct {
		name string
		got  Threshold
		code int
		dbm  int32
	}{
		{"p20", r.P20, 44, -93},
		{"p50", r.P50, 50, -87},
		{"p80", r.P80, 56, -81},
	}
	for _, w := range want {
		if !w.got.Set || w.got.Code != w.code || w.got.DBm != w.dbm {
			t.Errorf("%s = %+v, want code %d (%d dBm)", w.name, w.got, w.code, w.dbm)
		}
	}
}

func TestPercentilesSingleBin(t *testing.T) {
	for _, bin := range []uint8{0, 17, 128} {
		h := New(-147)
		for i := 0; i < 4096; i++ {
			h.Accumulate(bin)
		}
		r, err := h.Percentiles(h.Total())
		if err != nil {
			t.Fatal(err)
		}
		want := int32(bin) - 147
		if r.P20.DBm != want || r.P50.DBm != want || r.P80.DBm != want {
			t.Errorf("bin %d: %v, want all %d", bin, r, want)
		}
	}
}

func TestPercentilesNoData(t *testing.T) {
	h := New(-137)
	if _, err := h.Percentiles(0); !errors.Is(err, ErrNoData) {
		t.Fatalf("Percentiles(0) error = %v, want ErrNoData", err)
	}
}

func TestPercentilesUnreachedAreUndefined(t *testing.T) {
	h := New(-137)
	h.Bins[10] = 30

	// only 30 of a claimed 100 samples present: 20% is crossed, 50% and 80% are not
	r, err := h.Percentiles(100)
	if err != nil {
		t.Fatal(err)
	}
	if !r.P20.Set || r.P20.Code != 10 {
		t.Errorf("p20 = %+v", r.P20)
	}
	if r.P50.Set || r.P80.Set {
		t.Errorf("p50/p80 = %+v/%+v, want undefined", r.P50, r.P80)
	}
	if r.P50.String() != "undefined" {
		t.Errorf("undefined threshold prints %q", r.P50.String())
	}
}

func TestPercentilesExactShareIsNotExceeded(t *testing.T) {
	h := New(0)
	h.Bins[1] = 20
	h.Bins[2] = 80
	r, _ := h.Percentiles(100)
	// cumulative 20 equals 20% and does not exceed it
	if r.P20.Code != 2 {
		t.Errorf("p20 code = %d, want 2", r.P20.Code)
	}
}

func TestAccumulateClamps(t *testing.T) {
	h := New(0)
	h.Accumulate(200)
	h.Accumulate(128)
	h.Accumulate(255)
	if h.Bins[MaxCode] != 3 {
		t.Errorf("bin 128 = %d, want 3", h.Bins[MaxCode])
	}
	h.Reset()
	if h.Total() != 0 || h.OffsetDBm != 0 {
		t.Errorf("Reset left %d samples", h.Total())
	}
}

func TestAccumulateCapture(t *testing.T) {
	buf := make([]byte, 256)
	for i := 0; i < 64; i++ {
		buf[i*4+3] = uint8(i % 4 * 50) // 0, 50, 100, 150
	}
	h := New(-137)
	if n := h.AccumulateCapture(buf); n != 64 {
		t.Fatalf("took %d samples, want 64", n)
	}
	if h.Bins[0] != 16 || h.Bins[50] != 16 || h.Bins[100] != 16 || h.Bins[MaxCode] != 16 {
		t.Errorf("unexpected bins: 0=%d 50=%d 100=%d 128=%d", h.Bins[0], h.Bins[50], h.Bins[100], h.Bins[MaxCode])
	}
}

func TestReportRoundTrip(t *testing.T) {
	h := New(-137)
	h.Bins[0] = 5
	h.Bins[64] = 1234
	h.Bins[128] = 7

	var buf bytes.Buffer
	if err := h.WriteReport(&buf, 868100000); err != nil {
		t.Fatal(err)
	}
	line := buf.String()
	if !strings.HasPrefix(line, "868100000, -137, 5, -136, 0,") || !strings.HasSuffix(line, ", -9, 7\n") {
		t.Errorf("unexpected report line %q", line)
	}

	lines, err := ReadReport(strings.NewReader(line + "\n" + line))
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 2 {
		t.Fatalf("parsed %d lines", len(lines))
	}
	got := lines[0]
	if got.FrequencyHz != 868100000 || got.Histogram != *h {
		t.Errorf("parsed %+v", got)
	}

	if _, err := ParseReportLine("868100000, -137, 5"); err == nil {
		t.Errorf("short line accepted")
	}
}
