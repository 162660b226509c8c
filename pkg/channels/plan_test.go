package channels

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/herlein/lgwcal/pkg/sx125x"
)

func multiSF(index, fe int, freq uint32) LogicalChannel {
	return LogicalChannel{Index: index, Enabled: true, FrontEnd: fe, FrequencyHz: freq}
}

func eu868() []LogicalChannel {
	return []LogicalChannel{
		multiSF(0, 1, 868100000),
		multiSF(1, 1, 868300000),
		multiSF(2, 1, 868500000),
		multiSF(3, 0, 867100000),
		multiSF(4, 0, 867300000),
		multiSF(5, 0, 867500000),
		multiSF(6, 0, 867700000),
		multiSF(7, 0, 867900000),
		{Index: IndexLoRaStd, Enabled: true, FrontEnd: 1, FrequencyHz: 868300000, Bandwidth: BW250k, SpreadFactor: 7},
		{Index: IndexFSK, Enabled: true, FrontEnd: 1, FrequencyHz: 868800000, Bandwidth: BW125k, DatarateBps: 50000},
	}
}

func TestPlanEU868(t *testing.T) {
	r := Plan(eu868(), Options{})

	if len(r.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", r.Warnings)
	}

	fe0, fe1 := r.FrontEnds[0], r.FrontEnds[1]
	if !fe0.Enabled || fe0.CenterHz != 867500000 || fe0.Chip != sx125x.SX1257 {
		t.Errorf("front-end 0 = %+v", fe0)
	}
	if fe0.MinEdgeHz != 867037500 || fe0.MaxEdgeHz != 867962500 {
		t.Errorf("front-end 0 edges = %d..%d", fe0.MinEdgeHz, fe0.MaxEdgeHz)
	}
	if !fe1.Enabled || fe1.CenterHz != 868450000 {
		t.Errorf("front-end 1 = %+v", fe1)
	}
	if fe0.RSSIOffset != -137 {
		t.Errorf("RSSI offset = %d, want chip default", fe0.RSSIOffset)
	}

	wantIF := map[int]int32{
		0: -350000, 1: -150000, 2: 50000,
		3: -400000, 4: -200000, 5: 0, 6: 200000, 7: 400000,
		8: -150000, 9: 350000,
	}
	if len(r.Channels) != len(wantIF) {
		t.Fatalf("got %d channel plans", len(r.Channels))
	}
	for idx, want := range wantIF {
		c, ok := r.Channel(idx)
		if !ok {
			t.Errorf("channel %d missing", idx)
			continue
		}
		if c.IFHz != want {
			t.Errorf("channel %d IF = %d, want %d", idx, c.IFHz, want)
		}
	}
	if err := r.CheckIF(); err != nil {
		t.Errorf("CheckIF: %v", err)
	}
}

func TestPlanCenterIsTruncatedMidpoint(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for iter := 0; iter < 500; iter++ {
		var chs []LogicalChannel
		n := 1 + rng.Intn(NumMultiSF)
		for i := 0; i < n; i++ {
			chs = append(chs, multiSF(i, 0, 400000000+uint32(rng.Intn(2000000))))
		}
		r := Plan(chs, Options{MaxRxBandwidthHz: 3000000})
		fe := r.FrontEnds[0]
		if fe.CenterHz < fe.MinEdgeHz || fe.CenterHz > fe.MaxEdgeHz {
			t.Fatalf("center %d outside [%d, %d]", fe.CenterHz, fe.MinEdgeHz, fe.MaxEdgeHz)
		}
		if want := uint32((uint64(fe.MinEdgeHz) + uint64(fe.MaxEdgeHz)) / 2); fe.CenterHz != want {
			t.Fatalf("center %d, want %d", fe.CenterHz, want)
		}
		if r.FrontEnds[1].Enabled {
			t.Fatalf("front-end 1 enabled without channels")
		}
	}
}

func TestPlanOddSpanRoundsDown(t *testing.T) {
	chs := []LogicalChannel{
		multiSF(0, 0, 868100000),
		{Index: IndexFSK, Enabled: true, FrontEnd: 0, FrequencyHz: 868300001, Bandwidth: BW125k},
	}
	r := Plan(chs, Options{})
	// edges 868037500 .. 868362501
	if got := r.FrontEnds[0].CenterHz; got != 868200000 {
		t.Errorf("center = %d, want 868200000", got)
	}
}

func TestPlanSpanWarnings(t *testing.T) {
	tests := []struct {
		name  string
		chs   []LogicalChannel
		maxBW uint32
		want  []int // offending front-ends
	}{
		{
			name:  "within limit",
			chs:   []LogicalChannel{multiSF(0, 0, 867100000), multiSF(1, 0, 867900000)},
			maxBW: 925000,
		},
		{
			name:  "one front-end over",
			chs:   []LogicalChannel{multiSF(0, 0, 867100000), multiSF(1, 0, 867900000), multiSF(2, 1, 868100000)},
			maxBW: 924999,
			want:  []int{0},
		},
		{
			name: "both over",
			chs: []LogicalChannel{
				multiSF(0, 0, 867100000), multiSF(1, 0, 868500000),
				multiSF(2, 1, 869100000), multiSF(3, 1, 870500000),
			},
			maxBW: 1000000,
			want:  []int{0, 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Plan(tt.chs, Options{MaxRxBandwidthHz: tt.maxBW})
			ws := r.WarningsOf(SpanExceeded)
			if len(ws) != len(tt.want) {
				t.Fatalf("got %d span warnings (%v), want %d", len(ws), ws, len(tt.want))
			}
			for i, w := range ws {
				if w.FrontEnd != tt.want[i] {
					t.Errorf("warning %d for front-end %d, want %d", i, w.FrontEnd, tt.want[i])
				}
				fe := r.FrontEnds[w.FrontEnd]
				if w.ExcessHz != fe.SpanHz()-tt.maxBW {
					t.Errorf("excess = %d, want %d", w.ExcessHz, fe.SpanHz()-tt.maxBW)
				}
				if fe.CenterHz == 0 {
					t.Errorf("front-end %d lost its center", w.FrontEnd)
				}
			}
		})
	}
}

func TestPlanUnusedFrontEnd(t *testing.T) {
	chs := []LogicalChannel{
		multiSF(0, 0, 433175000),
		{Index: 1, Enabled: false, FrontEnd: 1, FrequencyHz: 434000000},
	}
	r := Plan(chs, Options{RSSIOffset: -166})
	if r.FrontEnds[1].Enabled || r.FrontEnds[1].CenterHz != 0 {
		t.Errorf("front-end 1 = %+v, want disabled with center 0", r.FrontEnds[1])
	}
	fe0 := r.FrontEnds[0]
	if fe0.Chip != sx125x.SX1255 || fe0.RSSIOffset != -166 {
		t.Errorf("front-end 0 = %+v", fe0)
	}
	if _, ok := r.Channel(1); ok {
		t.Errorf("disabled channel got an IF")
	}
}

func TestPlanInconsistencies(t *testing.T) {
	chs := []LogicalChannel{
		multiSF(0, 0, 868100000),
		multiSF(1, 2, 868300000), // no such front-end
		multiSF(2, 0, 0),         // no frequency
		{Index: IndexLoRaStd, Enabled: true, FrontEnd: 0, FrequencyHz: 868500000, Bandwidth: LoRaBandwidth(300000), SpreadFactor: LoRaSpreadFactor(13)},
	}
	r := Plan(chs, Options{})

	ws := r.WarningsOf(ConfigInconsistency)
	if len(ws) != 4 {
		t.Fatalf("got %d inconsistency warnings: %v", len(ws), ws)
	}
	if _, ok := r.Channel(1); ok {
		t.Errorf("channel on unknown front-end was planned")
	}
	if _, ok := r.Channel(2); ok {
		t.Errorf("channel without frequency was planned")
	}

	// undefined bandwidth counts as zero width
	fe := r.FrontEnds[0]
	if fe.MaxEdgeHz != 868500000 || fe.MinEdgeHz != 868037500 {
		t.Errorf("edges = %d..%d", fe.MinEdgeHz, fe.MaxEdgeHz)
	}
	if c, ok := r.Channel(IndexLoRaStd); !ok || c.Kind != WidebandLoRa {
		t.Errorf("LoRa std channel plan = %+v, %v", c, ok)
	}
}

func TestPlanEdgesDoNotWrap(t *testing.T) {
	tests := []struct {
		name string
		ch   LogicalChannel
	}{
		{"below half bandwidth", multiSF(1, 0, 50000)},
		{"at top of range", LogicalChannel{Index: IndexFSK, Enabled: true, FrontEnd: 0, FrequencyHz: math.MaxUint32 - 1000, Bandwidth: BW125k}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Plan([]LogicalChannel{multiSF(0, 0, 868100000), tt.ch}, Options{})
			if ws := r.WarningsOf(ConfigInconsistency); len(ws) != 1 || ws[0].Channel != tt.ch.Index {
				t.Fatalf("inconsistency warnings = %v", ws)
			}
			if _, ok := r.Channel(tt.ch.Index); ok {
				t.Errorf("channel %d was planned", tt.ch.Index)
			}
			fe := r.FrontEnds[0]
			if fe.MinEdgeHz != 868037500 || fe.MaxEdgeHz != 868162500 || len(r.WarningsOf(SpanExceeded)) != 0 {
				t.Errorf("front-end 0 = %d..%d, warnings %v", fe.MinEdgeHz, fe.MaxEdgeHz, r.Warnings)
			}
		})
	}
}

func TestBandwidthMapping(t *testing.T) {
	lora := map[uint32]Bandwidth{125000: BW125k, 250000: BW250k, 500000: BW500k, 0: BWUndefined, 200000: BWUndefined}
	for hz, want := range lora {
		if got := LoRaBandwidth(hz); got != want {
			t.Errorf("LoRaBandwidth(%d) = %v, want %v", hz, got, want)
		}
	}
	fsk := map[uint32]Bandwidth{
		1: BW7k8, 7800: BW7k8, 7801: BW15k6, 31200: BW31k2, 50000: BW62k5,
		125000: BW125k, 200000: BW250k, 500000: BW500k, 500001: BWUndefined, 0: BWUndefined,
	}
	for hz, want := range fsk {
		if got := FSKBandwidth(hz); got != want {
			t.Errorf("FSKBandwidth(%d) = %v, want %v", hz, got, want)
		}
	}
	if BWUndefined.Defined() || BWUndefined.Hz() != 0 {
		t.Errorf("BWUndefined must have no width")
	}
	if LoRaSpreadFactor(6) != 0 || LoRaSpreadFactor(12) != 12 {
		t.Errorf("spreading factor validation")
	}
}

func TestKindOf(t *testing.T) {
	for i := 0; i < NumMultiSF; i++ {
		if k, ok := KindOf(i); !ok || k != MultiSF {
			t.Errorf("KindOf(%d) = %v, %v", i, k, ok)
		}
	}
	if k, _ := KindOf(8); k != WidebandLoRa {
		t.Errorf("KindOf(8) = %v", k)
	}
	if k, _ := KindOf(9); k != FSK {
		t.Errorf("KindOf(9) = %v", k)
	}
	if _, ok := KindOf(10); ok {
		t.Errorf("KindOf(10) accepted")
	}
}

func TestIFRegister(t *testing.T) {
	if got := IFRegister(100000); got != 204 {
		t.Errorf("IFRegister(100000) = %d, want 204", got)
	}
	if got := IFRegister(-100000); got != -204 {
		t.Errorf("IFRegister(-100000) = %d, want -204", got)
	}
	if !IFInRange(1999000) || !IFInRange(-2000000) {
		t.Errorf("IF inside the field rejected")
	}
	if IFInRange(2000000) {
		t.Errorf("IFInRange(2000000) accepted")
	}

	chs := []LogicalChannel{multiSF(0, 0, 866000000), multiSF(1, 0, 870600000)}
	r := Plan(chs, Options{MaxRxBandwidthHz: 5000000})
	if err := r.CheckIF(); !errors.Is(err, ErrIFOutOfRange) {
		t.Errorf("CheckIF = %v, want ErrIFOutOfRange", err)
	}
}
