package channels

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/herlein/lgwcal/pkg/sx125x"
)

// DefaultMaxRxBandwidthHz is the usable span of one front-end.
const DefaultMaxRxBandwidthHz uint32 = 1000000

// WarningKind classifies planner warnings.
type WarningKind int

const (
	ConfigInconsistency WarningKind = iota
	SpanExceeded
)

func (k WarningKind) String() string {
	if k == SpanExceeded {
		return "span exceeded"
	}
	return "config inconsistency"
}

// Warning is a non-fatal planning problem.
type Warning struct {
	Kind     WarningKind
	Channel  int    // -1 when not about a channel
	FrontEnd int    // -1 when not about a front-end
	ExcessHz uint32 // SpanExceeded only
	Message  string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Kind, w.Message)
}

// FrontEnd is the derived configuration of one radio.
type FrontEnd struct {
	Index      int
	Enabled    bool
	CenterHz   uint32
	MinEdgeHz  uint32
	MaxEdgeHz  uint32
	Chip       sx125x.ChipVariant
	RSSIOffset int32
}

// SpanHz returns the occupied span of the front-end.
func (fe FrontEnd) SpanHz() uint32 {
	return fe.MaxEdgeHz - fe.MinEdgeHz
}

// ChannelPlan is the IF assignment of one enabled channel.
type ChannelPlan struct {
	Index    int
	Kind     Kind
	FrontEnd int
	IFHz     int32
}

// Options tune the planner.
type Options struct {
	MaxRxBandwidthHz uint32 // 0 selects DefaultMaxRxBandwidthHz
	RSSIOffset       int32  // 0 selects the chip default
}

// Result is the output of Plan.
type Result struct {
	FrontEnds [NumFrontEnds]FrontEnd
	Channels  []ChannelPlan
	Warnings  []Warning
}

// Plan derives front-end centers and channel IFs from chs. Problems with the
// table are reported as warnings; Plan itself never fails.
func Plan(chs []LogicalChannel, opts Options) *Result {
	maxBW := opts.MaxRxBandwidthHz
	if maxBW == 0 {
		maxBW = DefaultMaxRxBandwidthHz
	}

	r := &Result{}
	for i := range r.FrontEnds {
		r.FrontEnds[i].Index = i
	}

	var used []LogicalChannel
	for _, ch := range chs {
		if !ch.Enabled {
			continue
		}
		if _, ok := KindOf(ch.Index); !ok {
			r.warn(ConfigInconsistency, ch.Index, -1, 0, "channel index %d out of range", ch.Index)
			continue
		}
		if ch.FrontEnd < 0 || ch.FrontEnd >= NumFrontEnds {
			r.warn(ConfigInconsistency, ch.Index, -1, 0, "channel %d references unknown front-end %d", ch.Index, ch.FrontEnd)
			continue
		}
		if ch.FrequencyHz == 0 {
			r.warn(ConfigInconsistency, ch.Index, ch.FrontEnd, 0, "channel %d is enabled without a frequency", ch.Index)
			continue
		}
		if bw, _ := ch.occupiedHz(); ch.FrequencyHz < bw/2 || ch.FrequencyHz > math.MaxUint32-bw/2 {
			r.warn(ConfigInconsistency, ch.Index, ch.FrontEnd, 0, "channel %d at %d Hz cannot hold its %d Hz bandwidth", ch.Index, ch.FrequencyHz, bw)
			continue
		}
		if _, ok := ch.occupiedHz(); !ok {
			r.warn(ConfigInconsistency, ch.Index, ch.FrontEnd, 0, "channel %d (%s) has an undefined bandwidth", ch.Index, ch.Kind())
		}
		if ch.Kind() == WidebandLoRa && ch.SpreadFactor == 0 {
			r.warn(ConfigInconsistency, ch.Index, ch.FrontEnd, 0, "channel %d (%s) has an undefined spreading factor", ch.Index, ch.Kind())
		}

		lo, hi := ch.Edges()
		fe := &r.FrontEnds[ch.FrontEnd]
		if !fe.Enabled || lo < fe.MinEdgeHz {
			fe.MinEdgeHz = lo
		}
		if !fe.Enabled || hi > fe.MaxEdgeHz {
			fe.MaxEdgeHz = hi
		}
		fe.Enabled = true
		used = append(used, ch)
	}

	for i := range r.FrontEnds {
		fe := &r.FrontEnds[i]
		if !fe.Enabled {
			continue
		}
		fe.CenterHz = fe.MinEdgeHz + (fe.MaxEdgeHz-fe.MinEdgeHz)/2
		fe.Chip = sx125x.VariantForFrequency(fe.CenterHz)
		fe.RSSIOffset = opts.RSSIOffset
		if fe.RSSIOffset == 0 {
			fe.RSSIOffset = sx125x.DefaultRSSIOffset(fe.Chip)
		}
		if span := fe.SpanHz(); span > maxBW {
			r.warn(SpanExceeded, -1, i, span-maxBW,
				"front-end %d spans %d Hz, %d Hz over the %d Hz limit", i, span, span-maxBW, maxBW)
		}
	}

	for _, ch := range used {
		center := r.FrontEnds[ch.FrontEnd].CenterHz
		r.Channels = append(r.Channels, ChannelPlan{
			Index:    ch.Index,
			Kind:     ch.Kind(),
			FrontEnd: ch.FrontEnd,
			IFHz:     int32(int64(ch.FrequencyHz) - int64(center)),
		})
	}
	return r
}

func (r *Result) warn(kind WarningKind, ch, fe int, excess uint32, format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, Warning{
		Kind:     kind,
		Channel:  ch,
		FrontEnd: fe,
		ExcessHz: excess,
		Message:  fmt.Sprintf(format, args...),
	})
}

// WarningsOf returns the warnings of the given kind.
func (r *Result) WarningsOf(kind WarningKind) []Warning {
	var out []Warning
	for _, w := range r.Warnings {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}

// Channel returns the plan for channel index, false if it is not enabled.
func (r *Result) Channel(index int) (ChannelPlan, bool) {
	for _, c := range r.Channels {
		if c.Index == index {
			return c, true
		}
	}
	return ChannelPlan{}, false
}

// ErrIFOutOfRange indicates an IF the demodulator register cannot hold.
var ErrIFOutOfRange = errors.New("IF frequency out of range")

// IFFieldBits is the width of the signed IF frequency register field.
const IFFieldBits = 13

// IFRegister converts an IF in Hz to register units of 32 MHz / 2^16,
// truncating toward zero.
func IFRegister(ifHz int32) int32 {
	return int32((int64(ifHz) << 5) / 15625)
}

// IFInRange reports whether ifHz fits the signed IF register field.
func IFInRange(ifHz int32) bool {
	reg := IFRegister(ifHz)
	limit := int32(1) << (IFFieldBits - 1)
	return reg >= -limit && reg < limit
}

// CheckIF returns ErrIFOutOfRange naming every channel whose IF cannot be
// programmed.
func (r *Result) CheckIF() error {
	var bad []string
	for _, c := range r.Channels {
		if !IFInRange(c.IFHz) {
			bad = append(bad, fmt.Sprintf("channel %d (%d Hz)", c.Index, c.IFHz))
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrIFOutOfRange, strings.Join(bad, ", "))
}
