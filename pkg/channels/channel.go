// Package channels plans the two radio front-ends of a concentrator from its
// logical channel table: center frequencies, chip variants, and the IF offset
// of every demodulation chain.
package channels

import "fmt"

// Channel table layout
const (
	NumMultiSF   = 8
	IndexLoRaStd = 8
	IndexFSK     = 9
	NumChannels  = 10
	NumFrontEnds = 2

	// MultiSFBandwidthHz is the fixed bandwidth of multi-SF channels
	MultiSFBandwidthHz uint32 = 125000
)

// Kind distinguishes the three channel types of the concentrator.
type Kind int

const (
	MultiSF Kind = iota
	WidebandLoRa
	FSK
)

func (k Kind) String() string {
	switch k {
	case MultiSF:
		return "multi-SF"
	case WidebandLoRa:
		return "LoRa std"
	case FSK:
		return "FSK"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// KindOf returns the kind of channel index, false if index is out of range.
func KindOf(index int) (Kind, bool) {
	switch {
	case index >= 0 && index < NumMultiSF:
		return MultiSF, true
	case index == IndexLoRaStd:
		return WidebandLoRa, true
	case index == IndexFSK:
		return FSK, true
	default:
		return 0, false
	}
}

// Bandwidth is a demodulator bandwidth code.
type Bandwidth int

const (
	BWUndefined Bandwidth = iota
	BW500k
	BW250k
	BW125k
	BW62k5
	BW31k2
	BW15k6
	BW7k8
)

var bandwidthHz = map[Bandwidth]uint32{
	BW500k: 500000,
	BW250k: 250000,
	BW125k: 125000,
	BW62k5: 62500,
	BW31k2: 31200,
	BW15k6: 15600,
	BW7k8:  7800,
}

// Hz returns the bandwidth in Hz, 0 when undefined.
func (b Bandwidth) Hz() uint32 {
	return bandwidthHz[b]
}

// Defined reports whether b is a valid bandwidth code.
func (b Bandwidth) Defined() bool {
	_, ok := bandwidthHz[b]
	return ok
}

func (b Bandwidth) String() string {
	if !b.Defined() {
		return "undefined"
	}
	return fmt.Sprintf("%g kHz", float64(b.Hz())/1000)
}

// LoRaBandwidth maps a LoRa bandwidth in Hz. Only 125, 250 and 500 kHz exist.
func LoRaBandwidth(hz uint32) Bandwidth {
	switch hz {
	case 500000:
		return BW500k
	case 250000:
		return BW250k
	case 125000:
		return BW125k
	default:
		return BWUndefined
	}
}

// FSKBandwidth rounds hz up to the next FSK filter bandwidth.
func FSKBandwidth(hz uint32) Bandwidth {
	switch {
	case hz == 0:
		return BWUndefined
	case hz <= 7800:
		return BW7k8
	case hz <= 15600:
		return BW15k6
	case hz <= 31200:
		return BW31k2
	case hz <= 62500:
		return BW62k5
	case hz <= 125000:
		return BW125k
	case hz <= 250000:
		return BW250k
	case hz <= 500000:
		return BW500k
	default:
		return BWUndefined
	}
}

// SpreadFactor is a LoRa spreading factor, 0 when undefined.
type SpreadFactor uint8

// LoRaSpreadFactor validates sf; only SF7 to SF12 are accepted.
func LoRaSpreadFactor(sf uint32) SpreadFactor {
	if sf < 7 || sf > 12 {
		return 0
	}
	return SpreadFactor(sf)
}

func (s SpreadFactor) String() string {
	if s == 0 {
		return "undefined"
	}
	return fmt.Sprintf("SF%d", uint8(s))
}

// LogicalChannel is one entry of the channel table.
type LogicalChannel struct {
	Index        int
	Enabled      bool
	FrontEnd     int
	FrequencyHz  uint32
	Bandwidth    Bandwidth // ignored for multi-SF channels
	SpreadFactor SpreadFactor
	DatarateBps  uint32
	Log          bool
}

// Kind returns the channel kind, derived from its index.
func (c LogicalChannel) Kind() Kind {
	k, _ := KindOf(c.Index)
	return k
}

// occupiedHz returns the bandwidth the channel occupies. The bool is false
// when the configured bandwidth is undefined.
func (c LogicalChannel) occupiedHz() (uint32, bool) {
	switch c.Kind() {
	case MultiSF:
		return MultiSFBandwidthHz, true
	case WidebandLoRa, FSK:
		return c.Bandwidth.Hz(), c.Bandwidth.Defined()
	}
	return 0, false
}

// Edges returns the lower and upper edge of the occupied band.
func (c LogicalChannel) Edges() (uint32, uint32) {
	bw, _ := c.occupiedHz()
	return c.FrequencyHz - bw/2, c.FrequencyHz + bw/2
}
