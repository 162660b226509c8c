// Package bandplan seeds the concentrator channel table from a LoRaWAN
// regional band definition.
package bandplan

import (
	"errors"
	"fmt"
	"sort"

	"github.com/brocaar/lorawan"
	loraband "github.com/brocaar/lorawan/band"

	"github.com/herlein/lgwcal/pkg/channels"
)

var (
	// ErrNoChannels indicates a band without 125 kHz LoRa uplink channels at or after the first index
	ErrNoChannels = errors.New("no 125 kHz LoRa uplink channels")

	// ErrSpanTooWide indicates the selected channels need more than two front-ends
	ErrSpanTooWide = errors.New("channels do not fit two front-ends")
)

// Uplink is one uplink channel of a band.
type Uplink struct {
	Index       int
	FrequencyHz uint32
	MinDR       int
	MaxDR       int
}

// Uplinks returns the uplink channels of band that allow a 125 kHz LoRa data
// rate, in band index order.
func Uplinks(name string) ([]Uplink, error) {
	b, err := loraband.GetConfig(loraband.Name(name), false, lorawan.DwellTimeNoLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get band %s: %w", name, err)
	}

	var out []Uplink
	for _, i := range b.GetUplinkChannelIndices() {
		ch, err := b.GetUplinkChannel(i)
		if err != nil {
			return nil, fmt.Errorf("failed to get uplink channel %d: %w", i, err)
		}
		if !hasLoRa125(b, ch.MinDR, ch.MaxDR) {
			continue
		}
		out = append(out, Uplink{
			Index:       i,
			FrequencyHz: uint32(ch.Frequency),
			MinDR:       ch.MinDR,
			MaxDR:       ch.MaxDR,
		})
	}
	return out, nil
}

func hasLoRa125(b loraband.Band, minDR, maxDR int) bool {
	for dr := minDR; dr <= maxDR; dr++ {
		rate, err := b.GetDataRate(dr)
		if err != nil {
			continue
		}
		if rate.Modulation == loraband.LoRaModulation && rate.Bandwidth == 125 {
			return true
		}
	}
	return false
}

// MultiSF returns up to eight multi-SF channels taken from the band's 125 kHz
// uplink channels, starting at uplink index first. Channels are assigned to
// front-ends in frequency order; a front-end takes channels until its span
// would exceed maxRxBW. Zero maxRxBW selects the planner default.
func MultiSF(name string, first int, maxRxBW uint32) ([]channels.LogicalChannel, error) {
	if maxRxBW == 0 {
		maxRxBW = channels.DefaultMaxRxBandwidthHz
	}
	uplinks, err := Uplinks(name)
	if err != nil {
		return nil, err
	}

	var picked []Uplink
	for _, u := range uplinks {
		if u.Index < first {
			continue
		}
		picked = append(picked, u)
		if len(picked) == channels.NumMultiSF {
			break
		}
	}
	if len(picked) == 0 {
		return nil, fmt.Errorf("%w in %s from index %d", ErrNoChannels, name, first)
	}
	sort.Slice(picked, func(i, j int) bool { return picked[i].FrequencyHz < picked[j].FrequencyHz })

	half := channels.MultiSFBandwidthHz / 2
	out := make([]channels.LogicalChannel, 0, len(picked))
	fe := 0
	lowEdge := picked[0].FrequencyHz - half
	for i, u := range picked {
		if u.FrequencyHz+half-lowEdge > maxRxBW {
			fe++
			lowEdge = u.FrequencyHz - half
		}
		if fe >= channels.NumFrontEnds {
			return nil, fmt.Errorf("%w: %s channel %d at %d Hz", ErrSpanTooWide, name, u.Index, u.FrequencyHz)
		}
		out = append(out, channels.LogicalChannel{
			Index:       i,
			Enabled:     true,
			FrontEnd:    fe,
			FrequencyHz: u.FrequencyHz,
			Bandwidth:   channels.BW125k,
			Log:         true,
		})
	}
	return out, nil
}
