// Package config loads the concentrator channel configuration used to plan
// and program the radio front-ends.
package config

import (
	"errors"
	"fmt"
	"math"

	"github.com/herlein/lgwcal/pkg/channels"
	"github.com/herlein/lgwcal/pkg/sx125x"
)

// Defaults applied when a value is absent or zero
const (
	DefaultRxBandwidthMaxHz uint32 = 1000000
	DefaultRSSIOffset       int32  = -166
	DefaultConfigFile              = "global_conf.json"
)

// Channel object names inside SX1301_conf
const (
	keyLoRaStd = "chan_Lora_std"
	keyFSK     = "chan_FSK"
)

// ErrNoChannels indicates a document without an SX1301_conf object
var ErrNoChannels = errors.New("configuration has no SX1301_conf object")

// ChannelConf is one channel object of SX1301_conf.
type ChannelConf struct {
	Enable       *bool   `json:"enable,omitempty" yaml:"enable,omitempty"`
	Log          *bool   `json:"log,omitempty" yaml:"log,omitempty"`
	Radio        int     `json:"radio" yaml:"radio"`
	Freq         float64 `json:"freq" yaml:"freq"` // MHz
	Bandwidth    uint32  `json:"bandwidth,omitempty" yaml:"bandwidth,omitempty"`
	SpreadFactor uint32  `json:"spread_factor,omitempty" yaml:"spread_factor,omitempty"`
	Datarate     uint32  `json:"datarate,omitempty" yaml:"datarate,omitempty"`
}

// File is a concentrator configuration document.
type File struct {
	SX1301         Section          `json:"SX1301_conf" yaml:"SX1301_conf"`
	RxBandwidthMax uint32           `json:"rx_bandwidth_max,omitempty" yaml:"rx_bandwidth_max,omitempty"`
	RSSIOffset     int32            `json:"rssi_offset,omitempty" yaml:"rssi_offset,omitempty"`
	LoRaMAC        bool             `json:"loramac" yaml:"loramac"`
	Radio          *sx125x.Settings `json:"radio_settings,omitempty" yaml:"radio_settings,omitempty"`
}

// MultiSFKey returns the object name of multi-SF channel i.
func MultiSFKey(i int) string {
	return fmt.Sprintf("chan_multiSF_%d", i)
}

// channelKey returns the object name of channel index.
func channelKey(index int) string {
	switch index {
	case channels.IndexLoRaStd:
		return keyLoRaStd
	case channels.IndexFSK:
		return keyFSK
	default:
		return MultiSFKey(index)
	}
}

// MHzToHz converts a frequency in MHz to Hz, rounded to the nearest Hz.
func MHzToHz(mhz float64) uint32 {
	if mhz <= 0 {
		return 0
	}
	return uint32(math.Round(mhz * 1e6))
}

// applyDefaults fills zero-valued deployment settings.
func (f *File) applyDefaults() {
	if f.RxBandwidthMax == 0 {
		f.RxBandwidthMax = DefaultRxBandwidthMaxHz
	}
	if f.RSSIOffset == 0 {
		f.RSSIOffset = DefaultRSSIOffset
	}
}

// Channels converts the document into the planner's channel table. Missing
// channel objects come back disabled. Log defaults to enabled except on the
// FSK channel.
func (f *File) Channels() []channels.LogicalChannel {
	out := make([]channels.LogicalChannel, channels.NumChannels)
	for i := range out {
		out[i] = channels.LogicalChannel{Index: i, Log: i != channels.IndexFSK}

		c, ok := f.SX1301.Channels[channelKey(i)]
		if !ok {
			continue
		}
		ch := &out[i]
		if c.Log != nil {
			ch.Log = *c.Log
		}
		ch.Enabled = c.Enable != nil && *c.Enable
		ch.FrontEnd = c.Radio
		ch.FrequencyHz = MHzToHz(c.Freq)

		switch ch.Kind() {
		case channels.WidebandLoRa:
			ch.Bandwidth = channels.LoRaBandwidth(c.Bandwidth)
			ch.SpreadFactor = channels.LoRaSpreadFactor(c.SpreadFactor)
		case channels.FSK:
			ch.Bandwidth = channels.FSKBandwidth(c.Bandwidth)
			ch.DatarateBps = c.Datarate
		case channels.MultiSF:
			ch.Bandwidth = channels.BW125k
		}
	}
	return out
}

// SetChannel stores ch back into the document.
func (f *File) SetChannel(ch channels.LogicalChannel) {
	if f.SX1301.Channels == nil {
		f.SX1301.Channels = make(map[string]ChannelConf)
	}
	enable, log := ch.Enabled, ch.Log
	c := ChannelConf{
		Enable: &enable,
		Log:    &log,
		Radio:  ch.FrontEnd,
		Freq:   float64(ch.FrequencyHz) / 1e6,
	}
	switch ch.Kind() {
	case channels.WidebandLoRa:
		c.Bandwidth = ch.Bandwidth.Hz()
		c.SpreadFactor = uint32(ch.SpreadFactor)
	case channels.FSK:
		c.Bandwidth = ch.Bandwidth.Hz()
		c.Datarate = ch.DatarateBps
	}
	f.SX1301.Channels[channelKey(ch.Index)] = c
}

// PlanOptions returns the planner options of the document.
func (f *File) PlanOptions() channels.Options {
	return channels.Options{
		MaxRxBandwidthHz: f.RxBandwidthMax,
		RSSIOffset:       f.RSSIOffset,
	}
}

// RadioSettings returns the analog settings, or the defaults when absent.
func (f *File) RadioSettings() sx125x.Settings {
	if f.Radio != nil {
		return *f.Radio
	}
	return sx125x.DefaultSettings()
}

// Validate checks that the document describes at least one channel.
func (f *File) Validate() error {
	if len(f.SX1301.Channels) == 0 {
		return ErrNoChannels
	}
	return nil
}
