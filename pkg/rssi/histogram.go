// Package rssi accumulates raw RSSI codes from capture RAM into histograms
// and reduces them to calibration percentiles.
package rssi

import (
	"errors"
	"fmt"
)

const (
	// NumBins is the number of histogram bins, one per code 0..MaxCode
	NumBins = 129

	// MaxCode is the highest code kept; larger codes land in this bin
	MaxCode = 128
)

// ErrNoData is returned when percentiles are requested for zero samples.
var ErrNoData = errors.New("no RSSI samples")

// Histogram counts RSSI codes.
type Histogram struct {
	Bins      [NumBins]uint64
	OffsetDBm int32
}

// New returns an empty histogram with the given calibration offset.
func New(offsetDBm int32) *Histogram {
	return &Histogram{OffsetDBm: offsetDBm}
}

// Accumulate counts one raw code.
func (h *Histogram) Accumulate(code uint8) {
	if code > MaxCode {
		code = MaxCode
	}
	h.Bins[code]++
}

// Reset clears every bin and keeps the offset.
func (h *Histogram) Reset() {
	h.Bins = [NumBins]uint64{}
}

// Total returns the number of accumulated samples.
func (h *Histogram) Total() uint64 {
	var n uint64
	for _, c := range h.Bins {
		n += c
	}
	return n
}

// Threshold is one percentile result. Set is false when the cumulative count
// never crossed the threshold.
type Threshold struct {
	Code int   // raw bin index
	DBm  int32 // Code + offset
	Set  bool
}

func (t Threshold) String() string {
	if !t.Set {
		return "undefined"
	}
	return fmt.Sprintf("%d", t.DBm)
}

// Report holds the 20th, 50th and 80th percentile of a histogram.
type Report struct {
	P20, P50, P80 Threshold
}

func (r Report) String() string {
	return fmt.Sprintf("RSSI 20%%: %v, 50%%: %v, 80%%: %v", r.P20, r.P50, r.P80)
}

// Percentiles walks the bins in code order and records, for each of 20%, 50%
// and 80%, the first bin where the running sum exceeds that share of total.
// Each threshold is taken once.
func (h *Histogram) Percentiles(total uint64) (Report, error) {
	var r Report
	if total == 0 {
		return r, ErrNoData
	}

	var cum uint64
	for code, c := range h.Bins {
		cum += c
		if !r.P20.Set && cum*5 > total {
			r.P20 = h.threshold(code)
		}
		if !r.P50.Set && cum*2 > total {
			r.P50 = h.threshold(code)
		}
		if !r.P80.Set && cum*5 > total*4 {
			r.P80 = h.threshold(code)
		}
	}
	return r, nil
}

func (h *Histogram) threshold(code int) Threshold {
	return Threshold{Code: code, DBm: int32(code) + h.OffsetDBm, Set: true}
}

// Capture RAM layout
const (
	// CaptureWordBytes is the size of one capture RAM sample word
	CaptureWordBytes = 4

	// CaptureRSSIByte is the position of the RSSI code inside a word
	CaptureRSSIByte = 3
)

// AccumulateCapture counts the RSSI code of every complete word in buf and
// returns the number of samples taken.
func (h *Histogram) AccumulateCapture(buf []byte) int {
	n := len(buf) / CaptureWordBytes
	for i := 0; i < n; i++ {
		h.Accumulate(buf[i*CaptureWordBytes+CaptureRSSIByte])
	}
	return n
}
