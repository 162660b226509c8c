package sweep

import (
	"time"

	"github.com/herlein/lgwcal/pkg/rssi"
)

// Step holds the outcome of one sweep frequency
type Step struct {
	Index        int
	FrequencyHz  uint32 // measured frequency; the PLL sits IFChannelHz below
	LockAttempts int
	Skipped      bool  // PLL did not lock; no histogram was taken
	Err          error // lock failure of a skipped step

	Samples   uint64
	Histogram rssi.Histogram
	Report    rssi.Report

	Timestamp time.Time
}
