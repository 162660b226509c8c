package sweep

import "time"

// Default sweep parameters
const (
	DefaultFMinHz        uint32 = 863000000
	DefaultFMaxHz        uint32 = 870000000
	DefaultFStepHz       uint32 = 50000
	DefaultCaptures             = 90
	DefaultCapturePeriod        = 256 // 125 kHz capture rate
	DefaultOutputFile           = "rssi_histogram.csv"
)

// Frequency limits of the supported radios
const (
	MinFrequencyHz uint32 = 100000000
	MaxFrequencyHz uint32 = 1000000000
)

// IFChannelHz is the IF of the measurement chain. The PLL is tuned this far
// below the measured frequency.
const IFChannelHz uint32 = 100000

// Capture RAM
const (
	CaptureClockHz     = 32e6
	SamplesPerCapture  = 4096
	CaptureBursts      = 64
	CaptureBurstBytes  = 256
	CaptureSourceAGC   = 25
	CaptureWaitPercent = 101 // wait 1% longer than the capture itself
)

// AGC microcontroller
const (
	AGCFirmwareSize = 8192
	AGCWaitCmd      = 16
	AGCAbortCmd     = 17
)

// RSSI filter settings written before handing the radio to the AGC
const (
	RSSIBBFilterAlpha     = 6
	RSSIDecFilterAlpha    = 7
	RSSIChannFilterAlpha  = 7
	RSSIBBDefaultValue    = 23
	RSSIDecDefaultValue   = 66
	RSSIChannDefaultValue = 85
)

// Radio power-up timing
const (
	RadioEnableSettle = 500 * time.Millisecond
	RadioResetPulse   = 5 * time.Millisecond
)

// MeasureFrontEnd is the radio used for measurements.
const MeasureFrontEnd = 0
