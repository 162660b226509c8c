package sweep

import (
	"fmt"
	"time"

	"github.com/herlein/lgwcal/pkg/sx125x"
)

// Config defines one RSSI histogram sweep.
type Config struct {
	FMinHz        uint32 `json:"fmin_hz" yaml:"fmin_hz"`
	FMaxHz        uint32 `json:"fmax_hz" yaml:"fmax_hz"`
	FStepHz       uint32 `json:"fstep_hz" yaml:"fstep_hz"`
	Captures      int    `json:"captures" yaml:"captures"`             // captures of 4096 samples per step
	CapturePeriod int    `json:"capture_period" yaml:"capture_period"` // 32 MHz divider
	OffsetDBm     int32  `json:"offset_dbm,omitempty" yaml:"offset_dbm,omitempty"`

	// OnStep is called after every step (optional, not serialized)
	OnStep func(step Step) `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		FMinHz:        DefaultFMinHz,
		FMaxHz:        DefaultFMaxHz,
		FStepHz:       DefaultFStepHz,
		Captures:      DefaultCaptures,
		CapturePeriod: DefaultCapturePeriod,
	}
}

// Chip selects the radio variant that covers the whole sweep. Bounds exactly
// at MinFrequencyHz or at the variant boundary are not covered.
func (c *Config) Chip() (sx125x.ChipVariant, error) {
	switch {
	case c.FMinHz < MinFrequencyHz || c.FMaxHz < MinFrequencyHz:
		return 0, fmt.Errorf("%w: %d..%d Hz", ErrFrequencyTooLow, c.FMinHz, c.FMaxHz)
	case c.FMinHz > MaxFrequencyHz || c.FMaxHz > MaxFrequencyHz:
		return 0, fmt.Errorf("%w: %d..%d Hz", ErrFrequencyTooHigh, c.FMinHz, c.FMaxHz)
	case c.FMinHz > MinFrequencyHz && c.FMaxHz < sx125x.VariantBoundaryHz:
		return sx125x.SX1255, nil
	case c.FMaxHz < MaxFrequencyHz && c.FMinHz > sx125x.VariantBoundaryHz:
		return sx125x.SX1257, nil
	default:
		return 0, fmt.Errorf("%w: %d..%d Hz", ErrUnknownFrontEnd, c.FMinHz, c.FMaxHz)
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if _, err := c.Chip(); err != nil {
		return err
	}
	if c.FStepHz == 0 {
		return fmt.Errorf("%w: zero step", ErrInvalidRange)
	}
	if c.FMaxHz < c.FMinHz {
		return fmt.Errorf("%w: fmax %d below fmin %d", ErrInvalidRange, c.FMaxHz, c.FMinHz)
	}
	if c.Captures <= 0 {
		return fmt.Errorf("%w: %d captures", ErrInvalidCapture, c.Captures)
	}
	if c.CapturePeriod <= 0 {
		return fmt.Errorf("%w: capture period %d", ErrInvalidCapture, c.CapturePeriod)
	}
	return nil
}

// Offset returns the dBm offset of code 0: the configured override, or the
// chip default.
func (c *Config) Offset(chip sx125x.ChipVariant) int32 {
	if c.OffsetDBm != 0 {
		return c.OffsetDBm
	}
	return sx125x.DefaultRSSIOffset(chip)
}

// Steps returns the number of frequencies in the sweep, both bounds included.
func (c *Config) Steps() int {
	return int((c.FMaxHz-c.FMinHz)/c.FStepHz) + 1
}

// Frequency returns the frequency of step m.
func (c *Config) Frequency(m int) uint32 {
	return c.FMinHz + uint32(m)*c.FStepHz
}

// CaptureDuration returns the time one capture of 4096 samples takes.
func (c *Config) CaptureDuration() time.Duration {
	return time.Duration(float64(c.CapturePeriod) / CaptureClockHz * SamplesPerCapture * float64(time.Second))
}

// CaptureRate returns the capture sample rate in Hz.
func (c *Config) CaptureRate() float64 {
	return CaptureClockHz / float64(c.CapturePeriod)
}

// CaptureWait returns how long to let a capture run, in whole milliseconds.
func (c *Config) CaptureWait() time.Duration {
	seconds := float64(c.CapturePeriod) / CaptureClockHz * SamplesPerCapture
	ms := int(seconds * 10 * CaptureWaitPercent)
	return time.Duration(ms) * time.Millisecond
}

// TotalSamples returns the number of RSSI codes collected per step.
func (c *Config) TotalSamples() uint64 {
	return uint64(c.Captures) * SamplesPerCapture
}
