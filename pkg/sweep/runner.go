// Package sweep measures RSSI histograms across a frequency range with the
// concentrator's capture RAM.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/herlein/lgwcal/pkg/channels"
	"github.com/herlein/lgwcal/pkg/metrics"
	"github.com/herlein/lgwcal/pkg/regmap"
	"github.com/herlein/lgwcal/pkg/regport"
	"github.com/herlein/lgwcal/pkg/rssi"
	"github.com/herlein/lgwcal/pkg/sx125x"
)

// Registers the runner touches. A register map used with a FieldPort must
// define all of them.
var Registers = []regmap.ID{
	regmap.SoftReset, regmap.GlobalEn, regmap.RadioAEn, regmap.RadioBEn, regmap.RadioRst, regmap.RadioSelect,
	regmap.IFFreq0,
	regmap.MCURst1, regmap.MCUSelectMux1, regmap.MCUPromAddr, regmap.MCUPromData, regmap.MCUAGCStatus,
	regmap.RSSIBBFilterAlpha, regmap.RSSIDecFilterAlpha, regmap.RSSIChannFilterAlpha,
	regmap.RSSIBBDefaultValue, regmap.RSSIDecDefaultValue, regmap.RSSIChannDefaultValue,
	regmap.ForceHostRadioCtrl, regmap.ForceHostFECtrl, regmap.ForceDecFilterGain,
	regmap.CapturePeriod, regmap.CaptureSource, regmap.CaptureStart, regmap.CaptureRAMAddr, regmap.CaptureRAMData,
	regmap.SPIRadioACS, regmap.SPIRadioAAddr, regmap.SPIRadioAData, regmap.SPIRadioADataReadback,
}

type regWrite struct {
	id    regmap.ID
	value uint32
}

// Runner drives a sweep on one concentrator.
type Runner struct {
	port     regport.Port
	config   *Config
	chip     sx125x.ChipVariant
	synth    *sx125x.Synthesizer
	settings sx125x.Settings
	firmware []byte
	hist     *rssi.Histogram

	sleep   func(time.Duration)
	log     zerolog.Logger
	metrics *metrics.Collector
}

// New validates config and returns a Runner measuring on front-end 0 of port.
func New(port regport.Port, config *Config) (*Runner, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	chip, _ := config.Chip()

	bridge, err := sx125x.NewBridge(port, MeasureFrontEnd)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		port:     port,
		config:   config,
		chip:     chip,
		synth:    sx125x.NewSynthesizer(MeasureFrontEnd, bridge),
		settings: sx125x.DefaultSettings(),
		hist:     rssi.New(config.Offset(chip)),
		sleep:    time.Sleep,
		log:      zerolog.Nop(),
	}
	return r, nil
}

// Chip returns the radio variant selected for the sweep range.
func (r *Runner) Chip() sx125x.ChipVariant { return r.chip }

// SetLogger sets the logger of the runner and its synthesizer.
func (r *Runner) SetLogger(log zerolog.Logger) {
	r.log = log
	r.synth.SetLogger(log)
}

// SetSleeper replaces every wait of the runner, mainly for tests.
func (r *Runner) SetSleeper(sleep func(time.Duration)) {
	if sleep == nil {
		sleep = time.Sleep
	}
	r.sleep = sleep
	r.synth.SetSleeper(sleep)
}

// SetMetrics attaches a metrics collector; nil disables metrics.
func (r *Runner) SetMetrics(c *metrics.Collector) { r.metrics = c }

// SetRadioSettings replaces the radio settings written by Init.
func (r *Runner) SetRadioSettings(s sx125x.Settings) { r.settings = s }

// SetFirmware sets the AGC firmware image loaded by Init. Without one the
// AGC keeps whatever program it already runs.
func (r *Runner) SetFirmware(image []byte) error {
	if image != nil && len(image) != AGCFirmwareSize {
		return fmt.Errorf("%w: %d bytes, want %d", ErrFirmwareSize, len(image), AGCFirmwareSize)
	}
	r.firmware = image
	return nil
}

func (r *Runner) write(seq ...regWrite) error {
	for _, w := range seq {
		if err := r.port.Write(uint32(w.id), w.value); err != nil {
			return fmt.Errorf("failed to write %s: %w", w.id, err)
		}
	}
	return nil
}

// Init resets the concentrator and prepares front-end 0 and the capture RAM.
func (r *Runner) Init() error {
	cfg := r.config
	r.log.Info().
		Str("chip", r.chip.String()).
		Uint32("fmin_hz", cfg.FMinHz).
		Uint32("fmax_hz", cfg.FMaxHz).
		Uint32("fstep_hz", cfg.FStepHz).
		Msg("initializing concentrator")

	if err := r.write(
		regWrite{regmap.SoftReset, 1},
		regWrite{regmap.RadioAEn, 1},
		regWrite{regmap.RadioBEn, 1},
	); err != nil {
		return err
	}
	r.sleep(RadioEnableSettle)
	if err := r.write(regWrite{regmap.RadioRst, 1}); err != nil {
		return err
	}
	r.sleep(RadioResetPulse)
	if err := r.write(
		regWrite{regmap.RadioRst, 0},
		regWrite{regmap.GlobalEn, 1},
	); err != nil {
		return err
	}

	err := r.synth.Setup(r.chip, r.settings, cfg.FMinHz)
	if err != nil && !errors.Is(err, sx125x.ErrLockFailed) {
		return fmt.Errorf("failed to set up radio: %w", err)
	}
	r.metrics.ObserveLock(MeasureFrontEnd, r.synth.Attempts(), err == nil)
	if err != nil {
		// every step re-locks, so only warn here
		r.log.Warn().Err(err).Msg("initial PLL lock failed")
	}

	if err := r.write(regWrite{regmap.IFFreq0, uint32(channels.IFRegister(int32(IFChannelHz)))}); err != nil {
		return err
	}
	if err := r.loadFirmware(); err != nil {
		return err
	}

	if err := r.write(
		regWrite{regmap.RSSIBBFilterAlpha, RSSIBBFilterAlpha},
		regWrite{regmap.RSSIDecFilterAlpha, RSSIDecFilterAlpha},
		regWrite{regmap.RSSIChannFilterAlpha, RSSIChannFilterAlpha},
		regWrite{regmap.RSSIBBDefaultValue, RSSIBBDefaultValue},
		regWrite{regmap.RSSIDecDefaultValue, RSSIDecDefaultValue},
		regWrite{regmap.RSSIChannDefaultValue, RSSIChannDefaultValue},
		regWrite{regmap.ForceHostRadioCtrl, 0},
		regWrite{regmap.ForceHostFECtrl, 0},
		regWrite{regmap.ForceDecFilterGain, 0},
		regWrite{regmap.CapturePeriod, uint32(cfg.CapturePeriod - 1)},
		regWrite{regmap.CaptureSource, CaptureSourceAGC},
	); err != nil {
		return err
	}

	r.log.Info().
		Float64("capture_ms", float64(cfg.CaptureDuration())/float64(time.Millisecond)).
		Float64("capture_khz", cfg.CaptureRate()/1e3).
		Msg("capture configured")
	return nil
}

func (r *Runner) loadFirmware() error {
	if r.firmware == nil {
		r.log.Warn().Msg("no AGC firmware supplied, keeping the loaded program")
		return nil
	}
	if err := r.write(
		regWrite{regmap.MCURst1, 1},
		regWrite{regmap.MCUSelectMux1, 0},
		regWrite{regmap.MCUPromAddr, 0},
	); err != nil {
		return err
	}
	if err := r.port.WriteBurst(uint32(regmap.MCUPromData), r.firmware); err != nil {
		return fmt.Errorf("failed to load AGC firmware: %w", err)
	}
	return r.write(regWrite{regmap.MCUSelectMux1, 1})
}

// startAGC restarts the AGC MCU and hands it radio and channel selections.
func (r *Runner) startAGC(radio, channel uint32) error {
	status := func() error {
		v, err := r.port.Read(uint32(regmap.MCUAGCStatus))
		if err != nil {
			return fmt.Errorf("failed to read AGC status: %w", err)
		}
		r.log.Debug().Uint8("status", uint8(v)).Msg("MCU AGC")
		return nil
	}

	if err := r.write(regWrite{regmap.MCURst1, 1}, regWrite{regmap.MCURst1, 0}); err != nil {
		return err
	}
	if err := status(); err != nil {
		return err
	}
	// the TX gain table is not updated; the AGC keeps its default
	for _, cmd := range []uint32{AGCAbortCmd, channel, radio} {
		if err := r.write(regWrite{regmap.RadioSelect, AGCWaitCmd}, regWrite{regmap.RadioSelect, cmd}); err != nil {
			return err
		}
		if err := status(); err != nil {
			return err
		}
	}
	return nil
}

// tune locks front-end 0 under host control and gives control back to the AGC.
func (r *Runner) tune(freqHz uint32) error {
	if err := r.write(regWrite{regmap.ForceHostRadioCtrl, 1}); err != nil {
		return err
	}
	lockErr := r.synth.Tune(r.chip, freqHz)
	if lockErr != nil && !errors.Is(lockErr, sx125x.ErrLockFailed) {
		return lockErr
	}
	r.metrics.ObserveLock(MeasureFrontEnd, r.synth.Attempts(), lockErr == nil)
	if err := r.write(regWrite{regmap.ForceHostRadioCtrl, 0}); err != nil {
		return err
	}
	return lockErr
}

// capture runs one capture and accumulates its RSSI codes.
func (r *Runner) capture() error {
	if err := r.write(regWrite{regmap.CaptureStart, 1}); err != nil {
		return err
	}
	r.sleep(r.config.CaptureWait())
	if err := r.write(
		regWrite{regmap.CaptureStart, 0},
		regWrite{regmap.CaptureRAMAddr, 0},
	); err != nil {
		return err
	}
	for i := 0; i < CaptureBursts; i++ {
		buf, err := r.port.ReadBurst(uint32(regmap.CaptureRAMData), CaptureBurstBytes)
		if err != nil {
			return fmt.Errorf("failed to read capture RAM: %w", err)
		}
		if len(buf) != CaptureBurstBytes {
			return fmt.Errorf("%w: %d of %d bytes", ErrShortCapture, len(buf), CaptureBurstBytes)
		}
		r.hist.AccumulateCapture(buf)
	}
	return nil
}

// Measure takes the histogram of one frequency.
func (r *Runner) Measure(index int, freqHz uint32) (Step, error) {
	step := Step{Index: index, FrequencyHz: freqHz}

	err := r.tune(freqHz - IFChannelHz)
	step.LockAttempts = r.synth.Attempts()
	if err != nil {
		if errors.Is(err, sx125x.ErrLockFailed) {
			step.Skipped = true
			step.Err = err
			step.Timestamp = time.Now()
			return step, nil
		}
		return step, err
	}
	if err := r.startAGC(MeasureFrontEnd, 0); err != nil {
		return step, err
	}

	r.hist.Reset()
	for k := 0; k < r.config.Captures; k++ {
		if err := r.capture(); err != nil {
			return step, err
		}
	}

	step.Samples = r.config.TotalSamples()
	report, err := r.hist.Percentiles(step.Samples)
	if err != nil {
		return step, err
	}
	step.Histogram = *r.hist
	step.Report = report
	step.Timestamp = time.Now()
	return step, nil
}

// Run sweeps every frequency and writes one report line per measured step to
// out. A step whose PLL does not lock is skipped; register errors and context
// cancellation end the sweep.
func (r *Runner) Run(ctx context.Context, out io.Writer) ([]Step, error) {
	cfg := r.config
	n := cfg.Steps()
	steps := make([]Step, 0, n)

	for m := 0; m < n; m++ {
		select {
		case <-ctx.Done():
			return steps, ctx.Err()
		default:
		}

		freq := cfg.Frequency(m)
		step, err := r.Measure(m, freq)
		if err != nil {
			return steps, fmt.Errorf("step %d at %d Hz: %w", m, freq, err)
		}
		steps = append(steps, step)

		if step.Skipped {
			r.log.Warn().Err(step.Err).Uint32("freq_hz", freq).Msg("skipping channel")
			r.metrics.ObserveSkip()
		} else {
			r.log.Info().
				Uint32("freq_hz", freq).
				Stringer("p20", step.Report.P20).
				Stringer("p50", step.Report.P50).
				Stringer("p80", step.Report.P80).
				Msg("channel measured")
			r.metrics.ObserveStep(freq, step.Samples, step.Report)
			if out != nil {
				if err := step.Histogram.WriteReport(out, freq); err != nil {
					return steps, err
				}
			}
		}

		if cfg.OnStep != nil {
			cfg.OnStep(step)
		}
	}
	return steps, nil
}

// Shutdown leaves the concentrator in reset.
func (r *Runner) Shutdown() error {
	return r.write(regWrite{regmap.SoftReset, 1})
}
