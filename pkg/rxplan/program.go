// Package rxplan programs a planned channel table into a concentrator: radio
// setup and tuning of both front-ends, IF frequencies, and the frame
// synchronization mode.
package rxplan

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/herlein/lgwcal/pkg/channels"
	"github.com/herlein/lgwcal/pkg/metrics"
	"github.com/herlein/lgwcal/pkg/regmap"
	"github.com/herlein/lgwcal/pkg/regport"
	"github.com/herlein/lgwcal/pkg/sweep"
	"github.com/herlein/lgwcal/pkg/sx125x"
)

// Frame synchronization peak positions
const (
	LoRaMACPeak1 = 3
	LoRaMACPeak2 = 4
	PrivatePeak1 = 1
	PrivatePeak2 = 2
)

// ErrNothingEnabled is returned when no front-end carries a channel.
var ErrNothingEnabled = errors.New("no enabled front-end")

// Registers the programmer touches.
var Registers = []regmap.ID{
	regmap.SoftReset, regmap.GlobalEn, regmap.RadioAEn, regmap.RadioBEn, regmap.RadioRst,
	regmap.IFFreq0, regmap.IFFreq(1), regmap.IFFreq(2), regmap.IFFreq(3), regmap.IFFreq(4),
	regmap.IFFreq(5), regmap.IFFreq(6), regmap.IFFreq(7), regmap.IFFreq(8), regmap.IFFreq(9),
	regmap.FrameSynchPeak1Pos, regmap.FrameSynchPeak2Pos,
	regmap.SPIRadioACS, regmap.SPIRadioAAddr, regmap.SPIRadioAData, regmap.SPIRadioADataReadback,
	regmap.SPIRadioBCS, regmap.SPIRadioBAddr, regmap.SPIRadioBData, regmap.SPIRadioBDataReadback,
}

// Options control what Apply writes besides the plan itself.
type Options struct {
	Settings sx125x.Settings
	LoRaMAC  bool // public LoRaWAN sync word positions
}

// FrontEndStatus is the outcome of tuning one front-end.
type FrontEndStatus struct {
	Index    int
	Enabled  bool
	CenterHz uint32
	Attempts int
	Locked   bool
	Err      error // lock failure, nil when locked or disabled
}

// Programmer writes channel plans through a register port.
type Programmer struct {
	port    regport.Port
	sleep   func(time.Duration)
	log     zerolog.Logger
	metrics *metrics.Collector
}

// New returns a Programmer for port. The port is serialized so a
// programmer can share it with other users.
func New(port regport.Port) *Programmer {
	return &Programmer{
		port:  regport.Serialize(port),
		sleep: time.Sleep,
		log:   zerolog.Nop(),
	}
}

func (p *Programmer) SetLogger(log zerolog.Logger) { p.log = log }

func (p *Programmer) SetMetrics(c *metrics.Collector) { p.metrics = c }

// SetSleeper replaces every wait, mainly for tests.
func (p *Programmer) SetSleeper(sleep func(time.Duration)) {
	if sleep == nil {
		sleep = time.Sleep
	}
	p.sleep = sleep
}

func (p *Programmer) write(id regmap.ID, value uint32) error {
	if err := p.port.Write(uint32(id), value); err != nil {
		return fmt.Errorf("failed to write %s: %w", id, err)
	}
	return nil
}

// Apply brings up the concentrator with plan. IFs are checked before any
// register is touched. A front-end that does not lock is reported in its
// status and in the returned error, after everything else was written.
func (p *Programmer) Apply(plan *channels.Result, opts Options) ([channels.NumFrontEnds]FrontEndStatus, error) {
	var status [channels.NumFrontEnds]FrontEndStatus
	for i, fe := range plan.FrontEnds {
		status[i] = FrontEndStatus{Index: i, Enabled: fe.Enabled, CenterHz: fe.CenterHz}
	}
	if !plan.FrontEnds[0].Enabled && !plan.FrontEnds[1].Enabled {
		return status, ErrNothingEnabled
	}
	if err := plan.CheckIF(); err != nil {
		return status, err
	}
	p.metrics.ObservePlan(plan.Warnings)

	if err := p.write(regmap.SoftReset, 1); err != nil {
		return status, err
	}
	if err := p.write(regmap.RadioAEn, b2u(plan.FrontEnds[0].Enabled)); err != nil {
		return status, err
	}
	if err := p.write(regmap.RadioBEn, b2u(plan.FrontEnds[1].Enabled)); err != nil {
		return status, err
	}
	p.sleep(sweep.RadioEnableSettle)
	if err := p.write(regmap.RadioRst, 1); err != nil {
		return status, err
	}
	p.sleep(sweep.RadioResetPulse)
	if err := p.write(regmap.RadioRst, 0); err != nil {
		return status, err
	}

	if err := p.tuneAll(plan, opts.Settings, &status); err != nil {
		return status, err
	}
	var lockErrs []error
	for _, st := range status {
		if st.Err != nil {
			lockErrs = append(lockErrs, st.Err)
		}
	}

	for _, c := range plan.Channels {
		reg := channels.IFRegister(c.IFHz)
		p.log.Debug().Int("channel", c.Index).Int32("if_hz", c.IFHz).Int32("reg", reg).Msg("IF")
		if err := p.write(regmap.IFFreq(c.Index), uint32(reg)); err != nil {
			return status, err
		}
	}

	peak1, peak2 := uint32(PrivatePeak1), uint32(PrivatePeak2)
	if opts.LoRaMAC {
		peak1, peak2 = LoRaMACPeak1, LoRaMACPeak2
	}
	if err := p.write(regmap.FrameSynchPeak1Pos, peak1); err != nil {
		return status, err
	}
	if err := p.write(regmap.FrameSynchPeak2Pos, peak2); err != nil {
		return status, err
	}
	if err := p.write(regmap.GlobalEn, 1); err != nil {
		return status, err
	}
	return status, errors.Join(lockErrs...)
}

// tuneAll sets up every enabled front-end, radio A first. A radio register
// access is several concentrator accesses, so the front-ends never overlap.
// Lock failures are left in status; register errors are returned.
func (p *Programmer) tuneAll(plan *channels.Result, settings sx125x.Settings, status *[channels.NumFrontEnds]FrontEndStatus) error {
	for i, fe := range plan.FrontEnds {
		if !fe.Enabled {
			continue
		}
		bridge, err := sx125x.NewBridge(p.port, i)
		if err != nil {
			return err
		}
		synth := sx125x.NewSynthesizer(i, bridge)
		synth.SetSleeper(p.sleep)
		synth.SetLogger(p.log)

		err = synth.Setup(fe.Chip, settings, fe.CenterHz)
		st := &status[i]
		st.Attempts = synth.Attempts()
		switch {
		case err == nil:
			st.Locked = true
		case errors.Is(err, sx125x.ErrLockFailed):
			st.Err = err
		default:
			return fmt.Errorf("front-end %d: %w", i, err)
		}
		p.metrics.ObserveLock(i, st.Attempts, st.Locked)
		p.log.Info().
			Int("front_end", i).
			Str("chip", fe.Chip.String()).
			Uint32("center_hz", fe.CenterHz).
			Int("attempts", st.Attempts).
			Bool("locked", st.Locked).
			Msg("front-end tuned")
	}
	return nil
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
