package sx125x

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RadioBus gives byte access to the registers of one radio.
type RadioBus interface {
	WriteReg(addr uint8, value uint8) error
	ReadReg(addr uint8) (uint8, error)
}

// State is the lock state of a Synthesizer.
type State int

const (
	Idle State = iota
	Tuning
	Locked
	LockFailed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Tuning:
		return "tuning"
	case Locked:
		return "locked"
	case LockFailed:
		return "lock-failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Synthesizer tunes the RX PLL of one front-end.
type Synthesizer struct {
	frontEnd int
	bus      RadioBus
	sleep    func(time.Duration)
	log      zerolog.Logger

	state    State
	lastFreq uint32
	attempts int
}

// NewSynthesizer returns a Synthesizer for front-end frontEnd reached through bus.
func NewSynthesizer(frontEnd int, bus RadioBus) *Synthesizer {
	return &Synthesizer{
		frontEnd: frontEnd,
		bus:      bus,
		sleep:    time.Sleep,
		log:      zerolog.Nop(),
	}
}

// SetSleeper replaces the settle wait, mainly for tests.
func (s *Synthesizer) SetSleeper(sleep func(time.Duration)) {
	if sleep == nil {
		sleep = time.Sleep
	}
	s.sleep = sleep
}

// SetLogger sets the logger used for attempt tracing.
func (s *Synthesizer) SetLogger(log zerolog.Logger) {
	s.log = log.With().Int("front_end", s.frontEnd).Logger()
}

// FrontEnd returns the front-end index.
func (s *Synthesizer) FrontEnd() int { return s.frontEnd }

// State returns the outcome of the last Tune.
func (s *Synthesizer) State() State { return s.state }

// LastFrequency returns the last commanded frequency. Diagnostic only.
func (s *Synthesizer) LastFrequency() uint32 { return s.lastFreq }

// Attempts returns the number of enable cycles used by the last Tune.
func (s *Synthesizer) Attempts() int { return s.attempts }

// Tune programs freqHz and waits for the PLL to lock. A lock failure returns
// a *LockError; register access failures are returned as-is and leave the
// synthesizer in the Tuning state.
func (s *Synthesizer) Tune(chip ChipVariant, freqHz uint32) error {
	s.state = Tuning
	s.lastFreq = freqHz
	s.attempts = 0

	word := Encode(chip, freqHz)
	b := word.Bytes()
	s.log.Debug().Str("chip", chip.String()).Uint32("freq_hz", freqHz).Stringer("word", word).Msg("programming PLL")

	for i, reg := range []uint8{RegFreqMSB, RegFreqMid, RegFreqLSB} {
		if err := s.bus.WriteReg(reg, b[i]); err != nil {
			return fmt.Errorf("failed to write tuning word: %w", err)
		}
	}

	for s.attempts < MaxLockAttempts {
		if err := s.bus.WriteReg(RegMode, ModeXOSC); err != nil {
			return fmt.Errorf("failed to enable XOSC: %w", err)
		}
		if err := s.bus.WriteReg(RegMode, ModeRXOn); err != nil {
			return fmt.Errorf("failed to enable RX: %w", err)
		}
		s.attempts++
		s.log.Debug().Int("attempt", s.attempts).Msg("PLL start")
		s.sleep(LockSettle)

		stat, err := s.bus.ReadReg(RegModeStat)
		if err != nil {
			return fmt.Errorf("failed to read lock status: %w", err)
		}
		if stat&LockedBit != 0 {
			s.state = Locked
			return nil
		}
	}

	s.state = LockFailed
	return &LockError{FrontEnd: s.frontEnd, FrequencyHz: freqHz, Attempts: s.attempts}
}

// Setup writes the radio settings for chip, then tunes to freqHz.
func (s *Synthesizer) Setup(chip ChipVariant, settings Settings, freqHz uint32) error {
	for _, w := range settings.Registers(chip) {
		if err := s.bus.WriteReg(w.Addr, w.Value); err != nil {
			return fmt.Errorf("failed to write radio register 0x%02X: %w", w.Addr, err)
		}
	}
	return s.Tune(chip, freqHz)
}
