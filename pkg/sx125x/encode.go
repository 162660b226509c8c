package sx125x

import "fmt"

// ChipVariant identifies the radio front-end part.
type ChipVariant int

const (
	SX1255 ChipVariant = iota
	SX1257
)

func (c ChipVariant) String() string {
	switch c {
	case SX1255:
		return "SX1255"
	case SX1257:
		return "SX1257"
	default:
		return fmt.Sprintf("ChipVariant(%d)", int(c))
	}
}

// VariantForFrequency returns the part able to tune to centerHz.
func VariantForFrequency(centerHz uint32) ChipVariant {
	if centerHz > VariantBoundaryHz {
		return SX1257
	}
	return SX1255
}

// DefaultRSSIOffset returns the capture-path RSSI offset for chip.
func DefaultRSSIOffset(chip ChipVariant) int32 {
	if chip == SX1255 {
		return RSSIOffsetSX1255
	}
	return RSSIOffsetSX1257
}

// TuningWord is the PLL setting for one carrier frequency.
type TuningWord struct {
	Integer  uint32
	Fraction uint32 // 16 significant bits
}

// Encode computes the tuning word for freqHz. All intermediate values stay
// within 32 bits and every division truncates.
func Encode(chip ChipVariant, freqHz uint32) TuningWord {
	if chip == SX1255 {
		return TuningWord{
			Integer:  freqHz / (FracDenominator << 7),
			Fraction: ((freqHz % (FracDenominator << 7)) << 9) / FracDenominator,
		}
	}
	return TuningWord{
		Integer:  freqHz / (FracDenominator << 8),
		Fraction: ((freqHz % (FracDenominator << 8)) << 8) / FracDenominator,
	}
}

// Bytes returns the values of RegFreqMSB, RegFreqMid and RegFreqLSB.
func (w TuningWord) Bytes() [3]byte {
	return [3]byte{
		byte(w.Integer & 0xFF),
		byte((w.Fraction >> 8) & 0xFF),
		byte(w.Fraction & 0xFF),
	}
}

// Frequency returns the carrier the word tunes to on chip, truncated to Hz.
func (w TuningWord) Frequency(chip ChipVariant) uint32 {
	step := uint64(FracDenominator) << 8
	fracBits := uint(8)
	if chip == SX1255 {
		step = uint64(FracDenominator) << 7
		fracBits = 9
	}
	f := uint64(w.Integer)*step + (uint64(w.Fraction)*uint64(FracDenominator))>>fracBits
	return uint32(f)
}

// Resolution returns the frequency step of one fraction LSB on chip, in Hz.
func Resolution(chip ChipVariant) float64 {
	if chip == SX1255 {
		return float64(FracDenominator) / (1 << 9)
	}
	return float64(FracDenominator) / (1 << 8)
}

func (w TuningWord) String() string {
	b := w.Bytes()
	return fmt.Sprintf("int=%d frac=%d [0x%02X 0x%02X 0x%02X]", w.Integer, w.Fraction, b[0], b[1], b[2])
}
