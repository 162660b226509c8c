package concentrator

import (
	"math"
	"math/rand"
	"sync"

	"github.com/herlein/lgwcal/pkg/regmap"
	"github.com/herlein/lgwcal/pkg/regport"
	"github.com/herlein/lgwcal/pkg/rssi"
	"github.com/herlein/lgwcal/pkg/sx125x"
)

// Simulated noise floor, in raw RSSI codes
const (
	SimNoiseCode   = 40
	SimNoiseSpread = 3.0
)

// Simulator is a register port whose radios always lock and whose capture
// RAM holds Gaussian noise around SimNoiseCode.
type Simulator struct {
	Memory *regport.Memory

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSimulator returns a Simulator seeded with seed.
func NewSimulator(seed int64) *Simulator {
	s := &Simulator{
		Memory: regport.NewMemory(),
		rng:    rand.New(rand.NewSource(seed)),
	}
	s.Memory.ReadHook = s.read
	s.Memory.BurstHook = s.burst
	return s
}

func (s *Simulator) read(id uint32, stored int32) int32 {
	switch regmap.ID(id) {
	case regmap.SPIRadioADataReadback, regmap.SPIRadioBDataReadback:
		return int32(sx125x.LockedBit)
	}
	return stored
}

func (s *Simulator) burst(id uint32, length int) []byte {
	buf := make([]byte, length)
	if regmap.ID(id) != regmap.CaptureRAMData {
		return buf
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := rssi.CaptureRSSIByte; i < length; i += rssi.CaptureWordBytes {
		code := math.Round(SimNoiseCode + s.rng.NormFloat64()*SimNoiseSpread)
		buf[i] = uint8(math.Max(0, math.Min(rssi.NumBins-1, code)))
	}
	return buf
}
