// Package regmap names the SX1301 registers used by the calibration tools and
// loads their field layout from a register definition file.
package regmap

import "fmt"

// ID identifies one register field. Values are the opaque identifiers passed
// to a regport.Port.
type ID uint32

// Register identifiers
const (
	PageReg ID = iota
	SoftReset
	GlobalEn
	RadioAEn
	RadioBEn
	RadioRst
	RadioSelect

	// IF frequency of each demodulation chain, IFFreq0 to IFFreq0+9
	IFFreq0
	ifFreqLast = IFFreq0 + NumIFChains - 1
)

const (
	MCURst1 = ifFreqLast + 1 + iota
	MCUSelectMux1
	MCUPromAddr
	MCUPromData
	MCUAGCStatus

	RSSIBBFilterAlpha
	RSSIDecFilterAlpha
	RSSIChannFilterAlpha
	RSSIBBDefaultValue
	RSSIDecDefaultValue
	RSSIChannDefaultValue

	ForceHostRadioCtrl
	ForceHostFECtrl
	ForceDecFilterGain

	CapturePeriod
	CaptureSource
	CaptureStart
	CaptureRAMAddr
	CaptureRAMData

	FrameSynchPeak1Pos
	FrameSynchPeak2Pos

	SPIRadioACS
	SPIRadioAAddr
	SPIRadioAData
	SPIRadioADataReadback
	SPIRadioBCS
	SPIRadioBAddr
	SPIRadioBData
	SPIRadioBDataReadback

	numIDs
)

// NumIFChains is the number of IF frequency registers.
const NumIFChains = 10

var names = map[ID]string{
	PageReg:               "PAGE_REG",
	SoftReset:             "SOFT_RESET",
	GlobalEn:              "GLOBAL_EN",
	RadioAEn:              "RADIO_A_EN",
	RadioBEn:              "RADIO_B_EN",
	RadioRst:              "RADIO_RST",
	RadioSelect:           "RADIO_SELECT",
	MCURst1:               "MCU_RST_1",
	MCUSelectMux1:         "MCU_SELECT_MUX_1",
	MCUPromAddr:           "MCU_PROM_ADDR",
	MCUPromData:           "MCU_PROM_DATA",
	MCUAGCStatus:          "MCU_AGC_STATUS",
	RSSIBBFilterAlpha:     "RSSI_BB_FILTER_ALPHA",
	RSSIDecFilterAlpha:    "RSSI_DEC_FILTER_ALPHA",
	RSSIChannFilterAlpha:  "RSSI_CHANN_FILTER_ALPHA",
	RSSIBBDefaultValue:    "RSSI_BB_DEFAULT_VALUE",
	RSSIDecDefaultValue:   "RSSI_DEC_DEFAULT_VALUE",
	RSSIChannDefaultValue: "RSSI_CHANN_DEFAULT_VALUE",
	ForceHostRadioCtrl:    "FORCE_HOST_RADIO_CTRL",
	ForceHostFECtrl:       "FORCE_HOST_FE_CTRL",
	ForceDecFilterGain:    "FORCE_DEC_FILTER_GAIN",
	CapturePeriod:         "CAPTURE_PERIOD",
	CaptureSource:         "CAPTURE_SOURCE",
	CaptureStart:          "CAPTURE_START",
	CaptureRAMAddr:        "CAPTURE_RAM_ADDR",
	CaptureRAMData:        "CAPTURE_RAM_DATA",
	FrameSynchPeak1Pos:    "FRAME_SYNCH_PEAK1_POS",
	FrameSynchPeak2Pos:    "FRAME_SYNCH_PEAK2_POS",
	SPIRadioACS:           "SPI_RADIO_A__CS",
	SPIRadioAAddr:         "SPI_RADIO_A__ADDR",
	SPIRadioAData:         "SPI_RADIO_A__DATA",
	SPIRadioADataReadback: "SPI_RADIO_A__DATA_READBACK",
	SPIRadioBCS:           "SPI_RADIO_B__CS",
	SPIRadioBAddr:         "SPI_RADIO_B__ADDR",
	SPIRadioBData:         "SPI_RADIO_B__DATA",
	SPIRadioBDataReadback: "SPI_RADIO_B__DATA_READBACK",
}

var byName = func() map[string]ID {
	m := make(map[string]ID, numIDs)
	for i := 0; i < NumIFChains; i++ {
		m[IFFreq(i).String()] = IFFreq(i)
	}
	for id, name := range names {
		m[name] = id
	}
	return m
}()

// String returns the register name as used in definition files.
func (id ID) String() string {
	if id >= IFFreq0 && id <= ifFreqLast {
		return fmt.Sprintf("IF_FREQ_%d", id-IFFreq0)
	}
	if name, ok := names[id]; ok {
		return name
	}
	return fmt.Sprintf("REG_%d", uint32(id))
}

// ByName looks up a register by its definition-file name.
func ByName(name string) (ID, bool) {
	id, ok := byName[name]
	return id, ok
}

// All returns every known register identifier in order.
func All() []ID {
	ids := make([]ID, 0, numIDs)
	for id := ID(0); id < numIDs; id++ {
		ids = append(ids, id)
	}
	return ids
}

// IFFreq returns the IF frequency register of demodulation chain n.
func IFFreq(n int) ID {
	return IFFreq0 + ID(n)
}

// RadioSPI holds the SPI master registers used to reach one radio.
type RadioSPI struct {
	CS       ID
	Addr     ID
	Data     ID
	Readback ID
}

// RadioSPIFor returns the SPI master registers of radio 0 (A) or 1 (B).
func RadioSPIFor(radio int) (RadioSPI, error) {
	switch radio {
	case 0:
		return RadioSPI{SPIRadioACS, SPIRadioAAddr, SPIRadioAData, SPIRadioADataReadback}, nil
	case 1:
		return RadioSPI{SPIRadioBCS, SPIRadioBAddr, SPIRadioBData, SPIRadioBDataReadback}, nil
	default:
		return RadioSPI{}, fmt.Errorf("no SPI master for radio %d", radio)
	}
}
