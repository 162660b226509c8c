package sx125x

// Settings holds the analog configuration written before the first lock.
// Field ranges follow the SX1255/SX1257 datasheets.
type Settings struct {
	TxDACClkSel    uint8 `json:"tx_dac_clk_sel" yaml:"tx_dac_clk_sel"` // 0:internal, 1:external
	ClkOutEnable   bool  `json:"clk_out_enable" yaml:"clk_out_enable"`
	RFLoopBack     bool  `json:"rf_loop_back" yaml:"rf_loop_back"`
	DigLoopBack    bool  `json:"dig_loop_back" yaml:"dig_loop_back"`
	XOSCGmStartup  uint8 `json:"xosc_gm_startup" yaml:"xosc_gm_startup"`
	XOSCDisable    uint8 `json:"xosc_disable" yaml:"xosc_disable"`
	TxMixGain      uint8 `json:"tx_mix_gain" yaml:"tx_mix_gain"` // -38 + 2*gain dB
	TxDACGain      uint8 `json:"tx_dac_gain" yaml:"tx_dac_gain"` // 3:0, 2:-3, 1:-6, 0:-9 dBFS
	TxAnaBW        uint8 `json:"tx_ana_bw" yaml:"tx_ana_bw"`
	TxPLLBW        uint8 `json:"tx_pll_bw" yaml:"tx_pll_bw"` // 0:75 to 3:300 kHz
	TxDACBW        uint8 `json:"tx_dac_bw" yaml:"tx_dac_bw"`
	LNAZin         uint8 `json:"lna_zin" yaml:"lna_zin"` // 0:50, 1:200 Ohms
	RxBBGain       uint8 `json:"rx_bb_gain" yaml:"rx_bb_gain"`
	RxLNAGain      uint8 `json:"rx_lna_gain" yaml:"rx_lna_gain"` // 1 highest
	RxBBBW         uint8 `json:"rx_bb_bw" yaml:"rx_bb_bw"`
	RxADCTrim      uint8 `json:"rx_adc_trim" yaml:"rx_adc_trim"` // 6 for a 32 MHz reference
	RxADCBW        uint8 `json:"rx_adc_bw" yaml:"rx_adc_bw"`
	ADCTemp        uint8 `json:"adc_temp" yaml:"adc_temp"`
	RxPLLBW        uint8 `json:"rx_pll_bw" yaml:"rx_pll_bw"`
}

// DefaultSettings returns the settings used for RSSI captures.
func DefaultSettings() Settings {
	return Settings{
		TxDACClkSel:   1,
		ClkOutEnable:  true,
		XOSCGmStartup: 13,
		XOSCDisable:   2,
		TxMixGain:     14,
		TxDACGain:     2,
		TxAnaBW:       0,
		TxPLLBW:       3,
		TxDACBW:       5,
		LNAZin:        1,
		RxBBGain:      12,
		RxLNAGain:     1,
		RxBBBW:        0,
		RxADCTrim:     6,
		RxADCBW:       7,
		ADCTemp:       0,
		RxPLLBW:       0,
	}
}

// RegWrite is one radio register assignment.
type RegWrite struct {
	Addr  uint8
	Value uint8
}

// Registers returns the register writes for s, in programming order.
func (s Settings) Registers(chip ChipVariant) []RegWrite {
	xosc := RegXOSCSX1257
	if chip == SX1255 {
		xosc = RegXOSCSX1255
	}
	return []RegWrite{
		{RegClkSelect, s.TxDACClkSel + b2u(s.ClkOutEnable)*2 + b2u(s.RFLoopBack)*4 + b2u(s.DigLoopBack)*8},
		{xosc, s.XOSCGmStartup + s.XOSCDisable*16},
		{RegTxGain, s.TxMixGain + s.TxDACGain*16},
		{RegTxBW, s.TxAnaBW + s.TxPLLBW*32},
		{RegTxDACBW, s.TxDACBW},
		{RegRxAnaGain, s.LNAZin + s.RxBBGain*2 + s.RxLNAGain*32},
		{RegRxBW, s.RxBBBW + s.RxADCTrim*4 + s.RxADCBW*32},
		{RegRxPLLBW, s.ADCTemp + s.RxPLLBW*2},
	}
}

func b2u(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
