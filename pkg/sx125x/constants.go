// Package sx125x drives the SX1255/SX1257 radio front-ends of an SX1301
// concentrator: PLL tuning word encoding, lock acquisition, and radio setup.
package sx125x

import "time"

// Reference clock constants
const (
	// FracDenominator is the irreducible fraction of the 32 MHz reference
	FracDenominator uint32 = 15625

	// VariantBoundaryHz separates SX1255 (at or below) from SX1257 (above)
	VariantBoundaryHz uint32 = 520000000
)

// Radio register addresses
const (
	RegMode      uint8 = 0x00
	RegFreqMSB   uint8 = 0x01
	RegFreqMid   uint8 = 0x02
	RegFreqLSB   uint8 = 0x03
	RegTxGain    uint8 = 0x08
	RegTxBW      uint8 = 0x0A
	RegTxDACBW   uint8 = 0x0B
	RegRxAnaGain uint8 = 0x0C
	RegRxBW      uint8 = 0x0D
	RegRxPLLBW   uint8 = 0x0E
	RegClkSelect uint8 = 0x10
	RegModeStat  uint8 = 0x11

	RegXOSCSX1257 uint8 = 0x26
	RegXOSCSX1255 uint8 = 0x28

	// MaxRegAddr is the first address the concentrator SPI master cannot reach
	MaxRegAddr uint8 = 0x7F
)

// Mode register values
const (
	ModeXOSC  uint8 = 0x01 // crystal oscillator enabled
	ModeRXOn  uint8 = 0x03 // RX PLL and front-end enabled
	LockedBit uint8 = 0x02 // RegModeStat bit set once the RX PLL has locked
)

// Lock acquisition
const (
	// MaxLockAttempts bounds the XOSC/RX enable sequence
	MaxLockAttempts = 6

	// LockSettle is the wait between enabling RX and checking the lock bit
	LockSettle = time.Millisecond
)

// Default RSSI offsets of the capture path (dBm at raw code 0)
const (
	RSSIOffsetSX1257 int32 = -137
	RSSIOffsetSX1255 int32 = -147
)
