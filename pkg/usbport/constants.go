package usbport

import "time"

// USB Endpoint Configuration
const (
	EPNum          = 5 // bulk EP5 IN (0x85) and OUT (0x05)
	EPBufferSize   = 516
	ReadBufferSize = 512
	ResponseMarker = 0x40 // '@' character marks start of response
	HeaderSize     = 4    // app + cmd + length(2 LE)
	RespHeaderSize = 5    // marker + app + cmd + length(2 LE)
)

// MaxChunk is the largest register data carried by one frame; a write frame
// must fit the bridge's EP5 buffer
const MaxChunk = 256

// USB Timeouts
const (
	DefaultTimeout = 1000 * time.Millisecond
	pollTimeout    = 100 * time.Millisecond
	drainTimeout   = 10 * time.Millisecond
)

// Application IDs for EP5 protocol. The IDs and commands below are defined
// by this package, not taken from a vendor protocol.
const (
	AppSPI    = 0x53 // SX1301 register access
	AppSystem = 0xFF // System/administrative commands
)

// SPI Commands (AppSPI)
const (
	SPICmdRead  = 0x01 // payload: addr(1) + length(2 LE); response: data
	SPICmdWrite = 0x02 // payload: addr(1) + data; response: bytes written(2 LE)
)

// System Commands (AppSystem)
const (
	SysCmdPing  = 0x82 // Echo test
	SysCmdReset = 0x8F // Reset bridge
)
