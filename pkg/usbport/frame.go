package usbport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	errNoMarker   = errors.New("no response marker found")
	errIncomplete = errors.New("incomplete response")
	errMismatch   = errors.New("response for another command")
)

// encodeCommand builds an EP5 command frame.
// Protocol: app(1) + cmd(1) + length(2 LE) + payload
func encodeCommand(app, cmd uint8, payload []byte) []byte {
	packet := make([]byte, HeaderSize+len(payload))
	packet[0] = app
	packet[1] = cmd
	binary.LittleEndian.PutUint16(packet[2:4], uint16(len(payload)))
	copy(packet[HeaderSize:], payload)
	return packet
}

// parseResponse extracts the first complete response from buf.
// Response format: '@'(1) + app(1) + cmd(1) + length(2 LE) + payload
//
// The returned slice is what should stay buffered: the bytes after the
// parsed response on success, everything from the marker while the response
// is incomplete, and the bytes after a mismatching marker otherwise.
func parseResponse(buf []byte, app, cmd uint8) ([]byte, []byte, error) {
	markerIdx := bytes.IndexByte(buf, ResponseMarker)
	if markerIdx == -1 {
		return nil, buf[:0], errNoMarker
	}

	// Discard any data before the marker
	data := buf[markerIdx:]
	if len(data) < RespHeaderSize {
		return nil, data, errIncomplete
	}

	length := int(binary.LittleEndian.Uint16(data[3:5]))
	total := RespHeaderSize + length
	if len(data) < total {
		return nil, data, errIncomplete
	}

	if data[1] != app || data[2] != cmd {
		return nil, data[1:], fmt.Errorf("%w: app=0x%02X cmd=0x%02X", errMismatch, data[1], data[2])
	}

	payload := make([]byte, length)
	copy(payload, data[RespHeaderSize:total])
	return payload, data[total:], nil
}

func readPayload(addr uint8, n int) []byte {
	payload := make([]byte, 3)
	payload[0] = addr
	binary.LittleEndian.PutUint16(payload[1:3], uint16(n))
	return payload
}

func writePayload(addr uint8, data []byte) []byte {
	payload := make([]byte, 1+len(data))
	payload[0] = addr
	copy(payload[1:], data)
	return payload
}
