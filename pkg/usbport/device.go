// Package usbport reaches an SX1301 concentrator through a USB-to-SPI bridge
// speaking a framed protocol on bulk endpoint 5.
//
// The protocol is this project's own: it is not the protocol of any existing
// bridge or gateway product. Bridge firmware has to implement it as laid out
// in constants.go and frame.go:
//
//	command:  app, cmd, len (uint16 LE), payload
//	response: '@', app, cmd, len (uint16 LE), payload
//
// AppSPI carries register reads and writes, AppSystem ping and reset.
// There is no default USB ID; callers pass the bridge's vid:pid.
package usbport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/gousb"
)

// USBID identifies the bridge model by vendor and product ID.
type USBID struct {
	Vendor  gousb.ID
	Product gousb.ID
}

// ParseUSBID parses "vvvv:pppp" in hex.
func ParseUSBID(s string) (USBID, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return USBID{}, fmt.Errorf("invalid USB ID %q, want vid:pid", s)
	}
	vid, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return USBID{}, fmt.Errorf("invalid vendor ID %q: %w", parts[0], err)
	}
	pid, err := strconv.ParseUint(parts[1], 16, 16)
	if err != nil {
		return USBID{}, fmt.Errorf("invalid product ID %q: %w", parts[1], err)
	}
	return USBID{Vendor: gousb.ID(vid), Product: gousb.ID(pid)}, nil
}

func (id USBID) String() string {
	return fmt.Sprintf("%s:%s", id.Vendor, id.Product)
}

type inEndpoint interface {
	ReadContext(ctx context.Context, buf []byte) (int, error)
}

type outEndpoint interface {
	WriteContext(ctx context.Context, buf []byte) (int, error)
}

// Device is one open bridge.
type Device struct {
	usbDevice    *gousb.Device
	usbConfig    *gousb.Config
	usbInterface *gousb.Interface
	epIn         inEndpoint
	epOut        outEndpoint
	Serial       string
	Manufacturer string
	Product      string
	Bus          int
	Address      int

	timeout time.Duration
	mu      sync.Mutex // one command in flight
	recvBuf []byte
}

// FindAllDevices opens every connected bridge matching id
func FindAllDevices(context *gousb.Context, id USBID) ([]*Device, error) {
	devices := []*Device{}

	usbDevices, err := context.OpenDevices(func(descriptor *gousb.DeviceDesc) bool {
		return descriptor.Vendor == id.Vendor && descriptor.Product == id.Product
	})
	if err != nil && len(usbDevices) == 0 {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	for _, usbDev := range usbDevices {
		device, err := wrapDevice(usbDev)
		if err != nil {
			usbDev.Close()
			continue
		}
		devices = append(devices, device)
	}

	return devices, nil
}

func wrapDevice(usbDev *gousb.Device) (*Device, error) {
	manufacturer, _ := usbDev.Manufacturer()
	product, _ := usbDev.Product()
	serial, _ := usbDev.SerialNumber()

	usbDev.SetAutoDetach(true)

	config, err := usbDev.Config(1)
	if err != nil {
		return nil, fmt.Errorf("failed to get configuration: %w", err)
	}

	iface, err := config.Interface(0, 0)
	if err != nil {
		config.Close()
		return nil, fmt.Errorf("failed to claim interface: %w", err)
	}

	epIn, err := iface.InEndpoint(EPNum)
	if err != nil {
		iface.Close()
		config.Close()
		return nil, fmt.Errorf("failed to get IN endpoint: %w", err)
	}

	epOut, err := iface.OutEndpoint(EPNum)
	if err != nil {
		iface.Close()
		config.Close()
		return nil, fmt.Errorf("failed to get OUT endpoint: %w", err)
	}

	desc := usbDev.Desc
	device := newDevice(epIn, epOut)
	device.usbDevice = usbDev
	device.usbConfig = config
	device.usbInterface = iface
	device.Serial = serial
	device.Manufacturer = manufacturer
	device.Product = product
	device.Bus = desc.Bus
	device.Address = desc.Address

	device.drainReceiveBuffer()
	return device, nil
}

func newDevice(in inEndpoint, out outEndpoint) *Device {
	return &Device{
		epIn:    in,
		epOut:   out,
		timeout: DefaultTimeout,
		recvBuf: make([]byte, 0, EPBufferSize),
	}
}

// SetTimeout sets the per-command timeout
func (d *Device) SetTimeout(timeout time.Duration) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	d.timeout = timeout
}

// Close releases the interface, configuration and device
func (d *Device) Close() error {
	if d.usbInterface != nil {
		d.usbInterface.Close()
	}
	if d.usbConfig != nil {
		d.usbConfig.Close()
	}
	if d.usbDevice != nil {
		return d.usbDevice.Close()
	}
	return nil
}

// drainReceiveBuffer discards data left over from a previous session
func (d *Device) drainReceiveBuffer() {
	buf := make([]byte, ReadBufferSize)
	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		n, err := d.epIn.ReadContext(ctx, buf)
		cancel()
		if err != nil || n == 0 {
			break
		}
	}
	d.recvBuf = d.recvBuf[:0]
}

func (d *Device) String() string {
	return fmt.Sprintf("%s %s (Serial: %s, bus %d addr %d)", d.Manufacturer, d.Product, d.Serial, d.Bus, d.Address)
}

// Send sends a command via EP5 and waits for its response
func (d *Device) Send(app uint8, cmd uint8, payload []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	packet := encodeCommand(app, cmd, payload)

	writeCtx, writeCancel := context.WithTimeout(context.Background(), d.timeout)
	n, err := d.epOut.WriteContext(writeCtx, packet)
	writeCancel()
	if err != nil {
		if writeCtx.Err() != nil {
			return nil, fmt.Errorf("write timeout: %w", err)
		}
		return nil, fmt.Errorf("failed to write to EP5: %w", err)
	}
	if n != len(packet) {
		return nil, fmt.Errorf("short write: wrote %d of %d bytes", n, len(packet))
	}

	return d.recv(app, cmd)
}

// recv reads until a complete response for app/cmd is buffered
func (d *Device) recv(app, cmd uint8) ([]byte, error) {
	deadline := time.Now().Add(d.timeout)
	buf := make([]byte, ReadBufferSize)

	for {
		response, remaining, err := parseResponse(d.recvBuf, app, cmd)
		d.recvBuf = remaining
		if err == nil {
			return response, nil
		}
		if errors.Is(err, errMismatch) {
			continue
		}

		left := time.Until(deadline)
		if left <= 0 {
			return nil, fmt.Errorf("timeout waiting for response to app 0x%02X cmd 0x%02X", app, cmd)
		}
		readTimeout := pollTimeout
		if left < readTimeout {
			readTimeout = left
		}

		ctx, cancel := context.WithTimeout(context.Background(), readTimeout)
		n, err := d.epIn.ReadContext(ctx, buf)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			return nil, fmt.Errorf("failed to read from EP5: %w", err)
		}
		d.recvBuf = append(d.recvBuf, buf[:n]...)
	}
}

// Ping sends data to the bridge and checks the echo
func (d *Device) Ping(data []byte) error {
	response, err := d.Send(AppSystem, SysCmdPing, data)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	if string(response) != string(data) {
		return fmt.Errorf("ping response mismatch: sent % X, got % X", data, response)
	}
	return nil
}

// Reset asks the bridge to pulse the concentrator reset line. The bridge
// acknowledges with an empty payload before the pulse.
func (d *Device) Reset() error {
	if _, err := d.Send(AppSystem, SysCmdReset, nil); err != nil {
		return fmt.Errorf("reset failed: %w", err)
	}
	return nil
}

// ResetUSB resets the bridge at the USB level, for a bridge that no longer
// answers commands. The device must be reopened afterwards.
func (d *Device) ResetUSB() error {
	if d.usbDevice == nil {
		return fmt.Errorf("no USB device")
	}
	d.recvBuf = d.recvBuf[:0]
	return d.usbDevice.Reset()
}

// ReadBytes reads n bytes starting at SX1301 register addr. Reads longer
// than MaxChunk repeat addr, which suits the FIFO data registers.
func (d *Device) ReadBytes(addr uint8, n int) ([]byte, error) {
	out := make([]byte, 0, n)
	for len(out) < n {
		chunk := n - len(out)
		if chunk > MaxChunk {
			chunk = MaxChunk
		}
		data, err := d.Send(AppSPI, SPICmdRead, readPayload(addr, chunk))
		if err != nil {
			return nil, err
		}
		if len(data) != chunk {
			return nil, fmt.Errorf("register 0x%02X: read %d of %d bytes", addr, len(data), chunk)
		}
		out = append(out, data...)
	}
	return out, nil
}

// WriteBytes writes data starting at SX1301 register addr, in chunks of at
// most MaxChunk bytes.
func (d *Device) WriteBytes(addr uint8, data []byte) error {
	off := 0
	for {
		end := min(off+MaxChunk, len(data))
		resp, err := d.Send(AppSPI, SPICmdWrite, writePayload(addr, data[off:end]))
		if err != nil {
			return err
		}
		if len(resp) != 2 {
			return fmt.Errorf("register 0x%02X: malformed write response % X", addr, resp)
		}
		if written := int(binary.LittleEndian.Uint16(resp)); written != end-off {
			return fmt.Errorf("register 0x%02X: bridge wrote %d of %d bytes", addr, written, end-off)
		}
		if end == len(data) {
			return nil
		}
		off = end
	}
}
