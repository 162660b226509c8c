// Package concentrator opens a register port on an SX1301 concentrator over
// one of the supported transports.
package concentrator

import (
	"errors"
	"fmt"

	"github.com/google/gousb"
	"periph.io/x/periph/conn/physic"

	"github.com/herlein/lgwcal/pkg/regmap"
	"github.com/herlein/lgwcal/pkg/regport"
	"github.com/herlein/lgwcal/pkg/spiport"
	"github.com/herlein/lgwcal/pkg/usbport"
)

// Transports
const (
	TransportSPI = "spi"
	TransportUSB = "usb"
	TransportSim = "sim"
)

var (
	// ErrTransport indicates an unknown transport name
	ErrTransport = errors.New("unknown transport")

	// ErrNoRegisterMap indicates a hardware transport opened without a register map
	ErrNoRegisterMap = errors.New("a register map is required for hardware access")
)

// Options select and configure the transport.
type Options struct {
	Transport string
	RegMap    string // register definition file, spi and usb only

	SPIPort  string
	SPISpeed physic.Frequency

	USBID  string // vid:pid of the bridge
	Device usbport.DeviceSelector

	Seed int64 // simulator noise seed
}

// Handle is an open concentrator.
type Handle struct {
	Port regport.Port
	Name string

	// Sim is set for the simulated transport
	Sim *Simulator

	closers []func() error
}

// Close releases the transport.
func (h *Handle) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open opens the transport named in opts. The register map must define every
// register in required.
func Open(opts Options, required ...regmap.ID) (*Handle, error) {
	if opts.Transport == TransportSim {
		sim := NewSimulator(opts.Seed)
		return &Handle{Port: regport.Serialize(sim.Memory), Name: "simulator", Sim: sim}, nil
	}
	if opts.Transport != TransportSPI && opts.Transport != TransportUSB {
		return nil, fmt.Errorf("%w: %q", ErrTransport, opts.Transport)
	}

	if opts.RegMap == "" {
		return nil, ErrNoRegisterMap
	}
	regs, err := regmap.Load(opts.RegMap)
	if err != nil {
		return nil, err
	}
	if err := regs.Require(required...); err != nil {
		return nil, fmt.Errorf("%s: %w", opts.RegMap, err)
	}

	h := &Handle{}
	var bus regport.ByteBus
	switch opts.Transport {
	case TransportSPI:
		b, err := spiport.Open(opts.SPIPort, opts.SPISpeed)
		if err != nil {
			return nil, err
		}
		h.closers = append(h.closers, b.Close)
		h.Name = fmt.Sprintf("SPI %s", opts.SPIPort)
		bus = b

	case TransportUSB:
		id, err := usbport.ParseUSBID(opts.USBID)
		if err != nil {
			return nil, err
		}
		ctx := gousb.NewContext()
		h.closers = append(h.closers, ctx.Close)
		dev, err := usbport.SelectDevice(ctx, id, opts.Device)
		if err != nil {
			h.Close()
			return nil, fmt.Errorf("failed to open bridge: %w", err)
		}
		h.closers = append(h.closers, dev.Close)
		h.Name = dev.String()
		bus = dev
	}

	h.Port = regport.Serialize(regport.NewFieldPort(bus, regs))
	return h, nil
}
