package usbport

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/gousb"
)

// DeviceSelector specifies how to identify a bridge
// Supported formats:
//   - ""           : Use first available device
//   - "serial"     : Match by serial number (e.g., "009a")
//   - "bus:addr"   : Match by USB bus and address (e.g., "1:10")
//   - "#N"         : Use Nth device, 0-indexed (e.g., "#0", "#1")
type DeviceSelector string

// SelectDevice opens the bridge matching the selector and closes the others
func SelectDevice(context *gousb.Context, id USBID, selector DeviceSelector) (*Device, error) {
	devices, err := FindAllDevices(context, id)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no bridges with USB ID %s found", id)
	}

	index, err := pick(devices, string(selector))
	for i, d := range devices {
		if i != index {
			d.Close()
		}
	}
	if err != nil {
		return nil, err
	}
	return devices[index], nil
}

// pick returns the index of the device matching sel, or -1 with an error
func pick(devices []*Device, sel string) (int, error) {
	// Empty selector - use first device
	if sel == "" {
		return 0, nil
	}

	// Index selector: #0, #1, etc.
	if strings.HasPrefix(sel, "#") {
		index, err := strconv.Atoi(sel[1:])
		if err != nil {
			return -1, fmt.Errorf("invalid device index: %s", sel)
		}
		if index < 0 || index >= len(devices) {
			return -1, fmt.Errorf("device index %d out of range (found %d devices)", index, len(devices))
		}
		return index, nil
	}

	// Bus:Address selector: 1:10, 2:5, etc.
	if strings.Contains(sel, ":") {
		parts := strings.SplitN(sel, ":", 2)
		bus, err := strconv.Atoi(parts[0])
		if err != nil {
			return -1, fmt.Errorf("invalid bus number: %s", parts[0])
		}
		addr, err := strconv.Atoi(parts[1])
		if err != nil {
			return -1, fmt.Errorf("invalid address number: %s", parts[1])
		}
		for i, d := range devices {
			if d.Bus == bus && d.Address == addr {
				return i, nil
			}
		}
		return -1, fmt.Errorf("no bridge found at bus %d address %d", bus, addr)
	}

	// Serial number selector
	found := -1
	for i, d := range devices {
		if d.Serial != sel {
			continue
		}
		if found >= 0 {
			return -1, fmt.Errorf("multiple devices found with serial %s; use bus:addr format (e.g., 1:10) or index format (e.g., #0)", sel)
		}
		found = i
	}
	if found < 0 {
		return -1, fmt.Errorf("no bridge found with serial %s", sel)
	}
	return found, nil
}

// DeviceFlagUsage returns usage text for the device selector flag
func DeviceFlagUsage() string {
	return `Bridge selector. Formats:
    ""        - Use first available device
    "serial"  - Match by serial number (e.g., "009a")
    "bus:addr"- Match by USB location (e.g., "1:10")
    "#N"      - Use Nth device, 0-indexed (e.g., "#0", "#1")`
}
