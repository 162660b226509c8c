// lsbridge: List all connected USB-to-SPI concentrator bridges
//
// This tool enumerates every bridge with the given USB ID and displays
// its serial number and location, optionally checking that it answers.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/gousb"
	"github.com/spf13/pflag"

	"github.com/herlein/lgwcal/pkg/usbport"
)

func main() {
	usbID := pflag.String("usb-id", "", "USB bridge vid:pid in hex (required)")
	verbose := pflag.BoolP("verbose", "v", false, "Verbose output (show device details and ping each bridge)")
	reset := pflag.Bool("reset", false, "Reset the concentrator behind every bridge (USB reset if the bridge does not answer)")
	pflag.Parse()

	id, err := usbport.ParseUSBID(*usbID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		pflag.Usage()
		os.Exit(1)
	}

	// Create USB context
	context := gousb.NewContext()
	defer context.Close()

	devices, err := usbport.FindAllDevices(context, id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to enumerate devices: %v\n", err)
		os.Exit(1)
	}

	if len(devices) == 0 {
		fmt.Printf("No bridges with USB ID %s found\n", id)
		os.Exit(0)
	}

	fmt.Printf("Found %d bridge(s):\n", len(devices))
	fmt.Println()

	for i, device := range devices {
		defer device.Close()

		if *reset {
			resetBridge(i, device)
			continue
		}
		if !*verbose {
			fmt.Printf("  #%d  %s  %d:%d\n", i, device.Serial, device.Bus, device.Address)
			continue
		}

		fmt.Printf("Device #%d:\n", i)
		fmt.Printf("  Serial:       %s\n", device.Serial)
		fmt.Printf("  Bus:Address:  %d:%d\n", device.Bus, device.Address)
		fmt.Printf("  Manufacturer: %s\n", device.Manufacturer)
		fmt.Printf("  Product:      %s\n", device.Product)

		start := time.Now()
		if err := device.Ping([]byte("lgwcal")); err != nil {
			fmt.Printf("  Ping:         (error: %v)\n", err)
		} else {
			fmt.Printf("  Ping:         ok in %v\n", time.Since(start).Round(time.Microsecond))
		}
		fmt.Println()
	}

	if !*verbose && !*reset {
		fmt.Println()
		fmt.Println("Use -d flag with other tools to select device:")
		fmt.Println("  -d \"#0\"      Select by index")
		fmt.Println("  -d \"1:10\"    Select by bus:address")
		fmt.Println("  -d \"009a\"    Select by serial (if unique)")
	}
}

func resetBridge(i int, device *usbport.Device) {
	fmt.Printf("  #%d  %s: ", i, device.Serial)
	err := device.Reset()
	if err == nil {
		fmt.Println("reset OK")
		return
	}
	fmt.Printf("%v, trying USB reset: ", err)
	if err := device.ResetUSB(); err != nil {
		fmt.Printf("failed: %v\n", err)
		return
	}
	fmt.Println("OK")
}
