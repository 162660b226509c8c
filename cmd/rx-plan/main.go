// rx-plan derives the radio front-end centers and channel IF offsets of a
// concentrator channel configuration, and optionally programs them
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/herlein/lgwcal/pkg/bandplan"
	"github.com/herlein/lgwcal/pkg/channels"
	"github.com/herlein/lgwcal/pkg/concentrator"
	"github.com/herlein/lgwcal/pkg/config"
	"github.com/herlein/lgwcal/pkg/logging"
	"github.com/herlein/lgwcal/pkg/metrics"
	"github.com/herlein/lgwcal/pkg/rxplan"
	"github.com/herlein/lgwcal/pkg/sx125x"
	"github.com/herlein/lgwcal/pkg/usbport"
)

var (
	confFile  = pflag.StringP("config", "c", config.DefaultConfigFile, "Concentrator channel configuration (JSON or YAML)")
	band      = pflag.StringP("band", "b", "", "Seed the multi-SF channels from a LoRaWAN band (e.g. EU868, US915)")
	first     = pflag.Int("first", 0, "First band uplink channel index used with --band")
	maxRxBW   = pflag.Uint32("max-rx-bw", 0, "Front-end bandwidth limit in Hz (0 = rx_bandwidth_max of the config)")
	saveFile  = pflag.StringP("save", "o", "", "Write the resulting configuration to this file")
	program   = pflag.Bool("program", false, "Program radios and IF registers on the concentrator")
	transport = pflag.StringP("transport", "t", concentrator.TransportSPI, "Transport: spi, usb or sim")
	regMap    = pflag.String("regmap", "", "Register definition file (YAML or JSON)")
	spiPort   = pflag.String("spi-port", "", "SPI port name (empty = first available)")
	usbID     = pflag.String("usb-id", "", "USB bridge vid:pid in hex")
	deviceSel = pflag.StringP("device", "d", "", usbport.DeviceFlagUsage())
	logLevel  = pflag.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	logFormat = pflag.String("log-format", "console", "Log format: console or json")
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Plan SX1301 front-ends and IF chains from a channel configuration\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -c global_conf.json                   # Print the plan\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -b US915 --first 8 -o us915_sb2.json  # Seed from sub-band 2\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -c global_conf.json --program --regmap sx1301.yaml\n", os.Args[0])
	}
	pflag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	log, err := logging.New(logging.Config{Level: *logLevel, Format: *logFormat})
	if err != nil {
		return err
	}

	file, err := loadOrSeed()
	if err != nil {
		return err
	}
	if keys := file.SX1301.Ignored(); len(keys) > 0 {
		log.Debug().Strs("keys", keys).Msg("ignoring SX1301_conf entries")
	}
	if *maxRxBW != 0 {
		file.RxBandwidthMax = *maxRxBW
	}

	result := channels.Plan(file.Channels(), file.PlanOptions())
	printPlan(file, result)

	ifErr := result.CheckIF()
	if ifErr != nil {
		fmt.Printf("\n%v\n", ifErr)
	}

	if *saveFile != "" {
		if err := config.SaveToFile(file, *saveFile); err != nil {
			return err
		}
		fmt.Printf("\nConfiguration saved to %s\n", *saveFile)
	}

	if !*program {
		return nil
	}
	if ifErr != nil {
		return ifErr
	}

	handle, err := concentrator.Open(concentrator.Options{
		Transport: *transport,
		RegMap:    *regMap,
		SPIPort:   *spiPort,
		USBID:     *usbID,
		Device:    usbport.DeviceSelector(*deviceSel),
	}, rxplan.Registers...)
	if err != nil {
		return err
	}
	defer handle.Close()

	collector, err := metrics.New(nil)
	if err != nil {
		return err
	}
	p := rxplan.New(handle.Port)
	p.SetLogger(log)
	p.SetMetrics(collector)

	mode := "NORMAL"
	if file.LoRaMAC {
		mode = "LORAMAC"
	}
	fmt.Printf("\nProgramming %s (%s mode)...\n", handle.Name, mode)

	status, err := p.Apply(result, rxplan.Options{Settings: file.RadioSettings(), LoRaMAC: file.LoRaMAC})
	for _, st := range status {
		if !st.Enabled {
			continue
		}
		state := "locked"
		if !st.Locked {
			state = "NOT LOCKED"
		}
		fmt.Printf("  Front-end %d: %.6f MHz, %s after %d attempt(s)\n",
			st.Index, float64(st.CenterHz)/1e6, state, st.Attempts)
	}
	if errors.Is(err, sx125x.ErrLockFailed) {
		return fmt.Errorf("radio setup incomplete: %w", err)
	}
	return err
}

// loadOrSeed reads the configuration file and replaces its multi-SF channels
// with the band seed. A missing file is fine when seeding.
func loadOrSeed() (*config.File, error) {
	file, err := config.LoadFromFile(*confFile)
	if err != nil {
		if *band == "" || !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		file = &config.File{
			RxBandwidthMax: config.DefaultRxBandwidthMaxHz,
			RSSIOffset:     config.DefaultRSSIOffset,
		}
	}
	if *band == "" {
		return file, nil
	}

	limit := file.RxBandwidthMax
	if *maxRxBW != 0 {
		limit = *maxRxBW
	}
	seed, err := bandplan.MultiSF(*band, *first, limit)
	if err != nil {
		return nil, err
	}
	for i := 0; i < channels.NumMultiSF; i++ {
		file.SetChannel(channels.LogicalChannel{Index: i, Log: true})
	}
	for _, ch := range seed {
		file.SetChannel(ch)
	}
	return file, nil
}

func printPlan(file *config.File, r *channels.Result) {
	chs := file.Channels()

	fmt.Printf("\nChannels:\n")
	fmt.Println(" Chan | Kind     | Radio | Freq (MHz)  | BW      | SF/Rate  | IF (Hz)")
	fmt.Println("------+----------+-------+-------------+---------+----------+---------")
	for _, ch := range chs {
		if !ch.Enabled {
			fmt.Printf(" %4d | %-8s | disabled\n", ch.Index, ch.Kind())
			continue
		}
		rate := "-"
		switch ch.Kind() {
		case channels.WidebandLoRa:
			rate = ch.SpreadFactor.String()
		case channels.FSK:
			rate = fmt.Sprintf("%d bps", ch.DatarateBps)
		}
		ifHz := "-"
		if cp, ok := r.Channel(ch.Index); ok {
			ifHz = fmt.Sprintf("%d", cp.IFHz)
		}
		fmt.Printf(" %4d | %-8s | %5d | %11.6f | %-7s | %-8s | %s\n",
			ch.Index, ch.Kind(), ch.FrontEnd, float64(ch.FrequencyHz)/1e6, ch.Bandwidth, rate, ifHz)
	}

	fmt.Printf("\nFront-ends:\n")
	for _, fe := range r.FrontEnds {
		if !fe.Enabled {
			fmt.Printf("  Radio %d: disabled\n", fe.Index)
			continue
		}
		fmt.Printf("  Radio %d: %s, center %.6f MHz, span %.6f - %.6f MHz (%d Hz), RSSI offset %d dBm\n",
			fe.Index, fe.Chip, float64(fe.CenterHz)/1e6,
			float64(fe.MinEdgeHz)/1e6, float64(fe.MaxEdgeHz)/1e6, fe.SpanHz(), fe.RSSIOffset)
	}

	if len(r.Warnings) > 0 {
		fmt.Printf("\nWarnings:\n")
		for _, w := range r.Warnings {
			fmt.Printf("  %s\n", w)
		}
	}
}
