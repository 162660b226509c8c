// rssi-histogram sweeps a frequency range and records an RSSI histogram of
// every channel from the concentrator's capture RAM
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/herlein/lgwcal/pkg/concentrator"
	"github.com/herlein/lgwcal/pkg/config"
	"github.com/herlein/lgwcal/pkg/logging"
	"github.com/herlein/lgwcal/pkg/metrics"
	"github.com/herlein/lgwcal/pkg/sweep"
	"github.com/herlein/lgwcal/pkg/usbport"
)

var (
	fmin        = pflag.Uint32("fmin", sweep.DefaultFMinHz, "Start frequency in Hz")
	fmax        = pflag.Uint32("fmax", sweep.DefaultFMaxHz, "Stop frequency in Hz")
	fstep       = pflag.Uint32("fstep", sweep.DefaultFStepHz, "Frequency resolution in Hz")
	logFile     = pflag.String("file", sweep.DefaultOutputFile, "Histogram log file")
	captures    = pflag.IntP("captures", "n", sweep.DefaultCaptures, "Number of RSSI captures of 4096 samples per channel")
	period      = pflag.IntP("period", "p", sweep.DefaultCapturePeriod, "Capture rate divider (32 MHz/p)")
	rssiOffset  = pflag.Int32("rssi-offset", 0, "dBm of RSSI code 0 (0 = radio default)")
	threshold   = pflag.Int32("threshold", -90, "Report channels whose 80% level reaches this dBm as busy")
	confFile    = pflag.StringP("config", "c", "", "Concentrator configuration providing radio_settings")
	firmware    = pflag.String("agc-firmware", "", "AGC firmware image to load (8192 bytes)")
	transport   = pflag.StringP("transport", "t", concentrator.TransportSPI, "Transport: spi, usb or sim")
	regMap      = pflag.String("regmap", "", "Register definition file (YAML or JSON)")
	spiPort     = pflag.String("spi-port", "", "SPI port name (empty = first available)")
	usbID       = pflag.String("usb-id", "", "USB bridge vid:pid in hex")
	deviceSel   = pflag.StringP("device", "d", "", usbport.DeviceFlagUsage())
	metricsAddr = pflag.String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9100)")
	logLevel    = pflag.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	logFormat   = pflag.String("log-format", "console", "Log format: console or json")
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "RSSI histogram sweep for SX1301 concentrators\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --regmap sx1301.yaml                       # 863-870 MHz in 50 kHz steps\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --fmin 902000000 --fmax 928000000 -n 30 --regmap sx1301.yaml\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -t usb --usb-id 0483:5740 -d \"#0\" --regmap sx1301.yaml\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -t sim --file sim.csv                      # No hardware\n", os.Args[0])
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

	cfg := sweep.DefaultConfig()
	cfg.FMinHz = *fmin
	cfg.FMaxHz = *fmax
	cfg.FStepHz = *fstep
	cfg.Captures = *captures
	cfg.CapturePeriod = *period
	cfg.OffsetDBm = *rssiOffset
	if err := cfg.Validate(); err != nil {
		return err
	}

	var file *config.File
	if *confFile != "" {
		file, err = config.LoadFromFile(*confFile)
		if err != nil {
			return err
		}
		log.Debug().Strs("keys", file.SX1301.Ignored()).Msg("ignoring SX1301_conf entries")
	}

	var image []byte
	if *firmware != "" {
		image, err = os.ReadFile(*firmware)
		if err != nil {
			return fmt.Errorf("failed to read AGC firmware: %w", err)
		}
	}

	handle, err := concentrator.Open(concentrator.Options{
		Transport: *transport,
		RegMap:    *regMap,
		SPIPort:   *spiPort,
		USBID:     *usbID,
		Device:    usbport.DeviceSelector(*deviceSel),
	}, sweep.Registers...)
	if err != nil {
		return err
	}
	defer handle.Close()
	log.Info().Str("transport", *transport).Str("device", handle.Name).Msg("connected")

	runner, err := sweep.New(handle.Port, cfg)
	if err != nil {
		return err
	}
	runner.SetLogger(log)
	if file != nil {
		runner.SetRadioSettings(file.RadioSettings())
	}
	if err := runner.SetFirmware(image); err != nil {
		return err
	}

	if *metricsAddr != "" {
		collector, err := metrics.New(nil)
		if err != nil {
			return err
		}
		runner.SetMetrics(collector)
		go serveMetrics(log, *metricsAddr, collector)
	}

	out, err := os.Create(*logFile)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer out.Close()
	w := bufio.NewWriter(out)
	defer w.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\nConfiguration:\n")
	fmt.Printf("  Radio:      %s\n", runner.Chip())
	fmt.Printf("  Range:      %.3f - %.3f MHz\n", float64(cfg.FMinHz)/1e6, float64(cfg.FMaxHz)/1e6)
	fmt.Printf("  Step:       %.3f kHz (%d channels)\n", float64(cfg.FStepHz)/1e3, cfg.Steps())
	fmt.Printf("  Captures:   %d x 4096 samples at %.3f kHz\n", cfg.Captures, cfg.CaptureRate()/1e3)
	fmt.Printf("  Output:     %s\n", *logFile)
	fmt.Println()

	if err := runner.Init(); err != nil {
		return fmt.Errorf("init failed: %w", err)
	}
	defer func() {
		if err := runner.Shutdown(); err != nil {
			log.Error().Err(err).Msg("failed to stop concentrator")
		}
	}()

	fmt.Println(" Frequency (MHz) |  20% |  50% |  80%")
	fmt.Println("-----------------+------+------+------")
	cfg.OnStep = func(s sweep.Step) {
		if s.Skipped {
			fmt.Printf(" %15.3f | PLL lock failed, skipped\n", float64(s.FrequencyHz)/1e6)
			return
		}
		fmt.Printf(" %15.3f | %4v | %4v | %4v\n",
			float64(s.FrequencyHz)/1e6, s.Report.P20, s.Report.P50, s.Report.P80)
		w.Flush()
	}

	steps, err := runner.Run(ctx, w)
	skipped := 0
	for _, s := range steps {
		if s.Skipped {
			skipped++
		}
	}

	fmt.Printf("\n--- Summary ---\n")
	fmt.Printf("Channels: %d of %d measured, %d skipped\n", len(steps)-skipped, cfg.Steps(), skipped)
	if floor, ok := sweep.NoiseFloor(steps); ok {
		fmt.Printf("Noise floor: %d dBm (median of channel medians)\n", floor)
	}
	if q, ok := sweep.Quietest(steps); ok {
		fmt.Printf("Quietest: %.3f MHz at %v dBm\n", float64(q.FrequencyHz)/1e6, q.Report.P50)
	}
	busy := sweep.FindBusy(steps, *threshold)
	fmt.Printf("Busy:     %d (80%% level at or above %d dBm)\n", len(busy), *threshold)
	for _, b := range busy {
		fmt.Printf("  %.3f MHz @ %d dBm\n", float64(b.FrequencyHz)/1e6, b.P80DBm)
	}
	if errors.Is(err, context.Canceled) {
		fmt.Println("Stopped.")
		return nil
	}
	return err
}

func serveMetrics(log zerolog.Logger, addr string, c *metrics.Collector) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	log.Info().Str("addr", addr).Msg("serving metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Error().Err(err).Msg("metrics server stopped")
	}
}
