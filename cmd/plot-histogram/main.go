// plot-histogram renders an rssi-histogram log as a PNG heatmap: one column
// per channel, one row per dBm level, color by sample share
package main

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"github.com/spf13/pflag"

	"github.com/herlein/lgwcal/pkg/rssi"
)

var (
	inputFile  = pflag.StringP("input", "i", "", "Input log file from rssi-histogram")
	outputFile = pflag.StringP("output", "o", "rssi_histogram.png", "Output PNG file")
	cell       = pflag.Int("cell", 4, "Pixel size of one channel x dBm cell")
	logScale   = pflag.Bool("log", false, "Logarithmic color scale")
	colormap   = pflag.String("cmap", "viridis", "Colormap: viridis, turbo, grayscale")
	markers    = pflag.Bool("percentiles", true, "Mark the 20/50/80% levels of every channel")
)

func main() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -i rssi_histogram.csv [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Generate an RSSI heatmap PNG from rssi-histogram output\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -i rssi_histogram.csv\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -i rssi_histogram.csv -o eu868.png --log --cmap turbo\n", os.Args[0])
	}
	pflag.Parse()

	if *inputFile == "" {
		fmt.Fprintln(os.Stderr, "Error: -i input file required")
		pflag.Usage()
		os.Exit(1)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	file, err := os.Open(*inputFile)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	defer file.Close()

	lines, err := rssi.ReadReport(file)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return fmt.Errorf("no channels in %s", *inputFile)
	}
	if *cell < 1 {
		return fmt.Errorf("cell must be at least 1")
	}

	// every line shares one offset when written by a single sweep
	offset := lines[0].Histogram.OffsetDBm
	for _, l := range lines[1:] {
		if l.Histogram.OffsetDBm != offset {
			return fmt.Errorf("mixed RSSI offsets %d and %d", offset, l.Histogram.OffsetDBm)
		}
	}

	fmt.Printf("Loaded %d channels\n", len(lines))
	fmt.Printf("Frequency range: %.3f - %.3f MHz\n",
		float64(lines[0].FrequencyHz)/1e6, float64(lines[len(lines)-1].FrequencyHz)/1e6)

	cmap := getColormap(*colormap)
	w, h := len(lines)**cell, rssi.NumBins**cell
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	marker := color.RGBA{255, 255, 255, 255}

	// frequency left to right, highest level at the top
	for x, l := range lines {
		total := l.Histogram.Total()
		var report rssi.Report
		if total > 0 {
			report, _ = l.Histogram.Percentiles(total)
		}
		for code, count := range l.Histogram.Bins {
			var share float64
			if total > 0 {
				share = float64(count) / float64(total)
			}
			if *logScale && share > 0 {
				// 1e-4 .. 1 mapped to 0 .. 1
				share = clamp(1+math.Log10(share)/4, 0, 1)
			}
			c := cmap(share)
			if *markers && isMarked(report, code) {
				c = marker
			}
			fill(img, x**cell, (rssi.NumBins-1-code)**cell, *cell, c)
		}
	}

	outFile, err := os.Create(*outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer outFile.Close()

	if err := png.Encode(outFile, img); err != nil {
		return fmt.Errorf("failed to encode PNG: %w", err)
	}

	fmt.Printf("Wrote %dx%d heatmap to %s\n", w, h, *outputFile)
	fmt.Printf("Level scale: %d to %d dBm\n", offset, offset+rssi.NumBins-1)
	return nil
}

func isMarked(r rssi.Report, code int) bool {
	for _, t := range []rssi.Threshold{r.P20, r.P50, r.P80} {
		if t.Set && t.Code == code {
			return true
		}
	}
	return false
}

func fill(img *image.RGBA, x0, y0, size int, c color.RGBA) {
	for y := y0; y < y0+size; y++ {
		for x := x0; x < x0+size; x++ {
			img.SetRGBA(x, y, c)
		}
	}
}

// Colormap function type
type colormapFunc func(t float64) color.RGBA

func getColormap(name string) colormapFunc {
	switch name {
	case "turbo":
		return turboColormap
	case "grayscale":
		return grayscaleColormap
	default:
		return viridisColormap
	}
}

func grayscaleColormap(t float64) color.RGBA {
	v := uint8(t * 255)
	return color.RGBA{v, v, v, 255}
}

// Viridis colormap (perceptually uniform)
func viridisColormap(t float64) color.RGBA {
	r := uint8(clamp((-0.0029*t*t*t+1.2284*t*t-0.2547*t+0.2873)*255, 0, 255))
	g := uint8(clamp((0.0168*t*t*t-0.5523*t*t+1.1519*t+0.0058)*255, 0, 255))
	b := uint8(clamp((0.4401*t*t*t-1.4066*t*t+0.6717*t+0.3314)*255, 0, 255))
	return color.RGBA{r, g, b, 255}
}

// turboColormap interpolates four segments of the turbo palette
func turboColormap(t float64) color.RGBA {
	stops := [5][3]float64{
		{0.18995, 0.07176, 0.23217},
		{0.50344, 0.32263, 0.72595},
		{0.96096, 0.73552, 0.22168},
		{0.94505, 0.91272, 0.09430},
		{0.47960, 0.01583, 0.01055},
	}
	seg := int(t * 4)
	if seg > 3 {
		seg = 3
	}
	f := t*4 - float64(seg)
	var rgb [3]uint8
	for i := range rgb {
		v := stops[seg][i] + f*(stops[seg+1][i]-stops[seg][i])
		rgb[i] = uint8(clamp(v*255, 0, 255))
	}
	return color.RGBA{rgb[0], rgb[1], rgb[2], 255}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
