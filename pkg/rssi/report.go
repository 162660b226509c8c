package rssi

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteReport writes one line: the frequency followed by a
// ", code+offset, count" pair for every bin.
func (h *Histogram) WriteReport(w io.Writer, freqHz uint32) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d", freqHz)
	for code, c := range h.Bins {
		fmt.Fprintf(bw, ", %d, %d", int32(code)+h.OffsetDBm, c)
	}
	bw.WriteString("\n")
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// ReportLine is a parsed report line.
type ReportLine struct {
	FrequencyHz uint32
	Histogram   Histogram
}

// ParseReportLine parses a line produced by WriteReport.
func ParseReportLine(line string) (*ReportLine, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) != 1+2*NumBins {
		return nil, fmt.Errorf("report line has %d fields, want %d", len(fields), 1+2*NumBins)
	}

	freq, err := strconv.ParseUint(strings.TrimSpace(fields[0]), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid frequency: %w", err)
	}
	out := &ReportLine{FrequencyHz: uint32(freq)}

	for i := 0; i < NumBins; i++ {
		dbm, err := strconv.ParseInt(strings.TrimSpace(fields[1+2*i]), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bin %d: invalid level: %w", i, err)
		}
		count, err := strconv.ParseUint(strings.TrimSpace(fields[2+2*i]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bin %d: invalid count: %w", i, err)
		}
		if i == 0 {
			out.Histogram.OffsetDBm = int32(dbm)
		} else if int32(dbm) != out.Histogram.OffsetDBm+int32(i) {
			return nil, fmt.Errorf("bin %d: level %d does not follow offset %d", i, dbm, out.Histogram.OffsetDBm)
		}
		out.Histogram.Bins[i] = count
	}
	return out, nil
}

// ReadReport parses every non-empty line of r.
func ReadReport(r io.Reader) ([]*ReportLine, error) {
	var lines []*ReportLine
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	n := 0
	for scanner.Scan() {
		n++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		line, err := ParseReportLine(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading report: %w", err)
	}
	return lines, nil
}
