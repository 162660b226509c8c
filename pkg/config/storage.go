package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tailscale/hujson"
	"gopkg.in/yaml.v2"
)

// Environment overrides
const (
	EnvRxBandwidthMax = "LGWCAL_RX_BANDWIDTH_MAX"
	EnvRSSIOffset     = "LGWCAL_RSSI_OFFSET"
)

// Parse decodes a configuration document. JSON may carry // and /* */
// comments; format is "json" or "yaml". Entries of SX1301_conf other than
// the channel objects are kept but not interpreted.
func Parse(data []byte, format string) (*File, error) {
	var f File
	switch format {
	case "json":
		std, err := StripComments(data)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(std, &f); err != nil {
			return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported configuration format %q", format)
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(&f); err != nil {
		return nil, err
	}
	f.applyDefaults()
	return &f, nil
}

// LoadFromFile reads a configuration file; the format follows the extension.
func LoadFromFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	f, err := Parse(data, formatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// SaveToFile writes configuration to path, creating parent directories.
func SaveToFile(configuration *File, path string) error {
	directory := filepath.Dir(path)
	if err := os.MkdirAll(directory, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	var data []byte
	var err error
	if formatOf(path) == "json" {
		data, err = json.MarshalIndent(configuration, "", "  ")
	} else {
		data, err = yaml.Marshal(configuration)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal configuration: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func applyEnvOverrides(f *File) error {
	if v := os.Getenv(EnvRxBandwidthMax); v != "" {
		bw, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRxBandwidthMax, err)
		}
		f.RxBandwidthMax = uint32(bw)
	}
	if v := os.Getenv(EnvRSSIOffset); v != "" {
		off, err := strconv.ParseInt(v, 10, 32)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRSSIOffset, err)
		}
		f.RSSIOffset = int32(off)
	}
	return nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

// StripComments turns a JSON document with // and /* */ comments or trailing
// commas into standard JSON. Comments become whitespace, so decoder offsets
// still map to source positions.
func StripComments(data []byte) ([]byte, error) {
	out, err := hujson.Standardize(append([]byte(nil), data...))
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return out, nil
}
