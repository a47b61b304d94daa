// Package deploy describes a deployment's on-disk layout and configuration.
//
// A deployment root holds one subdirectory per pipeline product:
//
//	root/
//	    raw/          instrument .raw files
//	    converted/    converted array stores
//	    sv/           calibrated Sv stores
//	    MVBS_zarr/    aggregated MVBS stores
//	    depth/        tabular seafloor depth files
//	    plots/        rendered echograms
//
// An optional echopipe.yaml at the root overrides stage defaults.
package deploy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is looked up in the deployment root.
const ConfigFileName = "echopipe.yaml"

// Layout resolves product directories under a deployment root.
type Layout struct {
	Root string
}

func (l Layout) RawDir() string       { return filepath.Join(l.Root, "raw") }
func (l Layout) ConvertedDir() string { return filepath.Join(l.Root, "converted") }
func (l Layout) SvDir() string        { return filepath.Join(l.Root, "sv") }
func (l Layout) MVBSDir() string      { return filepath.Join(l.Root, "MVBS_zarr") }
func (l Layout) DepthDir() string     { return filepath.Join(l.Root, "depth") }
func (l Layout) PlotsDir() string     { return filepath.Join(l.Root, "plots") }

// RawGlob matches the deployment's raw instrument files.
func (l Layout) RawGlob() string { return filepath.Join(l.RawDir(), "*.raw") }

// ConvertedGlob matches the deployment's converted stores.
func (l Layout) ConvertedGlob() string { return filepath.Join(l.ConvertedDir(), "*.zarr") }

// SvGlob matches the deployment's Sv stores.
func (l Layout) SvGlob() string { return filepath.Join(l.SvDir(), "*.sv") }

// ChannelRange sets the display window for one echogram channel.
type ChannelRange struct {
	Channel int     `yaml:"channel"`
	MinDB   float64 `yaml:"vmin"`
	MaxDB   float64 `yaml:"vmax"`
	Label   string  `yaml:"label"`
}

// UploadConfig names the archive destination for raw files.
type UploadConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
	Region string `yaml:"region"`
}

// BottomConfig holds seafloor detection parameters.
type BottomConfig struct {
	Channel     string  `yaml:"channel"`
	ThresholdDB float64 `yaml:"threshold_db"`
	OffsetM     float64 `yaml:"offset_m"`
	SkipBins    int     `yaml:"skip_bins"`
}

// Config is the deployment configuration.
type Config struct {
	ToolCommand string         `yaml:"tool_command"`
	SonarModel  string         `yaml:"sonar_model"`
	PingBin     string         `yaml:"ping_bin"`
	RangeBin    string         `yaml:"range_bin"`
	Channels    []ChannelRange `yaml:"channels"`
	Bottom      BottomConfig   `yaml:"bottom"`
	Upload      UploadConfig   `yaml:"upload"`
}

// DefaultConfig returns the stage defaults used when no config file exists.
func DefaultConfig() Config {
	return Config{
		ToolCommand: "echotool",
		SonarModel:  "ek80",
		PingBin:     "5s",
		RangeBin:    "1.0m",
		Channels: []ChannelRange{
			{Channel: 0, MinDB: -80, MaxDB: -10, Label: "38 kHz"},
			{Channel: 1, MinDB: -60, MaxDB: -10, Label: "200 kHz"},
		},
		Bottom: BottomConfig{
			Channel:     "WBT Mini 278014-7 ES38-18|200-18C_ES",
			ThresholdDB: -40,
			OffsetM:     0.5,
			SkipBins:    300,
		},
	}
}

// LoadConfig reads echopipe.yaml under root, layered over the defaults. A
// missing file is not an error; a malformed one is.
func LoadConfig(root string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(filepath.Join(root, ConfigFileName))
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", ConfigFileName, err)
	}
	return cfg, nil
}

// NewRunID returns a time-sortable identifier stamped on every log line of
// a pipeline run.
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}
