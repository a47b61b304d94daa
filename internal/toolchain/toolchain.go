// Package toolchain drives the external echosounder processing tool.
//
// All calibration, binning, detection, and rendering math lives in that tool;
// this package only knows how to spell each operation as a command line.
package toolchain

import (
	"context"
	"fmt"
	"strconv"

	"github.com/wflyer/echopipe/internal/execx"
)

// DefaultCommand is the tool invoked when the deployment config does not
// name one.
const DefaultCommand = "echotool"

// Tool invokes one external program for every processing operation.
type Tool struct {
	argv   []string // program plus any configured leading arguments
	runner *execx.Runner
}

// New parses the configured command line and returns a Tool that executes it
// through the given runner.
func New(cmdline string, runner *execx.Runner) (*Tool, error) {
	argv, err := execx.ParseCommandLine(cmdline)
	if err != nil {
		return nil, fmt.Errorf("toolchain: parse command %q: %w", cmdline, err)
	}
	return &Tool{argv: argv, runner: runner}, nil
}

// Available reports whether the tool's program can be found on PATH.
func (t *Tool) Available() bool {
	return t.runner.Available(t.argv[0])
}

// Program returns the program name the tool resolves against PATH.
func (t *Tool) Program() string { return t.argv[0] }

func (t *Tool) run(ctx context.Context, args ...string) error {
	full := append(append([]string(nil), t.argv[1:]...), args...)
	return t.runner.Run(ctx, t.argv[0], full...)
}

// ConvertParams configure a raw-to-store conversion.
type ConvertParams struct {
	SonarModel string
	UseSwap    bool
}

// Convert parses a raw instrument file and writes the converted store.
func (t *Tool) Convert(ctx context.Context, rawFile, savePath string, p ConvertParams) error {
	args := []string{"convert", "--sonar-model", p.SonarModel}
	if !p.UseSwap {
		args = append(args, "--no-swap")
	}
	args = append(args, "--output", savePath, rawFile)
	return t.run(ctx, args...)
}

// SvParams configure backscatter calibration.
type SvParams struct {
	WaveformMode string  // "CW" or "BB"
	EncodeMode   string  // "complex" or "power"
	DepthOffset  float64 // meters added when deriving depth
}

// ComputeSv calibrates a converted store to volume backscattering strength.
func (t *Tool) ComputeSv(ctx context.Context, storePath, savePath string, p SvParams) error {
	return t.run(ctx,
		"sv",
		"--waveform-mode", p.WaveformMode,
		"--encode-mode", p.EncodeMode,
		"--depth-offset", formatFloat(p.DepthOffset),
		"--output", savePath,
		storePath,
	)
}

// MVBSParams configure the windowed-mean aggregation.
type MVBSParams struct {
	PingBin  string // e.g. "5s"
	RangeBin string // e.g. "1.0m"
	Threads  int    // threads per worker inside the tool, 0 for its default
}

// ComputeMVBS aggregates an Sv store into mean volume backscattering strength.
func (t *Tool) ComputeMVBS(ctx context.Context, svPath, mvbsPath string, p MVBSParams) error {
	args := []string{
		"mvbs",
		"--ping-bin", p.PingBin,
		"--range-bin", p.RangeBin,
	}
	if p.Threads > 0 {
		args = append(args, "--threads", strconv.Itoa(p.Threads))
	}
	args = append(args, "--output", mvbsPath, svPath)
	return t.run(ctx, args...)
}

// Combine merges sorted converted stores into a single combined store.
func (t *Tool) Combine(ctx context.Context, storePaths []string, outPath string) error {
	args := []string{"combine", "--output", outPath}
	args = append(args, storePaths...)
	return t.run(ctx, args...)
}

// BottomParams configure seafloor detection.
type BottomParams struct {
	Channel     string  // instrument channel name to detect on
	ThresholdDB float64 // echo strength cutoff
	OffsetM     float64 // meters added above the detected floor
	SkipBins    int     // range bins ignored below the surface
}

// DetectBottom finds the seafloor line in an Sv store and writes a tabular
// depth file to outPath.
func (t *Tool) DetectBottom(ctx context.Context, svPath, outPath string, p BottomParams) error {
	return t.run(ctx,
		"bottom",
		"--channel", p.Channel,
		"--threshold", formatFloat(p.ThresholdDB),
		"--offset", formatFloat(p.OffsetM),
		"--skip-bins", strconv.Itoa(p.SkipBins),
		"--output", outPath,
		svPath,
	)
}

// PlotParams configure one rendered echogram.
type PlotParams struct {
	Channel int     // channel index within the store
	MinDB   float64 // display floor
	MaxDB   float64 // display ceiling
	Title   string
}

// Plot renders one echogram image from the given MVBS stores, concatenated
// along ping time inside the tool.
func (t *Tool) Plot(ctx context.Context, mvbsPaths []string, imagePath string, p PlotParams) error {
	args := []string{
		"plot",
		"--channel", strconv.Itoa(p.Channel),
		"--vmin", formatFloat(p.MinDB),
		"--vmax", formatFloat(p.MaxDB),
		"--title", p.Title,
		"--output", imagePath,
	}
	args = append(args, mvbsPaths...)
	return t.run(ctx, args...)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
