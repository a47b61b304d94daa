package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wflyer/echopipe/internal/deploy"
	"github.com/wflyer/echopipe/internal/discover"
	"github.com/wflyer/echopipe/internal/pipeline"
	"github.com/wflyer/echopipe/internal/toolchain"
)

// SvOptions holds flags for the sv command.
type SvOptions struct {
	*RootOptions
	RootDir      string
	SaveDir      string
	EncodeMode   string
	WaveformMode string
	DepthOffset  float64
	Workers      int
	MissingOnly  bool
	Tool         string
}

var (
	validEncodeModes   = []string{"complex", "power"}
	validWaveformModes = []string{"CW", "BB"}
)

// NewSvCommand creates the sv command.
func NewSvCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SvOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sv [inputs...]",
		Short: "Calibrate converted stores to volume backscattering strength",
		Long: `Calculate Sv from converted array stores.

Inputs are converted store directories or glob patterns, or --root-dir names
a deployment root whose converted/ subdirectory is scanned. A depth
coordinate is added with the configured transducer offset.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSv(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RootDir, "root-dir", "", "deployment root containing a converted/ directory")
	cmd.Flags().StringVarP(&opts.SaveDir, "out", "o", "../sv/", "output directory, relative to each input store")
	cmd.Flags().StringVar(&opts.EncodeMode, "encode-mode", "complex", "encoding mode of the instrument data (complex|power)")
	cmd.Flags().StringVar(&opts.WaveformMode, "waveform-mode", "CW", "waveform mode for calibration (CW|BB)")
	cmd.Flags().Float64Var(&opts.DepthOffset, "depth-offset", 1.0, "meters added when computing depth")
	cmd.Flags().IntVar(&opts.Workers, "workers", 4, "concurrent calibrations")
	cmd.Flags().BoolVar(&opts.MissingOnly, "missing-only", false, "calibrate only inputs whose output does not exist yet")
	cmd.Flags().StringVar(&opts.Tool, "tool", "", "processing tool command line (default from config)")

	return cmd
}

func runSv(opts *SvOptions, args []string, cmd *cobra.Command) error {
	if !contains(validEncodeModes, opts.EncodeMode) {
		return NewExitError(ExitUsage, fmt.Sprintf("invalid encode mode %q: must be one of %v", opts.EncodeMode, validEncodeModes))
	}
	if !contains(validWaveformModes, opts.WaveformMode) {
		return NewExitError(ExitUsage, fmt.Sprintf("invalid waveform mode %q: must be one of %v", opts.WaveformMode, validWaveformModes))
	}

	inputs, err := stageInputs(args, opts.RootDir, deploy.Layout.ConvertedGlob, discover.FindDirs)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No input store directories found.")
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing done.")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Found %d converted stores\n", len(inputs))

	cfg, err := stageConfig(opts.RootDir)
	if err != nil {
		return err
	}
	tool, err := newTool(cfg, opts.Tool, opts.RootOptions)
	if err != nil {
		return err
	}

	jobs := pipeline.MapJobs(inputs, opts.SaveDir, ".sv")
	var skipped int
	if opts.MissingOnly {
		jobs, skipped = pipeline.FilterMissing(jobs)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	params := toolchain.SvParams{
		WaveformMode: opts.WaveformMode,
		EncodeMode:   opts.EncodeMode,
		DepthOffset:  opts.DepthOffset,
	}
	runner := &pipeline.Runner{Workers: opts.Workers}
	stats := runner.Run(ctx, jobs, func(ctx context.Context, job pipeline.Job) error {
		return tool.ComputeSv(ctx, job.Input, job.Output, params)
	})
	stats.Skipped += skipped

	fmt.Fprintf(cmd.OutOrStdout(), "Calibrated %d, skipped %d, failed %d\n",
		stats.Processed, stats.Skipped, stats.Failed)
	if stats.AnyFailed() {
		return NewExitError(ExitFailure, "some calibrations failed")
	}
	return nil
}

func contains(valid []string, v string) bool {
	for _, c := range valid {
		if c == v {
			return true
		}
	}
	return false
}
