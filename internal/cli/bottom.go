package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wflyer/echopipe/internal/deploy"
	"github.com/wflyer/echopipe/internal/discover"
	"github.com/wflyer/echopipe/internal/pipeline"
	"github.com/wflyer/echopipe/internal/toolchain"
)

// BottomOptions holds flags for the bottom command.
type BottomOptions struct {
	*RootOptions
	RootDir     string
	OutDir      string
	Channel     string
	ThresholdDB float64
	OffsetM     float64
	SkipBins    int
	Workers     int
	Tool        string
}

// NewBottomCommand creates the bottom command.
func NewBottomCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BottomOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bottom [inputs...]",
		Short: "Detect the seafloor line in Sv stores",
		Long: `Detect the one-dimensional seafloor depth line in each Sv store and
write a tabular depth file per input. Depth files feed the depth command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBottom(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RootDir, "root-dir", "", "deployment root containing an sv/ directory")
	cmd.Flags().StringVar(&opts.OutDir, "out-dir", "../depth/", "output directory, relative to each input store")
	cmd.Flags().StringVar(&opts.Channel, "channel", "", "instrument channel to detect on (default from config)")
	cmd.Flags().Float64Var(&opts.ThresholdDB, "threshold", -40, "echo strength cutoff in dB")
	cmd.Flags().Float64Var(&opts.OffsetM, "offset", 0.5, "meters added above the detected floor")
	cmd.Flags().IntVar(&opts.SkipBins, "skip-bins", 300, "range bins ignored below the surface")
	cmd.Flags().IntVar(&opts.Workers, "workers", 4, "concurrent detections")
	cmd.Flags().StringVar(&opts.Tool, "tool", "", "processing tool command line (default from config)")

	return cmd
}

func runBottom(opts *BottomOptions, args []string, cmd *cobra.Command) error {
	inputs, err := stageInputs(args, opts.RootDir, deploy.Layout.SvGlob, discover.FindDirs)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No input Sv stores found.")
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing done.")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Found %d Sv stores\n", len(inputs))

	cfg, err := stageConfig(opts.RootDir)
	if err != nil {
		return err
	}
	if opts.Channel == "" {
		opts.Channel = cfg.Bottom.Channel
	}

	tool, err := newTool(cfg, opts.Tool, opts.RootOptions)
	if err != nil {
		return err
	}

	jobs := pipeline.MapJobs(inputs, opts.OutDir, ".csv")

	ctx, cancel := signalContext(cmd)
	defer cancel()

	params := toolchain.BottomParams{
		Channel:     opts.Channel,
		ThresholdDB: opts.ThresholdDB,
		OffsetM:     opts.OffsetM,
		SkipBins:    opts.SkipBins,
	}
	start := time.Now()
	runner := &pipeline.Runner{Workers: opts.Workers}
	stats := runner.Run(ctx, jobs, func(ctx context.Context, job pipeline.Job) error {
		return tool.DetectBottom(ctx, job.Input, job.Output, params)
	})

	fmt.Fprintf(cmd.OutOrStdout(), "Detected %d, failed %d\n", stats.Processed, stats.Failed)
	fmt.Fprintf(cmd.OutOrStdout(), "Calculation completed in %.2f seconds\n", time.Since(start).Seconds())
	if stats.AnyFailed() {
		return NewExitError(ExitFailure, "some detections failed")
	}
	return nil
}
