package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wflyer/echopipe/internal/deploy"
	"github.com/wflyer/echopipe/internal/discover"
	"github.com/wflyer/echopipe/internal/pipeline"
	"github.com/wflyer/echopipe/internal/toolchain"
)

// MVBSOptions holds flags for the mvbs command.
type MVBSOptions struct {
	*RootOptions
	RootDir      string
	OutDir       string
	PingBin      string
	RangeBin     string
	SkipExisting bool
	Workers      int
	Threads      int
	Tool         string
}

// NewMVBSCommand creates the mvbs command.
func NewMVBSCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MVBSOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mvbs [inputs...]",
		Short: "Aggregate Sv stores into mean volume backscattering strength",
		Long: `Calculate MVBS from Sv stores by subsampling into ping-time and
range bins and averaging each bin.

Inputs should be time contiguous. Output names rewrite the Sv suffix:
sv/seg_Sv.zarr becomes MVBS_zarr/seg_MVBS.zarr.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMVBS(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RootDir, "root-dir", "", "deployment root containing an sv/ directory")
	cmd.Flags().StringVar(&opts.OutDir, "out-dir", "../MVBS_zarr/", "output directory, relative to each input store")
	cmd.Flags().StringVar(&opts.PingBin, "ping-bin", "", "ping-time bin size (default from config: 5s)")
	cmd.Flags().StringVar(&opts.RangeBin, "range-bin", "", "range bin size (default from config: 1.0m)")
	cmd.Flags().BoolVar(&opts.SkipExisting, "skip-existing", false, "skip inputs whose MVBS output already exists")
	cmd.Flags().IntVar(&opts.Workers, "workers", 4, "concurrent aggregations")
	cmd.Flags().IntVar(&opts.Threads, "threads", 2, "threads per worker inside the processing tool")
	cmd.Flags().StringVar(&opts.Tool, "tool", "", "processing tool command line (default from config)")

	return cmd
}

func runMVBS(opts *MVBSOptions, args []string, cmd *cobra.Command) error {
	inputs, err := stageInputs(args, opts.RootDir, deploy.Layout.SvGlob, discover.FindDirs)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No input Sv stores found.")
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing done.")
		return nil
	}

	cfg, err := stageConfig(opts.RootDir)
	if err != nil {
		return err
	}
	if opts.PingBin == "" {
		opts.PingBin = cfg.PingBin
	}
	if opts.RangeBin == "" {
		opts.RangeBin = cfg.RangeBin
	}

	tool, err := newTool(cfg, opts.Tool, opts.RootOptions)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Found %d Sv stores\n", len(inputs))
	fmt.Fprintf(cmd.OutOrStdout(), "Subsampling into ping bins of size %s, and range bins of size %s\n",
		opts.PingBin, opts.RangeBin)

	jobs := make([]pipeline.Job, 0, len(inputs))
	for _, in := range inputs {
		jobs = append(jobs, pipeline.Job{Input: in, Output: pipeline.MVBSOutputPath(in, opts.OutDir)})
	}
	var skipped int
	if opts.SkipExisting {
		jobs, skipped = pipeline.FilterMissing(jobs)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	params := toolchain.MVBSParams{
		PingBin:  opts.PingBin,
		RangeBin: opts.RangeBin,
		Threads:  opts.Threads,
	}
	start := time.Now()
	runner := &pipeline.Runner{Workers: opts.Workers}
	stats := runner.Run(ctx, jobs, func(ctx context.Context, job pipeline.Job) error {
		// A half-written store from an interrupted run must not survive.
		if err := os.RemoveAll(job.Output); err != nil {
			return fmt.Errorf("remove stale output: %w", err)
		}
		return tool.ComputeMVBS(ctx, job.Input, job.Output, params)
	})
	stats.Skipped += skipped

	fmt.Fprintf(cmd.OutOrStdout(), "Aggregated %d, skipped %d, failed %d\n",
		stats.Processed, stats.Skipped, stats.Failed)
	fmt.Fprintf(cmd.OutOrStdout(), "Calculation completed in %.2f seconds\n", time.Since(start).Seconds())
	if stats.AnyFailed() {
		return NewExitError(ExitFailure, "some aggregations failed")
	}
	return nil
}
