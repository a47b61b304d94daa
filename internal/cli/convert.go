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

// ConvertOptions holds flags for the convert command.
type ConvertOptions struct {
	*RootOptions
	RootDir     string
	SaveDir     string
	SonarModel  string
	NoSwap      bool
	Workers     int
	MissingOnly bool
	Tool        string
}

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConvertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "convert [inputs...]",
		Short: "Convert raw instrument files to array stores",
		Long: `Convert .raw echosounder files to converted array stores.

Inputs are file paths or glob patterns. Alternatively --root-dir names a
deployment root whose raw/ subdirectory is scanned. Output names keep the
input stem: raw/250501WF-D20250501-T181250.raw becomes
converted/250501WF-D20250501-T181250.zarr.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RootDir, "root-dir", "", "deployment root containing a raw/ directory")
	cmd.Flags().StringVarP(&opts.SaveDir, "out", "o", "../converted/", "output directory, relative to each input file")
	cmd.Flags().StringVar(&opts.SonarModel, "sonar-model", "", "sonar model for conversion (default from config: ek80)")
	cmd.Flags().BoolVar(&opts.NoSwap, "no-swap", false, "disable disk swap while opening raw files")
	cmd.Flags().IntVar(&opts.Workers, "workers", 4, "concurrent conversions")
	cmd.Flags().BoolVar(&opts.MissingOnly, "missing-only", false, "convert only inputs whose output does not exist yet")
	cmd.Flags().StringVar(&opts.Tool, "tool", "", "processing tool command line (default from config)")

	return cmd
}

func runConvert(opts *ConvertOptions, args []string, cmd *cobra.Command) error {
	inputs, err := stageInputs(args, opts.RootDir, deploy.Layout.RawGlob, discover.FindFiles)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No input .raw files found.")
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing done.")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Found %d raw files\n", len(inputs))

	cfg, err := stageConfig(opts.RootDir)
	if err != nil {
		return err
	}
	if opts.SonarModel == "" {
		opts.SonarModel = cfg.SonarModel
	}

	tool, err := newTool(cfg, opts.Tool, opts.RootOptions)
	if err != nil {
		return err
	}

	jobs := pipeline.MapJobs(inputs, opts.SaveDir, ".zarr")
	var skipped int
	if opts.MissingOnly {
		jobs, skipped = pipeline.FilterMissing(jobs)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	params := toolchain.ConvertParams{
		SonarModel: opts.SonarModel,
		UseSwap:    !opts.NoSwap,
	}
	runner := &pipeline.Runner{Workers: opts.Workers}
	stats := runner.Run(ctx, jobs, func(ctx context.Context, job pipeline.Job) error {
		return tool.Convert(ctx, job.Input, job.Output, params)
	})
	stats.Skipped += skipped

	fmt.Fprintf(cmd.OutOrStdout(), "Converted %d, skipped %d, failed %d\n",
		stats.Processed, stats.Skipped, stats.Failed)
	if stats.AnyFailed() {
		return NewExitError(ExitFailure, "some conversions failed")
	}
	return nil
}
