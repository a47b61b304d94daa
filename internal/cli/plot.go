package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wflyer/echopipe/internal/deploy"
	"github.com/wflyer/echopipe/internal/discover"
	"github.com/wflyer/echopipe/internal/pipeline"
	"github.com/wflyer/echopipe/internal/toolchain"
)

// PlotOptions holds flags for the plot command.
type PlotOptions struct {
	*RootOptions
	RootDir  string
	OutDir   string
	FromSv   bool
	PingBin  string
	RangeBin string
	Tool     string
}

// NewPlotCommand creates the plot command.
func NewPlotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlotOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plot [inputs...]",
		Short: "Render echograms from MVBS stores",
		Long: `Render one echogram image per configured channel. Inputs are MVBS
stores, concatenated along ping time before rendering. With --from-sv the
inputs are Sv stores and MVBS is computed first.

Default display ranges: 38 kHz at -80..-10 dB, 200 kHz at -60..-10 dB.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlot(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RootDir, "root-dir", "", "deployment root containing an sv/ directory")
	cmd.Flags().StringVar(&opts.OutDir, "out-dir", "", "directory for rendered images (default plots/ next to the inputs)")
	cmd.Flags().BoolVar(&opts.FromSv, "from-sv", false, "inputs are Sv stores; compute MVBS first")
	cmd.Flags().StringVar(&opts.PingBin, "ping-bin", "2s", "ping-time bin size when computing MVBS")
	cmd.Flags().StringVar(&opts.RangeBin, "range-bin", "0.5m", "range bin size when computing MVBS")
	cmd.Flags().StringVar(&opts.Tool, "tool", "", "processing tool command line (default from config)")

	return cmd
}

func runPlot(opts *PlotOptions, args []string, cmd *cobra.Command) error {
	// --root-dir implies Sv inputs; the deployment keeps no standing MVBS
	// at plotting bin sizes.
	if opts.RootDir != "" {
		opts.FromSv = true
	}
	inputs, err := stageInputs(args, opts.RootDir, deploy.Layout.SvGlob, discover.FindDirs)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No input stores found.")
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing done.")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Found %d stores\n", len(inputs))

	cfg, err := stageConfig(opts.RootDir)
	if err != nil {
		return err
	}
	tool, err := newTool(cfg, opts.Tool, opts.RootOptions)
	if err != nil {
		return err
	}

	outDir := opts.OutDir
	if outDir == "" {
		base := filepath.Dir(filepath.Dir(inputs[0]))
		if opts.RootDir != "" {
			base = opts.RootDir
		}
		outDir = filepath.Join(base, "plots")
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	mvbsInputs := inputs
	if opts.FromSv {
		mvbsInputs, err = plotMVBS(ctx, tool, inputs, outDir, opts)
		if err != nil {
			return err
		}
	}

	for _, ch := range cfg.Channels {
		image := filepath.Join(outDir, fmt.Sprintf("echogram_%s.png", sanitizeLabel(ch.Label)))
		fmt.Fprintf(cmd.OutOrStdout(), "Plot %s channel...\n", ch.Label)
		err := tool.Plot(ctx, mvbsInputs, image, toolchain.PlotParams{
			Channel: ch.Channel,
			MinDB:   ch.MinDB,
			MaxDB:   ch.MaxDB,
			Title:   ch.Label,
		})
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("rendering %s failed", ch.Label), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", image)
	}
	return nil
}

// plotMVBS computes ad hoc MVBS for plotting under outDir/mvbs and returns
// the computed store paths.
func plotMVBS(ctx context.Context, tool *toolchain.Tool, svInputs []string, outDir string, opts *PlotOptions) ([]string, error) {
	params := toolchain.MVBSParams{PingBin: opts.PingBin, RangeBin: opts.RangeBin}
	mvbsDir := filepath.Join(outDir, "mvbs")
	// Anchor the scratch directory so it is not resolved against each input.
	if abs, err := filepath.Abs(mvbsDir); err == nil {
		mvbsDir = abs
	}

	jobs := make([]pipeline.Job, 0, len(svInputs))
	for _, in := range svInputs {
		jobs = append(jobs, pipeline.Job{Input: in, Output: pipeline.MVBSOutputPath(in, mvbsDir)})
	}
	runner := &pipeline.Runner{Workers: 1} // keep ping-time order
	stats := runner.Run(ctx, jobs, func(ctx context.Context, job pipeline.Job) error {
		return tool.ComputeMVBS(ctx, job.Input, job.Output, params)
	})
	if stats.AnyFailed() {
		return nil, NewExitError(ExitFailure, "MVBS computation for plotting failed")
	}
	outputs := make([]string, 0, len(jobs))
	for _, job := range jobs {
		outputs = append(outputs, job.Output)
	}
	return outputs, nil
}

func sanitizeLabel(label string) string {
	s := strings.ToLower(label)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "/", "-")
	return s
}
