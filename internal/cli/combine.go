package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wflyer/echopipe/internal/deploy"
	"github.com/wflyer/echopipe/internal/discover"
)

// CombineOptions holds flags for the combine command.
type CombineOptions struct {
	*RootOptions
	RootDir string
	Out     string
	Tool    string
}

// NewCombineCommand creates the combine command.
func NewCombineCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CombineOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "combine [inputs...]",
		Short: "Merge converted stores into one combined store",
		Long: `Combine converted array stores into a single store covering the whole
deployment leg. Inputs are merged in sorted (time) order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCombine(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RootDir, "root-dir", "", "deployment root containing a converted/ directory")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "combined store path (default echodata_combined.zarr next to the inputs)")
	cmd.Flags().StringVar(&opts.Tool, "tool", "", "processing tool command line (default from config)")

	return cmd
}

func runCombine(opts *CombineOptions, args []string, cmd *cobra.Command) error {
	inputs, err := stageInputs(args, opts.RootDir, deploy.Layout.ConvertedGlob, discover.FindDirs)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No input store directories found.")
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing done.")
		return nil
	}

	out := opts.Out
	if out == "" {
		base := filepath.Dir(filepath.Dir(inputs[0]))
		if opts.RootDir != "" {
			base = opts.RootDir
		}
		out = filepath.Join(base, "echodata_combined.zarr")
	}

	cfg, err := stageConfig(opts.RootDir)
	if err != nil {
		return err
	}
	tool, err := newTool(cfg, opts.Tool, opts.RootOptions)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	fmt.Fprintf(cmd.OutOrStdout(), "Combining %d stores into %s\n", len(inputs), out)
	if err := tool.Combine(ctx, inputs, out); err != nil {
		return WrapExitError(ExitFailure, "combine failed", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
	return nil
}
