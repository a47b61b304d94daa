package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wflyer/echopipe/internal/depth"
	"github.com/wflyer/echopipe/internal/discover"
	"github.com/wflyer/echopipe/internal/store"
)

// DepthOptions holds flags for the depth command.
type DepthOptions struct {
	*RootOptions
	Resample string
	CSVPath  string
	DBPath   string
	Method   string
}

var validMethods = []string{"last", "interpolate"}

// NewDepthCommand creates the depth command.
func NewDepthCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DepthOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "depth FILES...",
		Short: "Combine, resample, and export seafloor depth files",
		Long: `Combine tabular depth files, subsample them at a regular interval, and
export the result as CSV and optionally a SQLite database.

Files are grouped by segment identifier (the stem prefix before the first
"-"); each segment's files are loaded together before resampling. Rows with
a missing position or depth are dropped.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDepth(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Resample, "resample", "r", "60s", "resampling interval")
	cmd.Flags().StringVar(&opts.CSVPath, "csv", "depth_output.csv", "CSV output path")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "also write a SQLite database at this path")
	cmd.Flags().StringVar(&opts.Method, "method", "last", "resampling method (last|interpolate)")

	return cmd
}

func runDepth(opts *DepthOptions, args []string, cmd *cobra.Command) error {
	interval, err := time.ParseDuration(opts.Resample)
	if err != nil || interval <= 0 {
		return NewExitError(ExitUsage, fmt.Sprintf("invalid resampling interval %q", opts.Resample))
	}
	var method depth.Method
	switch opts.Method {
	case "last":
		method = depth.Last
	case "interpolate":
		method = depth.Interpolate
	default:
		return NewExitError(ExitUsage, fmt.Sprintf("invalid method %q: must be one of %v", opts.Method, validMethods))
	}

	files := discover.FindFiles(args)
	if len(files) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No input depth files found.")
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing done.")
		return nil
	}

	segments, groups := depth.GroupBySegment(files)
	fmt.Fprintf(cmd.OutOrStdout(), "Found %d depth files in %d unique segments.\n", len(files), len(segments))

	var samples []depth.Sample
	failed := 0
	for _, segment := range segments {
		fmt.Fprintf(cmd.OutOrStdout(), "Processing segment %s\n", segment)
		var records []depth.Record
		ok := true
		for _, path := range groups[segment] {
			recs, err := depth.ReadFile(path)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "✗ Cannot read %s: %v\n", path, err)
				ok = false
				continue
			}
			records = append(records, recs...)
		}
		if !ok {
			failed++
		}
		samples = append(samples, depth.Resample(records, segment, interval, method)...)
	}

	csvFile, err := os.Create(opts.CSVPath)
	if err != nil {
		return WrapExitError(ExitFailure, "cannot create CSV output", err)
	}
	if err := depth.WriteCSV(csvFile, samples); err != nil {
		csvFile.Close()
		return WrapExitError(ExitFailure, "cannot write CSV output", err)
	}
	if err := csvFile.Close(); err != nil {
		return WrapExitError(ExitFailure, "cannot write CSV output", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows to %s\n", len(samples), opts.CSVPath)

	if opts.DBPath != "" {
		if err := writeDepthDB(cmd, opts.DBPath, samples); err != nil {
			return err
		}
	}

	if failed > 0 {
		return NewExitError(ExitFailure, "some depth files could not be read")
	}
	return nil
}

func writeDepthDB(cmd *cobra.Command, path string, samples []depth.Sample) error {
	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitFailure, "cannot open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := st.Reset(ctx); err != nil {
		return WrapExitError(ExitFailure, "cannot reset database", err)
	}
	if err := st.WriteSamples(ctx, samples); err != nil {
		return WrapExitError(ExitFailure, "cannot write database", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d rows to %s\n", len(samples), path)
	return nil
}
