package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wflyer/echopipe/internal/deploy"
	"github.com/wflyer/echopipe/internal/discover"
	"github.com/wflyer/echopipe/internal/upload"
)

// UploadOptions holds flags for the upload command.
type UploadOptions struct {
	*RootOptions
	RootDir  string
	Region   string
	Force    bool
	Progress bool
}

// NewUploadCommand creates the upload command.
func NewUploadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UploadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "upload s3://BUCKET[/PREFIX] FILES...",
		Short: "Archive files to object storage, skipping ones already there",
		Long: `Upload local files to an object storage prefix through the aws CLI.

Each file's basename becomes its key under the prefix. A key that already
exists is skipped. Every upload is verified with an existence re-check.
Exits nonzero if any file was invalid, failed to upload, or failed
verification; remaining files are still processed.

With --root-dir the destination comes from the deployment config's upload
section and every file under raw/ is archived; no positional arguments are
accepted in that mode.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if opts.RootDir != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.MinimumNArgs(2)(cmd, args)
		},
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RootDir, "root-dir", "", "deployment root; archive its raw/ files to the configured destination")
	cmd.Flags().StringVar(&opts.Region, "region", "", "storage region (default from config)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "upload even if the key already exists")
	cmd.Flags().BoolVar(&opts.Progress, "progress", false, "draw a per-file progress bar")

	return cmd
}

// stageUpload resolves the destination, region, and file list for a run.
func stageUpload(opts *UploadOptions, args []string) (upload.Destination, []string, error) {
	if opts.RootDir == "" {
		dest, err := upload.ParseDestination(args[0])
		if err != nil {
			return dest, nil, WrapExitError(ExitUsage, "bad destination", err)
		}
		return dest, args[1:], nil
	}

	cfg, err := stageConfig(opts.RootDir)
	if err != nil {
		return upload.Destination{}, nil, err
	}
	if cfg.Upload.Bucket == "" {
		return upload.Destination{}, nil, NewExitError(ExitUsage, "deployment config has no upload destination")
	}
	if opts.Region == "" {
		opts.Region = cfg.Upload.Region
	}
	// Route through the parser so a sloppy config prefix is normalized the
	// same way a positional URI would be.
	dest, err := upload.ParseDestination("s3://" + cfg.Upload.Bucket + "/" + cfg.Upload.Prefix)
	if err != nil {
		return dest, nil, WrapExitError(ExitUsage, "bad upload destination in config", err)
	}
	files := discover.FindFiles([]string{deploy.Layout{Root: opts.RootDir}.RawGlob()})
	return dest, files, nil
}

func runUpload(opts *UploadOptions, args []string, cmd *cobra.Command) error {
	dest, files, err := stageUpload(opts, args)
	if err != nil {
		// No external call has been made at this point.
		fmt.Fprintln(cmd.ErrOrStderr(), cmd.UsageString())
		return err
	}
	if len(files) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No files to upload.")
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing done.")
		return nil
	}

	uploader := &upload.Uploader{
		Runner:   opts.Runner(),
		Dest:     dest,
		Region:   opts.Region,
		Force:    opts.Force,
		Progress: opts.Progress,
		Out:      cmd.OutOrStdout(),
	}

	if !uploader.CheckCLI() {
		return NewExitError(ExitUsage, fmt.Sprintf("required tool %q not found on PATH", upload.CLI))
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	uploader.Login(ctx)

	stats := uploader.UploadAll(ctx, files)
	if !stats.OK() {
		return NewExitError(ExitFailure, "some files were not uploaded")
	}
	return nil
}
