// Package cli wires the echopipe commands together.
package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wflyer/echopipe/internal/deploy"
	"github.com/wflyer/echopipe/internal/execx"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose bool

	// Commander overrides process execution; tests inject a fake here.
	Commander execx.Commander
}

// Runner returns the subprocess runner commands should use.
func (o *RootOptions) Runner() *execx.Runner {
	if o.Commander != nil {
		return &execx.Runner{Commander: o.Commander}
	}
	return execx.NewRunner()
}

// NewRootCommand creates the root command for the echopipe CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "echopipe",
		Short: "Echosounder deployment processing pipeline",
		Long: `Sequence echosounder deployment processing: convert raw instrument
files to array stores, calibrate backscatter (Sv), aggregate to MVBS,
detect and export seafloor depth, render echograms, and archive raw
files to object storage.

The numeric heavy lifting is delegated to an external processing tool;
echopipe owns discovery, sequencing, skip-existing logic, and exports.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureLogging(opts.Verbose)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewConvertCommand(opts))
	cmd.AddCommand(NewSvCommand(opts))
	cmd.AddCommand(NewMVBSCommand(opts))
	cmd.AddCommand(NewCombineCommand(opts))
	cmd.AddCommand(NewBottomCommand(opts))
	cmd.AddCommand(NewDepthCommand(opts))
	cmd.AddCommand(NewPlotCommand(opts))
	cmd.AddCommand(NewUploadCommand(opts))

	return cmd
}

// configureLogging installs the default logger. Every run gets a fresh ID so
// interleaved logs from overnight batches can be told apart.
func configureLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler).With("run", deploy.NewRunID()))
}

// signalContext returns a context cancelled on SIGINT/SIGTERM, derived from
// the command's context when one is set (tests set one).
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping after current files", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}
