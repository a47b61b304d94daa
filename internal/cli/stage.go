package cli

import (
	"fmt"

	"github.com/wflyer/echopipe/internal/deploy"
	"github.com/wflyer/echopipe/internal/toolchain"
)

// stageInputs resolves the positional-vs-root-dir contract shared by the
// processing stages: exactly one of the two must be given.
func stageInputs(args []string, rootDir string, glob func(deploy.Layout) string, find func([]string) []string) ([]string, error) {
	switch {
	case len(args) > 0 && rootDir != "":
		return nil, NewExitError(ExitUsage, "cannot specify both positional arguments and --root-dir")
	case len(args) == 0 && rootDir == "":
		return nil, NewExitError(ExitUsage, "must specify either positional arguments or --root-dir")
	case rootDir != "":
		return find([]string{glob(deploy.Layout{Root: rootDir})}), nil
	default:
		return find(args), nil
	}
}

// stageConfig loads the deployment config when a root is known, otherwise
// the defaults.
func stageConfig(rootDir string) (deploy.Config, error) {
	if rootDir == "" {
		return deploy.DefaultConfig(), nil
	}
	cfg, err := deploy.LoadConfig(rootDir)
	if err != nil {
		return cfg, WrapExitError(ExitUsage, "bad deployment config", err)
	}
	return cfg, nil
}

// newTool builds the external tool from config, honoring a per-command
// override, and verifies it is installed before any file is touched.
func newTool(cfg deploy.Config, override string, opts *RootOptions) (*toolchain.Tool, error) {
	cmdline := cfg.ToolCommand
	if override != "" {
		cmdline = override
	}
	tool, err := toolchain.New(cmdline, opts.Runner())
	if err != nil {
		return nil, WrapExitError(ExitUsage, "invalid tool command", err)
	}
	if !tool.Available() {
		return nil, NewExitError(ExitUsage, fmt.Sprintf("required tool %q not found on PATH", tool.Program()))
	}
	return tool, nil
}
