// Package execx runs external programs on behalf of the pipeline stages.
//
// Every numerically heavy operation (calibration, binning, rendering) and the
// cloud transfer tool are child processes. This package provides the one seam
// through which they are invoked, so commands can be mocked in tests.
package execx

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/google/shlex"
)

// ErrEmptyCommandLine means a configured command line parsed to nothing.
var ErrEmptyCommandLine = errors.New("execx: empty command line")

// Commander abstracts process execution.
//
// FakeCommander in this package implements it for tests.
type Commander interface {
	// LookPath reports the absolute path of an executable, like exec.LookPath.
	LookPath(name string) (string, error)

	// Run executes argv[0] with argv[1:], inheriting stdout/stderr.
	Run(ctx context.Context, argv []string) error

	// Output executes argv[0] with argv[1:] and captures stdout.
	Output(ctx context.Context, argv []string) ([]byte, error)
}

// System is the [Commander] backed by os/exec.
type System struct{}

// LookPath implements [Commander].
func (System) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run implements [Commander].
func (System) Run(ctx context.Context, argv []string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Output implements [Commander].
func (System) Output(ctx context.Context, argv []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stderr = os.Stderr
	return cmd.Output()
}

// Runner executes commands through a [Commander], logging each invocation.
type Runner struct {
	Commander Commander
	Quiet     bool // suppress the "+ cmd" log line
}

// NewRunner returns a Runner backed by the real system.
func NewRunner() *Runner {
	return &Runner{Commander: System{}}
}

// Available reports whether the named program is on PATH.
func (r *Runner) Available(name string) bool {
	_, err := r.Commander.LookPath(name)
	return err == nil
}

// Run executes the program with the given arguments, connecting its output
// to the operator's terminal.
func (r *Runner) Run(ctx context.Context, name string, args ...string) error {
	argv := append([]string{name}, args...)
	r.logInvocation(argv)
	return r.Commander.Run(ctx, argv)
}

// Output executes the program and returns its captured standard output.
func (r *Runner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	argv := append([]string{name}, args...)
	r.logInvocation(argv)
	return r.Commander.Output(ctx, argv)
}

func (r *Runner) logInvocation(argv []string) {
	if r.Quiet {
		return
	}
	slog.Debug("exec", "cmd", QuoteCommandLine(argv))
}

// ParseCommandLine splits a configured command line ("echotool --flag") into
// argv using shell quoting rules.
func ParseCommandLine(cmdline string) ([]string, error) {
	argv, err := shlex.Split(cmdline)
	if err != nil {
		return nil, err
	}
	if len(argv) == 0 {
		return nil, ErrEmptyCommandLine
	}
	return argv, nil
}

// QuoteCommandLine renders argv as a single loggable string, quoting
// arguments that contain spaces.
func QuoteCommandLine(argv []string) string {
	quoted := make([]string, 0, len(argv))
	for _, arg := range argv {
		if strings.Contains(arg, "\"") {
			arg = strings.ReplaceAll(arg, "\"", "\\\"")
		}
		if strings.Contains(arg, " ") {
			arg = "\"" + arg + "\""
		}
		quoted = append(quoted, arg)
	}
	return strings.Join(quoted, " ")
}
