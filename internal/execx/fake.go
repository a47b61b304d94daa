package execx

import (
	"context"
	"errors"
	"sync"
)

// Call records a single invocation seen by a [FakeCommander].
type Call struct {
	Argv []string
}

// FakeCommander is a [Commander] for tests. Behavior is scripted per
// program name; unscripted programs succeed with empty output.
type FakeCommander struct {
	mu sync.Mutex

	// MissingPrograms fail LookPath.
	MissingPrograms map[string]bool

	// RunErr and OutputOf script behavior keyed by a matcher over argv.
	RunErr   func(argv []string) error
	OutputOf func(argv []string) ([]byte, error)

	calls []Call
}

// ErrScripted is the default failure returned by scripted errors.
var ErrScripted = errors.New("execx: scripted failure")

// LookPath implements [Commander].
func (f *FakeCommander) LookPath(name string) (string, error) {
	if f.MissingPrograms[name] {
		return "", errors.New("executable file not found in $PATH")
	}
	return "/usr/bin/" + name, nil
}

// Run implements [Commander].
func (f *FakeCommander) Run(_ context.Context, argv []string) error {
	f.record(argv)
	if f.RunErr != nil {
		return f.RunErr(argv)
	}
	return nil
}

// Output implements [Commander].
func (f *FakeCommander) Output(_ context.Context, argv []string) ([]byte, error) {
	f.record(argv)
	if f.OutputOf != nil {
		return f.OutputOf(argv)
	}
	return nil, nil
}

func (f *FakeCommander) record(argv []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Argv: append([]string(nil), argv...)})
}

// Calls returns a copy of every recorded invocation, in order.
func (f *FakeCommander) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsMatching returns the recorded invocations for which match returns true.
func (f *FakeCommander) CallsMatching(match func(argv []string) bool) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if match(c.Argv) {
			out = append(out, c)
		}
	}
	return out
}
