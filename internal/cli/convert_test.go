package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wflyer/echopipe/internal/execx"
)

// execute runs a command with args and captures stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func writeRawFiles(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	var paths []string
	for _, name := range names {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte("raw"), 0o644))
		paths = append(paths, p)
	}
	return paths
}

func TestConvertRejectsBothInputStyles(t *testing.T) {
	cmd := NewConvertCommand(&RootOptions{Commander: &execx.FakeCommander{}})

	_, err := execute(t, cmd, "--root-dir", t.TempDir(), "some.raw")

	require.Error(t, err)
	assert.Equal(t, ExitUsage, GetExitCode(err))
}

func TestConvertRequiresSomeInput(t *testing.T) {
	cmd := NewConvertCommand(&RootOptions{Commander: &execx.FakeCommander{}})

	_, err := execute(t, cmd)

	require.Error(t, err)
	assert.Equal(t, ExitUsage, GetExitCode(err))
}

func TestConvertNothingToDo(t *testing.T) {
	fake := &execx.FakeCommander{}
	cmd := NewConvertCommand(&RootOptions{Commander: fake})

	out, err := execute(t, cmd, filepath.Join(t.TempDir(), "*.raw"))

	require.NoError(t, err)
	assert.Contains(t, out, "Nothing done.")
	assert.Empty(t, fake.Calls(), "no tool invocation without inputs")
}

func TestConvertRunsToolPerFile(t *testing.T) {
	dir := t.TempDir()
	writeRawFiles(t, filepath.Join(dir, "raw"), "a.raw", "b.raw")

	fake := &execx.FakeCommander{}
	cmd := NewConvertCommand(&RootOptions{Commander: fake})

	out, err := execute(t, cmd, "--root-dir", dir, "--workers", "1")

	require.NoError(t, err)
	assert.Contains(t, out, "Found 2 raw files")
	assert.Contains(t, out, "Converted 2, skipped 0, failed 0")

	calls := fake.Calls()
	require.Len(t, calls, 2)
	for _, call := range calls {
		assert.Equal(t, "echotool", call.Argv[0])
		assert.Equal(t, "convert", call.Argv[1])
	}
}

func TestConvertMissingOnlySkipsExistingOutputs(t *testing.T) {
	dir := t.TempDir()
	writeRawFiles(t, filepath.Join(dir, "raw"), "a.raw", "b.raw")
	// a.zarr already converted.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "converted", "a.zarr"), 0o755))

	fake := &execx.FakeCommander{}
	cmd := NewConvertCommand(&RootOptions{Commander: fake})

	out, err := execute(t, cmd, "--root-dir", dir, "--missing-only", "--workers", "1")

	require.NoError(t, err)
	assert.Contains(t, out, "Converted 1, skipped 1, failed 0")
	require.Len(t, fake.Calls(), 1)
	assert.Contains(t, fake.Calls()[0].Argv, filepath.Join(dir, "raw", "b.raw"))
}

func TestConvertToolFailureMarksRunFailed(t *testing.T) {
	dir := t.TempDir()
	writeRawFiles(t, filepath.Join(dir, "raw"), "a.raw", "b.raw")

	fake := &execx.FakeCommander{
		RunErr: func(argv []string) error {
			for _, a := range argv {
				if filepath.Base(a) == "a.raw" {
					return execx.ErrScripted
				}
			}
			return nil
		},
	}
	cmd := NewConvertCommand(&RootOptions{Commander: fake})

	out, err := execute(t, cmd, "--root-dir", dir, "--workers", "1")

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Converted 1, skipped 0, failed 1")
	assert.Len(t, fake.Calls(), 2, "a failing file must not stop the rest")
}

func TestConvertMissingToolIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeRawFiles(t, filepath.Join(dir, "raw"), "a.raw")

	fake := &execx.FakeCommander{MissingPrograms: map[string]bool{"echotool": true}}
	cmd := NewConvertCommand(&RootOptions{Commander: fake})

	_, err := execute(t, cmd, "--root-dir", dir)

	require.Error(t, err)
	assert.Equal(t, ExitUsage, GetExitCode(err))
	assert.Empty(t, fake.CallsMatching(func(argv []string) bool { return argv[1] == "convert" }))
}

func TestConvertHonorsConfigToolCommand(t *testing.T) {
	dir := t.TempDir()
	writeRawFiles(t, filepath.Join(dir, "raw"), "a.raw")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "echopipe.yaml"),
		[]byte("tool_command: \"python -m echotool\"\nsonar_model: ek60\n"), 0o644))

	fake := &execx.FakeCommander{}
	cmd := NewConvertCommand(&RootOptions{Commander: fake})

	_, err := execute(t, cmd, "--root-dir", dir, "--workers", "1")

	require.NoError(t, err)
	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"python", "-m", "echotool"}, calls[0].Argv[:3])
	assert.Contains(t, calls[0].Argv, "ek60")
}
