package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wflyer/echopipe/internal/execx"
)

// writeStoreDirs creates array-store directories, the way converted and Sv
// outputs appear on disk.
func writeStoreDirs(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	var paths []string
	for _, name := range names {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(p, 0o755))
		paths = append(paths, p)
	}
	return paths
}

func isToolOp(op string) func(argv []string) bool {
	return func(argv []string) bool {
		return len(argv) > 1 && argv[1] == op
	}
}

func TestSvRejectsBadEncodeMode(t *testing.T) {
	fake := &execx.FakeCommander{}
	cmd := NewSvCommand(&RootOptions{Commander: fake})

	_, err := execute(t, cmd, "--encode-mode", "analog", "store.zarr")

	require.Error(t, err)
	assert.Equal(t, ExitUsage, GetExitCode(err))
	assert.Empty(t, fake.Calls())
}

func TestSvRejectsBadWaveformMode(t *testing.T) {
	fake := &execx.FakeCommander{}
	cmd := NewSvCommand(&RootOptions{Commander: fake})

	_, err := execute(t, cmd, "--waveform-mode", "FM", "store.zarr")

	require.Error(t, err)
	assert.Equal(t, ExitUsage, GetExitCode(err))
}

func TestSvCalibratesEveryStore(t *testing.T) {
	root := t.TempDir()
	writeStoreDirs(t, filepath.Join(root, "converted"), "seg1.zarr", "seg2.zarr")
	fake := &execx.FakeCommander{}
	cmd := NewSvCommand(&RootOptions{Commander: fake})

	out, err := execute(t, cmd, "--root-dir", root, "--workers", "1")

	require.NoError(t, err)
	assert.Contains(t, out, "Calibrated 2, skipped 0, failed 0")

	calls := fake.CallsMatching(isToolOp("sv"))
	require.Len(t, calls, 2)
	first := calls[0].Argv
	assert.Equal(t, "echotool", first[0])
	assert.Contains(t, first, "--waveform-mode")
	assert.Contains(t, first, "CW")
	assert.Contains(t, first, "--encode-mode")
	assert.Contains(t, first, "complex")
	assert.Contains(t, first, filepath.Join(root, "sv", "seg1.sv"))
}

func TestSvMissingOnlySkipsExistingOutput(t *testing.T) {
	root := t.TempDir()
	writeStoreDirs(t, filepath.Join(root, "converted"), "seg1.zarr", "seg2.zarr")
	writeStoreDirs(t, filepath.Join(root, "sv"), "seg1.sv")
	fake := &execx.FakeCommander{}
	cmd := NewSvCommand(&RootOptions{Commander: fake})

	out, err := execute(t, cmd, "--root-dir", root, "--missing-only")

	require.NoError(t, err)
	assert.Contains(t, out, "Calibrated 1, skipped 1, failed 0")

	calls := fake.CallsMatching(isToolOp("sv"))
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Argv, filepath.Join(root, "converted", "seg2.zarr"))
}

func TestSvFailureCountsAndContinues(t *testing.T) {
	root := t.TempDir()
	writeStoreDirs(t, filepath.Join(root, "converted"), "seg1.zarr", "seg2.zarr")
	fake := &execx.FakeCommander{
		RunErr: func(argv []string) error {
			for _, a := range argv {
				if filepath.Base(a) == "seg1.zarr" {
					return execx.ErrScripted
				}
			}
			return nil
		},
	}
	cmd := NewSvCommand(&RootOptions{Commander: fake})

	out, err := execute(t, cmd, "--root-dir", root, "--workers", "1")

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Calibrated 1, skipped 0, failed 1")
	assert.Len(t, fake.CallsMatching(isToolOp("sv")), 2)
}
