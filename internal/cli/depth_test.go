package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wflyer/echopipe/internal/execx"
)

func writeDepthFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

const depthHeader = "ping_time,latitude,longitude,bottom_depth\n"

func TestDepthRejectsBadInterval(t *testing.T) {
	cmd := NewDepthCommand(&RootOptions{Commander: &execx.FakeCommander{}})

	_, err := execute(t, cmd, "--resample", "soon", "depths.csv")

	require.Error(t, err)
	assert.Equal(t, ExitUsage, GetExitCode(err))
}

func TestDepthRejectsBadMethod(t *testing.T) {
	cmd := NewDepthCommand(&RootOptions{Commander: &execx.FakeCommander{}})

	_, err := execute(t, cmd, "--method", "spline", "depths.csv")

	require.Error(t, err)
	assert.Equal(t, ExitUsage, GetExitCode(err))
}

func TestDepthExportsResampledCSV(t *testing.T) {
	dir := t.TempDir()
	a := writeDepthFile(t, dir, "seg1-001.csv", depthHeader+
		"2025-05-01T10:00:10Z,36.100,-122.100,812.3\n"+
		"2025-05-01T10:00:40Z,36.101,-122.101,813.1\n")
	b := writeDepthFile(t, dir, "seg2-001.csv", depthHeader+
		"2025-05-01T11:00:05Z,36.200,-122.200,640.0\n")
	out := filepath.Join(dir, "out.csv")

	cmd := NewDepthCommand(&RootOptions{Commander: &execx.FakeCommander{}})
	stdout, err := execute(t, cmd, "--csv", out, a, b)

	require.NoError(t, err)
	assert.Contains(t, stdout, "Found 2 depth files in 2 unique segments.")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3, "one resampled row per segment plus header")
	assert.Equal(t, "ping_time,latitude,longitude,depth,segment", lines[0])
	assert.Contains(t, lines[1], ",seg1")
	assert.Contains(t, lines[2], ",seg2")
	// Last-sample resampling keeps the final reading of the minute.
	assert.Contains(t, lines[1], "813.1")
}

func TestDepthGroupsFilesBySegment(t *testing.T) {
	dir := t.TempDir()
	a := writeDepthFile(t, dir, "seg1-001.csv", depthHeader+
		"2025-05-01T10:00:10Z,36.100,-122.100,812.3\n")
	b := writeDepthFile(t, dir, "seg1-002.csv", depthHeader+
		"2025-05-01T10:05:10Z,36.110,-122.110,815.0\n")
	out := filepath.Join(dir, "out.csv")

	cmd := NewDepthCommand(&RootOptions{Commander: &execx.FakeCommander{}})
	stdout, err := execute(t, cmd, "--csv", out, a, b)

	require.NoError(t, err)
	assert.Contains(t, stdout, "Found 2 depth files in 1 unique segments.")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 3, "both readings fall in different minutes of one segment")
}

func TestDepthUnreadableFileContinues(t *testing.T) {
	dir := t.TempDir()
	bad := writeDepthFile(t, dir, "seg1-001.csv", "not,a,depth\nfile\n")
	good := writeDepthFile(t, dir, "seg2-001.csv", depthHeader+
		"2025-05-01T11:00:05Z,36.200,-122.200,640.0\n")
	out := filepath.Join(dir, "out.csv")

	cmd := NewDepthCommand(&RootOptions{Commander: &execx.FakeCommander{}})
	stdout, err := execute(t, cmd, "--csv", out, bad, good)

	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "Cannot read")

	data, readErr := os.ReadFile(out)
	require.NoError(t, readErr, "good segments are still exported")
	assert.Contains(t, string(data), "seg2")
}

func TestDepthWritesDatabase(t *testing.T) {
	dir := t.TempDir()
	a := writeDepthFile(t, dir, "seg1-001.csv", depthHeader+
		"2025-05-01T10:00:10Z,36.100,-122.100,812.3\n")
	out := filepath.Join(dir, "out.csv")
	db := filepath.Join(dir, "depths.db")

	cmd := NewDepthCommand(&RootOptions{Commander: &execx.FakeCommander{}})
	stdout, err := execute(t, cmd, "--csv", out, "--db", db, a)

	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote 1 rows to "+db)
	_, statErr := os.Stat(db)
	assert.NoError(t, statErr)
}
