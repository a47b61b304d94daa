package deploy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutPaths(t *testing.T) {
	l := Layout{Root: "/deploy/baja2025"}
	assert.Equal(t, "/deploy/baja2025/raw", l.RawDir())
	assert.Equal(t, "/deploy/baja2025/raw/*.raw", l.RawGlob())
	assert.Equal(t, "/deploy/baja2025/converted/*.zarr", l.ConvertedGlob())
	assert.Equal(t, "/deploy/baja2025/sv/*.sv", l.SvGlob())
	assert.Equal(t, "/deploy/baja2025/MVBS_zarr", l.MVBSDir())
}

func TestLoadConfigDefaultsWhenMissing(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, "echotool", cfg.ToolCommand)
	assert.Equal(t, "ek80", cfg.SonarModel)
	require.Len(t, cfg.Channels, 2)
	assert.Equal(t, -80.0, cfg.Channels[0].MinDB)
}

func TestLoadConfigOverrides(t *testing.T) {
	root := t.TempDir()
	content := `
tool_command: "python -m echotool"
sonar_model: ek60
ping_bin: 2s
upload:
  bucket: wff-archive
  prefix: data/Western_Flyer/baja2025
  region: us-west-2
`
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte(content), 0o644))

	cfg, err := LoadConfig(root)
	require.NoError(t, err)
	assert.Equal(t, "python -m echotool", cfg.ToolCommand)
	assert.Equal(t, "ek60", cfg.SonarModel)
	assert.Equal(t, "2s", cfg.PingBin)
	assert.Equal(t, "1.0m", cfg.RangeBin, "unset keys keep defaults")
	assert.Equal(t, "wff-archive", cfg.Upload.Bucket)
}

func TestLoadConfigMalformed(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, ConfigFileName), []byte("tool_command: [unclosed"), 0o644))

	_, err := LoadConfig(root)
	assert.Error(t, err)
}

func TestNewRunIDUnique(t *testing.T) {
	assert.NotEqual(t, NewRunID(), NewRunID())
	assert.Len(t, NewRunID(), 36)
}
