package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "echopipe", cmd.Use)
	assert.Contains(t, cmd.Long, "echosounder")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"convert", "sv", "mvbs", "combine", "bottom", "depth", "plot", "upload"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)
}

func TestConvertCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	convertCmd, _, err := cmd.Find([]string{"convert"})
	require.NoError(t, err)

	outFlag := convertCmd.Flags().Lookup("out")
	require.NotNil(t, outFlag)
	assert.Equal(t, "o", outFlag.Shorthand)
	assert.Equal(t, "../converted/", outFlag.DefValue)

	require.NotNil(t, convertCmd.Flags().Lookup("sonar-model"))
	require.NotNil(t, convertCmd.Flags().Lookup("missing-only"))
}

func TestMVBSCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	mvbsCmd, _, err := cmd.Find([]string{"mvbs"})
	require.NoError(t, err)

	require.NotNil(t, mvbsCmd.Flags().Lookup("ping-bin"))
	require.NotNil(t, mvbsCmd.Flags().Lookup("range-bin"))
	require.NotNil(t, mvbsCmd.Flags().Lookup("skip-existing"))
}

func TestDepthCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	depthCmd, _, err := cmd.Find([]string{"depth"})
	require.NoError(t, err)

	resampleFlag := depthCmd.Flags().Lookup("resample")
	require.NotNil(t, resampleFlag)
	assert.Equal(t, "r", resampleFlag.Shorthand)
	assert.Equal(t, "60s", resampleFlag.DefValue)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitUsage, GetExitCode(NewExitError(ExitUsage, "bad args")))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
}

func TestExitErrorUnwrap(t *testing.T) {
	wrapped := WrapExitError(ExitFailure, "outer", assert.AnError)
	assert.ErrorIs(t, wrapped, assert.AnError)
	assert.Contains(t, wrapped.Error(), "outer")
}
