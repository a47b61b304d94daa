package execx

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommandLine(t *testing.T) {
	argv, err := ParseCommandLine(`echotool --scheduler "local threads"`)
	require.NoError(t, err)
	assert.Equal(t, []string{"echotool", "--scheduler", "local threads"}, argv)
}

func TestParseCommandLineEmpty(t *testing.T) {
	_, err := ParseCommandLine("   ")
	assert.ErrorIs(t, err, ErrEmptyCommandLine)
}

func TestQuoteCommandLine(t *testing.T) {
	quoted := QuoteCommandLine([]string{"aws", "s3", "cp", "/tmp/a file.raw", "s3://bucket/key"})
	assert.Equal(t, `aws s3 cp "/tmp/a file.raw" s3://bucket/key`, quoted)
}

func TestRunnerRecordsCalls(t *testing.T) {
	fake := &FakeCommander{}
	r := &Runner{Commander: fake, Quiet: true}

	require.NoError(t, r.Run(context.Background(), "aws", "s3", "cp", "a", "b"))
	_, err := r.Output(context.Background(), "aws", "s3", "ls", "b")
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, []string{"aws", "s3", "cp", "a", "b"}, calls[0].Argv)
	assert.Equal(t, []string{"aws", "s3", "ls", "b"}, calls[1].Argv)
}

func TestRunnerAvailable(t *testing.T) {
	fake := &FakeCommander{MissingPrograms: map[string]bool{"aws": true}}
	r := &Runner{Commander: fake}

	assert.False(t, r.Available("aws"))
	assert.True(t, r.Available("echotool"))
}

func TestFakeScriptedFailure(t *testing.T) {
	fake := &FakeCommander{
		RunErr: func(argv []string) error {
			if argv[0] == "aws" {
				return ErrScripted
			}
			return nil
		},
	}
	r := &Runner{Commander: fake, Quiet: true}

	err := r.Run(context.Background(), "aws", "s3", "cp")
	assert.True(t, errors.Is(err, ErrScripted))
	assert.NoError(t, r.Run(context.Background(), "echotool"))
}
