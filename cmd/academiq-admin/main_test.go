package main

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrintUsageListsAllCommands(t *testing.T) {
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)

	defer func() {
		os.Stdout = oldStdout
	}()

	os.Stdout = w

	err = printUsage()
	require.NoError(t, err)

	require.NoError(t, w.Close())
	os.Stdout = oldStdout

	output, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	outStr := string(output)
	require.Contains(t, outStr, "Usage: academiq-admin")
	for name := range commands() {
		require.Contains(t, outStr, name)
	}
}

func TestCommandsHaveRunFuncs(t *testing.T) {
	for name, cmd := range commands() {
		require.Equal(t, name, cmd.name)
		require.NotEmpty(t, cmd.description)
		require.NotNil(t, cmd.run)
	}
}

func TestHasRedisConfig(t *testing.T) {
	require.False(t, hasRedisConfig("", nil, nil))
	require.False(t, hasRedisConfig("   ", nil, nil))
	require.True(t, hasRedisConfig("redis://localhost:6379", nil, nil))
	require.True(t, hasRedisConfig("", []string{"sentinel:26379"}, nil))
	require.True(t, hasRedisConfig("", nil, []string{"node:6379"}))
}
