package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "clocksync", cmd.Use)
	assert.Contains(t, cmd.Long, "catch-up")
}

func TestSubcommands(t *testing.T) {
	root := NewRootCommand()

	names := make([]string, 0, len(root.Commands()))
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
		assert.NotEmpty(t, sub.Short, "%s has no short help", sub.Name())
		assert.True(t, sub.SilenceUsage, "%s prints usage on error", sub.Name())
	}
	assert.ElementsMatch(t,
		[]string{"validate", "simulate", "test", "run", "trace", "replay"},
		names)
}

func TestPersistentFlags(t *testing.T) {
	flags := NewRootCommand().PersistentFlags()

	tests := []struct {
		name      string
		shorthand string
		def       string
	}{
		{"verbose", "v", "false"},
		{"format", "", "text"},
	}
	for _, tt := range tests {
		f := flags.Lookup(tt.name)
		require.NotNil(t, f, tt.name)
		assert.Equal(t, tt.shorthand, f.Shorthand, tt.name)
		assert.Equal(t, tt.def, f.DefValue, tt.name)
	}
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	for flag, def := range map[string]string{
		"players":      "2",
		"duration":     "0s",
		"seed":         "1",
		"db":           "",
		"config":       "",
		"metrics-addr": "",
	} {
		f := runCmd.Flags().Lookup(flag)
		require.NotNil(t, f, flag)
		assert.Equal(t, def, f.DefValue, flag)
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := executeCommand(t, "validate", "x.cue", "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}
