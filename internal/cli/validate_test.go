package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/clocksync/internal/config"
)

func TestValidateValidConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "clocksync.cue", "sync_target_ms: 8\nmax_sync_offset_ms: 40\n")

	out, err := executeCommand(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "is valid")
	assert.Contains(t, out, "sync_target_ms:         8")
	assert.Contains(t, out, "maximum_start_delay_ms: 15000")
	assert.Contains(t, out, "start_clock:            auto")
}

func TestValidateJSONOutput(t *testing.T) {
	path := writeFile(t, t.TempDir(), "clocksync.cue", `start_clock: "wall"`)

	out, err := executeCommand(t, "validate", path, "--format", "json")
	require.NoError(t, err)

	var result ValidateResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, config.StartClockWall, result.Config.StartClock)
	assert.Equal(t, 16, result.Config.TickIntervalMs)
}

func TestValidateInvalidConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.cue", "sync_target_ms: 20\nmax_sync_offset_ms: 10\n")

	out, err := executeCommand(t, "validate", path, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var details ValidateErrorDetails
	resp := decodeResponse(t, out, nil)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConfig, resp.Error.Code)

	raw, ok := resp.Error.Details.(map[string]any)
	require.True(t, ok, "details: %#v", resp.Error.Details)
	details.Code, _ = raw["code"].(string)
	assert.Equal(t, config.ErrCodeInvalid, details.Code)
}

func TestValidateSyntaxError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.cue", "sync_target_ms: {")

	out, err := executeCommand(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E_CONFIG]")
	assert.Contains(t, out, config.ErrCodeSyntax)
}

func TestValidateMissingFile(t *testing.T) {
	_, err := executeCommand(t, "validate", filepath.Join(t.TempDir(), "missing.cue"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateRequiresPath(t *testing.T) {
	_, err := executeCommand(t, "validate")
	require.Error(t, err)
}
