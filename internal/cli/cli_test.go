package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodScenario = "../scenario/testdata/scenarios/journal_basics.yaml"

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func writeBrokenScenario(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "broken.yaml")
	doc := `
name: broken
description: Steps must carry exactly one operation.
start_time: "2030-01-01T09:00:00Z"
channels: [{name: chat}]
script: [{advance: 5m, undo: 1}]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestValidate_Valid(t *testing.T) {
	out, _, err := execute(t, "validate", goodScenario)
	require.NoError(t, err)
	assert.Contains(t, out, "OK")
	assert.Contains(t, out, "journal_basics")
}

func TestValidate_Invalid(t *testing.T) {
	path := writeBrokenScenario(t)
	out, _, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL")
	assert.Contains(t, out, "exactly one operation")
}

func TestValidate_MissingFile(t *testing.T) {
	_, _, err := execute(t, "validate", "nope.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidate_JSONFormat(t *testing.T) {
	out, _, err := execute(t, "validate", goodScenario, "--format", "json")
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestRun_TextOutput(t *testing.T) {
	out, _, err := execute(t, "run", goodScenario)
	require.NoError(t, err)
	assert.Contains(t, out, "Scenario: journal_basics")
	assert.Contains(t, out, "advance")
	assert.Contains(t, out, "executed=2")
	assert.Contains(t, out, "chat: 2 entries")
	assert.Contains(t, out, "PASS")
}

func TestRun_VerboseListsEvents(t *testing.T) {
	out, _, err := execute(t, "run", goodScenario, "-v")
	require.NoError(t, err)
	assert.Contains(t, out, "evt-000001")
	assert.Contains(t, out, "evt-000002")
}

func TestRun_JSONOutput(t *testing.T) {
	out, _, err := execute(t, "run", goodScenario, "--format", "json")
	require.NoError(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, data["pass"])
}

func TestRun_FailedAssertionsExitCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failing.yaml")
	doc := `
name: failing
description: The assertion intentionally disagrees with the run.
start_time: "2030-01-01T09:00:00Z"
channels: [{name: chat}]
events:
  - channel: chat
    after: 5m
    action: add
    entry: {id: m1}
script:
  - advance: 10m
assertions:
  - type: entry_count
    channel: chat
    count: 5
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	out, _, err := execute(t, "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL")
}

func TestRun_MalformedScenario(t *testing.T) {
	path := writeBrokenScenario(t)
	_, _, err := execute(t, "run", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRoot_RejectsUnknownFormat(t *testing.T) {
	_, _, err := execute(t, "validate", goodScenario, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRoot_RejectsBadEnvironment(t *testing.T) {
	t.Setenv("HOLODECK_LOG_LEVEL", "loud")
	_, _, err := execute(t, "validate", goodScenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log level")
}

func TestRun_EngineConfigFromEnvironment(t *testing.T) {
	t.Setenv("HOLODECK_TICK_INTERVAL", "250ms")
	t.Setenv("HOLODECK_TIME_SCALE", "60")

	_, errOut, err := execute(t, "run", goodScenario, "-v")
	require.NoError(t, err)
	assert.Contains(t, errOut, "engine tick=250ms time_scale=60")
}
