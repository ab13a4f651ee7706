package actions

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaklabco/fwstat/config"
	"github.com/yaklabco/fwstat/pkg/buildenv"
	"github.com/yaklabco/fwstat/pkg/sizecheck"
	"github.com/yaklabco/fwstat/pkg/st"
	"github.com/yaklabco/fwstat/pkg/status"
)

func newRuntime(t *testing.T, postActions config.PostActionsConfig, output string) (*Runtime, *bytes.Buffer) {
	t.Helper()

	deps := testDeps(t, output)
	deps.Config.PostActions = postActions

	var stderr bytes.Buffer
	return &Runtime{Deps: deps, Stderr: &stderr}, &stderr
}

func actionNames(result *RunResult) []string {
	names := make([]string, 0, len(result.Actions))
	for _, action := range result.Actions {
		names = append(names, action.Name)
	}
	return names
}

func TestRuntime_Run_HooksDisabled(t *testing.T) {
	t.Setenv(EnvHooks, "0")

	runtime, stderr := newRuntime(t, config.PostActionsConfig{
		config.DefaultTarget: {{Action: "status"}},
	}, avrSizeOutput)

	result, err := runtime.Run(context.Background(), testEnv(&bytes.Buffer{}, 32256), config.DefaultTarget, nil)
	require.NoError(t, err)

	assert.True(t, result.Disabled)
	assert.True(t, result.Success())
	assert.Empty(t, result.Actions)
	assert.Contains(t, stderr.String(), "post actions disabled")
	assert.NoFileExists(t, filepath.Join(runtime.Deps.Dir, config.DefaultStatusFile))
}

func TestRuntime_Run_DefaultStatusAction(t *testing.T) {
	runtime := NewRuntime(config.DefaultConfig())
	runtime.Deps.Dir = t.TempDir()
	runtime.Deps.CommitSummary = commitSummary(testCommit)
	runtime.Deps.SizeRunner = sizeRunner(avrSizeOutput)

	var stdout bytes.Buffer
	result, err := runtime.Run(context.Background(), testEnv(&stdout, 32256), config.DefaultTarget, []string{"firmware.elf"})
	require.NoError(t, err)
	require.True(t, result.Success())
	require.NoError(t, result.Err())

	assert.Equal(t, []string{"status"}, actionNames(result))
	assert.Equal(t, config.DefaultTarget, result.Actions[0].Pattern)

	entries, err := status.Read(filepath.Join(runtime.Deps.Dir, config.DefaultStatusFile))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, testCommit, entries[0].Commit)
}

func TestRuntime_Run_OtherTarget(t *testing.T) {
	runtime, _ := newRuntime(t, config.PostActionsConfig{
		config.DefaultTarget: {{Action: "status"}},
	}, avrSizeOutput)

	result, err := runtime.Run(context.Background(), testEnv(&bytes.Buffer{}, 32256), "upload", nil)
	require.NoError(t, err)

	assert.True(t, result.Success())
	assert.Empty(t, result.Actions)
}

func TestRuntime_Run_ExactTargetBeforePatterns(t *testing.T) {
	runtime, _ := newRuntime(t, config.PostActionsConfig{
		"*":                  {{Action: "envdump", Args: []string{"BOARD"}}},
		"check*":             {{Action: "sizecheck"}},
		config.DefaultTarget: {{Action: "status"}},
	}, avrSizeOutput)

	result, err := runtime.Run(context.Background(), testEnv(&bytes.Buffer{}, 32256), config.DefaultTarget, []string{"firmware.elf"})
	require.NoError(t, err)
	require.True(t, result.Success())

	assert.Equal(t, []string{"status", "envdump", "sizecheck"}, actionNames(result))
	assert.Equal(t, []string{"BOARD"}, result.Actions[1].Args)
}

func TestRuntime_Run_FailFast(t *testing.T) {
	runtime, stderr := newRuntime(t, config.PostActionsConfig{
		config.DefaultTarget: {
			{Action: "sizecheck"},
			{Action: "status"},
		},
	}, avrSizeOutput)

	result, err := runtime.Run(context.Background(), testEnv(&bytes.Buffer{}, 16384), config.DefaultTarget, []string{"firmware.elf"})
	require.NoError(t, err)

	assert.False(t, result.Success())
	assert.Equal(t, 1, result.ExitCode)
	assert.Equal(t, []string{"sizecheck"}, actionNames(result))
	assert.Equal(t, 1, result.Actions[0].ExitCode)
	assert.Contains(t, stderr.String(), "post actions for checkprogsize failed (exit 1)")
	assert.NoFileExists(t, filepath.Join(runtime.Deps.Dir, config.DefaultStatusFile))

	runErr := result.Err()
	require.ErrorIs(t, runErr, sizecheck.ErrProgramTooLarge)
	assert.Equal(t, 1, st.ExitStatus(runErr))
}

func TestRuntime_Run_UnknownAction(t *testing.T) {
	runtime, _ := newRuntime(t, config.PostActionsConfig{
		config.DefaultTarget: {{Action: "flash"}},
	}, avrSizeOutput)

	_, err := runtime.Run(context.Background(), buildenv.New(), config.DefaultTarget, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown action "flash"`)
}

func TestRuntime_Run_CanceledContext(t *testing.T) {
	runtime, _ := newRuntime(t, config.PostActionsConfig{
		config.DefaultTarget: {{Action: "status"}},
	}, avrSizeOutput)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := runtime.Run(ctx, testEnv(&bytes.Buffer{}, 32256), config.DefaultTarget, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.ExitCode)
	assert.Empty(t, result.Actions)
	require.ErrorIs(t, result.Err(), context.Canceled)
}
