package buildenv

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaklabco/fwstat/config"
)

const unoManifest = `{
  "build": {"core": "arduino", "mcu": "atmega328p"},
  "name": "Arduino Uno",
  "upload": {
    "maximum_ram_size": 2048,
    "maximum_size": 32256,
    "protocol": "arduino"
  }
}`

func writeManifest(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadBoard(t *testing.T) {
	board, err := LoadBoard(writeManifest(t, "uno.json", unoManifest))
	require.NoError(t, err)

	assert.Equal(t, "uno", board.ID())
	assert.Equal(t, int64(32256), board.Int(KeyMaxProgramSize, 0))
	assert.Equal(t, int64(2048), board.Int(KeyMaxDataSize, 0))
	assert.Equal(t, int64(7), board.Int("upload.missing", 7))
	assert.Equal(t, "atmega328p", board.Get("build.mcu"))
	assert.Contains(t, board.Keys(), "upload.protocol")
}

func TestLoadBoard_Missing(t *testing.T) {
	_, err := LoadBoard(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}

func TestBoard_NilIsEmpty(t *testing.T) {
	var board *Board

	assert.Empty(t, board.ID())
	assert.Nil(t, board.Get(KeyMaxProgramSize))
	assert.Equal(t, int64(0), board.Int(KeyMaxProgramSize, 0))
	assert.Empty(t, board.Keys())
	board.Set(KeyMaxProgramSize, 1)
}

func TestNewBoard_StringValues(t *testing.T) {
	board := NewBoard("custom", map[string]any{KeyMaxProgramSize: "131072"})

	assert.Equal(t, int64(131072), board.Int(KeyMaxProgramSize, 0))
}

func TestEnv_Subst(t *testing.T) {
	e := New(
		WithVars(map[string]string{VarSizeTool: "avr-size", "FLAGS": "-B -d"}),
		WithProcessEnv(map[string]string{"TOOLCHAIN": "/opt/avr/bin", VarSizeTool: "shadowed"}),
	)

	assert.Equal(t, "avr-size -B -d", e.Subst("$SIZETOOL ${FLAGS}"))
	assert.Equal(t, "/opt/avr/bin/avr-size", e.Subst("$TOOLCHAIN/$SIZETOOL"))
	assert.Empty(t, e.Subst("$UNSET_VARIABLE"))
}

func TestEnv_ReplaceAndLookup(t *testing.T) {
	e := New()

	_, ok := e.Lookup(VarSizeCheckCmd)
	assert.False(t, ok)

	e.Replace(map[string]string{VarSizeCheckCmd: "$SIZETOOL $SOURCES"})
	v, ok := e.Lookup(VarSizeCheckCmd)
	assert.True(t, ok)
	assert.Equal(t, "$SIZETOOL $SOURCES", v)
	assert.Equal(t, []string{VarSizeCheckCmd}, e.VarNames())
}

func TestEnv_Verbose(t *testing.T) {
	assert.False(t, New().Verbose())
	assert.True(t, New(WithVars(map[string]string{VarVerbose: "1"})).Verbose())
	assert.False(t, New(WithVars(map[string]string{VarVerbose: "0"})).Verbose())
}

func TestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BoardManifest = writeManifest(t, "uno.json", unoManifest)
	cfg.SizeTool = "configured-size"
	cfg.MaxDataSize = 4096

	e, err := FromConfig(cfg, map[string]string{
		VarSizeTool: "avr-size",
		"PATH":      "/usr/bin",
	})
	require.NoError(t, err)

	assert.Equal(t, "avr-size", e.Get(VarSizeTool), "process environment wins over config")
	assert.Equal(t, "uno", e.Get(VarBoard))
	assert.Equal(t, int64(32256), e.BoardConfig().Int(KeyMaxProgramSize, 0))
	assert.Equal(t, int64(4096), e.BoardConfig().Int(KeyMaxDataSize, 0))
	assert.Equal(t, "/usr/bin", e.ExecEnv()["PATH"])
	_, hasCmd := e.Lookup(VarSizeCheckCmd)
	assert.False(t, hasCmd, "empty config values are not set as variables")
}

func TestFromConfig_NoManifest(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Board = "bluepill"
	cfg.MaxProgramSize = 65536

	e, err := FromConfig(cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, "bluepill", e.BoardConfig().ID())
	assert.Equal(t, int64(65536), e.BoardConfig().Int(KeyMaxProgramSize, 0))
}

func TestFromConfig_BadManifest(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BoardManifest = writeManifest(t, "broken.json", "{not json")

	_, err := FromConfig(cfg, nil)
	require.Error(t, err)
}

func TestRunPostActions_MatchingAndOrder(t *testing.T) {
	var stdout bytes.Buffer
	e := New(WithOutput(&stdout, &stdout))

	var calls []string
	record := func(name string) Action {
		return func(_ context.Context, target string, sources []string, env *Env) error {
			calls = append(calls, name+":"+target+":"+sources[0])
			assert.Same(t, e, env)
			return nil
		}
	}

	require.NoError(t, e.AddPostAction("checkprogsize", record("exact")))
	require.NoError(t, e.AddPostAction("check*", record("glob")))
	require.NoError(t, e.AddPostAction("upload", record("other")))

	require.NoError(t, e.RunPostActions(context.Background(), "checkprogsize", []string{"firmware.elf"}))

	assert.Equal(t, []string{"exact:checkprogsize:firmware.elf", "glob:checkprogsize:firmware.elf"}, calls)
	assert.Equal(t, 2, e.PostActionCount("checkprogsize"))
	assert.Equal(t, 0, e.PostActionCount("buildprog"))
}

func TestRunPostActions_FailFast(t *testing.T) {
	e := New()
	errBoom := errors.New("boom")

	ran := 0
	require.NoError(t, e.AddPostAction("*", func(context.Context, string, []string, *Env) error {
		ran++
		return errBoom
	}))
	require.NoError(t, e.AddPostAction("*", func(context.Context, string, []string, *Env) error {
		ran++
		return nil
	}))

	err := e.RunPostActions(context.Background(), "checkprogsize", nil)
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, 1, ran)
}

func TestRunPostActions_CanceledContext(t *testing.T) {
	e := New()
	require.NoError(t, e.AddPostAction("*", func(context.Context, string, []string, *Env) error {
		t.Fatal("action must not run on a canceled context")
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, e.RunPostActions(ctx, "checkprogsize", nil), context.Canceled)
}

func TestAddPostAction_InvalidPattern(t *testing.T) {
	require.Error(t, New().AddPostAction("check[", nil))
}
