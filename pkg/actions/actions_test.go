package actions

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaklabco/fwstat/config"
	"github.com/yaklabco/fwstat/pkg/buildenv"
	"github.com/yaklabco/fwstat/pkg/sizecheck"
	"github.com/yaklabco/fwstat/pkg/st"
	"github.com/yaklabco/fwstat/pkg/status"
)

const avrSizeOutput = `   text	   data	    bss	    dec	    hex	filename
  24000	    120	   1914	  26034	   65b2	.pio/build/uno/firmware.elf
`

const testCommit = "1a2b3c4 Add blink sketch"

var errGitMissing = errors.New("git: executable file not found")

func sizeRunner(output string) sizecheck.Runner {
	return func(context.Context, *buildenv.Env, string, ...string) (string, error) {
		return output, nil
	}
}

func commitSummary(summary string) func(context.Context, string) (string, error) {
	return func(context.Context, string) (string, error) {
		return summary, nil
	}
}

func testEnv(stdout *bytes.Buffer, maxProgram int64) *buildenv.Env {
	return buildenv.New(
		buildenv.WithVars(map[string]string{
			buildenv.VarBoard:    "uno",
			buildenv.VarSizeTool: "avr-size",
		}),
		buildenv.WithProcessEnv(map[string]string{"PATH": "/opt/toolchain/bin"}),
		buildenv.WithBoard(buildenv.NewBoard("uno", map[string]any{
			buildenv.KeyMaxProgramSize: maxProgram,
			buildenv.KeyMaxDataSize:    2048,
		})),
		buildenv.WithOutput(stdout, &bytes.Buffer{}),
	)
}

func testDeps(t *testing.T, output string) Deps {
	t.Helper()

	cfg := config.DefaultConfig()
	return Deps{
		Config:        cfg,
		Dir:           t.TempDir(),
		CommitSummary: commitSummary(testCommit),
		NextVersion:   func() (string, error) { return "v1.3.0", nil },
		SizeRunner:    sizeRunner(output),
		Width:         80,
	}
}

func TestStatus_AppendsBlock(t *testing.T) {
	deps := testDeps(t, avrSizeOutput)
	var stdout bytes.Buffer

	action := deps.Status(nil)
	for range 2 {
		require.NoError(t, action(context.Background(), config.DefaultTarget, []string{"firmware.elf"}, testEnv(&stdout, 32256)))
	}

	assert.Equal(t, "Generate status.txt file\nGenerate status.txt file\n", stdout.String())

	entries, err := status.Read(filepath.Join(deps.Dir, config.DefaultStatusFile))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, entry := range entries {
		assert.Equal(t, testCommit, entry.Commit)
		assert.Equal(t, []string{
			sizecheck.Banner,
			"RAM:   [==========]  99.3% (used 2034 bytes from 2048 bytes)",
			"Flash: [=======   ]  74.8% (used 24120 bytes from 32256 bytes)",
		}, entry.Lines)
	}
}

func TestStatus_PathArgument(t *testing.T) {
	deps := testDeps(t, avrSizeOutput)
	var stdout bytes.Buffer

	action := deps.Status([]string{"build-status.log"})
	require.NoError(t, action(context.Background(), config.DefaultTarget, []string{"firmware.elf"}, testEnv(&stdout, 32256)))

	assert.Equal(t, "Generate build-status.log file\n", stdout.String())
	assert.FileExists(t, filepath.Join(deps.Dir, "build-status.log"))
	assert.NoFileExists(t, filepath.Join(deps.Dir, config.DefaultStatusFile))
}

func TestStatus_ProgramTooLargeStillAppends(t *testing.T) {
	deps := testDeps(t, avrSizeOutput)
	var stdout bytes.Buffer

	err := deps.Status(nil)(context.Background(), config.DefaultTarget, []string{"firmware.elf"}, testEnv(&stdout, 16384))
	require.ErrorIs(t, err, sizecheck.ErrProgramTooLarge)
	assert.Equal(t, 1, st.ExitStatus(err))

	entries, err := status.Read(filepath.Join(deps.Dir, config.DefaultStatusFile))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Lines, "Flash: [==========]  147.2% (used 24120 bytes from 16384 bytes)")
}

func TestStatus_CommitError(t *testing.T) {
	deps := testDeps(t, avrSizeOutput)
	deps.CommitSummary = func(context.Context, string) (string, error) { return "", errGitMissing }

	err := deps.Status(nil)(context.Background(), config.DefaultTarget, nil, testEnv(&bytes.Buffer{}, 32256))
	require.ErrorIs(t, err, errGitMissing)
	assert.NoFileExists(t, filepath.Join(deps.Dir, config.DefaultStatusFile))
}

func TestStatus_NoBoardRecordsCommitOnly(t *testing.T) {
	deps := testDeps(t, avrSizeOutput)
	env := buildenv.New(buildenv.WithOutput(&bytes.Buffer{}, &bytes.Buffer{}))

	require.NoError(t, deps.Status(nil)(context.Background(), config.DefaultTarget, nil, env))

	data, err := os.ReadFile(filepath.Join(deps.Dir, config.DefaultStatusFile))
	require.NoError(t, err)
	assert.Equal(t, testCommit+"\n\n", string(data))
}

func TestSizeCheck_PrintsReport(t *testing.T) {
	deps := testDeps(t, avrSizeOutput)
	var stdout bytes.Buffer

	require.NoError(t, deps.SizeCheck()(context.Background(), config.DefaultTarget, []string{"firmware.elf"}, testEnv(&stdout, 32256)))

	assert.Contains(t, stdout.String(), sizecheck.Banner)
	assert.Contains(t, stdout.String(), "Flash: [=======   ]  74.8%")
	assert.NoFileExists(t, filepath.Join(deps.Dir, config.DefaultStatusFile))
}

func TestEnvDump(t *testing.T) {
	deps := testDeps(t, avrSizeOutput)
	deps.Config.RecordVersion = true
	var stdout bytes.Buffer

	action, err := deps.EnvDump(nil)
	require.NoError(t, err)
	require.NoError(t, action(context.Background(), config.DefaultTarget, []string{"firmware.elf"}, testEnv(&stdout, 32256)))

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	assert.Equal(t, []string{
		"Build environment",
		"COMMIT = " + testCommit,
		"TARGET = checkprogsize",
		"SOURCES = firmware.elf",
		"VERSION = v1.3.0",
		"BOARD = uno",
		"PATH = /opt/toolchain/bin",
		"SIZETOOL = avr-size",
		"board.upload.maximum_ram_size = 2048",
		"board.upload.maximum_size = 32256",
	}, lines)
}

func TestEnvDump_FiltersAndWraps(t *testing.T) {
	deps := testDeps(t, avrSizeOutput)
	deps.Width = 40
	var stdout bytes.Buffer

	env := testEnv(&stdout, 32256)
	env.Replace(map[string]string{"BUILD_FLAGS": "-DDEBUG -DUART_BAUD=115200 -DLED_PIN=13 -Os -flto"})

	action, err := deps.EnvDump([]string{"BUILD_*"})
	require.NoError(t, err)
	require.NoError(t, action(context.Background(), config.DefaultTarget, nil, env))

	out := stdout.String()
	assert.NotContains(t, out, "SIZETOOL")
	assert.Contains(t, out, "BUILD_FLAGS = -DDEBUG -DUART_BAUD=115200\n")
	assert.Contains(t, out, "\n              -DLED_PIN=13 -Os -flto\n")
}

func TestEnvDump_InvalidFilter(t *testing.T) {
	deps := testDeps(t, "")

	_, err := deps.EnvDump([]string{"[unterminated"})
	require.Error(t, err)
}

func TestParseKind(t *testing.T) {
	for _, name := range config.KnownActionNames() {
		kind, err := ParseKind(name)
		require.NoError(t, err)
		assert.Equal(t, name, kind.String())
	}

	_, err := ParseKind("flash")
	require.Error(t, err)
	assert.Equal(t, "Kind(9)", Kind(9).String())
}
