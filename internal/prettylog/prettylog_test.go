package prettylog

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetup_DebugLevel(t *testing.T) {
	orig := slog.Default()
	t.Cleanup(func() { slog.SetDefault(orig) })

	var buf bytes.Buffer
	Setup(&buf, false)
	slog.Debug("hidden message")
	assert.NotContains(t, buf.String(), "hidden message")

	buf.Reset()
	Setup(&buf, true)
	slog.Debug("shown message", slog.String("target", "checkprogsize"))
	assert.Contains(t, buf.String(), "shown message")
	assert.Contains(t, buf.String(), "checkprogsize")
}
