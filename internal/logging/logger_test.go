package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConsoleHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelDebug, Output: &buf})

	l.Info("bridge created", "bridge", "br-alpha")

	out := buf.String()
	assert.Contains(t, out, "[info]")
	assert.Contains(t, out, "bridge created")
	assert.Contains(t, out, "bridge=br-alpha")
}

func TestComponentPromotedToHeader(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelDebug, Output: &buf}).WithComponent("subnet")

	l.Warn("namespace already exists")

	out := buf.String()
	assert.Contains(t, out, "subnet: namespace already exists")
	assert.NotContains(t, out, "component=")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Output: &buf})

	l.Debug("hidden")
	l.Info("hidden too")
	l.Error("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf, JSON: true})

	l.Info("made it", "op", "create-vpc")

	assert.Contains(t, buf.String(), `"op":"create-vpc"`)
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelInfo, Output: &buf})

	l.Debug("before")
	l.SetLevel(LevelDebug)
	l.Debug("after")

	out := buf.String()
	assert.NotContains(t, out, "before")
	assert.Contains(t, out, "after")
}
