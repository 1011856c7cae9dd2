package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})

	Info("hello")

	assert.Contains(t, buf.String(), `"message":"hello"`)
}

func TestWithRepoAddsField(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})

	WithRepo("alice/photos").Info().Msg("wrote object")

	assert.True(t, strings.Contains(buf.String(), `"repo":"alice/photos"`))
}

func TestDebugSuppressedAtInfoLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})

	Debug("should not appear")

	assert.Empty(t, buf.String())
}
