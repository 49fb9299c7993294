package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComponentLoggerRespectsLevelAndTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "info", Format: "text", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	logger := NewComponentLogger("llm")
	logger.Debug("hidden %d", 1)
	logger.Info("sent %s", "request")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "sent request")
	assert.Contains(t, out, "component=llm")
}

func TestComponentLoggerJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Format: "json", Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	NewComponentLogger("pipeline").Warn("stage %s failed", "audit")
	assert.Contains(t, buf.String(), `"msg":"stage audit failed"`)
	assert.Contains(t, buf.String(), `"component":"pipeline"`)
}

func TestOrNop(t *testing.T) {
	var typed *componentLogger
	assert.True(t, IsNil(typed))
	assert.NotNil(t, OrNop(typed))
	OrNop(nil).Info("no panic")
}

func TestSanitizeAPIKey(t *testing.T) {
	assert.Equal(t, "***", SanitizeAPIKey("short"))
	assert.Equal(t, "sk-12345...cdef", SanitizeAPIKey("sk-1234567890abcdef"))
}
