package core

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductionLoggerWithComponentTagsJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	base := &ProductionLogger{serviceName: "gateway", format: "json", output: &buf}

	tagged := base.WithComponent("gateway/workflow")
	tagged.Info("step started", map[string]interface{}{"step": "draw"})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "gateway/workflow", entry["component"])
	assert.Equal(t, "step started", entry["message"])
}

func TestProductionLoggerWithoutComponentOmitsField(t *testing.T) {
	var buf bytes.Buffer
	base := &ProductionLogger{serviceName: "gateway", format: "json", output: &buf}
	base.Info("hello", nil)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	_, present := entry["component"]
	assert.False(t, present)
}

func TestProductionLoggerWithComponentTagsTextOutput(t *testing.T) {
	var buf bytes.Buffer
	base := &ProductionLogger{serviceName: "gateway", format: "text", output: &buf}

	tagged := base.WithComponent("gateway/http")
	tagged.Info("request handled", nil)

	assert.Contains(t, buf.String(), "[gateway/http]")
}

func TestProductionLoggerImplementsComponentAwareLogger(t *testing.T) {
	var logger Logger = &ProductionLogger{serviceName: "gateway", format: "json", output: &bytes.Buffer{}}
	_, ok := logger.(ComponentAwareLogger)
	assert.True(t, ok)
}
