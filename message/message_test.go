package message

import (
	"testing"

	"github.com/nuclear-go/nuclear/topology"
	"github.com/stretchr/testify/assert"
)

func TestLogLevel_StringCoversEveryLevel(t *testing.T) {
	cases := []struct {
		level LogLevel
		want  string
	}{
		{LogTrace, "trace"},
		{LogDebug, "debug"},
		{LogInfo, "info"},
		{LogWarn, "warn"},
		{LogError, "error"},
		{LogFatal, "fatal"},
		{LogLevel(99), "unknown"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.level.String())
	}
}

func TestLogLevel_OrdersBySeverity(t *testing.T) {
	assert.Less(t, int(LogTrace), int(LogDebug))
	assert.Less(t, int(LogDebug), int(LogInfo))
	assert.Less(t, int(LogInfo), int(LogWarn))
	assert.Less(t, int(LogWarn), int(LogError))
	assert.Less(t, int(LogError), int(LogFatal))
}

func TestIdle_PoolDefaultsToZeroValue(t *testing.T) {
	var m Idle
	assert.Equal(t, topology.PoolID(0), m.Pool)
}
