package common

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFormatLogMsg(t *testing.T) {
	cases := []struct {
		name string
		kv   []interface{}
		want string
	}{
		{"no pairs", nil, "hello"},
		{"one pair", []interface{}{"k", 1}, "hello k=1"},
		{"odd pair", []interface{}{"k", "v", "dangling"}, "hello k=v EXTRA=dangling"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, formatLogMsg("hello", tc.kv))
		})
	}
}

func TestStdLoggerDebugGate(t *testing.T) {
	var buf bytes.Buffer
	quiet := NewStdLogger(&buf, "", false)
	quiet.Debug("hidden")
	quiet.Info("shown", "n", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "INFO: shown n=2")

	buf.Reset()
	loud := NewStdLogger(&buf, "", true)
	loud.Debug("visible")
	assert.True(t, strings.Contains(buf.String(), "DEBUG: visible"))
}

func TestWrapZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := WrapZap(zap.New(core))

	logger.Warn("disconnected", "attempt", 3)

	entries := logs.FilterMessage("disconnected").All()
	if assert.Len(t, entries, 1) {
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
		assert.EqualValues(t, 3, entries[0].ContextMap()["attempt"])
	}
}

func TestNewZapLoggerRejectsBadLevel(t *testing.T) {
	_, _, err := NewZapLogger(ZapLoggerOptions{Level: "loud"})
	assert.Error(t, err)
}

func TestEventFireOrder(t *testing.T) {
	var ev Event
	var order []int
	ev.AddCallback(func(map[string]interface{}) { order = append(order, 1) })
	ev.AddCallback(func(map[string]interface{}) { order = append(order, 2) })

	ev.Fire(nil)

	assert.Equal(t, []int{1, 2}, order)
	assert.Equal(t, 2, ev.Len())
}
