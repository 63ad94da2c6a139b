package session

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/younglifestyle/conflate4go/stanza"
)

func TestTrafficLoggerModes(t *testing.T) {
	tests := []struct {
		name string
		cfg  LoggingConfig
		want string
	}{
		{"disabled", LoggingConfig{}, ""},
		{"summary", LoggingConfig{Enabled: true}, "2026-01-02T03:04:05Z TX iq type=result id=q1\n2026-01-02T03:04:05Z TX keepalive\n"},
		{"xml", LoggingConfig{Enabled: true, Mode: LoggingModeXML, ExcludeKeepalive: true},
			`2026-01-02T03:04:05Z TX iq type=result id=q1 <iq type="result" id="q1"/>` + "\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			tc.cfg.Writer = &buf
			l := newTrafficLogger(tc.cfg)
			if l != nil {
				l.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
			}

			l.stanza("TX", stanza.New("iq").SetAttr("type", "result").SetAttr("id", "q1"))
			l.keepalive()

			assert.Equal(t, tc.want, buf.String())
		})
	}
}
