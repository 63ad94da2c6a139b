package session

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/younglifestyle/conflate4go/stanza"
)

// LoggingMode selects how much of each stanza the traffic log records.
type LoggingMode int

const (
	LoggingModeUnset LoggingMode = iota
	// LoggingModeSummary writes direction, stanza name, type and id.
	LoggingModeSummary
	// LoggingModeXML additionally writes the serialized stanza.
	LoggingModeXML
)

// LoggingConfig configures the stanza traffic log.
type LoggingConfig struct {
	Enabled bool
	Mode    LoggingMode
	// ExcludeKeepalive drops the whitespace keepalive lines.
	ExcludeKeepalive bool
	Writer           io.Writer

	// Log rotation, used when LogFile is set.
	LogFile    string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

func (c *LoggingConfig) applyDefaults() {
	if !c.Enabled {
		return
	}
	if c.Mode == LoggingModeUnset {
		c.Mode = LoggingModeSummary
	}
	if c.LogFile != "" && c.Writer == nil {
		c.Writer = &lumberjack.Logger{
			Filename:   c.LogFile,
			MaxSize:    c.MaxSize,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAge,
			Compress:   c.Compress,
		}
	}
}

type trafficLogger struct {
	mu   sync.Mutex
	cfg  LoggingConfig
	now  func() time.Time
	sink io.Writer
}

func newTrafficLogger(cfg LoggingConfig) *trafficLogger {
	cfg.applyDefaults()
	if !cfg.Enabled || cfg.Writer == nil {
		return nil
	}
	return &trafficLogger{cfg: cfg, now: time.Now, sink: cfg.Writer}
}

func (l *trafficLogger) stanza(dir string, el *stanza.Element) {
	if l == nil {
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s", l.now().Format(time.RFC3339Nano), dir, el.Name)
	if t := el.Type(); t != "" {
		fmt.Fprintf(&b, " type=%s", t)
	}
	if id := el.ID(); id != "" {
		fmt.Fprintf(&b, " id=%s", id)
	}
	if l.cfg.Mode == LoggingModeXML {
		b.WriteByte(' ')
		b.Write(el.Bytes())
	}
	b.WriteByte('\n')
	l.write(b.String())
}

func (l *trafficLogger) keepalive() {
	if l == nil || l.cfg.ExcludeKeepalive {
		return
	}
	l.write(fmt.Sprintf("%s TX keepalive\n", l.now().Format(time.RFC3339Nano)))
}

func (l *trafficLogger) write(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.sink, line)
}

func (l *trafficLogger) Close() error {
	if l == nil {
		return nil
	}
	if c, ok := l.sink.(*lumberjack.Logger); ok {
		return c.Close()
	}
	return nil
}
