package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/younglifestyle/conflate4go/session"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "conflated.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := parseConfig([]string{"--jid", "agent@example.com"})
	require.NoError(t, err)

	assert.Equal(t, "agent@example.com", cfg.JID)
	assert.Equal(t, "bolt", cfg.Store.Driver)
	assert.Equal(t, "conflate.db", cfg.Store.Path)
	assert.Equal(t, 5*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 60*time.Second, cfg.Keepalive)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestParseConfigFileThenFlags(t *testing.T) {
	path := writeConfig(t, `
jid: agent@example.com/box
password: secret
host: relay.example.com:5223
store:
  driver: sqlite
  path: /var/lib/conflate/agent.db
log:
  level: debug
traffic:
  file: /var/log/conflate/traffic.log
  xml: true
reconnect_delay: 10s
metrics_addr: ":9100"
`)

	cfg, err := parseConfig([]string{"--config", path, "--store-driver", "memory", "--reconnect-delay", "1s"})
	require.NoError(t, err)

	assert.Equal(t, "agent@example.com/box", cfg.JID)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, "relay.example.com:5223", cfg.Host)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "/var/lib/conflate/agent.db", cfg.Store.Path)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 60*time.Second, cfg.Keepalive)
	assert.Equal(t, ":9100", cfg.MetricsAddr)
	assert.True(t, cfg.Traffic.XML)
}

func TestParseConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"missing jid", nil, "jid is required"},
		{"unknown driver", []string{"--jid", "a@b", "--store-driver", "etcd"}, `unknown store driver "etcd"`},
		{"empty path", []string{"--jid", "a@b", "--store-path", ""}, "store path is required"},
		{"negative delay", []string{"--jid", "a@b", "--reconnect-delay=-1s"}, "reconnect delay"},
		{"extra argument", []string{"--jid", "a@b", "now"}, "unexpected argument: now"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseConfig(tc.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestParseConfigBadFile(t *testing.T) {
	_, err := parseConfig([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})
	assert.ErrorContains(t, err, "read config")

	path := writeConfig(t, "jid: [unterminated")
	_, err = parseConfig([]string{"--config", path})
	assert.ErrorContains(t, err, "parse config")
}

func TestParseConfigHelp(t *testing.T) {
	_, err := parseConfig([]string{"--help"})
	assert.ErrorIs(t, err, pflag.ErrHelp)
}

func TestTrafficLogging(t *testing.T) {
	assert.False(t, trafficLogging(TrafficConfig{}).Enabled)

	lc := trafficLogging(TrafficConfig{File: "traffic.log", XML: true})
	assert.True(t, lc.Enabled)
	assert.Equal(t, session.LoggingModeXML, lc.Mode)
	assert.True(t, lc.ExcludeKeepalive)
	assert.Equal(t, "traffic.log", lc.LogFile)
}
