package session

import "time"

// Timeouts holds the session timers.
type Timeouts struct {
	// default 60s, interval between whitespace keepalives
	keepalive time.Duration
	// default 5s, fixed pause between a lost connection and the next attempt
	reconnectDelay time.Duration
	// default 1s, interval between alarm queue drains
	alarmInterval time.Duration
	// default 30s, upper bound for one dial including stream setup
	connectTimeout time.Duration
}

func NewTimeouts() *Timeouts {
	return &Timeouts{
		keepalive:      60 * time.Second,
		reconnectDelay: 5 * time.Second,
		alarmInterval:  time.Second,
		connectTimeout: 30 * time.Second,
	}
}

func (t *Timeouts) Keepalive() time.Duration {
	return t.keepalive
}

func (t *Timeouts) SetKeepalive(d time.Duration) {
	t.keepalive = d
}

func (t *Timeouts) ReconnectDelay() time.Duration {
	return t.reconnectDelay
}

func (t *Timeouts) SetReconnectDelay(d time.Duration) {
	t.reconnectDelay = d
}

func (t *Timeouts) AlarmInterval() time.Duration {
	return t.alarmInterval
}

func (t *Timeouts) SetAlarmInterval(d time.Duration) {
	t.alarmInterval = d
}

func (t *Timeouts) ConnectTimeout() time.Duration {
	return t.connectTimeout
}

func (t *Timeouts) SetConnectTimeout(d time.Duration) {
	t.connectTimeout = d
}

// normalize replaces non-positive values with the defaults.
func (t *Timeouts) normalize() {
	def := NewTimeouts()
	if t.keepalive <= 0 {
		t.keepalive = def.keepalive
	}
	if t.reconnectDelay < 0 {
		t.reconnectDelay = def.reconnectDelay
	}
	if t.alarmInterval <= 0 {
		t.alarmInterval = def.alarmInterval
	}
	if t.connectTimeout <= 0 {
		t.connectTimeout = def.connectTimeout
	}
}
