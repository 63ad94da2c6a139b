package agent

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/younglifestyle/conflate4go/command"
	"github.com/younglifestyle/conflate4go/common"
	"github.com/younglifestyle/conflate4go/form"
	"github.com/younglifestyle/conflate4go/session"
	"github.com/younglifestyle/conflate4go/store"
	"github.com/younglifestyle/conflate4go/transport/tcp"
)

const (
	DefaultSoftwareName    = "conflate4go"
	DefaultSoftwareVersion = "1.0"
	// alarmMailbox is the local part of the default alarm recipient.
	alarmMailbox = "alarms"
)

// ErrJIDRequired is returned by New when Options.JID is empty.
var ErrJIDRequired = errors.New("agent: jid is required")

// NewConfigFunc receives every configuration accepted by the agent,
// including the one loaded from the store at startup.
type NewConfigFunc func(conf *form.Form)

// StatsFunc writes the stats of the given subtype into rb. An empty subtype
// asks for the default set.
type StatsFunc func(ctx context.Context, subtype string, req *form.Form, rb *command.ResponseBuilder) error

// ResetStatsFunc resets the stats of the given subtype.
type ResetStatsFunc func(ctx context.Context, subtype string, req *form.Form) error

// PingTestFunc runs a connectivity test described by req and reports into rb.
type PingTestFunc func(ctx context.Context, req *form.Form, rb *command.ResponseBuilder) error

// Options configures an Agent.
type Options struct {
	JID      string
	Password string
	// Host overrides the server address derived from the JID.
	Host string

	SoftwareName    string
	SoftwareVersion string

	// AlarmRecipient receives alarm notifications. Defaults to
	// alarms@<jid domain>.
	AlarmRecipient string

	// Store persists configuration and private values. Defaults to an
	// in-memory store owned by the agent.
	Store store.Store
	// Dialer defaults to a tcp.Dialer.
	Dialer   session.Dialer
	Timeouts *session.Timeouts
	Logging  session.LoggingConfig
	Logger   common.Logger
	// MetricsRegistry receives the agent metrics. Defaults to a private
	// registry.
	MetricsRegistry *prometheus.Registry

	OnNewConfig NewConfigFunc
	GetStats    StatsFunc
	ResetStats  ResetStatsFunc
	PingTest    PingTestFunc
}

func (o *Options) applyDefaults() {
	if o.SoftwareName == "" {
		o.SoftwareName = DefaultSoftwareName
	}
	if o.SoftwareVersion == "" {
		o.SoftwareVersion = DefaultSoftwareVersion
	}
	o.Logger = common.OrNop(o.Logger)
	if o.AlarmRecipient == "" {
		if _, domain, _, err := tcp.SplitJID(o.JID); err == nil {
			o.AlarmRecipient = alarmMailbox + "@" + domain
		}
	}
	if o.Dialer == nil {
		o.Dialer = &tcp.Dialer{Logger: o.Logger}
	}
	if o.Timeouts == nil {
		o.Timeouts = session.NewTimeouts()
	}
	if o.MetricsRegistry == nil {
		o.MetricsRegistry = prometheus.NewRegistry()
	}
	if o.OnNewConfig == nil {
		logger := o.Logger
		o.OnNewConfig = func(conf *form.Form) {
			logger.Info("new configuration", "keys", conf.Keys())
		}
	}
}
