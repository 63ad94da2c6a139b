// Package agent assembles a remote-management agent: the built-in command
// set, its persistence, metrics and the session that keeps it online.
package agent

import (
	"context"
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/multierr"

	"github.com/younglifestyle/conflate4go/alarm"
	"github.com/younglifestyle/conflate4go/command"
	"github.com/younglifestyle/conflate4go/common"
	"github.com/younglifestyle/conflate4go/session"
	"github.com/younglifestyle/conflate4go/store"
	"github.com/younglifestyle/conflate4go/store/memstore"
)

// Agent is one managed endpoint. Create it with New, add extra commands
// with Register, then call Run.
type Agent struct {
	opts Options

	registry   *command.Registry
	dispatcher *command.Dispatcher
	session    *session.Manager
	alarms     *alarm.Queue
	store      store.Store
	ownsStore  bool
	metrics    *Metrics
	logger     common.Logger

	closed *atomic.Bool
}

// New builds an agent and registers the built-in commands.
func New(opts Options) (*Agent, error) {
	if opts.JID == "" {
		return nil, ErrJIDRequired
	}
	opts.applyDefaults()

	metrics, err := newMetrics(opts.MetricsRegistry)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		opts:     opts,
		registry: command.NewRegistry(),
		alarms:   alarm.NewQueue(),
		store:    opts.Store,
		metrics:  metrics,
		logger:   opts.Logger,
		closed:   atomic.NewBool(false),
	}
	if a.store == nil {
		a.store = memstore.New()
		a.ownsStore = true
	}
	if a.opts.GetStats == nil {
		a.opts.GetStats = a.metricsStats
	}
	if a.opts.ResetStats == nil {
		a.opts.ResetStats = a.resetMetrics
	}
	if a.opts.PingTest == nil {
		a.opts.PingTest = TCPPingTest
	}
	a.dispatcher = command.NewDispatcher(a.registry, a.logger)

	if err := a.registerBuiltins(); err != nil {
		return nil, err
	}

	a.session, err = session.New(session.Config{
		Credentials: session.Credentials{
			JID:      opts.JID,
			Password: opts.Password,
			Host:     opts.Host,
		},
		SoftwareName:    opts.SoftwareName,
		SoftwareVersion: opts.SoftwareVersion,
		AlarmRecipient:  opts.AlarmRecipient,
		Timeouts:        opts.Timeouts,
		Logging:         opts.Logging,
		Logger:          a.logger,
		OnStoredConfig:  a.opts.OnNewConfig,
	}, opts.Dialer, a.dispatcher, a.store, a.alarms)
	if err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}
	metrics.observe(a.session.Events())
	if err := metrics.watchStanzas(a.session.Stats); err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}
	return a, nil
}

// Register adds a command. It fails once Run has started.
func (a *Agent) Register(def command.Definition) error {
	return a.registry.Register(def)
}

// Run keeps the agent connected until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	return a.session.Run(ctx)
}

// RaiseAlarm queues rec for delivery. Safe for concurrent use.
func (a *Agent) RaiseAlarm(rec alarm.Record) {
	a.alarms.Put(rec)
	a.metrics.alarmRaised()
}

func (a *Agent) Session() *session.Manager { return a.session }

func (a *Agent) Events() *session.Events { return a.session.Events() }

func (a *Agent) Metrics() *Metrics { return a.metrics }

func (a *Agent) Store() store.Store { return a.store }

// Close releases the traffic log, and the store when the agent created it.
// Call it after Run returns.
func (a *Agent) Close() error {
	if !a.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := a.session.Close()
	if a.ownsStore {
		err = multierr.Append(err, a.store.Close())
	}
	return err
}
