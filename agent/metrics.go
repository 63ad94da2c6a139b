package agent

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/cast"

	"github.com/younglifestyle/conflate4go/session"
)

const metricsNamespace = "conflate"

// Alarm outcomes counted by conflate_alarms_total.
const (
	alarmRaised = "raised"
	alarmSent   = "sent"
)

// Metrics holds the agent's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	commands    *prometheus.CounterVec
	alarms      *prometheus.CounterVec
	transitions *prometheus.CounterVec
	connected   prometheus.Gauge
	stanzas     *stanzaCollector
}

func newMetrics(reg *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		registry: reg,
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commands_total",
			Help:      "Dispatched commands by name and outcome.",
		}, []string{"command", "outcome"}),
		alarms: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "alarms_total",
			Help:      "Alarms raised, sent and discarded, by result.",
		}, []string{"result"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Session state transitions by entered state.",
		}, []string{"state"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "session",
			Name:      "connected",
			Help:      "1 while the session is connected.",
		}),
	}
	for _, c := range []prometheus.Collector{m.commands, m.alarms, m.transitions, m.connected} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// watchStanzas exports the session's stanza totals as
// conflate_session_stanzas_total{direction}.
func (m *Metrics) watchStanzas(stats func() session.Stats) error {
	c := &stanzaCollector{
		stats: stats,
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "session", "stanzas_total"),
			"Stanzas received from and sent to the server, by direction.",
			[]string{"direction"}, nil),
	}
	if err := m.registry.Register(c); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	m.stanzas = c
	return nil
}

// stanzaCollector reads the session's running totals at scrape time.
// Reset moves the baseline instead of touching the session.
type stanzaCollector struct {
	stats func() session.Stats
	desc  *prometheus.Desc

	mu   sync.Mutex
	base session.Stats
}

func (c *stanzaCollector) Describe(ch chan<- *prometheus.Desc) { ch <- c.desc }

func (c *stanzaCollector) Collect(ch chan<- prometheus.Metric) {
	cur := c.stats()
	c.mu.Lock()
	base := c.base
	c.mu.Unlock()
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(cur.Received-base.Received), "received")
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.CounterValue, float64(cur.Sent-base.Sent), "sent")
}

func (c *stanzaCollector) reset() {
	cur := c.stats()
	c.mu.Lock()
	c.base = cur
	c.mu.Unlock()
}

// Registry returns the registry the collectors are registered with.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// observe subscribes the collectors to session events.
func (m *Metrics) observe(events *session.Events) {
	events.StateChanged.AddCallback(func(data map[string]interface{}) {
		to := cast.ToString(data["to"])
		m.transitions.WithLabelValues(to).Inc()
		if to == session.StateConnected {
			m.connected.Set(1)
		} else {
			m.connected.Set(0)
		}
	})
	events.CommandDispatched.AddCallback(func(data map[string]interface{}) {
		m.commands.WithLabelValues(cast.ToString(data["command"]), cast.ToString(data["outcome"])).Inc()
	})
	events.AlarmSent.AddCallback(func(map[string]interface{}) {
		m.alarms.WithLabelValues(alarmSent).Inc()
	})
	events.AlarmDiscarded.AddCallback(func(data map[string]interface{}) {
		m.alarms.WithLabelValues(cast.ToString(data["reason"])).Add(cast.ToFloat64(data["count"]))
	})
}

func (m *Metrics) resetSession() {
	m.transitions.Reset()
	if m.stanzas != nil {
		m.stanzas.reset()
	}
}

func (m *Metrics) alarmRaised() { m.alarms.WithLabelValues(alarmRaised).Inc() }

// Reset clears the counters of subtype ("commands", "alarms", "session"),
// or all of them when subtype is empty. The connected gauge is kept.
func (m *Metrics) Reset(subtype string) error {
	switch subtype {
	case "":
		m.commands.Reset()
		m.alarms.Reset()
		m.resetSession()
	case "commands":
		m.commands.Reset()
	case "alarms":
		m.alarms.Reset()
	case "session":
		m.resetSession()
	default:
		return fmt.Errorf("unknown stats subtype %q", subtype)
	}
	return nil
}

// Sample is one gathered metric value.
type Sample struct {
	Name  string
	Value float64
}

// Samples gathers the agent's counter and gauge values whose family name
// starts with conflate_<subtype>. Names carry their labels in Prometheus
// text form.
func (m *Metrics) Samples(subtype string) ([]Sample, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}
	prefix := metricsNamespace + "_" + subtype

	var samples []Sample
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), prefix) {
			continue
		}
		for _, metric := range mf.GetMetric() {
			var value float64
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				value = metric.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				value = metric.GetGauge().GetValue()
			default:
				continue
			}
			samples = append(samples, Sample{Name: sampleName(mf.GetName(), metric.GetLabel()), Value: value})
		}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].Name < samples[j].Name })
	return samples, nil
}

func sampleName(name string, labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return name
	}
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, fmt.Sprintf("%s=%q", l.GetName(), l.GetValue()))
	}
	return name + "{" + strings.Join(parts, ",") + "}"
}
