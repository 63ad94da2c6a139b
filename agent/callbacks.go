package agent

import (
	"context"
	"net"
	"time"

	"github.com/spf13/cast"

	"github.com/younglifestyle/conflate4go/command"
	"github.com/younglifestyle/conflate4go/form"
	"github.com/younglifestyle/conflate4go/transport/tcp"
)

const (
	// DefaultPingTimeout bounds each dial of TCPPingTest.
	DefaultPingTimeout = 2 * time.Second
	// MaxPingTimeout caps the per-dial timeout a request may ask for.
	MaxPingTimeout = 10 * time.Second
)

// metricsStats reports the agent's own counters, one field per sample.
func (a *Agent) metricsStats(_ context.Context, subtype string, _ *form.Form, rb *command.ResponseBuilder) error {
	samples, err := a.metrics.Samples(subtype)
	if err != nil {
		return err
	}
	rb.EnsureContainer()
	for _, s := range samples {
		rb.AddField(s.Name, cast.ToString(s.Value))
	}
	return nil
}

func (a *Agent) resetMetrics(_ context.Context, subtype string, _ *form.Form) error {
	return a.metrics.Reset(subtype)
}

// TCPPingTest dials every address in the "servers" field and reports one
// fieldset per server with its result and the time the dial took. The
// optional "timeout" field bounds each dial, up to MaxPingTimeout. Addresses
// without a port use the client port.
func TCPPingTest(ctx context.Context, req *form.Form, rb *command.ResponseBuilder) error {
	timeout, err := pingTimeout(req)
	if err != nil {
		return err
	}

	servers, _ := req.Get("servers")
	rb.EnsureContainer()
	for _, server := range servers {
		if err := rb.NextFieldset(); err != nil {
			return err
		}
		rb.AddField("server", server)

		addr := server
		if _, _, err := net.SplitHostPort(addr); err != nil {
			addr = net.JoinHostPort(addr, tcp.DefaultPort)
		}

		dialCtx, cancel := context.WithTimeout(ctx, timeout)
		start := time.Now()
		var d net.Dialer
		conn, err := d.DialContext(dialCtx, "tcp", addr)
		elapsed := time.Since(start)
		cancel()

		if err != nil {
			rb.AddField("result", "failed")
			rb.AddField("error", err.Error())
			continue
		}
		_ = conn.Close()
		rb.AddField("result", "ok")
		rb.AddField("elapsed", elapsed.String())
	}
	return nil
}

func pingTimeout(req *form.Form) (time.Duration, error) {
	d, ok, err := req.Duration("timeout")
	switch {
	case err != nil:
		return 0, err
	case !ok || d <= 0:
		return DefaultPingTimeout, nil
	case d > MaxPingTimeout:
		return MaxPingTimeout, nil
	}
	return d, nil
}
