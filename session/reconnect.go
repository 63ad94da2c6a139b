package session

import (
	"context"
	"fmt"
)

// Run connects and serves until ctx is cancelled. A lost or failed
// connection is retried after the fixed reconnect delay, forever. Run
// returns nil on cancellation and ErrLoopExited if the loop fails.
func (m *Manager) Run(ctx context.Context) (err error) {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer m.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("session loop exited without cancellation", "panic", r)
			m.disconnect(ctx)
			err = fmt.Errorf("%w: %v", ErrLoopExited, r)
		}
	}()

	m.dispatcher.Registry().Freeze()
	m.loadStoredConfig(ctx)

	for {
		if err := m.connectAndServe(ctx); err != nil && ctx.Err() == nil {
			m.logger.Warn("session ended", "error", err)
		}
		if ctx.Err() != nil {
			m.logger.Info("session stopped")
			return nil
		}

		delay := m.timeouts.ReconnectDelay()
		m.logger.Info("reconnecting", "delay", delay)
		if m.sleep(ctx, delay) != nil {
			m.logger.Info("session stopped")
			return nil
		}
	}
}

// connectAndServe runs one connection from dial to teardown.
func (m *Manager) connectAndServe(ctx context.Context) error {
	if err := m.state.Connect(ctx); err != nil {
		return fmt.Errorf("change state to %s: %w", StateConnecting, err)
	}

	creds := m.cfg.Credentials
	creds.JID = m.resolveJID(ctx)

	dialCtx, cancel := context.WithTimeout(ctx, m.timeouts.ConnectTimeout())
	conn, err := m.dialer.Dial(dialCtx, creds)
	cancel()
	if err != nil {
		m.disconnect(ctx)
		return fmt.Errorf("connect as %s: %w", creds.JID, err)
	}

	m.conn = conn
	if err := m.state.Bind(ctx); err != nil {
		m.disconnect(ctx)
		return fmt.Errorf("change state to %s: %w", StateConnected, err)
	}
	m.logger.Info("connected", "jid", conn.BoundJID())

	err = m.serve(ctx, conn)
	m.disconnect(ctx)
	return err
}

func (m *Manager) disconnect(ctx context.Context) {
	if m.state.Is(StateDisconnected) {
		return
	}
	if err := m.state.Disconnect(ctx); err != nil {
		m.logger.Error("change state to DISCONNECTED failed", "error", err)
	}
}
