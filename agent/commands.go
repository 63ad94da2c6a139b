package agent

import (
	"context"
	"errors"

	"github.com/younglifestyle/conflate4go/command"
	"github.com/younglifestyle/conflate4go/store"
)

// Built-in command names.
const (
	CommandSetPrivate  = "set_private"
	CommandGetPrivate  = "get_private"
	CommandRmPrivate   = "rm_private"
	CommandClientStats = "client_stats"
	CommandResetStats  = "reset_stats"
	CommandPingTest    = "ping_test"
	CommandServerList  = "serverlist"
)

const (
	fieldKey     = "key"
	fieldValue   = "value"
	fieldSubtype = "-subtype-"
)

func (a *Agent) registerBuiltins() error {
	defs := []command.Definition{
		{Name: CommandSetPrivate, Description: "Set a private value on the agent.",
			Handler: command.RequireDirect(a.logger, a.handleSetPrivate)},
		{Name: CommandGetPrivate, Description: "Get a private value from the agent.",
			Handler: command.RequireDirect(a.logger, a.handleGetPrivate)},
		{Name: CommandRmPrivate, Description: "Delete a private value from the agent.",
			Handler: command.RequireDirect(a.logger, a.handleRmPrivate)},
		{Name: CommandClientStats, Description: "Retrieves stats from the agent",
			Handler: command.RequireDirect(a.logger, a.handleClientStats)},
		{Name: CommandResetStats, Description: "Reset stats on the agent",
			Handler: command.RequireDirect(a.logger, a.handleResetStats)},
		{Name: CommandPingTest, Description: "Perform a ping test",
			Handler: a.handlePingTest},
		{Name: CommandServerList, Description: "Configure a server list.",
			Handler: a.handleServerList},
	}
	for _, def := range defs {
		if err := a.registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func (a *Agent) handleSetPrivate(ctx context.Context, req *command.Request, _ *command.ResponseBuilder) command.Result {
	key, okKey := req.Form.Value(fieldKey)
	value, okValue := req.Form.Value(fieldValue)
	if !okKey || !okValue {
		return command.ResultBadArgument
	}
	if err := a.store.SetPrivate(ctx, key, value); err != nil {
		a.logger.Error("save private value failed", "key", key, "error", err)
		return command.ResultError
	}
	return command.ResultOK
}

// handleGetPrivate always answers with a result form, empty when the key is
// unknown.
func (a *Agent) handleGetPrivate(ctx context.Context, req *command.Request, rb *command.ResponseBuilder) command.Result {
	key, ok := req.Form.Value(fieldKey)
	if !ok {
		return command.ResultBadArgument
	}
	rb.EnsureContainer()
	value, err := a.store.GetPrivate(ctx, key)
	switch {
	case err == nil:
		rb.AddField(key, value)
	case !errors.Is(err, store.ErrNotFound):
		a.logger.Warn("read private value failed", "key", key, "error", err)
	}
	return command.ResultOK
}

func (a *Agent) handleRmPrivate(ctx context.Context, req *command.Request, _ *command.ResponseBuilder) command.Result {
	key, ok := req.Form.Value(fieldKey)
	if !ok {
		return command.ResultBadArgument
	}
	if err := a.store.DeletePrivate(ctx, key); err != nil {
		a.logger.Error("delete private value failed", "key", key, "error", err)
		return command.ResultError
	}
	return command.ResultOK
}

func (a *Agent) handleClientStats(ctx context.Context, req *command.Request, rb *command.ResponseBuilder) command.Result {
	subtype, _ := req.Form.Value(fieldSubtype)
	a.logger.Debug("handling stats request", "subtype", subtype)
	if err := a.opts.GetStats(ctx, subtype, req.Form, rb); err != nil {
		a.logger.Error("stats callback failed", "subtype", subtype, "error", err)
		return command.ResultError
	}
	return command.ResultOK
}

func (a *Agent) handleResetStats(ctx context.Context, req *command.Request, _ *command.ResponseBuilder) command.Result {
	subtype, _ := req.Form.Value(fieldSubtype)
	a.logger.Debug("handling stats reset", "subtype", subtype)
	if err := a.opts.ResetStats(ctx, subtype, req.Form); err != nil {
		a.logger.Error("reset stats callback failed", "subtype", subtype, "error", err)
		return command.ResultError
	}
	return command.ResultOK
}

func (a *Agent) handlePingTest(ctx context.Context, req *command.Request, rb *command.ResponseBuilder) command.Result {
	if err := a.opts.PingTest(ctx, req.Form, rb); err != nil {
		a.logger.Error("ping test failed", "error", err)
		return command.ResultError
	}
	return command.ResultOK
}

// handleServerList persists and applies a new configuration. Broadcast
// updates are ignored while the agent runs a private configuration.
func (a *Agent) handleServerList(ctx context.Context, req *command.Request, _ *command.ResponseBuilder) command.Result {
	if !req.Direct && a.configIsPrivate(ctx) {
		a.logger.Info("Currently using a private config, ignoring update.")
		return command.ResultOK
	}

	a.logger.Info("processing a serverlist", "from", req.From)
	if err := a.store.SaveConfig(ctx, req.Form); err != nil {
		a.logger.Error("can not save config", "error", err)
	}
	a.opts.OnNewConfig(req.Form)
	return command.ResultOK
}

func (a *Agent) configIsPrivate(ctx context.Context) bool {
	v, err := a.store.GetPrivate(ctx, store.KeyConfigIsPrivate)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			a.logger.Warn("read private config flag failed", "error", err)
		}
		return false
	}
	return v == "yes"
}
