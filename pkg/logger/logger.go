// Package logger implements the public channel-gating façade glue: a
// Logger holds a fixed nine-slot channel table and a configured
// Dispatcher; accessing a channel below the logger's threshold (or on a
// disabled logger) returns the inert sentinel so no Event is ever built.
package logger

import (
	"runtime"

	"github.com/sirupsen/logrus"

	"fieldlog/internal/flogmetrics"
	"fieldlog/pkg/dispatch"
	"fieldlog/pkg/event"
	"fieldlog/pkg/filter"
	"fieldlog/pkg/scope"
	"fieldlog/pkg/severity"
)

// Config is the configuration bundle spec §3 describes for a Logger.
type Config struct {
	LevelThreshold severity.Level
	Subsystem      string
	Category       string
	IsEnabled      bool
	IsSynchronous  bool
	Filters        filter.Chain
	Transports     []dispatch.Transport
	Scope          *scope.ProcessScope
	Log            *logrus.Logger
	Metrics        *flogmetrics.Registry
	QueueSize      int
}

// Logger is a configuration bundle bound to a dispatcher and a fixed
// nine-slot channel table, built once at construction.
type Logger struct {
	cfg        Config
	dispatcher *dispatch.Dispatcher
	channels   [severity.Count]Channel
}

// New builds a Logger and its channel table from cfg. The channel table is
// built exactly once; later mutation of cfg.IsEnabled via SetEnabled
// rebuilds inert/live status without reallocating the dispatcher.
func New(cfg Config) *Logger {
	if cfg.Scope == nil {
		cfg.Scope = scope.Global
	}
	if cfg.Log == nil {
		cfg.Log = logrus.New()
	}
	l := &Logger{cfg: cfg}
	l.dispatcher = dispatch.New(dispatch.Config{
		Filters:       cfg.Filters,
		Transports:    cfg.Transports,
		IsSynchronous: cfg.IsSynchronous,
		LevelGate:     cfg.LevelThreshold,
		QueueSize:     cfg.QueueSize,
		Metrics:       cfg.Metrics,
	}, cfg.Log)
	l.rebuildChannels()
	return l
}

func (l *Logger) rebuildChannels() {
	for lvl := severity.Level(0); int(lvl) < severity.Count; lvl++ {
		if !l.cfg.IsEnabled || lvl > l.cfg.LevelThreshold {
			l.channels[lvl] = ChannelInert
			continue
		}
		l.channels[lvl] = Channel{level: lvl, logger: l}
	}
}

// Channel returns the slot for level, per invariant 2: inert iff level is
// less severe than the threshold or the logger is disabled. Level here is ordered by
// severity where a lower numeric value is more severe, so "at least as
// severe as the threshold" is level <= threshold.
func (l *Logger) Channel(level severity.Level) Channel {
	if int(level) < 0 || int(level) >= severity.Count {
		return ChannelInert
	}
	return l.channels[level]
}

// SetEnabled toggles the logger and rebuilds the channel table
// accordingly. Setting an already-matching value is a cheap no-op rebuild.
func (l *Logger) SetEnabled(enabled bool) {
	l.cfg.IsEnabled = enabled
	l.rebuildChannels()
}

// IsEnabled reports the logger's current enabled state.
func (l *Logger) IsEnabled() bool { return l.cfg.IsEnabled }

// Dispatcher exposes the underlying dispatcher, primarily for tests and
// for callers that need to Flush/Close transports directly.
func (l *Logger) Dispatcher() *dispatch.Dispatcher { return l.dispatcher }

// captureCallSite captures the immediate caller's file/line/function,
// skip frames above Channel.Write itself.
func captureCallSite(skip int) event.CallSite {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return event.CallSite{}
	}
	fn := runtime.FuncForPC(pc)
	name := ""
	if fn != nil {
		name = fn.Name()
	}
	return event.CallSite{File: file, Line: line, Function: name}
}
