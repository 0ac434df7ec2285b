package logger

import (
	"fieldlog/pkg/event"
	"fieldlog/pkg/severity"
)

// Channel is the per-level slot a logger exposes. A zero-value Channel
// (ChannelInert) is inert: Write is a no-op that never touches the
// message builder, so interpolation and scope capture are skipped
// entirely for a disabled level.
type Channel struct {
	level  severity.Level
	logger *Logger
}

// ChannelInert is the shared inert sentinel returned for any slot that
// gating disables. It carries no logger reference, so Write short-circuits.
var ChannelInert = Channel{}

// IsInert reports whether this channel is the inert sentinel.
func (c Channel) IsInert() bool { return c.logger == nil }

// Level returns the channel's severity. The inert sentinel has no
// meaningful level; callers should check IsInert first.
func (c Channel) Level() severity.Level { return c.level }

// Write is the sole entry point that constructs an Event. It captures the
// caller's call site, merges in the logger's ambient scope, and hands the
// constructed event to the logger's dispatcher. On an inert channel this
// does nothing — mb is never built into a Message.
func (c Channel) Write(mb *event.MessageBuilder, opts ...event.Option) {
	c.write(mb, opts)
}

// write holds Write's body so that Write and WriteMessage both sit at the
// same stack depth above captureCallSite.
func (c Channel) write(mb *event.MessageBuilder, opts []event.Option) {
	if c.logger == nil {
		return
	}
	msg := mb.Build()
	site := captureCallSite(3)
	sc := c.logger.cfg.Scope.Capture(site, nil, nil)

	allOpts := make([]event.Option, 0, len(opts)+3)
	allOpts = append(allOpts,
		event.WithSubsystem(c.logger.cfg.Subsystem),
		event.WithCategory(c.logger.cfg.Category),
		event.WithScope(sc),
	)
	allOpts = append(allOpts, opts...)

	e := event.New(c.level, msg, allOpts...)
	c.logger.dispatcher.Dispatch(e)
}

// WriteMessage is a convenience for the common case of a plain string
// message with no interpolation segments.
func (c Channel) WriteMessage(text string, opts ...event.Option) {
	if c.logger == nil {
		return
	}
	c.write(event.NewMessageBuilder().Literal(text), opts)
}
