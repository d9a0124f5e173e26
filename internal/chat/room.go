package chat

import (
	"log/slog"

	"github.com/ledzpl/linechat/internal/eventlog"
)

const (
	defaultCapacity  = 128
	defaultNameLimit = 32
	defaultLineLimit = 4096
)

const shutdownNotice = "[Server] Shutting down."

// Room bundles everything sessions share: the client registry, the
// broadcaster over it, the event log and the operational logger.
type Room struct {
	registry *Registry
	bcast    *Broadcaster
	events   *eventlog.Log
	logger   *slog.Logger

	lineLimit int
}

type roomConfig struct {
	capacity  int
	nameLimit int
	lineLimit int
	events    *eventlog.Log
	logger    *slog.Logger
}

// Option adjusts a Room under construction.
type Option func(*roomConfig)

// WithCapacity bounds the number of simultaneously connected clients.
func WithCapacity(n int) Option {
	return func(c *roomConfig) { c.capacity = n }
}

// WithNameLimit bounds display names, in bytes.
func WithNameLimit(n int) Option {
	return func(c *roomConfig) { c.nameLimit = n }
}

// WithLineLimit bounds one line of client input, in bytes.
func WithLineLimit(n int) Option {
	return func(c *roomConfig) { c.lineLimit = n }
}

// WithEventLog attaches the persistent event log. Without one, events are
// discarded.
func WithEventLog(l *eventlog.Log) Option {
	return func(c *roomConfig) { c.events = l }
}

// WithLogger attaches the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *roomConfig) { c.logger = l }
}

// NewRoom constructs an empty room.
func NewRoom(opts ...Option) *Room {
	cfg := roomConfig{
		capacity:  defaultCapacity,
		nameLimit: defaultNameLimit,
		lineLimit: defaultLineLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}
	if cfg.lineLimit < 1 {
		cfg.lineLimit = defaultLineLimit
	}

	registry := NewRegistry(cfg.capacity, cfg.nameLimit)
	return &Room{
		registry:  registry,
		bcast:     NewBroadcaster(registry),
		events:    cfg.events,
		logger:    cfg.logger,
		lineLimit: cfg.lineLimit,
	}
}

// ClientCount reports the number of live sessions.
func (r *Room) ClientCount() int {
	return r.registry.Len()
}

// Shutdown sends the shutdown notice to every live connection, closes them,
// refuses further admissions, then records the shutdown and seals the event
// log. Calling it again is a no-op: each slot's alive flag is
// checked-and-cleared atomically and a sealed log drops late records.
func (r *Room) Shutdown() {
	closed := r.registry.CloseAll(shutdownNotice)
	r.events.Shutdown()
	if err := r.events.Close(); err != nil {
		r.logger.Error("event log close failed", "error", err)
	}
	r.logger.Info("room shut down", "sessions_closed", closed)
}
