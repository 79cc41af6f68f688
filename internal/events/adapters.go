package events

import "log/slog"

// LogAdapter subscribes to the hub and writes every event through a
// structured logger, for deployments that want an event audit trail
// without standing up a separate consumer.
type LogAdapter struct {
	hub    *Hub
	logger *slog.Logger
	stop   chan struct{}
}

// NewLogAdapter creates a logging subscriber over all event types.
func NewLogAdapter(hub *Hub, logger *slog.Logger) *LogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogAdapter{hub: hub, logger: logger, stop: make(chan struct{})}
}

// Start begins forwarding hub events to the logger.
func (a *LogAdapter) Start() {
	ch := a.hub.Subscribe(256)
	go func() {
		for {
			select {
			case <-a.stop:
				return
			case e := <-ch:
				a.logger.Info("tc event", "type", e.Type, "source", e.Source, "data", e.Data)
			}
		}
	}()
}

// Stop stops the adapter.
func (a *LogAdapter) Stop() {
	close(a.stop)
}
