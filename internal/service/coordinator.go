package service

import (
	"github.com/camhive/live-core/internal/eventbus"
	"github.com/camhive/live-core/internal/eventbus/rpc"
	"github.com/camhive/live-core/internal/gate"
	"github.com/camhive/live-core/internal/session"
	"github.com/camhive/live-core/internal/telemetry"
)

// Coordinator wires the eventbus router to the services that react to
// lifecycle events: a broadcaster dropping live ends their session, a
// session closing stops its private-show meters.
type Coordinator struct {
	router   *eventbus.Router
	registry *session.Registry
	gate     *gate.Gate
}

func NewCoordinator(router *eventbus.Router, registry *session.Registry, accessGate *gate.Gate) *Coordinator {
	c := &Coordinator{
		router:   router,
		registry: registry,
		gate:     accessGate,
	}

	router.OnPresenceChanged(func(params rpc.PresenceParams) error {
		if err := registry.HandlePresenceChanged(params); err != nil {
			telemetry.ServiceOperationCounter.WithLabelValues("presence_changed", "error", "handler_failed").Add(1)
			return err
		}
		telemetry.ServiceOperationCounter.WithLabelValues("presence_changed", "success", "").Add(1)
		return nil
	})
	router.OnSessionClosed(func(sessionID string) error {
		if err := accessGate.StopSessionMeters(sessionID); err != nil {
			telemetry.ServiceOperationCounter.WithLabelValues("session_closed", "error", "handler_failed").Add(1)
			return err
		}
		telemetry.ServiceOperationCounter.WithLabelValues("session_closed", "success", "").Add(1)
		return nil
	})

	return c
}

func (c *Coordinator) Start() {
	c.router.Start()
}

func (c *Coordinator) Stop() error {
	return c.router.Stop()
}
