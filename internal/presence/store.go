package presence

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/camhive/live-core/internal/core"
	"github.com/camhive/live-core/internal/eventbus"
	"github.com/camhive/live-core/internal/eventbus/rpc"
	"github.com/camhive/live-core/internal/telemetry"
)

// Store tracks broadcaster availability. Writes go through the owning
// broadcaster's status updates; the sweeper is the only other writer and
// it only ever flips stale records down.
type Store struct {
	storage core.PresenceDBStorer
	events  eventbus.Publisher

	heartbeatTTL  time.Duration
	sweepInterval time.Duration

	stop chan struct{}
}

func NewStore(storage core.PresenceDBStorer, events eventbus.Publisher, heartbeatTTL, sweepInterval time.Duration) *Store {
	return &Store{
		storage:       storage,
		events:        events,
		heartbeatTTL:  heartbeatTTL,
		sweepInterval: sweepInterval,
		stop:          make(chan struct{}),
	}
}

// SetStatus is the broadcaster's own status mutation. Every transition
// into or out of live is announced on the server channel so the session
// registry can react.
func (s *Store) SetStatus(broadcasterID string, isLive, isAvailable bool) (*core.BroadcasterPresence, error) {
	prev, err := s.storage.Get(broadcasterID)
	if err != nil {
		return nil, err
	}

	record, err := s.storage.SetStatus(broadcasterID, isLive, isAvailable)
	if err != nil {
		return nil, err
	}

	if prev.IsLive != record.IsLive {
		if record.IsLive {
			telemetry.BroadcasterLive()
		} else {
			telemetry.BroadcasterOffline()
		}
		s.publishChange(record.BroadcasterID, record.IsOnline, record.IsLive)
	}

	return record, nil
}

func (s *Store) Heartbeat(broadcasterID string) error {
	return s.storage.Heartbeat(broadcasterID)
}

func (s *Store) SetShowRate(broadcasterID string, rate int) error {
	if rate <= 0 {
		return core.ErrConflict
	}
	return s.storage.SaveShowRate(broadcasterID, rate)
}

func (s *Store) Get(broadcasterID string) (*core.BroadcasterPresence, error) {
	return s.storage.Get(broadcasterID)
}

// ListLive is public read data, no authentication involved.
func (s *Store) ListLive(filter core.PresenceFilter) ([]*core.BroadcasterPresence, error) {
	return s.storage.ListLive(filter)
}

func (s *Store) Counts() (*core.PresenceCounts, error) {
	return s.storage.Counts()
}

// StartSweeper runs the stale-heartbeat sweep until Stop. Failures are
// recovered locally: the next tick retries, nothing is surfaced.
func (s *Store) StartSweeper() {
	log.Debug().Str("service", "presence").Msg("start sweeper")

	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *Store) Stop() {
	close(s.stop)
}

func (s *Store) sweep() {
	expired, err := s.storage.ExpireStale(s.heartbeatTTL)
	if err != nil {
		log.Error().Err(err).Str("service", "presence").Msg("sweep failed")
		return
	}

	for _, broadcasterID := range expired {
		s.publishChange(broadcasterID, false, false)
		log.Info().Str("service", "presence").Str("broadcasterID", broadcasterID).Msg("expired stale presence")
	}
}

func (s *Store) publishChange(broadcasterID string, isOnline, isLive bool) {
	err := s.events.PublishServer(rpc.NewPresenceChangedRpc(rpc.PresenceParams{
		BroadcasterID: broadcasterID,
		IsOnline:      isOnline,
		IsLive:        isLive,
	}))
	if err != nil {
		log.Error().Err(err).Str("service", "presence").Msg("publish presence_changed")
	}
}
