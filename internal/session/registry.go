package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/camhive/live-core/internal/core"
	"github.com/camhive/live-core/internal/eventbus"
	"github.com/camhive/live-core/internal/eventbus/rpc"
	"github.com/camhive/live-core/internal/telemetry"
)

// RegistryOptions carries the preview budgets so the registry can stamp
// FreeWindowDeadline from the server clock at join time. Client-reported
// elapsed time is never consulted.
type RegistryOptions struct {
	AnonymousPreview     time.Duration
	AuthenticatedPreview time.Duration
	DefaultPrivateRate   int
}

// Registry is the single source of truth for the "which session is this
// broadcast" question. Broadcaster and viewers always resolve through it,
// never derive a session id independently.
type Registry struct {
	sessions core.SessionsDBStorer
	presence core.PresenceDBStorer
	events   eventbus.Publisher
	opts     RegistryOptions

	now func() time.Time
}

func NewRegistry(sessions core.SessionsDBStorer, presence core.PresenceDBStorer, events eventbus.Publisher, opts RegistryOptions) *Registry {
	return &Registry{
		sessions: sessions,
		presence: presence,
		events:   events,
		opts:     opts,
		now:      time.Now,
	}
}

// Start fills the broadcaster's active-session slot, or returns the
// session already in it. Idempotent: any number of concurrent or repeated
// calls yield one session id.
func (r *Registry) Start(broadcasterID string, mode core.SessionMode, rate int) (*core.Session, error) {
	record, err := r.presence.Get(broadcasterID)
	if err != nil {
		return nil, err
	}
	if !record.IsLive {
		return nil, fmt.Errorf("broadcaster is not live: %w", core.ErrConflict)
	}

	if !mode.Valid() {
		mode = core.PublicSession
	}
	if mode == core.PrivateSession && rate <= 0 {
		rate = r.opts.DefaultPrivateRate
		if record.ShowRate > 0 {
			rate = record.ShowRate
		}
	}
	if mode == core.PublicSession {
		rate = 0
	}

	id := uuid.NewString()
	session, err := r.sessions.CreateOrGetActive(&core.Session{
		ID:                  id,
		BroadcasterID:       broadcasterID,
		Mode:                mode,
		RateTokensPerMinute: rate,
		StreamKey:           "stream_" + id,
	})
	if err != nil {
		return nil, err
	}

	if session.ID == id {
		telemetry.SessionStarted()
		log.Info().
			Str("service", "registry").
			Str("sessionID", session.ID).
			Str("broadcasterID", broadcasterID).
			Str("mode", string(session.Mode)).
			Msg("session started")
	}

	return session, nil
}

// Join resolves the broadcaster's canonical active session and attaches
// the viewer to it. A viewer already attached gets their existing
// participant record back; a fresh record gets a fresh preview window.
func (r *Registry) Join(broadcasterID, viewerID string, authenticated bool) (*core.Session, *core.Participant, error) {
	session, err := r.sessions.GetActive(broadcasterID)
	if err != nil {
		return nil, nil, err
	}

	participant := &core.Participant{
		ID:            uuid.NewString(),
		SessionID:     session.ID,
		ViewerID:      viewerID,
		Authenticated: authenticated,
	}
	if session.Mode != core.PrivateSession {
		deadline := r.now().Add(r.previewBudget(authenticated))
		participant.FreeWindowDeadline = &deadline
	}

	participant, err = r.sessions.AddParticipant(participant)
	if err != nil {
		return nil, nil, err
	}

	telemetry.ViewerJoined()

	return session, participant, nil
}

// End finishes the session and closes every participant record.
// Idempotent on repeated calls; only the broadcaster or a joined viewer
// may end it.
func (r *Registry) End(sessionID, actorID string) error {
	session, err := r.sessions.GetByID(sessionID)
	if err != nil {
		return err
	}
	if !session.Active() {
		return nil
	}

	if actorID != session.BroadcasterID {
		if _, err := r.sessions.FindParticipantByViewer(sessionID, actorID); err != nil {
			if err == core.ErrNotFound {
				return core.ErrForbidden
			}
			return err
		}
	}

	if err := r.sessions.End(sessionID); err != nil {
		return err
	}

	telemetry.SessionStopped()
	r.publishClosed(session)

	return nil
}

func (r *Registry) GetActive(broadcasterID string) (*core.Session, error) {
	return r.sessions.GetActive(broadcasterID)
}

func (r *Registry) GetByID(sessionID string) (*core.Session, error) {
	return r.sessions.GetByID(sessionID)
}

// Leave closes a single participant record. The next join starts a fresh
// preview window; a tip does not survive the disconnect.
func (r *Registry) Leave(sessionID, participantID string) error {
	if err := r.sessions.LeaveParticipant(sessionID, participantID); err != nil {
		return err
	}
	telemetry.ViewerLeft()

	return nil
}

// HandlePresenceChanged tears down the active session of a broadcaster
// that dropped offline. Registered as a router callback.
func (r *Registry) HandlePresenceChanged(params rpc.PresenceParams) error {
	if params.IsLive {
		return nil
	}

	session, err := r.sessions.GetActive(params.BroadcasterID)
	if err == core.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	if err := r.sessions.End(session.ID); err != nil {
		return err
	}

	telemetry.SessionStopped()
	r.publishClosed(session)
	log.Info().
		Str("service", "registry").
		Str("sessionID", session.ID).
		Str("broadcasterID", session.BroadcasterID).
		Msg("session ended, broadcaster dropped")

	return nil
}

func (r *Registry) previewBudget(authenticated bool) time.Duration {
	if authenticated {
		return r.opts.AuthenticatedPreview
	}
	return r.opts.AnonymousPreview
}

func (r *Registry) publishClosed(session *core.Session) {
	closed := rpc.NewSessionClosedRpc(session.ID)

	if err := r.events.PublishServer(closed); err != nil {
		log.Error().Err(err).Str("service", "registry").Msg("publish session_closed")
	}
	if err := r.events.PublishClient(session.BroadcasterID, closed); err != nil {
		log.Error().Err(err).Str("service", "registry").Msg("publish session_closed to broadcaster")
	}
}
