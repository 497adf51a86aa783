package signal

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/camhive/live-core/internal/core"
	"github.com/camhive/live-core/internal/eventbus"
	"github.com/camhive/live-core/internal/eventbus/rpc"
)

var ErrInvalidKind = errors.New("invalid signal kind")

// Relay is the per-session mailbox of negotiation messages. It is
// deliberately pull-based: a client that reconnects mid-negotiation polls
// and gets everything it missed, in order. Push (the ws nudge) only hints
// that a poll is worthwhile.
type Relay struct {
	signals  core.SignalsDBStorer
	sessions core.SessionsDBStorer
	events   eventbus.Publisher

	ttl           time.Duration
	consumedGrace time.Duration
	pruneInterval time.Duration

	stop chan struct{}
}

func NewRelay(signals core.SignalsDBStorer, sessions core.SessionsDBStorer, events eventbus.Publisher, ttl, consumedGrace, pruneInterval time.Duration) *Relay {
	return &Relay{
		signals:       signals,
		sessions:      sessions,
		events:        events,
		ttl:           ttl,
		consumedGrace: consumedGrace,
		pruneInterval: pruneInterval,
		stop:          make(chan struct{}),
	}
}

// Send buffers a message for the target. The target does not have to be
// joined yet: the broadcaster legitimately signals before the first
// viewer arrives. Senders must belong to the session.
func (r *Relay) Send(sessionID, senderID, targetID string, kind core.SignalKind, payload json.RawMessage) (string, error) {
	if !kind.Valid() {
		return "", ErrInvalidKind
	}

	session, err := r.sessions.GetByID(sessionID)
	if err != nil {
		return "", err
	}
	if !session.Active() {
		return "", core.ErrSessionEnded
	}

	if senderID != session.BroadcasterID {
		if _, err := r.sessions.FindParticipantByViewer(sessionID, senderID); err != nil {
			if err == core.ErrNotFound {
				return "", core.ErrForbidden
			}
			return "", err
		}
	}

	message := &core.SignalMessage{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		SenderID:  senderID,
		TargetID:  targetID,
		Kind:      kind,
		Payload:   payload,
	}
	if err := r.signals.Insert(message); err != nil {
		return "", err
	}

	// Best effort; the poll path does not depend on it.
	if err := r.events.PublishClient(targetID, rpc.NewSignalPendingRpc(sessionID)); err != nil {
		log.Error().Err(err).Str("service", "relay").Msg("publish signal_pending")
	}

	return message.ID, nil
}

// Authorize checks that requesterID owns the mailbox addressed by
// (sessionID, participantID) without consuming anything. Strangers get
// ErrForbidden before any session or participant state is revealed.
func (r *Relay) Authorize(sessionID, participantID, requesterID string) error {
	_, _, err := r.resolveMailbox(sessionID, participantID, requesterID)
	return err
}

// Pull returns and consumes the caller's pending messages, FIFO. The
// caller is the broadcaster (by own id) or a viewer (by participant id);
// requesterID is the authenticated user pulling, checked against the
// mailbox owner before anything is consumed. Access gating is the
// caller's duty: handlers check the gate before pulling.
func (r *Relay) Pull(sessionID, participantID, requesterID string) ([]*core.SignalMessage, error) {
	_, targetID, err := r.resolveMailbox(sessionID, participantID, requesterID)
	if err != nil {
		return nil, err
	}

	return r.signals.PullForTarget(sessionID, targetID)
}

// resolveMailbox maps the addressed mailbox to its owning user id. The
// ownership check runs before the ended-session and left-participant
// checks so a stranger probing foreign ids learns nothing beyond 403.
func (r *Relay) resolveMailbox(sessionID, participantID, requesterID string) (*core.Session, string, error) {
	session, err := r.sessions.GetByID(sessionID)
	if err != nil {
		return nil, "", err
	}

	targetID := participantID
	if participantID != session.BroadcasterID {
		participant, err := r.sessions.GetParticipant(sessionID, participantID)
		if err != nil {
			return nil, "", err
		}
		if participant.ViewerID != requesterID {
			return nil, "", core.ErrForbidden
		}
		if !session.Active() {
			return nil, "", core.ErrSessionEnded
		}
		if !participant.Active() {
			return nil, "", core.ErrNotFound
		}
		targetID = participant.ViewerID
	} else {
		if targetID != requesterID {
			return nil, "", core.ErrForbidden
		}
		if !session.Active() {
			return nil, "", core.ErrSessionEnded
		}
	}

	return session, targetID, nil
}

// StartPruner garbage-collects consumed and expired messages so storage
// stays bounded regardless of poll cadence.
func (r *Relay) StartPruner() {
	log.Debug().Str("service", "relay").Msg("start pruner")

	go func() {
		ticker := time.NewTicker(r.pruneInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				r.prune()
			case <-r.stop:
				return
			}
		}
	}()
}

func (r *Relay) Stop() {
	close(r.stop)
}

func (r *Relay) prune() {
	consumed, err := r.signals.PruneConsumed(r.consumedGrace)
	if err != nil {
		log.Error().Err(err).Str("service", "relay").Msg("prune consumed")
	}
	expired, err := r.signals.PruneExpired(r.ttl)
	if err != nil {
		log.Error().Err(err).Str("service", "relay").Msg("prune expired")
	}

	if consumed+expired > 0 {
		log.Debug().
			Str("service", "relay").
			Int64("consumed", consumed).
			Int64("expired", expired).
			Msg("pruned signal messages")
	}
}
