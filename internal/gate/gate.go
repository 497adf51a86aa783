package gate

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/camhive/live-core/internal/core"
	"github.com/camhive/live-core/internal/eventbus"
	"github.com/camhive/live-core/internal/eventbus/rpc"
)

type State string

const (
	AnonymousPreview     State = "anonymous_preview"
	AuthenticatedPreview State = "authenticated_preview"
	Gated                State = "gated"
	Unlocked             State = "unlocked"
)

var ErrTipTooSmall = errors.New("tip below minimum")

// Gate decides whether a viewer may keep receiving relayed signals and
// media. All timing is derived from server-recorded timestamps on the
// participant record; client countdowns are never trusted.
type Gate struct {
	sessions core.SessionsDBStorer
	ledger   core.Ledger
	events   eventbus.Publisher

	minTip int64

	now func() time.Time

	meters *meterSet
}

func New(sessions core.SessionsDBStorer, ledger core.Ledger, events eventbus.Publisher, minTip int64) *Gate {
	return &Gate{
		sessions: sessions,
		ledger:   ledger,
		events:   events,
		minTip:   minTip,
		now:      time.Now,
		meters:   newMeterSet(),
	}
}

// StateOf computes the participant's gate state at the current instant.
func (g *Gate) StateOf(session *core.Session, participant *core.Participant) State {
	if participant.HasActiveTip {
		return Unlocked
	}

	deadline := participant.FreeWindowDeadline
	if deadline == nil {
		// Private mode joins carry no preview window, access is paid for
		// by the running meter until a debit fails.
		return Unlocked
	}
	if !g.now().Before(*deadline) {
		return Gated
	}

	if participant.Authenticated {
		return AuthenticatedPreview
	}
	return AnonymousPreview
}

// MayView is the check every relay and media operation goes through.
// ErrSessionEnded and ErrNotFound are distinguishable from a plain false
// so clients can show "stream ended" instead of "tip to continue".
func (g *Gate) MayView(sessionID, participantID string) (bool, error) {
	session, err := g.sessions.GetByID(sessionID)
	if err != nil {
		return false, err
	}
	if !session.Active() {
		return false, core.ErrSessionEnded
	}

	if participantID == session.BroadcasterID {
		return true, nil
	}

	participant, err := g.sessions.GetParticipant(sessionID, participantID)
	if err != nil {
		return false, err
	}
	if !participant.Active() {
		return false, nil
	}

	return g.StateOf(session, participant) != Gated, nil
}

// Tip unlocks the participant for the remainder of their record. Only
// the viewer owning the record can tip on it: the debit hits viewerID's
// account. An insufficient balance is surfaced verbatim and leaves the
// viewer gated.
func (g *Gate) Tip(sessionID, participantID, viewerID string, amount int64) error {
	if amount < g.minTip {
		return ErrTipTooSmall
	}

	session, err := g.sessions.GetByID(sessionID)
	if err != nil {
		return err
	}
	if !session.Active() {
		return core.ErrSessionEnded
	}

	participant, err := g.sessions.GetParticipant(sessionID, participantID)
	if err != nil {
		return err
	}
	if participant.ViewerID != viewerID {
		return core.ErrForbidden
	}
	if !participant.Active() {
		return core.ErrNotFound
	}

	if err := g.ledger.Debit(participant.ViewerID, amount); err != nil {
		return err
	}

	if err := g.sessions.SetTipUnlocked(sessionID, participantID); err != nil {
		return err
	}

	g.publishGateChanged(session.ID, participant.ViewerID, Unlocked)
	log.Info().
		Str("service", "gate").
		Str("sessionID", sessionID).
		Str("viewerID", participant.ViewerID).
		Int64("amount", amount).
		Msg("tip unlocked")

	return nil
}

func (g *Gate) publishGateChanged(sessionID, viewerID string, state State) {
	if err := g.events.PublishClient(viewerID, rpc.NewGateChangedRpc(sessionID, string(state))); err != nil {
		log.Error().Err(err).Str("service", "gate").Msg("publish gate_changed")
	}
}
