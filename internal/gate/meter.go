package gate

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/camhive/live-core/internal/core"
)

// meterSet tracks the running private-show meters, keyed by
// session id + participant id.
type meterSet struct {
	lock   sync.Mutex
	meters map[string]chan struct{}
}

func newMeterSet() *meterSet {
	return &meterSet{
		meters: make(map[string]chan struct{}),
	}
}

func meterKey(sessionID, participantID string) string {
	return sessionID + "|" + participantID
}

func (m *meterSet) add(key string) (chan struct{}, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.meters[key]; ok {
		return nil, false
	}
	stop := make(chan struct{})
	m.meters[key] = stop

	return stop, true
}

func (m *meterSet) remove(key string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if stop, ok := m.meters[key]; ok {
		close(stop)
		delete(m.meters, key)
	}
}

func (m *meterSet) removeSession(sessionID string) {
	m.lock.Lock()
	defer m.lock.Unlock()

	prefix := sessionID + "|"
	for key, stop := range m.meters {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			close(stop)
			delete(m.meters, key)
		}
	}
}

// AdmitPrivate prechecks that the viewer can pay for at least the first
// metered minute. It runs before the participant record is created, so a
// broke viewer is refused at the door instead of being admitted and
// billed.
func (g *Gate) AdmitPrivate(session *core.Session, viewerID string) error {
	if session.Mode != core.PrivateSession || session.RateTokensPerMinute <= 0 {
		return nil
	}
	if viewerID == session.BroadcasterID {
		return nil
	}

	balance, err := g.ledger.Balance(viewerID)
	if err != nil {
		if err == core.ErrNotFound {
			return core.ErrInsufficientFunds
		}
		return err
	}
	if balance < int64(session.RateTokensPerMinute) {
		return core.ErrInsufficientFunds
	}

	return nil
}

// StartMeter begins per-minute metering of a private show. The first
// minute is debited up front, matching how the show is priced. A failed
// first debit gates only the joining participant; the show itself ends
// only when an already-admitted viewer's tick debit fails.
func (g *Gate) StartMeter(session *core.Session, participant *core.Participant, tickEvery time.Duration, endSession func(sessionID string) error) error {
	if session.Mode != core.PrivateSession || session.RateTokensPerMinute <= 0 {
		return nil
	}

	key := meterKey(session.ID, participant.ID)
	stop, added := g.meters.add(key)
	if !added {
		return nil
	}

	rate := int64(session.RateTokensPerMinute)
	if err := g.ledger.Debit(participant.ViewerID, rate); err != nil {
		g.meters.remove(key)
		g.gateParticipant(session, participant)
		return err
	}

	go func() {
		ticker := time.NewTicker(tickEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := g.ledger.Debit(participant.ViewerID, rate); err != nil {
					log.Warn().
						Err(err).
						Str("service", "gate").
						Str("sessionID", session.ID).
						Str("viewerID", participant.ViewerID).
						Msg("metering debit failed, ending private show")
					g.meters.remove(key)
					g.gateAndEnd(session, participant, endSession)
					return
				}
			case <-stop:
				return
			}
		}
	}()

	return nil
}

func (g *Gate) StopMeter(sessionID, participantID string) {
	g.meters.remove(meterKey(sessionID, participantID))
}

// StopSessionMeters is wired to session_closed events so a finished
// session never keeps billing its viewers.
func (g *Gate) StopSessionMeters(sessionID string) error {
	g.meters.removeSession(sessionID)
	return nil
}

func (g *Gate) gateParticipant(session *core.Session, participant *core.Participant) {
	if err := g.sessions.SetGated(session.ID, participant.ID); err != nil && err != core.ErrNotFound {
		log.Error().Err(err).Str("service", "gate").Msg("mark participant gated")
	}
	g.publishGateChanged(session.ID, participant.ViewerID, Gated)
}

func (g *Gate) gateAndEnd(session *core.Session, participant *core.Participant, endSession func(sessionID string) error) {
	g.gateParticipant(session, participant)

	if endSession != nil {
		if err := endSession(session.ID); err != nil {
			log.Error().Err(err).Str("service", "gate").Msg("end private session")
		}
	}
}
