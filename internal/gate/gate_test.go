package gate

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/camhive/live-core/internal/core"
	"github.com/camhive/live-core/internal/eventbus/rpc"
)

type MockSessionsStorage struct {
	Sessions     map[string]*core.Session
	Participants map[string]*core.Participant
}

func NewMockSessionsStorage() *MockSessionsStorage {
	return &MockSessionsStorage{
		Sessions:     make(map[string]*core.Session),
		Participants: make(map[string]*core.Participant),
	}
}

func (s *MockSessionsStorage) CreateOrGetActive(session *core.Session) (*core.Session, error) {
	s.Sessions[session.ID] = session
	return session, nil
}

func (s *MockSessionsStorage) GetActive(broadcasterID string) (*core.Session, error) {
	for _, session := range s.Sessions {
		if session.BroadcasterID == broadcasterID && session.Active() {
			return session, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *MockSessionsStorage) GetByID(sessionID string) (*core.Session, error) {
	session, ok := s.Sessions[sessionID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return session, nil
}

func (s *MockSessionsStorage) End(sessionID string) error {
	session, ok := s.Sessions[sessionID]
	if !ok {
		return core.ErrNotFound
	}
	if session.EndedAt == nil {
		now := time.Now()
		session.EndedAt = &now
	}
	return nil
}

func (s *MockSessionsStorage) AddParticipant(participant *core.Participant) (*core.Participant, error) {
	s.Participants[participant.ID] = participant
	return participant, nil
}

func (s *MockSessionsStorage) GetParticipant(sessionID, participantID string) (*core.Participant, error) {
	participant, ok := s.Participants[participantID]
	if !ok || participant.SessionID != sessionID {
		return nil, core.ErrNotFound
	}
	return participant, nil
}

func (s *MockSessionsStorage) FindParticipantByViewer(sessionID, viewerID string) (*core.Participant, error) {
	for _, participant := range s.Participants {
		if participant.SessionID == sessionID && participant.ViewerID == viewerID && participant.Active() {
			return participant, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *MockSessionsStorage) SetTipUnlocked(sessionID, participantID string) error {
	participant, err := s.GetParticipant(sessionID, participantID)
	if err != nil {
		return err
	}
	participant.HasActiveTip = true
	return nil
}

func (s *MockSessionsStorage) SetGated(sessionID, participantID string) error {
	participant, err := s.GetParticipant(sessionID, participantID)
	if err != nil {
		return err
	}
	participant.HasActiveTip = false
	past := time.Now().Add(-time.Minute)
	participant.FreeWindowDeadline = &past
	return nil
}

func (s *MockSessionsStorage) LeaveParticipant(sessionID, participantID string) error {
	participant, err := s.GetParticipant(sessionID, participantID)
	if err != nil {
		return err
	}
	now := time.Now()
	participant.LeftAt = &now
	return nil
}

func (s *MockSessionsStorage) CountViewers(sessionID string) (int, error) {
	return 0, nil
}

type MockLedger struct {
	lock     sync.Mutex
	Balances map[string]int64
	Debits   []int64
}

func NewMockLedger() *MockLedger {
	return &MockLedger{Balances: make(map[string]int64)}
}

func (l *MockLedger) Debit(accountID string, amount int64) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	balance, ok := l.Balances[accountID]
	if !ok {
		return core.ErrNotFound
	}
	if balance < amount {
		return core.ErrInsufficientFunds
	}
	l.Balances[accountID] = balance - amount
	l.Debits = append(l.Debits, amount)
	return nil
}

func (l *MockLedger) Credit(accountID string, amount int64) error {
	l.lock.Lock()
	defer l.lock.Unlock()

	l.Balances[accountID] += amount
	return nil
}

func (l *MockLedger) Balance(accountID string) (int64, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	balance, ok := l.Balances[accountID]
	if !ok {
		return 0, core.ErrNotFound
	}
	return balance, nil
}

type MockPublisher struct {
	lock       sync.Mutex
	ClientRpcs map[string][]rpc.Rpc
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{ClientRpcs: make(map[string][]rpc.Rpc)}
}

func (p *MockPublisher) PublishClient(userID string, r rpc.Rpc) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.ClientRpcs[userID] = append(p.ClientRpcs[userID], r)
	return nil
}

func (p *MockPublisher) PublishServer(r rpc.Rpc) error { return nil }

func newTestGate() (*Gate, *MockSessionsStorage, *MockLedger, *MockPublisher) {
	sessions := NewMockSessionsStorage()
	ledger := NewMockLedger()
	bus := NewMockPublisher()

	return New(sessions, ledger, bus, 25), sessions, ledger, bus
}

func deadlineAt(t time.Time) *time.Time { return &t }

func TestGateStateOf(t *testing.T) {
	frozen := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)
	session := &core.Session{ID: "s1", BroadcasterID: "alice", Mode: core.PublicSession}

	t.Run("inside the window the viewer previews", func(t *testing.T) {
		g, _, _, _ := newTestGate()
		g.now = func() time.Time { return frozen }

		anonymous := &core.Participant{FreeWindowDeadline: deadlineAt(frozen.Add(time.Second))}
		assert.Equal(t, AnonymousPreview, g.StateOf(session, anonymous))

		authenticated := &core.Participant{Authenticated: true, FreeWindowDeadline: deadlineAt(frozen.Add(time.Second))}
		assert.Equal(t, AuthenticatedPreview, g.StateOf(session, authenticated))
	})

	t.Run("the deadline instant itself is gated", func(t *testing.T) {
		g, _, _, _ := newTestGate()
		g.now = func() time.Time { return frozen }

		participant := &core.Participant{FreeWindowDeadline: deadlineAt(frozen)}
		assert.Equal(t, Gated, g.StateOf(session, participant))
	})

	t.Run("a tip unlocks regardless of the window", func(t *testing.T) {
		g, _, _, _ := newTestGate()
		g.now = func() time.Time { return frozen }

		participant := &core.Participant{HasActiveTip: true, FreeWindowDeadline: deadlineAt(frozen.Add(-time.Hour))}
		assert.Equal(t, Unlocked, g.StateOf(session, participant))
	})

	t.Run("no window means metered access", func(t *testing.T) {
		g, _, _, _ := newTestGate()

		participant := &core.Participant{}
		assert.Equal(t, Unlocked, g.StateOf(session, participant))
	})
}

func TestGateMayView(t *testing.T) {
	frozen := time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC)

	setup := func() (*Gate, *MockSessionsStorage) {
		g, sessions, _, _ := newTestGate()
		g.now = func() time.Time { return frozen }
		sessions.Sessions["s1"] = &core.Session{ID: "s1", BroadcasterID: "alice"}
		return g, sessions
	}

	t.Run("broadcaster always may", func(t *testing.T) {
		g, _ := setup()

		allowed, err := g.MayView("s1", "alice")
		assert.Nil(t, err)
		assert.True(t, allowed)
	})

	t.Run("viewer inside the window may", func(t *testing.T) {
		g, sessions := setup()
		sessions.Participants["p1"] = &core.Participant{
			ID: "p1", SessionID: "s1", ViewerID: "bob",
			FreeWindowDeadline: deadlineAt(frozen.Add(time.Second)),
		}

		allowed, err := g.MayView("s1", "p1")
		assert.Nil(t, err)
		assert.True(t, allowed)
	})

	t.Run("viewer past the window may not", func(t *testing.T) {
		g, sessions := setup()
		sessions.Participants["p1"] = &core.Participant{
			ID: "p1", SessionID: "s1", ViewerID: "bob",
			FreeWindowDeadline: deadlineAt(frozen.Add(-time.Second)),
		}

		allowed, err := g.MayView("s1", "p1")
		assert.Nil(t, err)
		assert.False(t, allowed)
	})

	t.Run("ended session is distinguishable from gated", func(t *testing.T) {
		g, sessions := setup()
		ended := frozen.Add(-time.Minute)
		sessions.Sessions["s1"].EndedAt = &ended

		_, err := g.MayView("s1", "p1")
		assert.ErrorIs(t, err, core.ErrSessionEnded)
	})

	t.Run("a left participant may not", func(t *testing.T) {
		g, sessions := setup()
		left := frozen.Add(-time.Second)
		sessions.Participants["p1"] = &core.Participant{
			ID: "p1", SessionID: "s1", ViewerID: "bob", LeftAt: &left,
			FreeWindowDeadline: deadlineAt(frozen.Add(time.Hour)),
		}

		allowed, err := g.MayView("s1", "p1")
		assert.Nil(t, err)
		assert.False(t, allowed)
	})
}

func TestGateTip(t *testing.T) {
	setup := func() (*Gate, *MockSessionsStorage, *MockLedger, *MockPublisher) {
		g, sessions, ledger, bus := newTestGate()
		sessions.Sessions["s1"] = &core.Session{ID: "s1", BroadcasterID: "alice"}
		past := time.Now().Add(-time.Minute)
		sessions.Participants["p1"] = &core.Participant{
			ID: "p1", SessionID: "s1", ViewerID: "bob",
			FreeWindowDeadline: &past,
		}
		return g, sessions, ledger, bus
	}

	t.Run("debits and unlocks", func(t *testing.T) {
		g, sessions, ledger, bus := setup()
		ledger.Balances["bob"] = 100

		assert.Nil(t, g.Tip("s1", "p1", "bob", 25))
		assert.True(t, sessions.Participants["p1"].HasActiveTip)
		assert.Equal(t, int64(75), ledger.Balances["bob"])
		assert.Len(t, bus.ClientRpcs["bob"], 1)
	})

	t.Run("below the minimum is rejected before any debit", func(t *testing.T) {
		g, _, ledger, _ := setup()
		ledger.Balances["bob"] = 100

		assert.ErrorIs(t, g.Tip("s1", "p1", "bob", 24), ErrTipTooSmall)
		assert.Equal(t, int64(100), ledger.Balances["bob"])
	})

	t.Run("insufficient funds leave the viewer gated", func(t *testing.T) {
		g, sessions, ledger, _ := setup()
		ledger.Balances["bob"] = 10

		assert.ErrorIs(t, g.Tip("s1", "p1", "bob", 25), core.ErrInsufficientFunds)
		assert.False(t, sessions.Participants["p1"].HasActiveTip)
		assert.Equal(t, int64(10), ledger.Balances["bob"])
	})

	t.Run("tipping on someone else's record is forbidden", func(t *testing.T) {
		g, sessions, ledger, _ := setup()
		ledger.Balances["bob"] = 100
		ledger.Balances["mallory"] = 100

		assert.ErrorIs(t, g.Tip("s1", "p1", "mallory", 25), core.ErrForbidden)
		assert.False(t, sessions.Participants["p1"].HasActiveTip)
		assert.Equal(t, int64(100), ledger.Balances["bob"])
		assert.Equal(t, int64(100), ledger.Balances["mallory"])
	})

	t.Run("tipping an ended session fails", func(t *testing.T) {
		g, sessions, ledger, _ := setup()
		ledger.Balances["bob"] = 100
		ended := time.Now()
		sessions.Sessions["s1"].EndedAt = &ended

		assert.ErrorIs(t, g.Tip("s1", "p1", "bob", 25), core.ErrSessionEnded)
	})
}

func TestGateMeter(t *testing.T) {
	privateSession := func() *core.Session {
		return &core.Session{ID: "s1", BroadcasterID: "alice", Mode: core.PrivateSession, RateTokensPerMinute: 20}
	}

	t.Run("charges the first minute up front", func(t *testing.T) {
		g, sessions, ledger, _ := newTestGate()
		sessions.Sessions["s1"] = privateSession()
		participant := &core.Participant{ID: "p1", SessionID: "s1", ViewerID: "bob"}
		sessions.Participants["p1"] = participant
		ledger.Balances["bob"] = 100

		err := g.StartMeter(sessions.Sessions["s1"], participant, time.Hour, func(string) error { return nil })
		assert.Nil(t, err)
		defer g.StopMeter("s1", "p1")

		assert.Equal(t, int64(80), ledger.Balances["bob"])
	})

	t.Run("a failed first debit gates only the joining viewer", func(t *testing.T) {
		g, sessions, ledger, bus := newTestGate()
		sessions.Sessions["s1"] = privateSession()
		participant := &core.Participant{ID: "p1", SessionID: "s1", ViewerID: "bob"}
		sessions.Participants["p1"] = participant
		ledger.Balances["bob"] = 5

		ended := false
		err := g.StartMeter(sessions.Sessions["s1"], participant, time.Hour, func(string) error {
			ended = true
			return nil
		})
		assert.ErrorIs(t, err, core.ErrInsufficientFunds)

		// Остальные зрители продолжают смотреть: шоу не закрывается
		assert.False(t, ended)
		assert.True(t, sessions.Sessions["s1"].Active())
		assert.Equal(t, Gated, g.StateOf(sessions.Sessions["s1"], participant))
		assert.Len(t, bus.ClientRpcs["bob"], 1)
	})

	t.Run("ticks keep debiting until the balance runs dry", func(t *testing.T) {
		g, sessions, ledger, _ := newTestGate()
		sessions.Sessions["s1"] = privateSession()
		participant := &core.Participant{ID: "p1", SessionID: "s1", ViewerID: "bob"}
		sessions.Participants["p1"] = participant
		ledger.Balances["bob"] = 50 // first minute + one tick + a failing one

		endedCh := make(chan string, 1)
		err := g.StartMeter(sessions.Sessions["s1"], participant, 10*time.Millisecond, func(sessionID string) error {
			endedCh <- sessionID
			return nil
		})
		assert.Nil(t, err)

		select {
		case sessionID := <-endedCh:
			assert.Equal(t, "s1", sessionID)
		case <-time.After(2 * time.Second):
			t.Fatal("meter never exhausted the balance")
		}

		balance, err := ledger.Balance("bob")
		assert.Nil(t, err)
		assert.Equal(t, int64(10), balance)
	})

	t.Run("public sessions are never metered", func(t *testing.T) {
		g, sessions, ledger, _ := newTestGate()
		sessions.Sessions["s1"] = &core.Session{ID: "s1", BroadcasterID: "alice", Mode: core.PublicSession}
		participant := &core.Participant{ID: "p1", SessionID: "s1", ViewerID: "bob"}
		ledger.Balances["bob"] = 100

		err := g.StartMeter(sessions.Sessions["s1"], participant, time.Hour, func(string) error { return nil })
		assert.Nil(t, err)
		assert.Equal(t, int64(100), ledger.Balances["bob"])
	})
}

func TestGateAdmitPrivate(t *testing.T) {
	privateSession := &core.Session{ID: "s1", BroadcasterID: "alice", Mode: core.PrivateSession, RateTokensPerMinute: 20}

	t.Run("a funded viewer is admitted without a debit", func(t *testing.T) {
		g, _, ledger, _ := newTestGate()
		ledger.Balances["bob"] = 20

		assert.Nil(t, g.AdmitPrivate(privateSession, "bob"))
		assert.Equal(t, int64(20), ledger.Balances["bob"])
	})

	t.Run("a short balance is refused at the door", func(t *testing.T) {
		g, _, ledger, _ := newTestGate()
		ledger.Balances["bob"] = 19

		assert.ErrorIs(t, g.AdmitPrivate(privateSession, "bob"), core.ErrInsufficientFunds)
	})

	t.Run("a viewer without an account is refused", func(t *testing.T) {
		g, _, _, _ := newTestGate()

		assert.ErrorIs(t, g.AdmitPrivate(privateSession, "guest-1"), core.ErrInsufficientFunds)
	})

	t.Run("public sessions admit anyone", func(t *testing.T) {
		g, _, _, _ := newTestGate()
		public := &core.Session{ID: "s1", BroadcasterID: "alice", Mode: core.PublicSession}

		assert.Nil(t, g.AdmitPrivate(public, "guest-1"))
	})

	t.Run("the broadcaster is never charged admission", func(t *testing.T) {
		g, _, _, _ := newTestGate()

		assert.Nil(t, g.AdmitPrivate(privateSession, "alice"))
	})
}
