package api

import (
	"sync"
	"time"

	"github.com/camhive/live-core/internal/core"
	"github.com/camhive/live-core/internal/eventbus/rpc"
	"github.com/camhive/live-core/internal/thumbnail"
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
	for _, existing := range s.Sessions {
		if existing.BroadcasterID == session.BroadcasterID && existing.Active() {
			return existing, nil
		}
	}
	session.CreatedAt = time.Now()
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
	for _, participant := range s.Participants {
		if participant.SessionID == sessionID && participant.LeftAt == nil {
			now := time.Now()
			participant.LeftAt = &now
		}
	}
	return nil
}

func (s *MockSessionsStorage) AddParticipant(participant *core.Participant) (*core.Participant, error) {
	for _, existing := range s.Participants {
		if existing.SessionID == participant.SessionID && existing.ViewerID == participant.ViewerID && existing.Active() {
			return existing, nil
		}
	}
	participant.JoinedAt = time.Now()
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
	count := 0
	for _, participant := range s.Participants {
		if participant.SessionID == sessionID && participant.Active() {
			count++
		}
	}
	return count, nil
}

type MockPresenceStorage struct {
	Records map[string]*core.BroadcasterPresence
}

func NewMockPresenceStorage() *MockPresenceStorage {
	return &MockPresenceStorage{Records: make(map[string]*core.BroadcasterPresence)}
}

func (s *MockPresenceStorage) SetStatus(broadcasterID string, isLive, isAvailable bool) (*core.BroadcasterPresence, error) {
	record, ok := s.Records[broadcasterID]
	if !ok {
		return nil, core.ErrNotFound
	}
	record.IsLive = isLive
	record.IsAvailable = isAvailable
	record.IsOnline = true
	return record, nil
}

func (s *MockPresenceStorage) Heartbeat(broadcasterID string) error {
	if _, ok := s.Records[broadcasterID]; !ok {
		return core.ErrNotFound
	}
	return nil
}

func (s *MockPresenceStorage) SaveShowRate(broadcasterID string, rate int) error {
	record, ok := s.Records[broadcasterID]
	if !ok {
		return core.ErrNotFound
	}
	record.ShowRate = rate
	return nil
}

func (s *MockPresenceStorage) SaveThumbnail(broadcasterID string, thumb []byte) error { return nil }

func (s *MockPresenceStorage) Get(broadcasterID string) (*core.BroadcasterPresence, error) {
	record, ok := s.Records[broadcasterID]
	if !ok {
		return nil, core.ErrNotFound
	}
	return record, nil
}

func (s *MockPresenceStorage) ListLive(filter core.PresenceFilter) ([]*core.BroadcasterPresence, error) {
	var live []*core.BroadcasterPresence
	for _, record := range s.Records {
		if record.IsLive {
			live = append(live, record)
		}
	}
	return live, nil
}

func (s *MockPresenceStorage) Counts() (*core.PresenceCounts, error) {
	counts := &core.PresenceCounts{}
	for _, record := range s.Records {
		if record.IsOnline {
			counts.Online++
		}
		if record.IsLive {
			counts.Live++
		}
	}
	return counts, nil
}

func (s *MockPresenceStorage) ExpireStale(ttl time.Duration) ([]string, error) {
	return nil, nil
}

type MockSignalsStorage struct {
	Messages []*core.SignalMessage

	sequence int
}

func (s *MockSignalsStorage) Insert(message *core.SignalMessage) error {
	s.sequence++
	message.CreatedAt = time.Unix(int64(s.sequence), 0)
	s.Messages = append(s.Messages, message)
	return nil
}

func (s *MockSignalsStorage) PullForTarget(sessionID, targetID string) ([]*core.SignalMessage, error) {
	var pulled []*core.SignalMessage
	now := time.Now()
	for _, message := range s.Messages {
		if message.SessionID == sessionID && message.TargetID == targetID && message.ConsumedAt == nil {
			consumed := now
			message.ConsumedAt = &consumed
			pulled = append(pulled, message)
		}
	}
	return pulled, nil
}

func (s *MockSignalsStorage) PruneExpired(ttl time.Duration) (int64, error)    { return 0, nil }
func (s *MockSignalsStorage) PruneConsumed(grace time.Duration) (int64, error) { return 0, nil }

type MockLedger struct {
	lock     sync.Mutex
	Balances map[string]int64
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
	ServerRpcs []rpc.Rpc
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

func (p *MockPublisher) PublishServer(r rpc.Rpc) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.ServerRpcs = append(p.ServerRpcs, r)
	return nil
}

type MockThumbnailQueue struct {
	Enqueued []*thumbnail.Message
	MockErr  error
}

func (q *MockThumbnailQueue) Enqueue(msg *thumbnail.Message) error {
	if q.MockErr != nil {
		return q.MockErr
	}
	q.Enqueued = append(q.Enqueued, msg)
	return nil
}
