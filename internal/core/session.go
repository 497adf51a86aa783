package core

import (
	"time"
)

type SessionMode string

const (
	PublicSession  SessionMode = "public"
	PrivateSession SessionMode = "private"
)

func (m SessionMode) Valid() bool {
	return m == PublicSession || m == PrivateSession
}

// Session is the canonical shared context of one broadcaster's live
// broadcast. At most one session per broadcaster has EndedAt == nil;
// the repository enforces that slot, callers never create two.
type Session struct {
	ID                  string      `json:"id" db:"id"`
	BroadcasterID       string      `json:"broadcaster_id" db:"broadcaster_id"`
	Mode                SessionMode `json:"mode" db:"mode"`
	RateTokensPerMinute int         `json:"rate_tokens_per_minute,omitempty" db:"rate_tokens_per_minute"`
	StreamKey           string      `json:"stream_key" db:"stream_key"`
	CreatedAt           time.Time   `json:"created_at" db:"created_at"`
	EndedAt             *time.Time  `json:"ended_at,omitempty" db:"ended_at"`
}

func (s *Session) Active() bool {
	return s.EndedAt == nil
}

// Participant is one viewer's membership in a session. A re-join after
// LeftAt produces a fresh record with a fresh preview window.
type Participant struct {
	ID                 string     `json:"id" db:"id"`
	SessionID          string     `json:"session_id" db:"session_id"`
	ViewerID           string     `json:"viewer_id" db:"viewer_id"`
	Authenticated      bool       `json:"authenticated" db:"authenticated"`
	JoinedAt           time.Time  `json:"joined_at" db:"joined_at"`
	LeftAt             *time.Time `json:"left_at,omitempty" db:"left_at"`
	FreeWindowDeadline *time.Time `json:"free_window_deadline,omitempty" db:"free_window_deadline"`
	HasActiveTip       bool       `json:"has_active_tip" db:"has_active_tip"`
}

func (p *Participant) Active() bool {
	return p.LeftAt == nil
}

type SessionsDBStorer interface {
	// CreateOrGetActive fills the broadcaster's active-session slot or
	// returns the session already occupying it. Concurrent callers must
	// all resolve to the one session id.
	CreateOrGetActive(session *Session) (*Session, error)
	GetActive(broadcasterID string) (*Session, error)
	GetByID(sessionID string) (*Session, error)
	// End stamps EndedAt and closes every open participant record.
	// Idempotent: ending an ended session is a no-op.
	End(sessionID string) error

	// AddParticipant reuses the viewer's open record in the same session
	// when one exists, otherwise inserts the given one.
	AddParticipant(participant *Participant) (*Participant, error)
	GetParticipant(sessionID, participantID string) (*Participant, error)
	FindParticipantByViewer(sessionID, viewerID string) (*Participant, error)
	SetTipUnlocked(sessionID, participantID string) error
	SetGated(sessionID, participantID string) error
	LeaveParticipant(sessionID, participantID string) error
	CountViewers(sessionID string) (int, error)
}
