package core

import (
	"encoding/json"
	"time"
)

type SignalKind string

const (
	SignalOffer          SignalKind = "offer"
	SignalAnswer         SignalKind = "answer"
	SignalICECandidate   SignalKind = "ice-candidate"
	SignalQualityRequest SignalKind = "quality-request"
)

func (k SignalKind) Valid() bool {
	switch k {
	case SignalOffer, SignalAnswer, SignalICECandidate, SignalQualityRequest:
		return true
	}
	return false
}

// SignalMessage is one negotiation message in a session's mailbox. The
// payload is an opaque blob for the external media relay; the core never
// parses it. Append-only except for the consumption mark.
type SignalMessage struct {
	ID         string          `json:"id" db:"id"`
	SessionID  string          `json:"session_id" db:"session_id"`
	SenderID   string          `json:"sender_id" db:"sender_id"`
	TargetID   string          `json:"target_id" db:"target_id"`
	Kind       SignalKind      `json:"kind" db:"kind"`
	Payload    json.RawMessage `json:"payload" db:"payload"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
	ConsumedAt *time.Time      `json:"-" db:"consumed_at"`
}

type SignalsDBStorer interface {
	Insert(message *SignalMessage) error
	// PullForTarget atomically marks and returns the target's unconsumed
	// messages in creation order. Safe under concurrent pollers: a message
	// is handed out by exactly one call, retried delivery only happens
	// when a previous caller crashed before acting on it.
	PullForTarget(sessionID, targetID string) ([]*SignalMessage, error)
	PruneExpired(ttl time.Duration) (int64, error)
	PruneConsumed(grace time.Duration) (int64, error)
}
