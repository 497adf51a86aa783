package core

import (
	"time"
)

// BroadcasterPresence is the public availability record of a broadcaster.
// It is mutated only by the owning broadcaster's status updates and by the
// stale-heartbeat sweep. IsLive implies IsOnline.
type BroadcasterPresence struct {
	BroadcasterID string    `json:"broadcaster_id" db:"broadcaster_id"`
	IsOnline      bool      `json:"is_online" db:"is_online"`
	IsAvailable   bool      `json:"is_available" db:"is_available"`
	IsLive        bool      `json:"is_live" db:"is_live"`
	LastHeartbeat time.Time `json:"last_heartbeat" db:"last_heartbeat"`
	ShowRate      int       `json:"show_rate" db:"show_rate"`
	Thumbnail     []byte    `json:"-" db:"thumbnail"`
	UpdatedAt     time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// PresenceCounts is the public counters pair for the landing page.
type PresenceCounts struct {
	Online int `json:"online_broadcasters" db:"online"`
	Live   int `json:"live_broadcasters" db:"live"`
}

// PresenceFilter narrows ListLive results.
type PresenceFilter struct {
	AvailableOnly bool
	Page          int
	PerPage       int
}

type PresenceDBStorer interface {
	SetStatus(broadcasterID string, isLive, isAvailable bool) (*BroadcasterPresence, error)
	Heartbeat(broadcasterID string) error
	SaveShowRate(broadcasterID string, rate int) error
	SaveThumbnail(broadcasterID string, thumbnail []byte) error
	Get(broadcasterID string) (*BroadcasterPresence, error)
	ListLive(filter PresenceFilter) ([]*BroadcasterPresence, error)
	Counts() (*PresenceCounts, error)
	// ExpireStale flips broadcasters whose heartbeat is older than ttl to
	// offline and not live, returning the ids it touched.
	ExpireStale(ttl time.Duration) ([]string, error)
}
