package core

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
)

const (
	presencePageDefault    int = 1
	presencePerPageDefault int = 50

	// A broadcaster counts as online for the public counters while
	// available or seen within the last hour.
	presenceOnlineWindow = time.Hour
)

type PresenceRepository struct {
	db *sqlx.DB
}

func NewPresenceRepository(db *sqlx.DB) PresenceDBStorer {
	return &PresenceRepository{
		db: db,
	}
}

func (r *PresenceRepository) SetStatus(broadcasterID string, isLive, isAvailable bool) (*BroadcasterPresence, error) {
	// Going live forces online; last-write-wins per broadcaster.
	presence := &BroadcasterPresence{}

	err := r.db.Get(presence,
		`UPDATE broadcaster_presence SET
			is_online = true,
			is_live = $1,
			is_available = $2,
			last_heartbeat = NOW(),
			updated_at = NOW()
		WHERE broadcaster_id = $3
		RETURNING broadcaster_id, is_online, is_available, is_live, last_heartbeat, show_rate, updated_at`,
		isLive,
		isAvailable,
		broadcasterID,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return presence, nil
}

func (r *PresenceRepository) Heartbeat(broadcasterID string) error {
	result, err := r.db.Exec(
		`UPDATE broadcaster_presence SET
			is_online = true,
			last_heartbeat = NOW(),
			updated_at = NOW()
		WHERE broadcaster_id = $1`,
		broadcasterID,
	)
	if err != nil {
		return err
	}

	return errIfNoRows(result)
}

func (r *PresenceRepository) SaveShowRate(broadcasterID string, rate int) error {
	result, err := r.db.Exec(
		`UPDATE broadcaster_presence SET show_rate = $1, updated_at = NOW() WHERE broadcaster_id = $2`,
		rate,
		broadcasterID,
	)
	if err != nil {
		return err
	}

	return errIfNoRows(result)
}

func (r *PresenceRepository) SaveThumbnail(broadcasterID string, thumbnail []byte) error {
	result, err := r.db.Exec(
		`UPDATE broadcaster_presence SET thumbnail = $1, updated_at = NOW() WHERE broadcaster_id = $2`,
		thumbnail,
		broadcasterID,
	)
	if err != nil {
		return err
	}

	return errIfNoRows(result)
}

func (r *PresenceRepository) Get(broadcasterID string) (*BroadcasterPresence, error) {
	presence := &BroadcasterPresence{}

	err := r.db.Get(presence,
		`SELECT * FROM broadcaster_presence WHERE broadcaster_id = $1 LIMIT 1`,
		broadcasterID,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return presence, nil
}

func (r *PresenceRepository) ListLive(filter PresenceFilter) ([]*BroadcasterPresence, error) {
	page := filter.Page
	perPage := filter.PerPage
	if page == 0 {
		page = presencePageDefault
	}
	if perPage == 0 {
		perPage = presencePerPageDefault
	}

	query := `SELECT
			broadcaster_id, is_online, is_available, is_live, last_heartbeat, show_rate, updated_at
		FROM broadcaster_presence
		WHERE is_live`
	if filter.AvailableOnly {
		query += ` AND is_available`
	}
	query += ` ORDER BY updated_at DESC LIMIT $1 OFFSET $2`

	records := []*BroadcasterPresence{}
	if err := r.db.Select(&records, query, perPage, (page-1)*perPage); err != nil {
		return nil, err
	}

	return records, nil
}

func (r *PresenceRepository) Counts() (*PresenceCounts, error) {
	counts := &PresenceCounts{}

	err := r.db.Get(counts,
		`SELECT
			COUNT(*) FILTER (WHERE is_available OR last_heartbeat >= NOW() - $1::interval) AS online,
			COUNT(*) FILTER (WHERE is_live AND is_available) AS live
		FROM broadcaster_presence`,
		presenceOnlineWindow.String(),
	)
	if err != nil {
		return nil, err
	}

	return counts, nil
}

func (r *PresenceRepository) ExpireStale(ttl time.Duration) ([]string, error) {
	expired := []string{}

	err := r.db.Select(&expired,
		`UPDATE broadcaster_presence SET
			is_online = false,
			is_live = false,
			updated_at = NOW()
		WHERE (is_online OR is_live) AND last_heartbeat < NOW() - $1::interval
		RETURNING broadcaster_id`,
		ttl.String(),
	)
	if err != nil {
		return nil, err
	}

	return expired, nil
}

func errIfNoRows(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
