package core

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// SessionsRepository owns the per-broadcaster active-session slot. The
// slot is a partial unique index on broadcaster_id WHERE ended_at IS NULL;
// the insert races through ON CONFLICT so concurrent starts collapse onto
// a single row without external locking.
type SessionsRepository struct {
	db *sqlx.DB
}

func NewSessionsRepository(db *sqlx.DB) SessionsDBStorer {
	return &SessionsRepository{
		db: db,
	}
}

func (r *SessionsRepository) CreateOrGetActive(session *Session) (*Session, error) {
	created := &Session{}

	err := r.db.Get(created,
		`INSERT INTO sessions
			(id, broadcaster_id, mode, rate_tokens_per_minute, stream_key, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (broadcaster_id) WHERE ended_at IS NULL DO NOTHING
		RETURNING id, broadcaster_id, mode, rate_tokens_per_minute, stream_key, created_at, ended_at`,
		session.ID,
		session.BroadcasterID,
		string(session.Mode),
		session.RateTokensPerMinute,
		session.StreamKey,
	)
	if err == nil {
		return created, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	// Lost the race or the slot was already taken: the existing active
	// session is the canonical one.
	return r.GetActive(session.BroadcasterID)
}

func (r *SessionsRepository) GetActive(broadcasterID string) (*Session, error) {
	session := &Session{}

	err := r.db.Get(session,
		`SELECT * FROM sessions WHERE broadcaster_id = $1 AND ended_at IS NULL LIMIT 1`,
		broadcasterID,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return session, nil
}

func (r *SessionsRepository) GetByID(sessionID string) (*Session, error) {
	session := &Session{}

	err := r.db.Get(session,
		`SELECT * FROM sessions WHERE id = $1 LIMIT 1`,
		sessionID,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return session, nil
}

func (r *SessionsRepository) End(sessionID string) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE sessions SET ended_at = NOW() WHERE id = $1 AND ended_at IS NULL`,
		sessionID,
	); err != nil {
		return err
	}

	if _, err := tx.Exec(
		`UPDATE participants SET left_at = NOW() WHERE session_id = $1 AND left_at IS NULL`,
		sessionID,
	); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *SessionsRepository) AddParticipant(participant *Participant) (*Participant, error) {
	// A viewer holds at most one open record per session; a repeated join
	// while connected resolves to the record already there.
	existing, err := r.FindParticipantByViewer(participant.SessionID, participant.ViewerID)
	if err != nil && err != ErrNotFound {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	created := &Participant{}
	err = r.db.Get(created,
		`INSERT INTO participants
			(id, session_id, viewer_id, authenticated, joined_at, free_window_deadline)
		VALUES ($1, $2, $3, $4, NOW(), $5)
		ON CONFLICT (session_id, viewer_id) WHERE left_at IS NULL DO NOTHING
		RETURNING id, session_id, viewer_id, authenticated, joined_at, left_at, free_window_deadline, has_active_tip`,
		participant.ID,
		participant.SessionID,
		participant.ViewerID,
		participant.Authenticated,
		participant.FreeWindowDeadline,
	)
	if err == nil {
		return created, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	return r.FindParticipantByViewer(participant.SessionID, participant.ViewerID)
}

func (r *SessionsRepository) GetParticipant(sessionID, participantID string) (*Participant, error) {
	participant := &Participant{}

	err := r.db.Get(participant,
		`SELECT * FROM participants WHERE session_id = $1 AND id = $2 LIMIT 1`,
		sessionID,
		participantID,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return participant, nil
}

func (r *SessionsRepository) FindParticipantByViewer(sessionID, viewerID string) (*Participant, error) {
	participant := &Participant{}

	err := r.db.Get(participant,
		`SELECT * FROM participants
			WHERE session_id = $1 AND viewer_id = $2 AND left_at IS NULL LIMIT 1`,
		sessionID,
		viewerID,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return participant, nil
}

func (r *SessionsRepository) SetTipUnlocked(sessionID, participantID string) error {
	result, err := r.db.Exec(
		`UPDATE participants SET has_active_tip = true, free_window_deadline = NULL
			WHERE session_id = $1 AND id = $2 AND left_at IS NULL`,
		sessionID,
		participantID,
	)
	if err != nil {
		return err
	}

	return errIfNoRows(result)
}

func (r *SessionsRepository) SetGated(sessionID, participantID string) error {
	result, err := r.db.Exec(
		`UPDATE participants SET has_active_tip = false, free_window_deadline = NOW()
			WHERE session_id = $1 AND id = $2 AND left_at IS NULL`,
		sessionID,
		participantID,
	)
	if err != nil {
		return err
	}

	return errIfNoRows(result)
}

func (r *SessionsRepository) LeaveParticipant(sessionID, participantID string) error {
	_, err := r.db.Exec(
		`UPDATE participants SET left_at = NOW()
			WHERE session_id = $1 AND id = $2 AND left_at IS NULL`,
		sessionID,
		participantID,
	)
	return err
}

func (r *SessionsRepository) CountViewers(sessionID string) (int, error) {
	var count int

	err := r.db.Get(&count,
		`SELECT COUNT(*) FROM participants WHERE session_id = $1 AND left_at IS NULL`,
		sessionID,
	)
	if err != nil {
		return 0, err
	}

	return count, nil
}
