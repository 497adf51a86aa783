package core

import (
	"time"

	"github.com/jmoiron/sqlx"
)

type SignalsRepository struct {
	db *sqlx.DB
}

func NewSignalsRepository(db *sqlx.DB) SignalsDBStorer {
	return &SignalsRepository{
		db: db,
	}
}

func (r *SignalsRepository) Insert(message *SignalMessage) error {
	_, err := r.db.Exec(
		`INSERT INTO signal_messages
			(id, session_id, sender_id, target_id, kind, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		message.ID,
		message.SessionID,
		message.SenderID,
		message.TargetID,
		string(message.Kind),
		[]byte(message.Payload),
	)
	return err
}

func (r *SignalsRepository) PullForTarget(sessionID, targetID string) ([]*SignalMessage, error) {
	// Fetch-and-mark in one statement. SKIP LOCKED keeps two pollers for
	// the same target from double-delivering: each row is handed out by
	// exactly one of them, and order is preserved by the final sort.
	messages := []*SignalMessage{}

	err := r.db.Select(&messages,
		`UPDATE signal_messages SET consumed_at = NOW()
		WHERE id IN (
			SELECT id FROM signal_messages
			WHERE session_id = $1 AND target_id = $2 AND consumed_at IS NULL
			ORDER BY created_at
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, session_id, sender_id, target_id, kind, payload, created_at, consumed_at`,
		sessionID,
		targetID,
	)
	if err != nil {
		return nil, err
	}

	sortSignalsByCreation(messages)

	return messages, nil
}

func (r *SignalsRepository) PruneExpired(ttl time.Duration) (int64, error) {
	result, err := r.db.Exec(
		`DELETE FROM signal_messages WHERE created_at < NOW() - $1::interval`,
		ttl.String(),
	)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (r *SignalsRepository) PruneConsumed(grace time.Duration) (int64, error) {
	result, err := r.db.Exec(
		`DELETE FROM signal_messages
			WHERE consumed_at IS NOT NULL AND consumed_at < NOW() - $1::interval`,
		grace.String(),
	)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func sortSignalsByCreation(messages []*SignalMessage) {
	// UPDATE ... RETURNING has no ordering guarantee.
	for i := 1; i < len(messages); i++ {
		for j := i; j > 0 && messages[j].CreatedAt.Before(messages[j-1].CreatedAt); j-- {
			messages[j], messages[j-1] = messages[j-1], messages[j]
		}
	}
}
