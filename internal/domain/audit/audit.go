package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
)

// Sink is an append-only audit log. Writes are fire-and-forget: a failed
// append never rolls back the business operation that produced it.
type Sink struct {
	db *sqlx.DB
}

func NewSink(db *sqlx.DB) *Sink {
	return &Sink{db: db}
}

// Entry is a single audit record
type Entry struct {
	ID        uuid.UUID       `db:"id" json:"id"`
	ActorID   uuid.UUID       `db:"actor_id" json:"actor_id"`
	Action    string          `db:"action" json:"action"`
	TargetID  string          `db:"target_id" json:"target_id"`
	Details   json.RawMessage `db:"details" json:"details,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Append writes an audit entry. Errors are logged and swallowed.
func (s *Sink) Append(ctx context.Context, actorID uuid.UUID, action, targetID string, details map[string]interface{}) {
	var raw []byte
	if details != nil {
		raw, _ = json.Marshal(details)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id, action, target_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
	`, uuid.New(), actorID, action, targetID, raw)
	if err != nil {
		log.Error().
			Err(err).
			Str("action", action).
			Str("target_id", targetID).
			Msg("Failed to append audit entry")
	}
}

// ListByTarget returns recent audit entries for a target, newest first
func (s *Sink) ListByTarget(ctx context.Context, targetID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var entries []Entry
	err := s.db.SelectContext(ctx, &entries, `
		SELECT * FROM audit_logs
		WHERE target_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, targetID, limit)
	return entries, err
}
