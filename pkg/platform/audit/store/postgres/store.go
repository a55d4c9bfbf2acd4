package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "poolshare/pkg/domain"
	audit "poolshare/pkg/platform/audit"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the notifications table and relayed to Kafka by the
// outbox worker, which marks them published.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL notification store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// OutboxEntry is an unpublished notification with its outbox identity.
type OutboxEntry struct {
	ID    uuid.UUID
	Event audit.Event
}

const selectColumns = `
	id, category, action, principal_id, actor_id, service_id, group_id,
	proposal_id, amount, member_count, request_id, detail, occurred_at`

// Append writes a notification to the outbox.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO notifications (
			id, category, action, principal_id, actor_id, service_id, group_id,
			proposal_id, amount, member_count, request_id, detail, occurred_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	// Always derive category from action; the catalog is the source of truth.
	category := audit.AuditEvent(event.Action).Category()

	var principalID *uuid.UUID
	if !event.PrincipalID.IsNil() {
		pid := uuid.UUID(event.PrincipalID)
		principalID = &pid
	}
	occurredAt := event.Timestamp
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, query,
		uuid.New(),
		string(category),
		event.Action,
		principalID,
		event.ActorID,
		string(event.ServiceID),
		int64(event.GroupID),
		int64(event.ProposalID),
		event.Amount,
		event.MemberCount,
		event.RequestID,
		event.Detail,
		occurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListByPrincipal returns notifications for a principal in emission order.
func (s *Store) ListByPrincipal(ctx context.Context, principalID id.PrincipalID) ([]audit.Event, error) {
	query := `SELECT` + selectColumns + `
		FROM notifications
		WHERE principal_id = $1
		ORDER BY seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(principalID))
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	return eventsOf(entries), nil
}

// ListRecent returns the last limit notifications, oldest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `SELECT` + selectColumns + ` FROM (
			SELECT * FROM notifications ORDER BY seq DESC LIMIT $1
		) recent
		ORDER BY seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}
	return eventsOf(entries), nil
}

// PendingBatch returns up to limit unpublished entries in emission order.
func (s *Store) PendingBatch(ctx context.Context, limit int) ([]OutboxEntry, error) {
	query := `SELECT` + selectColumns + `
		FROM notifications
		WHERE published_at IS NULL
		ORDER BY seq ASC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending notifications: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// MarkPublished stamps entries as relayed. Already-published entries are untouched.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]string, len(ids))
	for i, v := range ids {
		raw[i] = v.String()
	}
	query := `
		UPDATE notifications
		SET published_at = $1
		WHERE id = ANY($2::uuid[]) AND published_at IS NULL
	`
	if _, err := s.db.ExecContext(ctx, query, at, pq.Array(raw)); err != nil {
		return fmt.Errorf("mark notifications published: %w", err)
	}
	return nil
}

func scanEntries(rows *sql.Rows) ([]OutboxEntry, error) {
	var entries []OutboxEntry
	for rows.Next() {
		var (
			entry       OutboxEntry
			category    string
			serviceID   string
			groupID     int64
			proposalID  int64
			principalID *uuid.UUID
		)
		e := &entry.Event
		err := rows.Scan(
			&entry.ID,
			&category,
			&e.Action,
			&principalID,
			&e.ActorID,
			&serviceID,
			&groupID,
			&proposalID,
			&e.Amount,
			&e.MemberCount,
			&e.RequestID,
			&e.Detail,
			&e.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		e.Category = audit.EventCategory(category)
		e.ServiceID = id.ServiceID(serviceID)
		e.GroupID = id.GroupID(groupID)
		e.ProposalID = id.ProposalID(proposalID)
		if principalID != nil {
			e.PrincipalID = id.PrincipalID(*principalID)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return entries, nil
}

func eventsOf(entries []OutboxEntry) []audit.Event {
	out := make([]audit.Event, len(entries))
	for i, e := range entries {
		out[i] = e.Event
	}
	return out
}
