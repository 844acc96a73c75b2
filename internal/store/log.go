package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/reflex/internal/bus"
	"github.com/roach88/reflex/internal/value"
)

// Record is one persisted event row. Seq is the logical clock assigned
// at insert; reads are always ordered by it.
type Record struct {
	Seq       int64
	ID        string
	TenantID  string
	Kind      string
	Payload   value.Map
	CreatedAt time.Time
}

// WriteEvent appends one event to the log.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - an event re-emitted
// with the same ID is silently ignored. Other constraint violations
// still return errors.
func (s *Store) WriteEvent(ctx context.Context, ev bus.Event) error {
	payloadJSON, err := ev.Payload.MarshalJSON()
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO events (id, tenant_id, kind, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		ev.ID,
		ev.TenantID,
		ev.Kind,
		string(payloadJSON),
		ev.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	return nil
}

// Attach registers the store as a wildcard observer on the bus, so every
// emitted event is appended to the log. Persistence is best-effort: a
// failed write is logged by the bus and never interrupts dispatch.
//
// The returned Unsubscribe detaches the observer.
func Attach(b *bus.Bus, s *Store) bus.Unsubscribe {
	return b.OnAny(func(ctx context.Context, ev bus.Event) error {
		return s.WriteEvent(ctx, ev)
	})
}

// Events returns persisted events for a tenant, oldest first.
// An empty kind matches every kind.
func (s *Store) Events(ctx context.Context, tenantID, kind string) ([]Record, error) {
	query := `
		SELECT seq, id, tenant_id, kind, payload, created_at
		FROM events
		WHERE tenant_id = ?
		ORDER BY seq ASC
	`
	args := []any{tenantID}
	if kind != "" {
		query = `
			SELECT seq, id, tenant_id, kind, payload, created_at
			FROM events
			WHERE tenant_id = ? AND kind = ?
			ORDER BY seq ASC
		`
		args = append(args, kind)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("read events: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	return records, nil
}

// EventByID returns one persisted event, or an error when no row matches.
func (s *Store) EventByID(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, id, tenant_id, kind, payload, created_at
		FROM events
		WHERE id = ?
	`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("event %s: not found", id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("read event %s: %w", id, err)
	}
	return rec, nil
}

// CountEvents returns the number of persisted events for a tenant.
func (s *Store) CountEvents(ctx context.Context, tenantID string) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM events WHERE tenant_id = ?", tenantID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var rec Record
	var payloadJSON, createdAt string
	if err := row.Scan(&rec.Seq, &rec.ID, &rec.TenantID, &rec.Kind, &payloadJSON, &createdAt); err != nil {
		return Record{}, err
	}

	if err := rec.Payload.UnmarshalJSON([]byte(payloadJSON)); err != nil {
		return Record{}, fmt.Errorf("decode payload: %w", err)
	}

	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Record{}, fmt.Errorf("decode created_at: %w", err)
	}
	rec.CreatedAt = ts

	return rec, nil
}
