package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgConn is satisfied by *pgxpool.Pool.
type pgConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PGStorage writes events to the audit_events table.
type PGStorage struct {
	db pgConn
}

func NewPGStorage(db pgConn) *PGStorage {
	if db == nil {
		panic("audit: database connection cannot be nil")
	}
	return &PGStorage{db: db}
}

const insertEventSQL = `INSERT INTO audit_events
	(id, tenant_id, actor_id, action, resource, resource_id, result, error, request_id, metadata, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

func (s *PGStorage) Store(ctx context.Context, event Event) error {
	args, err := eventArgs(event)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(ctx, insertEventSQL, args...); err != nil {
		return fmt.Errorf("audit: store event: %w", err)
	}
	return nil
}

// StoreBatch inserts all events in one implicit transaction.
func (s *PGStorage) StoreBatch(ctx context.Context, events []Event) error {
	if len(events) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		args, err := eventArgs(e)
		if err != nil {
			return err
		}
		batch.Queue(insertEventSQL, args...)
	}

	if err := s.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("audit: store batch of %d events: %w", len(events), err)
	}
	return nil
}

func (s *PGStorage) Query(ctx context.Context, c Criteria) ([]Event, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if c.TenantID != "" {
		add("tenant_id = $%d", c.TenantID)
	}
	if c.Action != "" {
		add("action = $%d", c.Action)
	}
	if c.ResourceID != "" {
		add("resource_id = $%d", c.ResourceID)
	}
	if !c.Since.IsZero() {
		add("created_at >= $%d", c.Since)
	}

	query := `SELECT id, tenant_id, actor_id, action, resource, resource_id, result, error, request_id, metadata, created_at
		FROM audit_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if c.Limit > 0 {
		args = append(args, c.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit: query events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
		var (
			e        Event
			result   string
			metadata []byte
		)
		if err := row.Scan(&e.ID, &e.TenantID, &e.ActorID, &e.Action, &e.Resource, &e.ResourceID,
			&result, &e.Error, &e.RequestID, &metadata, &e.CreatedAt); err != nil {
			return Event{}, err
		}
		e.Result = Result(result)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return Event{}, err
			}
		}
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("audit: scan events: %w", err)
	}
	return events, nil
}

func eventArgs(e Event) ([]any, error) {
	var metadata []byte
	if len(e.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(e.Metadata); err != nil {
			return nil, fmt.Errorf("audit: encode metadata: %w", err)
		}
	}
	return []any{
		e.ID, e.TenantID, e.ActorID, e.Action, e.Resource, e.ResourceID,
		string(e.Result), e.Error, e.RequestID, metadata, e.CreatedAt,
	}, nil
}
