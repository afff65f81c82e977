package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ziadkadry99/healthagent/internal/db"
)

// Store provides CRUD operations for audit entries.
type Store struct {
	db  *db.DB
	now func() time.Time
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, now: time.Now}
}

const insertEntry = `
	INSERT INTO audit_entries (
		id, timestamp, user_id, actor_type, action, scope, field,
		summary, reason, message_id, raw_value, new_value
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const selectEntry = `SELECT id, timestamp, user_id, actor_type, action, scope, field,
	summary, reason, message_id, raw_value, new_value FROM audit_entries`

// Log inserts a new audit entry. If entry.ID is empty a UUID is generated.
func (s *Store) Log(ctx context.Context, entry Entry) error {
	return s.LogBatch(ctx, []Entry{entry})
}

// LogBatch inserts entries in one transaction. Entries without an ID get a
// UUID and entries without a timestamp get the current time.
func (s *Store) LogBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertEntry)
		if err != nil {
			return fmt.Errorf("preparing audit insert: %w", err)
		}
		defer stmt.Close()

		for _, e := range entries {
			if e.ID == "" {
				e.ID = uuid.New().String()
			}
			if e.Timestamp.IsZero() {
				e.Timestamp = s.now()
			}
			_, err := stmt.ExecContext(ctx,
				e.ID,
				db.FormatTime(e.Timestamp),
				e.UserID,
				string(e.ActorType),
				string(e.Action),
				e.Scope,
				e.Field,
				e.Summary,
				nullable(e.Reason),
				nullable(e.MessageID),
				nullable(e.RawValue),
				nullable(e.NewValue),
			)
			if err != nil {
				return fmt.Errorf("inserting audit entry: %w", err)
			}
		}
		return nil
	})
}

// GetByID retrieves a single audit entry. It returns nil, nil when no entry
// has that id.
func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, selectEntry+" WHERE id = ?", id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting audit entry: %w", err)
	}
	return e, nil
}

// QueryFilter controls which audit entries are returned by Query.
type QueryFilter struct {
	UserID int64
	Action Action
	Scope  string
	Field  string
	Since  *time.Time
	Until  *time.Time
	Limit  int
	Offset int
}

// Query returns audit entries matching the filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.UserID != 0 {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.Action != "" {
		clauses = append(clauses, "action = ?")
		args = append(args, string(filter.Action))
	}
	if filter.Scope != "" {
		clauses = append(clauses, "scope = ?")
		args = append(args, filter.Scope)
	}
	if filter.Field != "" {
		clauses = append(clauses, "field = ?")
		args = append(args, filter.Field)
	}
	if filter.Since != nil {
		clauses = append(clauses, "timestamp >= ?")
		args = append(args, db.FormatTime(*filter.Since))
	}
	if filter.Until != nil {
		clauses = append(clauses, "timestamp <= ?")
		args = append(args, db.FormatTime(*filter.Until))
	}

	query := selectEntry
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY timestamp DESC, rowid DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	} else if filter.Offset > 0 {
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// DeleteBefore removes all audit entries older than the given time.
// Returns the number of deleted rows.
func (s *Store) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM audit_entries WHERE timestamp < ?",
		db.FormatTime(before),
	)
	if err != nil {
		return 0, fmt.Errorf("deleting old audit entries: %w", err)
	}
	return res.RowsAffected()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (*Entry, error) {
	var (
		e                          Entry
		ts, actorType, action      string
		reason, rawValue, newValue sql.NullString
		messageID                  sql.NullInt64
	)

	err := sc.Scan(
		&e.ID, &ts, &e.UserID, &actorType, &action, &e.Scope, &e.Field,
		&e.Summary, &reason, &messageID, &rawValue, &newValue,
	)
	if err != nil {
		return nil, err
	}

	e.ActorType = ActorType(actorType)
	e.Action = Action(action)
	if e.Timestamp, err = db.ParseTime(ts); err != nil {
		return nil, err
	}
	if reason.Valid {
		e.Reason = &reason.String
	}
	if messageID.Valid {
		e.MessageID = &messageID.Int64
	}
	if rawValue.Valid {
		e.RawValue = &rawValue.String
	}
	if newValue.Valid {
		e.NewValue = &newValue.String
	}
	return &e, nil
}

// nullable converts an optional pointer into a driver value.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
