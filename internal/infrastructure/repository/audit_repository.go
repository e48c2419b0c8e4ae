package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aimsgrid/governance-engine/internal/domain/audit"
	"github.com/aimsgrid/governance-engine/internal/domain/errors"
)

// AuditRepository implements audit.EntryRepository on PostgreSQL. Entries are
// append-only; there is no update or delete path.
type AuditRepository struct {
	db *pgxpool.Pool
}

// NewAuditRepository creates a PostgreSQL audit entry repository
func NewAuditRepository(db *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{db: db}
}

const auditColumns = `
	id, sequence_num, timestamp, event_type, category,
	entity_type, entity_id, action, actor_id, actor_type,
	before_state, after_state, metadata, session_id, request_id`

const auditInsert = `
	INSERT INTO audit_entries (
		id, sequence_num, timestamp, event_type, category,
		entity_type, entity_id, action, actor_id, actor_type,
		before_state, after_state, metadata, session_id, request_id
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
	)`

// Store persists a single entry
func (r *AuditRepository) Store(ctx context.Context, entry *audit.Entry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	args, err := auditInsertArgs(entry)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, auditInsert, args...)
	return mapWriteError(err, "audit entry", "sequence number already exists")
}

// StoreBatch persists multiple entries atomically
func (r *AuditRepository) StoreBatch(ctx context.Context, entries []*audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return errors.NewDependencyError("database", "could not begin transaction").WithCause(err)
	}
	defer tx.Rollback(ctx)

	for i, entry := range entries {
		if err := entry.Validate(); err != nil {
			return errors.NewValidationError("INVALID_ENTRY",
				fmt.Sprintf("entry %d failed validation", i)).WithCause(err)
		}

		args, err := auditInsertArgs(entry)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, auditInsert, args...); err != nil {
			return mapWriteError(err, "audit entry", "sequence number already exists")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.NewDependencyError("database", "could not commit batch").WithCause(err)
	}

	return nil
}

// GetByID retrieves an entry by its unique identifier
func (r *AuditRepository) GetByID(ctx context.Context, id uuid.UUID) (*audit.Entry, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_entries WHERE id = $1`

	entry, err := scanAuditEntry(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, mapReadError(err, "audit entry")
	}
	return entry, nil
}

// GetLatestSequenceNumber returns the highest persisted sequence number, or
// zero when the trail is empty
func (r *AuditRepository) GetLatestSequenceNumber(ctx context.Context) (int64, error) {
	var seq int64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence_num), 0) FROM audit_entries`).Scan(&seq)
	if err != nil {
		return 0, mapReadError(err, "audit entry")
	}
	return seq, nil
}

// List retrieves entries matching the filter, newest-first
func (r *AuditRepository) List(ctx context.Context, filter audit.Filter) ([]*audit.Entry, error) {
	where, args := buildAuditWhere(filter)

	query := `SELECT ` + auditColumns + ` FROM audit_entries` + where +
		` ORDER BY sequence_num DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, mapReadError(err, "audit entry")
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, mapReadError(err, "audit entry")
		}
		entries = append(entries, entry)
	}
	return entries, mapReadError(rows.Err(), "audit entry")
}

// ListBySequence retrieves entries with sequence numbers in [from, to],
// ordered ascending
func (r *AuditRepository) ListBySequence(ctx context.Context, from, to int64) ([]*audit.Entry, error) {
	query := `SELECT ` + auditColumns + ` FROM audit_entries
		WHERE sequence_num >= $1 AND sequence_num <= $2
		ORDER BY sequence_num ASC`

	rows, err := r.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, mapReadError(err, "audit entry")
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, mapReadError(err, "audit entry")
		}
		entries = append(entries, entry)
	}
	return entries, mapReadError(rows.Err(), "audit entry")
}

// Count returns the number of entries matching the filter
func (r *AuditRepository) Count(ctx context.Context, filter audit.Filter) (int64, error) {
	where, args := buildAuditWhere(filter)

	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_entries`+where, args...).Scan(&count)
	if err != nil {
		return 0, mapReadError(err, "audit entry")
	}
	return count, nil
}

// rowScanner abstracts pgx.Row and pgx.Rows for shared scanning
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuditEntry(row rowScanner) (*audit.Entry, error) {
	var entry audit.Entry
	var beforeJSON, afterJSON, metadataJSON []byte

	err := row.Scan(
		&entry.ID,
		&entry.SequenceNum,
		&entry.Timestamp,
		&entry.EventType,
		&entry.Category,
		&entry.EntityType,
		&entry.EntityID,
		&entry.Action,
		&entry.ActorID,
		&entry.ActorType,
		&beforeJSON,
		&afterJSON,
		&metadataJSON,
		&entry.SessionID,
		&entry.RequestID,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalState(beforeJSON, &entry.Before); err != nil {
		return nil, err
	}
	if err := unmarshalState(afterJSON, &entry.After); err != nil {
		return nil, err
	}
	if err := unmarshalState(metadataJSON, &entry.Metadata); err != nil {
		return nil, err
	}

	return &entry, nil
}

func unmarshalState(data []byte, target *map[string]interface{}) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, target)
}

func auditInsertArgs(entry *audit.Entry) ([]interface{}, error) {
	beforeJSON, err := marshalState(entry.Before)
	if err != nil {
		return nil, err
	}
	afterJSON, err := marshalState(entry.After)
	if err != nil {
		return nil, err
	}
	metadataJSON, err := marshalState(entry.Metadata)
	if err != nil {
		return nil, err
	}

	return []interface{}{
		entry.ID,
		entry.SequenceNum,
		entry.Timestamp,
		string(entry.EventType),
		entry.Category,
		entry.EntityType,
		entry.EntityID,
		string(entry.Action),
		entry.ActorID,
		string(entry.ActorType),
		beforeJSON,
		afterJSON,
		metadataJSON,
		entry.SessionID,
		entry.RequestID,
	}, nil
}

func marshalState(state map[string]interface{}) ([]byte, error) {
	if state == nil {
		return nil, nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return nil, errors.NewInternalError("could not marshal state snapshot").WithCause(err)
	}
	return data, nil
}

func buildAuditWhere(filter audit.Filter) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(filter.EventTypes) > 0 {
		types := make([]string, len(filter.EventTypes))
		for i, t := range filter.EventTypes {
			types[i] = string(t)
		}
		clauses = append(clauses, "event_type = ANY("+arg(types)+")")
	}
	if len(filter.Categories) > 0 {
		clauses = append(clauses, "category = ANY("+arg(filter.Categories)+")")
	}
	if filter.EntityType != "" {
		clauses = append(clauses, "entity_type = "+arg(filter.EntityType))
	}
	if filter.EntityID != "" {
		clauses = append(clauses, "entity_id = "+arg(filter.EntityID))
	}
	if len(filter.ActorIDs) > 0 {
		clauses = append(clauses, "actor_id = ANY("+arg(filter.ActorIDs)+")")
	}
	if len(filter.ActorTypes) > 0 {
		types := make([]string, len(filter.ActorTypes))
		for i, t := range filter.ActorTypes {
			types[i] = string(t)
		}
		clauses = append(clauses, "actor_type = ANY("+arg(types)+")")
	}
	if filter.Action != "" {
		clauses = append(clauses, "action = "+arg(string(filter.Action)))
	}
	if filter.Since != nil {
		clauses = append(clauses, "timestamp >= "+arg(*filter.Since))
	}
	if filter.Until != nil {
		clauses = append(clauses, "timestamp <= "+arg(*filter.Until))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
