package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"aeroledger/pkg/platform/sentinel"
)

// PostgresStore persists audit entries. It deliberately runs outside any
// business transaction: an aborted cascade must not erase the audit trail of
// the attempt.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type entryDoc struct {
	Payload  map[string]any `json:"payload,omitempty"`
	OldValue any            `json:"oldValue,omitempty"`
	NewValue any            `json:"newValue,omitempty"`
	Changes  []FieldChange  `json:"changes,omitempty"`
}

func (s *PostgresStore) Create(ctx context.Context, entry Entry) (Entry, error) {
	entry.ID = uuid.NewString()
	entry.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	entry.PrevHash = ""
	entry.Hash = ""
	doc, err := json.Marshal(entryDoc{
		Payload:  entry.Payload,
		OldValue: entry.OldValue,
		NewValue: entry.NewValue,
		Changes:  entry.Changes,
	})
	if err != nil {
		return Entry{}, fmt.Errorf("marshal audit doc: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_entries (id, resource, resource_id, action, actor,
			method, status_code, ip, user_agent, justification, doc,
			prev_hash, hash, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,'','',$12)`,
		entry.ID, entry.Resource, entry.ResourceID, entry.Action, entry.Actor,
		entry.Method, entry.StatusCode, entry.IP, entry.UserAgent,
		entry.Justification, doc, entry.CreatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("insert audit entry: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) SetChain(ctx context.Context, id, prevHash, hash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE audit_entries SET prev_hash=$2, hash=$3 WHERE id=$1`,
		id, prevHash, hash)
	if err != nil {
		return fmt.Errorf("set audit chain fields: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const entryColumns = `id, resource, resource_id, action, actor, method,
	status_code, ip, user_agent, justification, doc, prev_hash, hash,
	created_at`

func scanEntry(row interface{ Scan(...any) error }) (Entry, error) {
	var e Entry
	var doc []byte
	err := row.Scan(&e.ID, &e.Resource, &e.ResourceID, &e.Action, &e.Actor,
		&e.Method, &e.StatusCode, &e.IP, &e.UserAgent, &e.Justification,
		&doc, &e.PrevHash, &e.Hash, &e.CreatedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("scan audit entry: %w", err)
	}
	if len(doc) > 0 {
		var d entryDoc
		if err := json.Unmarshal(doc, &d); err != nil {
			return Entry{}, fmt.Errorf("decode audit doc: %w", err)
		}
		e.Payload = d.Payload
		e.OldValue = d.OldValue
		e.NewValue = d.NewValue
		e.Changes = d.Changes
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

func (s *PostgresStore) Latest(ctx context.Context, resource, resourceID string) (Entry, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM audit_entries
		WHERE resource=$1 AND resource_id=$2
		ORDER BY created_at DESC, id DESC LIMIT 1`,
		resource, resourceID)
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, false, nil
		}
		return Entry{}, false, err
	}
	return e, true, nil
}

func (s *PostgresStore) ListAsc(ctx context.Context, filters Filters, limit, offset int) ([]Entry, int, error) {
	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filters.Resource != "" {
		where = append(where, "resource="+arg(filters.Resource))
	}
	if filters.ResourceID != "" {
		where = append(where, "resource_id="+arg(filters.ResourceID))
	}
	if filters.Action != "" {
		where = append(where, "action="+arg(string(filters.Action)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_entries WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	query := `SELECT ` + entryColumns + ` FROM audit_entries WHERE ` + cond +
		` ORDER BY created_at, id`
	if limit > 0 {
		query += " LIMIT " + arg(limit)
	}
	if offset > 0 {
		query += " OFFSET " + arg(offset)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}
