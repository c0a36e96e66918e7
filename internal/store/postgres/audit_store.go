package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// AuditStore implements domain.AuditStore on the audit_log table. Rows
// about one match carry its id so a match's trail is one index scan.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore creates a new AuditStore backed by the given connection pool.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Log appends e. The detail map is stored as JSONB; a zero MatchID is
// stored as NULL.
func (s *AuditStore) Log(ctx context.Context, e domain.AuditEntry) error {
	detail, err := json.Marshal(e.Detail)
	if err != nil {
		return fmt.Errorf("postgres: marshal audit detail: %w", err)
	}

	var matchID *int64
	if e.MatchID != 0 {
		id, err := matchKey(e.MatchID)
		if err != nil {
			return err
		}
		matchID = &id
	}
	var actor string
	if e.Actor != (common.Address{}) {
		actor = addrText(e.Actor)
	}

	const query = `
		INSERT INTO audit_log (event, match_id, actor, detail, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5::timestamptz, NOW()))`
	var at any
	if !e.CreatedAt.IsZero() {
		at = e.CreatedAt
	}
	if _, err := s.pool.Exec(ctx, query, e.Event, matchID, actor, detail, at); err != nil {
		return fmt.Errorf("postgres: log audit event %s: %w", e.Event, err)
	}
	return nil
}

// List returns entries newest first.
func (s *AuditStore) List(ctx context.Context, q domain.AuditQuery) ([]domain.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.MatchID != nil {
		id, err := matchKey(*q.MatchID)
		if err != nil {
			return nil, err
		}
		where = append(where, "match_id = "+arg(id))
	}
	if q.Since != nil {
		where = append(where, "created_at >= "+arg(*q.Since))
	}
	if q.Until != nil {
		where = append(where, "created_at <= "+arg(*q.Until))
	}

	query := `SELECT id, event, COALESCE(match_id, 0), actor, detail, created_at FROM audit_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if q.Limit > 0 {
		query += " LIMIT " + arg(q.Limit)
	}
	if q.Offset > 0 {
		query += " OFFSET " + arg(q.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries: %w", err)
	}
	entries, err := pgx.CollectRows(rows, scanAuditEntry)
	if err != nil {
		return nil, fmt.Errorf("postgres: list audit entries: %w", err)
	}
	return entries, nil
}

func scanAuditEntry(row pgx.CollectableRow) (domain.AuditEntry, error) {
	var (
		e       domain.AuditEntry
		matchID int64
		actor   string
		detail  []byte
	)
	if err := row.Scan(&e.ID, &e.Event, &matchID, &actor, &detail, &e.CreatedAt); err != nil {
		return e, err
	}
	e.MatchID = uint64(matchID)
	if actor != "" {
		e.Actor = common.HexToAddress(actor)
	}
	if detail != nil {
		if err := json.Unmarshal(detail, &e.Detail); err != nil {
			return e, fmt.Errorf("unmarshal audit detail %d: %w", e.ID, err)
		}
	}
	return e, nil
}
