package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// MatchStore implements domain.MatchStore using PostgreSQL.
type MatchStore struct {
	pool *pgxpool.Pool
}

// NewMatchStore creates a new MatchStore backed by the given connection pool.
func NewMatchStore(pool *pgxpool.Pool) *MatchStore {
	return &MatchStore{pool: pool}
}

const matchSelectCols = `id, start_time, status, result,
	total_home::text, total_draw::text, total_away::text, total_staked::text,
	fee_bps, settled_by, created_at, finalized_at`

func scanMatch(row pgx.Row) (domain.Match, error) {
	var (
		m                      domain.Match
		status, result, feeBps int16
		home, draw, away, sum  string
		settledBy              string
	)
	if err := row.Scan(
		&m.ID, &m.StartTime, &status, &result,
		&home, &draw, &away, &sum,
		&feeBps, &settledBy, &m.CreatedAt, &m.FinalizedAt,
	); err != nil {
		return domain.Match{}, err
	}
	m.Status = domain.MatchStatus(status)
	m.Result = domain.Outcome(result)
	m.FeeBps = uint16(feeBps)
	if settledBy != "" {
		m.SettledBy = common.HexToAddress(settledBy)
	}
	for i, s := range []string{home, draw, away} {
		if err := scanNum(s, &m.Totals[i]); err != nil {
			return domain.Match{}, err
		}
	}
	if err := scanNum(sum, &m.TotalStaked); err != nil {
		return domain.Match{}, err
	}
	return m, nil
}

func scanMatches(rows pgx.Rows) ([]domain.Match, error) {
	var out []domain.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func settledByText(a common.Address) string {
	if a == (common.Address{}) {
		return ""
	}
	return addrText(a)
}

// Create inserts a new match.
func (s *MatchStore) Create(ctx context.Context, m domain.Match) error {
	id, err := matchKey(m.ID)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO matches (
			id, start_time, status, result,
			total_home, total_draw, total_away, total_staked,
			fee_bps, settled_by, created_at, finalized_at
		) VALUES (
			$1, $2, $3, $4,
			$5::numeric, $6::numeric, $7::numeric, $8::numeric,
			$9, $10, $11, $12
		)`
	_, err = s.pool.Exec(ctx, query,
		id, m.StartTime, int16(m.Status), int16(m.Result),
		numText(&m.Totals[0]), numText(&m.Totals[1]), numText(&m.Totals[2]), numText(&m.TotalStaked),
		int16(m.FeeBps), settledByText(m.SettledBy), m.CreatedAt, m.FinalizedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("postgres: create match %d: %w", m.ID, err)
	}
	return nil
}

// GetByID returns a single match.
func (s *MatchStore) GetByID(ctx context.Context, id uint64) (domain.Match, error) {
	key, err := matchKey(id)
	if err != nil {
		return domain.Match{}, domain.ErrNotFound
	}
	query := `SELECT ` + matchSelectCols + ` FROM matches WHERE id = $1`
	m, err := scanMatch(s.pool.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Match{}, domain.ErrNotFound
		}
		return domain.Match{}, fmt.Errorf("postgres: get match %d: %w", id, err)
	}
	return m, nil
}

// Update overwrites the mutable columns of a match.
func (s *MatchStore) Update(ctx context.Context, m domain.Match) error {
	id, err := matchKey(m.ID)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, updateMatchSQL, matchUpdateArgs(id, m)...)
	if err != nil {
		return fmt.Errorf("postgres: update match %d: %w", m.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

const updateMatchSQL = `
	UPDATE matches SET
		status = $2, result = $3,
		total_home = $4::numeric, total_draw = $5::numeric,
		total_away = $6::numeric, total_staked = $7::numeric,
		settled_by = $8, finalized_at = $9, updated_at = NOW()
	WHERE id = $1`

func matchUpdateArgs(id int64, m domain.Match) []any {
	return []any{
		id, int16(m.Status), int16(m.Result),
		numText(&m.Totals[0]), numText(&m.Totals[1]),
		numText(&m.Totals[2]), numText(&m.TotalStaked),
		settledByText(m.SettledBy), m.FinalizedAt,
	}
}

// List returns matches with optional status and creation-time filters.
func (s *MatchStore) List(ctx context.Context, q domain.MatchQuery) ([]domain.Match, error) {
	query := `SELECT ` + matchSelectCols + ` FROM matches WHERE 1=1`
	args := []any{}
	argIdx := 1

	if q.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, int16(*q.Status))
		argIdx++
	}
	if q.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *q.Since)
		argIdx++
	}
	if q.Until != nil {
		query += fmt.Sprintf(" AND created_at < $%d", argIdx)
		args = append(args, *q.Until)
		argIdx++
	}

	query += " ORDER BY id"

	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, q.Limit)
		argIdx++
	}
	if q.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, q.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list matches: %w", err)
	}
	defer rows.Close()

	out, err := scanMatches(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan matches: %w", err)
	}
	return out, nil
}

// ListFinalizedBefore returns settled or cancelled matches finalized before
// the cutoff, oldest first.
func (s *MatchStore) ListFinalizedBefore(ctx context.Context, before time.Time, limit int) ([]domain.Match, error) {
	query := `SELECT ` + matchSelectCols + ` FROM matches
		WHERE status IN ($1, $2) AND finalized_at < $3
		ORDER BY finalized_at`
	args := []any{int16(domain.MatchStatusSettled), int16(domain.MatchStatusCancelled), before}
	if limit > 0 {
		query += " LIMIT $4"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list finalized matches: %w", err)
	}
	defer rows.Close()

	out, err := scanMatches(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan finalized matches: %w", err)
	}
	return out, nil
}
