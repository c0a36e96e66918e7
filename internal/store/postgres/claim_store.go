package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// ClaimStore implements domain.ClaimStore using PostgreSQL.
type ClaimStore struct {
	pool *pgxpool.Pool
}

// NewClaimStore creates a new ClaimStore backed by the given connection pool.
func NewClaimStore(pool *pgxpool.Pool) *ClaimStore {
	return &ClaimStore{pool: pool}
}

const claimSelectCols = `match_id, participant, kind, amount::text, claimed_at`

func scanClaim(row pgx.Row) (domain.Claim, error) {
	var (
		c                   domain.Claim
		participant, amount string
		kind                string
	)
	if err := row.Scan(&c.MatchID, &participant, &kind, &amount, &c.ClaimedAt); err != nil {
		return domain.Claim{}, err
	}
	c.Participant = common.HexToAddress(participant)
	c.Kind = domain.ClaimKind(kind)
	if err := scanNum(amount, &c.Amount); err != nil {
		return domain.Claim{}, err
	}
	return c, nil
}

// Get returns a claim or domain.ErrNotFound.
func (s *ClaimStore) Get(ctx context.Context, matchID uint64, participant common.Address) (domain.Claim, error) {
	key, err := matchKey(matchID)
	if err != nil {
		return domain.Claim{}, domain.ErrNotFound
	}
	query := `SELECT ` + claimSelectCols + ` FROM claims WHERE match_id = $1 AND participant = $2`
	c, err := scanClaim(s.pool.QueryRow(ctx, query, key, addrText(participant)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Claim{}, domain.ErrNotFound
		}
		return domain.Claim{}, fmt.Errorf("postgres: get claim %d/%s: %w", matchID, participant.Hex(), err)
	}
	return c, nil
}

// MarkClaimed inserts the claim row; the primary key makes it exactly-once.
func (s *ClaimStore) MarkClaimed(ctx context.Context, c domain.Claim) error {
	key, err := matchKey(c.MatchID)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO claims (match_id, participant, kind, amount, claimed_at)
		VALUES ($1, $2, $3, $4::numeric, $5)
		ON CONFLICT (match_id, participant) DO NOTHING`
	tag, err := s.pool.Exec(ctx, query, key, addrText(c.Participant), string(c.Kind), numText(&c.Amount), c.ClaimedAt)
	if err != nil {
		return fmt.Errorf("postgres: mark claimed %d/%s: %w", c.MatchID, c.Participant.Hex(), err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyClaimed
	}
	return nil
}

// Unmark deletes a claim row after a failed transfer.
func (s *ClaimStore) Unmark(ctx context.Context, matchID uint64, participant common.Address) error {
	key, err := matchKey(matchID)
	if err != nil {
		return err
	}
	const query = `DELETE FROM claims WHERE match_id = $1 AND participant = $2`
	if _, err := s.pool.Exec(ctx, query, key, addrText(participant)); err != nil {
		return fmt.Errorf("postgres: unmark claim %d/%s: %w", matchID, participant.Hex(), err)
	}
	return nil
}

// ListByMatch returns every claim on a match.
func (s *ClaimStore) ListByMatch(ctx context.Context, matchID uint64) ([]domain.Claim, error) {
	key, err := matchKey(matchID)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + claimSelectCols + ` FROM claims WHERE match_id = $1 ORDER BY claimed_at`
	rows, err := s.pool.Query(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("postgres: list claims %d: %w", matchID, err)
	}
	defer rows.Close()

	var out []domain.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan claim: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
