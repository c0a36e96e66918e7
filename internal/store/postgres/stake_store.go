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

// StakeStore implements domain.StakeStore using PostgreSQL.
type StakeStore struct {
	pool *pgxpool.Pool
}

// NewStakeStore creates a new StakeStore backed by the given connection pool.
func NewStakeStore(pool *pgxpool.Pool) *StakeStore {
	return &StakeStore{pool: pool}
}

const stakeSelectCols = `match_id, participant,
	amount_home::text, amount_draw::text, amount_away::text, updated_at`

func scanStake(row pgx.Row) (domain.Stake, error) {
	var (
		st               domain.Stake
		participant      string
		home, draw, away string
	)
	if err := row.Scan(&st.MatchID, &participant, &home, &draw, &away, &st.UpdatedAt); err != nil {
		return domain.Stake{}, err
	}
	st.Participant = common.HexToAddress(participant)
	for i, s := range []string{home, draw, away} {
		if err := scanNum(s, &st.Amounts[i]); err != nil {
			return domain.Stake{}, err
		}
	}
	return st, nil
}

// Get returns the participant's stake, zero-valued if none exists.
func (s *StakeStore) Get(ctx context.Context, matchID uint64, participant common.Address) (domain.Stake, error) {
	key, err := matchKey(matchID)
	if err != nil {
		return domain.Stake{}, err
	}
	query := `SELECT ` + stakeSelectCols + ` FROM stakes WHERE match_id = $1 AND participant = $2`
	st, err := scanStake(s.pool.QueryRow(ctx, query, key, addrText(participant)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Stake{MatchID: matchID, Participant: participant}, nil
		}
		return domain.Stake{}, fmt.Errorf("postgres: get stake %d/%s: %w", matchID, participant.Hex(), err)
	}
	return st, nil
}

// ListByMatch returns every stake on a match.
func (s *StakeStore) ListByMatch(ctx context.Context, matchID uint64) ([]domain.Stake, error) {
	key, err := matchKey(matchID)
	if err != nil {
		return nil, err
	}
	query := `SELECT ` + stakeSelectCols + ` FROM stakes WHERE match_id = $1 ORDER BY participant`
	rows, err := s.pool.Query(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("postgres: list stakes %d: %w", matchID, err)
	}
	defer rows.Close()

	var out []domain.Stake
	for rows.Next() {
		st, err := scanStake(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan stake: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// Apply writes match totals and the participant stake in one transaction.
func (s *StakeStore) Apply(ctx context.Context, m domain.Match, st domain.Stake) error {
	id, err := matchKey(m.ID)
	if err != nil {
		return err
	}

	const upsert = `
		INSERT INTO stakes (match_id, participant, amount_home, amount_draw, amount_away, updated_at)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6)
		ON CONFLICT (match_id, participant) DO UPDATE SET
			amount_home = EXCLUDED.amount_home,
			amount_draw = EXCLUDED.amount_draw,
			amount_away = EXCLUDED.amount_away,
			updated_at  = EXCLUDED.updated_at`

	return inTx(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, updateMatchSQL, matchUpdateArgs(id, m)...)
		if err != nil {
			return fmt.Errorf("postgres: apply stake totals %d: %w", m.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		if _, err := tx.Exec(ctx, upsert,
			id, addrText(st.Participant),
			numText(&st.Amounts[0]), numText(&st.Amounts[1]), numText(&st.Amounts[2]),
			st.UpdatedAt,
		); err != nil {
			return fmt.Errorf("postgres: upsert stake %d/%s: %w", m.ID, st.Participant.Hex(), err)
		}
		return nil
	})
}
