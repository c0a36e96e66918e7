package postgres

import (
	"fmt"
	"math"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Amounts travel as decimal text (cast with ::numeric / ::text in SQL) so
// the full uint256 range round-trips without float conversion.

func numText(v *uint256.Int) string {
	return v.Dec()
}

func scanNum(s string, dst *uint256.Int) error {
	if err := dst.SetFromDecimal(s); err != nil {
		return fmt.Errorf("postgres: decode amount %q: %w", s, err)
	}
	return nil
}

// addrText is the canonical lower-case hex used as a key column.
func addrText(a common.Address) string {
	return strings.ToLower(a.Hex())
}

// matchKey converts a match id to the BIGINT key.
func matchKey(id uint64) (int64, error) {
	if id > math.MaxInt64 {
		return 0, fmt.Errorf("postgres: match id %d exceeds BIGINT", id)
	}
	return int64(id), nil
}
