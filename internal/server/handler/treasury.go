package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// Treasury is the surface of treasury.Treasury used by the handlers.
type Treasury interface {
	Address() common.Address
	Owner() common.Address
	Balance(ctx context.Context) (*uint256.Int, error)
	Withdraw(ctx context.Context, caller, to common.Address, amount *uint256.Int) error
}

// TreasuryHandler serves the treasury and token balance endpoints.
type TreasuryHandler struct {
	treasury Treasury
	ledger   domain.TokenLedger
	decimals int32
	logger   *slog.Logger
}

// NewTreasuryHandler creates a TreasuryHandler.
func NewTreasuryHandler(treasury Treasury, ledger domain.TokenLedger, decimals int32, logger *slog.Logger) *TreasuryHandler {
	return &TreasuryHandler{
		treasury: treasury,
		ledger:   ledger,
		decimals: decimals,
		logger:   logHandler(logger, "treasury"),
	}
}

// GetTreasury reports the treasury account and its balance.
// GET /api/treasury
func (h *TreasuryHandler) GetTreasury(w http.ResponseWriter, r *http.Request) {
	bal, err := h.treasury.Balance(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address": h.treasury.Address().Hex(),
		"owner":   h.treasury.Owner().Hex(),
		"balance": bal.Dec(),
		"display": domain.FormatUnits(bal, h.decimals),
	})
}

type withdrawRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// Withdraw moves tokens out of the treasury. Treasury owner only.
// POST /api/treasury/withdraw
func (h *TreasuryHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	var req withdrawRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInputError(w, err)
		return
	}
	to, err := parseAddress(req.To)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.treasury.Withdraw(r.Context(), who, to, amount); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"to": to.Hex(), "amount": amount.Dec()})
}

// GetBalance reports an account's settlement token balance.
// GET /api/balances/{address}
func (h *TreasuryHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bal, err := h.ledger.BalanceOf(r.Context(), addr)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"address": addr.Hex(),
		"balance": bal.Dec(),
		"display": domain.FormatUnits(bal, h.decimals),
	})
}
