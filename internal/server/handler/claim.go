package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ClaimHandler releases winnings and refunds.
type ClaimHandler struct {
	engine Engine
	logger *slog.Logger
}

// NewClaimHandler creates a ClaimHandler.
func NewClaimHandler(engine Engine, logger *slog.Logger) *ClaimHandler {
	return &ClaimHandler{engine: engine, logger: logHandler(logger, "claim")}
}

// Claim pays the caller's winnings on a settled match.
// POST /api/matches/{id}/claim
func (h *ClaimHandler) Claim(w http.ResponseWriter, r *http.Request) {
	h.release(w, r, h.engine.Claim)
}

// Refund returns the caller's stake on a cancelled match.
// POST /api/matches/{id}/refund
func (h *ClaimHandler) Refund(w http.ResponseWriter, r *http.Request) {
	h.release(w, r, h.engine.RefundOnCancelled)
}

func (h *ClaimHandler) release(w http.ResponseWriter, r *http.Request, pay func(ctx context.Context, who common.Address, id uint64) (*uint256.Int, error)) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := matchID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := pay(r.Context(), who, id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse(id, who.Hex(), amount))
}
