package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/parimutuel/internal/crypto"
	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// SettlementHandler accepts signed results.
type SettlementHandler struct {
	engine Engine
	logger *slog.Logger
}

// NewSettlementHandler creates a SettlementHandler.
func NewSettlementHandler(engine Engine, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{engine: engine, logger: logHandler(logger, "settlement")}
}

type settleRequest struct {
	Result    outcomeValue `json:"result"`
	Timestamp uint64       `json:"timestamp"`
	Signature string       `json:"signature"`
}

type settleResponse struct {
	Match    domain.Match `json:"match"`
	Fee      string       `json:"fee"`
	Rollover string       `json:"rollover"`
}

// Settle records a signed result. Anyone holding a valid authority
// signature may submit it.
// POST /api/matches/{id}/settle
func (h *SettlementHandler) Settle(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := matchID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req settleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInputError(w, err)
		return
	}
	sig, err := crypto.DecodeSignature(req.Signature)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s, err := h.engine.SettleWithSignature(r.Context(), who, id, domain.Outcome(req.Result), req.Timestamp, sig)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, settleResponse{
		Match:    s.Match,
		Fee:      s.Fee.Dec(),
		Rollover: s.Rollover.Dec(),
	})
}
