package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// StakeHandler accepts stakes.
type StakeHandler struct {
	engine Engine
	logger *slog.Logger
}

// NewStakeHandler creates a StakeHandler.
func NewStakeHandler(engine Engine, logger *slog.Logger) *StakeHandler {
	return &StakeHandler{engine: engine, logger: logHandler(logger, "stake")}
}

type placeStakeRequest struct {
	Outcome outcomeValue `json:"outcome"`
	Amount  string       `json:"amount"`
}

// PlaceStake moves amount from the caller into escrow on one outcome.
// POST /api/matches/{id}/stakes
func (h *StakeHandler) PlaceStake(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := matchID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req placeStakeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInputError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	st, err := h.engine.PlaceStake(r.Context(), who, id, domain.Outcome(req.Outcome), amount)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
