package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/alanyoungcy/parimutuel/internal/domain"
	"github.com/alanyoungcy/parimutuel/internal/service"
)

// MatchHandler serves the match lifecycle and read endpoints.
type MatchHandler struct {
	engine Engine
	svc    *service.MatchService
	logger *slog.Logger
}

// NewMatchHandler creates a MatchHandler.
func NewMatchHandler(engine Engine, svc *service.MatchService, logger *slog.Logger) *MatchHandler {
	return &MatchHandler{engine: engine, svc: svc, logger: logHandler(logger, "match")}
}

type createMatchRequest struct {
	ID        uint64    `json:"id"`
	StartTime time.Time `json:"start_time"`
	FeeBps    uint64    `json:"fee_bps"`
}

// CreateMatch registers a new match. Administrator only.
// POST /api/matches
func (h *MatchHandler) CreateMatch(w http.ResponseWriter, r *http.Request) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	var req createMatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInputError(w, err)
		return
	}
	if req.FeeBps > domain.MaxFeeBps {
		writeInputError(w, fmt.Errorf("%w: %d bps", domain.ErrFeeTooHigh, req.FeeBps))
		return
	}

	m, err := h.engine.CreateMatch(r.Context(), who, req.ID, req.StartTime, uint16(req.FeeBps))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// ListMatches returns matches, optionally filtered by ?status=.
// GET /api/matches
func (h *MatchHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	q := domain.MatchQuery{ListOpts: parseListOpts(r)}
	if v := r.URL.Query().Get("status"); v != "" {
		st, err := domain.ParseMatchStatus(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		q.Status = &st
	}

	matches, err := h.svc.ListMatches(r.Context(), q)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if matches == nil {
		matches = []domain.Match{}
	}
	writeJSON(w, http.StatusOK, matches)
}

// GetMatch returns one match.
// GET /api/matches/{id}
func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	id, err := matchID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := h.svc.GetMatch(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// OpenMatch starts staking on a match. Administrator only.
// POST /api/matches/{id}/open
func (h *MatchHandler) OpenMatch(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.OpenMatch)
}

// CloseMatch stops staking on a match. Administrator only.
// POST /api/matches/{id}/close
func (h *MatchHandler) CloseMatch(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.CloseMatch)
}

// CancelMatch makes every stake on a match refundable. Administrator only.
// POST /api/matches/{id}/cancel
func (h *MatchHandler) CancelMatch(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.engine.CancelMatch)
}

func (h *MatchHandler) transition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, who common.Address, id uint64) error) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	id, err := matchID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := apply(r.Context(), who, id); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	m, err := h.svc.GetMatch(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListStakes returns every stake on a match.
// GET /api/matches/{id}/stakes
func (h *MatchHandler) ListStakes(w http.ResponseWriter, r *http.Request) {
	id, err := matchID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stakes, err := h.svc.ListStakes(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if stakes == nil {
		stakes = []domain.Stake{}
	}
	writeJSON(w, http.StatusOK, stakes)
}

type positionResponse struct {
	MatchID     uint64       `json:"match_id"`
	Participant string       `json:"participant"`
	Status      string       `json:"status"`
	Stake       domain.Stake `json:"stake"`
	Total       string       `json:"total"`
	Payout      string       `json:"payout"`
	Refund      string       `json:"refund"`
	Claimed     bool         `json:"claimed"`
}

// GetPosition returns a participant's stake and entitlement.
// GET /api/matches/{id}/stakes/{address}
func (h *MatchHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	id, err := matchID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	addr, err := parseAddress(r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pos, err := h.svc.Position(r.Context(), id, addr)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, positionResponse{
		MatchID:     id,
		Participant: addr.Hex(),
		Status:      pos.Match.Status.String(),
		Stake:       pos.Stake,
		Total:       pos.Total.Dec(),
		Payout:      pos.Payout.Dec(),
		Refund:      pos.Refund.Dec(),
		Claimed:     pos.Claimed,
	})
}

// GetPayout returns the computed payout for a participant; zero before
// settlement.
// GET /api/matches/{id}/payout/{address}
func (h *MatchHandler) GetPayout(w http.ResponseWriter, r *http.Request) {
	id, err := matchID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	addr, err := parseAddress(r.PathValue("address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	pos, err := h.svc.Position(r.Context(), id, addr)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, amountResponse(id, addr.Hex(), pos.Payout))
}

func amountResponse(id uint64, account string, amount *uint256.Int) map[string]any {
	return map[string]any{
		"match_id": id,
		"account":  account,
		"amount":   amount.Dec(),
	}
}
