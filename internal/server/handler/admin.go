package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// AdminHandler manages the settlement signer, the treasury address and test
// token minting.
type AdminHandler struct {
	engine    Engine
	depositor domain.Depositor
	logger    *slog.Logger
}

// NewAdminHandler creates an AdminHandler. depositor may be nil, in which
// case Mint answers 404.
func NewAdminHandler(engine Engine, depositor domain.Depositor, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{engine: engine, depositor: depositor, logger: logHandler(logger, "admin")}
}

type addressRequest struct {
	Address string `json:"address"`
}

// GetSigner returns the current settlement signer.
// GET /api/admin/signer
func (h *AdminHandler) GetSigner(w http.ResponseWriter, r *http.Request) {
	h.getAddress(w, r, h.engine.Signer)
}

// SetSigner replaces the settlement signer. Administrator only.
// PUT /api/admin/signer
func (h *AdminHandler) SetSigner(w http.ResponseWriter, r *http.Request) {
	h.setAddress(w, r, h.engine.SetSigner)
}

// GetTreasury returns the treasury that receives fees.
// GET /api/admin/treasury
func (h *AdminHandler) GetTreasury(w http.ResponseWriter, r *http.Request) {
	h.getAddress(w, r, h.engine.Treasury)
}

func (h *AdminHandler) getAddress(w http.ResponseWriter, r *http.Request, get func(ctx context.Context) (common.Address, error)) {
	addr, err := get(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": addr.Hex()})
}

// SetTreasury replaces the treasury. Administrator only.
// PUT /api/admin/treasury
func (h *AdminHandler) SetTreasury(w http.ResponseWriter, r *http.Request) {
	h.setAddress(w, r, h.engine.SetTreasury)
}

func (h *AdminHandler) setAddress(w http.ResponseWriter, r *http.Request, set func(ctx context.Context, who, addr common.Address) error) {
	who, ok := caller(w, r)
	if !ok {
		return
	}
	var req addressRequest
	if err := decodeJSON(r, &req); err != nil {
		writeInputError(w, err)
		return
	}
	addr, err := parseAddress(req.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := set(r.Context(), who, addr); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"address": addr.Hex()})
}

type mintRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// Mint credits settlement tokens to an account. Administrator only and only
// on ledgers that support deposits.
// POST /api/admin/mint
func (h *AdminHandler) Mint(w http.ResponseWriter, r *http.Request) {
	if h.depositor == nil {
		writeError(w, http.StatusNotFound, "minting is disabled")
		return
	}
	who, ok := caller(w, r)
	if !ok {
		return
	}
	if who != h.engine.Admin() {
		writeDomainError(w, r, h.logger, fmt.Errorf("mint by %s: %w", who.Hex(), domain.ErrUnauthorized))
		return
	}

	var req mintRequest
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
	if amount.IsZero() {
		writeInputError(w, domain.ErrZeroAmount)
		return
	}

	if err := h.depositor.Deposit(r.Context(), to, amount); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	h.logger.InfoContext(r.Context(), "tokens minted",
		slog.String("to", to.Hex()),
		slog.String("amount", amount.Dec()),
	)
	writeJSON(w, http.StatusOK, map[string]string{"to": to.Hex(), "amount": amount.Dec()})
}
