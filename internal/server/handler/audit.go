package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/parimutuel/internal/domain"
)

// AuditHandler serves the audit trail of a match.
type AuditHandler struct {
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(audit domain.AuditStore, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{audit: audit, logger: logHandler(logger, "audit")}
}

type auditEntryResponse struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	MatchID   uint64         `json:"match_id"`
	Actor     string         `json:"actor,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ListMatchAudit returns the audit entries of a match, newest first.
// GET /api/matches/{id}/audit
func (h *AuditHandler) ListMatchAudit(w http.ResponseWriter, r *http.Request) {
	id, err := matchID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := h.audit.List(r.Context(), domain.AuditQuery{
		ListOpts: parseListOpts(r),
		MatchID:  &id,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	out := make([]auditEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp := auditEntryResponse{
			ID:        e.ID,
			Event:     e.Event,
			MatchID:   e.MatchID,
			Detail:    e.Detail,
			CreatedAt: e.CreatedAt,
		}
		if e.Actor != (common.Address{}) {
			resp.Actor = e.Actor.Hex()
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
}
