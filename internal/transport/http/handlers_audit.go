package httptransport

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"aeroledger/internal/audit"
	"aeroledger/pkg/platform/httputil"
)

const (
	auditDefaultLimit = 100
	auditMaxLimit     = 500
)

// AuditHandler exposes the hash-chained audit trail read side.
type AuditHandler struct {
	chain *audit.Chain
	log   *slog.Logger
}

func NewAuditHandler(chain *audit.Chain, log *slog.Logger) *AuditHandler {
	return &AuditHandler{chain: chain, log: log}
}

func (h *AuditHandler) Register(r chi.Router) {
	r.Route("/audit", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/verify", h.handleVerify)
	})
}

func (h *AuditHandler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := queryInt(q.Get("limit"), auditDefaultLimit)
	if limit > auditMaxLimit {
		limit = auditMaxLimit
	}
	offset := queryInt(q.Get("offset"), 0)

	filters := audit.Filters{
		Resource:   q.Get("resource"),
		ResourceID: q.Get("resourceId"),
		Action:     audit.Action(q.Get("action")),
	}
	entries, total, verify, err := h.chain.List(r.Context(), filters, limit, offset, q.Get("verify") == "true")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	resp := map[string]any{
		"entries": entries,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	}
	if verify != nil {
		resp["verification"] = verify
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *AuditHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	result, err := h.chain.Verify(r.Context(), r.URL.Query().Get("resource"), r.URL.Query().Get("resourceId"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func queryInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
