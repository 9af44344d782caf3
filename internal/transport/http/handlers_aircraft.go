package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aeroledger/internal/aircraft"
	"aeroledger/pkg/platform/httputil"
)

// AircraftHandler exposes the tracked airframe.
type AircraftHandler struct {
	service *aircraft.Service
	log     *slog.Logger
}

func NewAircraftHandler(service *aircraft.Service, log *slog.Logger) *AircraftHandler {
	return &AircraftHandler{service: service, log: log}
}

func (h *AircraftHandler) Register(r chi.Router) {
	r.Route("/aircraft", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Patch("/", h.handlePatch)
		r.Get("/components", h.handleComponents)
	})
}

func (h *AircraftHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	a, err := h.service.Get(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromAircraft(a))
}

func (h *AircraftHandler) handlePatch(w http.ResponseWriter, r *http.Request) {
	in, ok := httputil.DecodeJSON[aircraft.PatchInput](w, r)
	if !ok {
		return
	}
	a, err := h.service.Patch(r.Context(), in, requestMeta(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromAircraft(a))
}

func (h *AircraftHandler) handleComponents(w http.ResponseWriter, r *http.Request) {
	components, err := h.service.Components(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromComponents(components))
}
