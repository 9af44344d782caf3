package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aeroledger/internal/regulator"
	"aeroledger/internal/volume"
	"aeroledger/pkg/platform/httputil"
)

// VolumeHandler exposes the volume lifecycle endpoints.
type VolumeHandler struct {
	service *volume.Service
	log     *slog.Logger
}

func NewVolumeHandler(service *volume.Service, log *slog.Logger) *VolumeHandler {
	return &VolumeHandler{service: service, log: log}
}

func (h *VolumeHandler) Register(r chi.Router) {
	r.Route("/volumes", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleOpen)
		r.Get("/anac", h.handleQueryRemote)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Post("/{id}/close", h.handleClose)
		r.Put("/{id}/close", h.handleCloseAuthoritative)
		r.Get("/{id}/anac", h.handleFetchRemote)
	})
}

func (h *VolumeHandler) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromVolumes(list))
}

func (h *VolumeHandler) handleOpen(w http.ResponseWriter, r *http.Request) {
	in, ok := httputil.DecodeJSON[volume.OpenInput](w, r)
	if !ok {
		return
	}
	vol, err := h.service.Open(r.Context(), in, requestMeta(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, fromVolume(vol))
}

func (h *VolumeHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	vol, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromVolume(vol))
}

func (h *VolumeHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	in, ok := httputil.DecodeJSON[volume.UpdateInput](w, r)
	if !ok {
		return
	}
	vol, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), r.Header.Get(operatorHeader), in, requestMeta(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromVolume(vol))
}

// handleClose is the simple close: local transition plus a fire-and-forget
// regulator notification.
func (h *VolumeHandler) handleClose(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[closeRequest](w, r)
	if !ok {
		return
	}
	vol, critical, err := h.service.Close(r.Context(), chi.URLParam(r, "id"), req.Notes, requestMeta(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"volume":   fromVolume(vol),
		"criticos": critical,
	})
}

// handleCloseAuthoritative is the formal close PUT against the regulator.
func (h *VolumeHandler) handleCloseAuthoritative(w http.ResponseWriter, r *http.Request) {
	in, ok := httputil.DecodeJSON[volume.CloseInput](w, r)
	if !ok {
		return
	}
	vol, remote, err := h.service.CloseAuthoritative(r.Context(), chi.URLParam(r, "id"), r.Header.Get(operatorHeader), in, requestMeta(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"volume": fromVolume(vol),
		"anac":   remote,
	})
}

func (h *VolumeHandler) handleFetchRemote(w http.ResponseWriter, r *http.Request) {
	remote, err := h.service.FetchRemote(r.Context(), chi.URLParam(r, "id"), r.Header.Get(operatorHeader))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, remote)
}

func (h *VolumeHandler) handleQueryRemote(w http.ResponseWriter, r *http.Request) {
	q := regulator.VolumeQuery{
		Registration: r.URL.Query().Get("nrMatricula"),
		VolumeID:     r.URL.Query().Get("volumeId"),
		VolumeNumber: r.URL.Query().Get("nrVolume"),
	}
	results, err := h.service.QueryRemote(r.Context(), q)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, results)
}
