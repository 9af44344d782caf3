package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"aeroledger/internal/flight"
	"aeroledger/pkg/platform/httputil"
)

// StageHandler exposes the flight stage registry endpoints.
type StageHandler struct {
	service *flight.Service
	log     *slog.Logger
}

func NewStageHandler(service *flight.Service, log *slog.Logger) *StageHandler {
	return &StageHandler{service: service, log: log}
}

func (h *StageHandler) Register(r chi.Router) {
	r.Route("/stages", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Post("/", h.handleRegister)
		r.Get("/anac", h.handleQueryRemote)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}", h.handleUpdate)
		r.Delete("/{id}", h.handleDelete)
		r.Post("/{id}/corrections", h.handleRectify)
		r.Post("/{id}/sign", h.handleSign)
	})
}

func (h *StageHandler) handleList(w http.ResponseWriter, r *http.Request) {
	if volumeID := r.URL.Query().Get("volumeId"); volumeID != "" {
		includeDeleted := r.URL.Query().Get("includeDeleted") == "true"
		stages, err := h.service.ListByVolume(r.Context(), volumeID, includeDeleted)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, fromStages(stages))
		return
	}
	stages, err := h.service.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromStages(stages))
}

func (h *StageHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[stageRequest](w, r)
	if !ok {
		return
	}
	in, err := req.toInput()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	stage, err := h.service.Register(r.Context(), in, requestMeta(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, fromStage(stage))
}

func (h *StageHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	stage, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromStage(stage))
}

func (h *StageHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[stageRequest](w, r)
	if !ok {
		return
	}
	in, err := req.toInput()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	stage, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), r.Header.Get(operatorHeader), in, requestMeta(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromStage(stage))
}

func (h *StageHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), r.Header.Get(operatorHeader), requestMeta(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *StageHandler) handleRectify(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[rectifyRequest](w, r)
	if !ok {
		return
	}
	correction, err := h.service.Rectify(r.Context(), chi.URLParam(r, "id"), flight.RectifyInput{
		Field:         req.Field,
		NewValue:      req.NewValue,
		Justification: req.Justification,
		OperatorID:    r.Header.Get(operatorHeader),
	}, requestMeta(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, correction)
}

func (h *StageHandler) handleSign(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.DecodeJSON[signRequest](w, r)
	if !ok {
		return
	}
	stage, err := h.service.SignOperator(r.Context(), chi.URLParam(r, "id"), r.Header.Get(operatorHeader), req.SignedAt, requestMeta(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, fromStage(stage))
}

func (h *StageHandler) handleQueryRemote(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.QueryRemote(r.Context(),
		r.URL.Query().Get("volumeID"), r.URL.Query().Get("etapaID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, results)
}
