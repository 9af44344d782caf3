package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"aeroledger/internal/audit"
	regulatormetrics "aeroledger/internal/regulator/metrics"
	"aeroledger/pkg/platform/httputil"
)

// Deps bundles everything the router mounts. Handlers stay thin: decode,
// delegate, translate errors.
type Deps struct {
	Volumes  *VolumeHandler
	Stages   *StageHandler
	Aircraft *AircraftHandler
	Audit    *AuditHandler

	Registry         *prometheus.Registry
	RegulatorMetrics *regulatormetrics.Metrics
	AuditMetrics     *audit.Metrics
}

// NewRouter wires the public API.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	d.Volumes.Register(r)
	d.Stages.Register(r)
	d.Aircraft.Register(r)
	d.Audit.Register(r)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if d.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	}
	r.Get("/metrics/regulator", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, d.RegulatorMetrics.Snapshot())
	})
	r.Get("/metrics/audit", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, d.AuditMetrics.Snapshot())
	})
	return r
}
