package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aeroledger/internal/aircraft"
	"aeroledger/internal/audit"
	"aeroledger/internal/domain"
	"aeroledger/internal/flight"
	"aeroledger/internal/maintenance"
	platformredis "aeroledger/internal/platform/redis"
	"aeroledger/internal/regulator"
	regulatormetrics "aeroledger/internal/regulator/metrics"
	"aeroledger/internal/storage"
	"aeroledger/internal/volume"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// stubGateway satisfies both the volume and flight gateway slices with
// canned successes.
type stubGateway struct{}

func (stubGateway) OpenVolume(context.Context, regulator.VolumeOpenRequest) (regulator.OpenVolumeResult, error) {
	return regulator.OpenVolumeResult{VolumeID: "rv-1", OperatorIDs: []string{"op-1"}}, nil
}
func (stubGateway) CloseVolume(context.Context, string) {}
func (stubGateway) CloseVolumeAuthoritative(context.Context, string, string, regulator.VolumeCloseRequest) (map[string]any, error) {
	return map[string]any{"status": "FECHADO"}, nil
}
func (stubGateway) UpdateVolume(context.Context, string, string, regulator.VolumeUpdateRequest) error {
	return nil
}
func (stubGateway) FetchVolume(context.Context, string, string) (map[string]any, error) {
	return map[string]any{}, nil
}
func (stubGateway) QueryVolumes(context.Context, regulator.VolumeQuery) ([]map[string]any, error) {
	return nil, nil
}
func (stubGateway) CreateStage(context.Context, regulator.StagePayload) string { return "rs-1" }
func (stubGateway) UpdateStage(context.Context, string, string, regulator.StagePayload) (string, error) {
	return "", nil
}
func (stubGateway) SignStage(context.Context, string, string, string) error { return nil }
func (stubGateway) DeleteStage(context.Context, string, string) error       { return nil }
func (stubGateway) QueryStages(context.Context, string, string) ([]map[string]any, error) {
	return nil, nil
}

func newTestRouter(t *testing.T) (http.Handler, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	require.NoError(t, mem.Aircraft().Save(context.Background(), domain.Aircraft{
		Registration: "PT-ABC",
		Status:       domain.AircraftActive,
	}))

	log := discardLogger()
	registry := prometheus.NewRegistry()
	auditMetrics := audit.NewMetrics(registry)
	chain := audit.NewChain(audit.NewMemoryStore(), auditMetrics)
	recorder := audit.NewSyncRecorder(chain, auditMetrics, log)

	gw := stubGateway{}
	cascade := maintenance.NewCascade(mem, mem.Aircraft(), mem.Components(), mem.Snapshots(), log)
	volumes := volume.NewService(mem.Volumes(), mem.Aircraft(), mem.Components(), gw,
		platformredis.NewCache(nil), time.Minute, recorder, log)
	flights := flight.NewService(mem.Stages(), mem.Volumes(), mem.Aircraft(), gw, cascade, recorder, log)
	airframe := aircraft.NewService(mem.Aircraft(), mem.Components(), recorder, log)

	router := NewRouter(Deps{
		Volumes:          NewVolumeHandler(volumes, log),
		Stages:           NewStageHandler(flights, log),
		Aircraft:         NewAircraftHandler(airframe, log),
		Audit:            NewAuditHandler(chain, log),
		Registry:         registry,
		RegulatorMetrics: regulatormetrics.New(registry),
		AuditMetrics:     auditMetrics,
	})
	return router, mem
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("aircompany", "op-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func openVolumeBody() map[string]any {
	return map[string]any{
		"numeroVolume":      "7",
		"matriculaAeronave": "PT-ABC",
		"horasVooMotor":     map[string]string{"1": "10:00"},
	}
}

func TestHealthz(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestOpenVolumeEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/volumes", openVolumeBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ABERTO", resp["status"])
	assert.Equal(t, "rv-1", resp["idDiarioBordoVolume"])

	// Second open without autoClose hits the single-open invariant.
	w = doJSON(t, router, http.MethodPost, "/volumes", openVolumeBody())
	require.Equal(t, http.StatusConflict, w.Code)

	var envelope struct {
		Error   string         `json:"error"`
		Details map[string]any `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, "conflict", envelope.Error)
	assert.NotEmpty(t, envelope.Details["openVolumeId"])
}

func TestOpenVolumeRejectsMalformedBody(t *testing.T) {
	router, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/volumes", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterStageEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodPost, "/volumes", openVolumeBody())
	require.Equal(t, http.StatusCreated, w.Code)

	stage := map[string]any{
		"naturezaVoo":             "1",
		"siglaAerodromoDecolagem": "SBSP",
		"siglaAerodromoPouso":     "SBRJ",
		"horarioPartida":          time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
		"horarioDecolagem":        time.Now().UTC().Add(time.Hour + 20*time.Minute).Format(time.RFC3339),
		"horarioPouso":            time.Now().UTC().Add(2 * time.Hour).Format(time.RFC3339),
		"horarioCorteMotores":     time.Now().UTC().Add(2*time.Hour + 10*time.Minute).Format(time.RFC3339),
		"numeroPousoEtapa":        1,
		"numeroCicloEtapa":        1,
		"aeronautas": []map[string]any{
			{"brazilian": true, "documentNumber": "123456", "role": "1"},
		},
	}
	w = doJSON(t, router, http.MethodPost, "/stages", stage)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["locked"])
	assert.Contains(t, resp["fingerprint"], "ANAC-DBE-")

	// The stage shows up in the open volume listing.
	w = doJSON(t, router, http.MethodGet, "/stages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stages []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stages))
	assert.Len(t, stages, 1)
}

func TestRegisterStageValidationError(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodPost, "/stages", map[string]any{"naturezaVoo": "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuditListAfterMutations(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodPost, "/volumes", openVolumeBody())
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodGet, "/audit?resource=volumes&verify=true", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Entries      []map[string]any `json:"entries"`
		Total        int              `json:"total"`
		Limit        int              `json:"limit"`
		Verification struct {
			Valid bool `json:"valid"`
		} `json:"verification"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, 100, resp.Limit)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "OPEN", resp.Entries[0]["action"])
	assert.True(t, resp.Verification.Valid)
}

func TestAuditListClampsLimit(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodGet, "/audit?limit=9999", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(500), resp["limit"])
}

func TestAircraftPatchRejectsNegativeTotals(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodPatch, "/aircraft", map[string]any{"horasTotaisVoo": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodPatch, "/aircraft", map[string]any{"horasTotaisVoo": 1234.5})
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1234.5, resp["horasTotaisVoo"])
}

func TestMetricsEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)
	for _, path := range []string{"/metrics", "/metrics/regulator", "/metrics/audit"} {
		w := doJSON(t, router, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
