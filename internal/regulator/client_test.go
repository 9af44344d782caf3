package regulator

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aeroledger/internal/regulator/metrics"
	pkgerrors "aeroledger/pkg/domain-errors"
)

type staticTokens struct{}

func (staticTokens) Token(ctx context.Context) (string, error) { return "tok-static", nil }

func newTestClient(srv *httptest.Server) (*Client, *metrics.Metrics) {
	m := metrics.New(prometheus.NewRegistry())
	c := NewClient(srv.Client(), srv.URL, staticTokens{}, m, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return c, m
}

func TestOpenVolumeParsesRemoteIDs(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/DiarioDeBordo/Volume", r.URL.Path)
		assert.Equal(t, "Bearer tok-static", r.Header.Get("Authorization"))
		gotKey = r.Header.Get("Idempotency-Key")

		var body VolumeOpenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "PTABC", body.MatriculaAeronave)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"idDiarioBordoVolume":   "rv-1",
			"idDiarioBordoOperador": "op-1",
		})
	}))
	defer srv.Close()

	client, _ := newTestClient(srv)
	result, err := client.OpenVolume(context.Background(), VolumeOpenRequest{
		MatriculaAeronave:  "pt-abc",
		DataAberturaVolume: "01/02/2026",
		NumeroVolume:       "7",
		MinutosTotaisVoo:   "0",
		TotalPousos:        "0",
		TotalCiclosCelula:  "0",
	})
	require.NoError(t, err)
	assert.Equal(t, "rv-1", result.VolumeID)
	assert.Equal(t, []string{"op-1"}, result.OperatorIDs)
	assert.Contains(t, gotKey, "volume:open:")
}

func TestOpenVolumeParsesNestedAndListShapes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"Volume":     map[string]any{"idDiarioBordoVolume": "rv-9"},
			"Operadores": []any{"op-1", "op-2"},
		})
	}))
	defer srv.Close()

	client, _ := newTestClient(srv)
	result, err := client.OpenVolume(context.Background(), VolumeOpenRequest{MatriculaAeronave: "PTABC"})
	require.NoError(t, err)
	assert.Equal(t, "rv-9", result.VolumeID)
	assert.Equal(t, []string{"op-1", "op-2"}, result.OperatorIDs)
}

func TestRetriesKeepIdempotencyKeyStable(t *testing.T) {
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys = append(keys, r.Header.Get("Idempotency-Key"))
		if len(keys) < 3 {
			http.Error(w, "flaky", http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"idDiarioBordoVolume": "rv-1"})
	}))
	defer srv.Close()

	client, m := newTestClient(srv)
	_, err := client.OpenVolume(context.Background(), VolumeOpenRequest{MatriculaAeronave: "PTABC", NumeroVolume: "3"})
	require.NoError(t, err)
	require.Len(t, keys, 3)
	assert.Equal(t, keys[0], keys[1])
	assert.Equal(t, keys[1], keys[2])

	snap := m.Snapshot()["volume_open"]
	assert.Equal(t, 3, snap.Attempts)
	assert.Equal(t, 1, snap.Successes)
	assert.Equal(t, 2, snap.Failures)
}

func TestAuthoritativeExhaustionReturnsRemoteSync(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, _ := newTestClient(srv)
	err := client.UpdateVolume(context.Background(), "rv-1", "op-1", VolumeUpdateRequest{NumeroVolume: "3"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeRemoteSync, pkgerrors.CodeOf(err))
	assert.Equal(t, 3, hits)
}

func TestCreateStageIsBestEffort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "op-1", r.Header.Get("aircompany"))
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client, _ := newTestClient(srv)
	id := client.CreateStage(context.Background(), StagePayload{
		IDDiarioBordoVolume:   "rv-1",
		IDDiarioBordoOperador: "op-1",
		NaturezaVoo:           "1",
	})
	assert.Empty(t, id)
}

func TestCloseVolumeSkipsWithoutRemoteID(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer srv.Close()

	client, _ := newTestClient(srv)
	client.CloseVolume(context.Background(), "")
	assert.Zero(t, hits)

	client.CloseVolume(context.Background(), "rv-1")
	assert.Equal(t, 1, hits)
}

func TestQueryVolumesRequiresAFilter(t *testing.T) {
	client, _ := newTestClient(httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})))
	_, err := client.QueryVolumes(context.Background(), VolumeQuery{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestQueryVolumesWrapsSingleObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "PTABC", r.URL.Query().Get("nrMatricula"))
		_ = json.NewEncoder(w).Encode(map[string]any{"idDiarioBordoVolume": "rv-1"})
	}))
	defer srv.Close()

	client, _ := newTestClient(srv)
	out, err := client.QueryVolumes(context.Background(), VolumeQuery{Registration: "PTABC"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "rv-1", out[0]["idDiarioBordoVolume"])
}
