package regulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"aeroledger/internal/regulator/metrics"
	pkgerrors "aeroledger/pkg/domain-errors"
)

const (
	maxAttempts = 3
	backoffBase = 250 * time.Millisecond
)

// sleepBackoff waits attempt*250ms, honoring context cancellation.
func sleepBackoff(ctx context.Context, attempt int) error {
	timer := time.NewTimer(time.Duration(attempt) * backoffBase)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Client talks to the regulator's flight logbook API. Every call retries up
// to three attempts with linear backoff; mutating calls carry deterministic
// idempotency keys so retries never duplicate remote state.
//
// Failure handling is asymmetric by design of the callers: authoritative
// operations return a CodeRemoteSync error after exhaustion, best-effort
// operations (CloseVolume, CreateStage) log and degrade to zero values.
type Client struct {
	http    *http.Client
	baseURL string
	tokens  TokenProvider
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewClient(httpClient *http.Client, baseURL string, tokens TokenProvider, m *metrics.Metrics, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		metrics: m,
		log:     log,
	}
}

type call struct {
	op         string
	method     string
	path       string
	query      url.Values
	operatorID string
	idemTag    string
	idemParts  map[string]any
	body       any
}

// do runs a call with the retry policy. On success the response body is
// decoded into out when out is non-nil; a non-JSON body is tolerated and
// logged, matching the remote's occasional plain-text replies.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	target := c.baseURL + cl.path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}

	var idemKey string
	if cl.idemTag != "" {
		key, err := IdempotencyKey(cl.idemTag, cl.idemParts)
		if err != nil {
			return err
		}
		idemKey = key
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			lastErr = err
			c.log.Warn("regulator call blocked on token", "op", cl.op, "attempt", attempt, "error", err)
		} else {
			var reqBody io.Reader
			if cl.body != nil {
				raw, err := json.Marshal(cl.body)
				if err != nil {
					return fmt.Errorf("marshal %s body: %w", cl.op, err)
				}
				reqBody = bytes.NewReader(raw)
			}
			req, err := http.NewRequestWithContext(ctx, cl.method, target, reqBody)
			if err != nil {
				return fmt.Errorf("build %s request: %w", cl.op, err)
			}
			req.Header.Set("Authorization", "Bearer "+token)
			if cl.body != nil {
				req.Header.Set("Content-Type", "application/json")
			}
			if cl.operatorID != "" {
				req.Header.Set("aircompany", cl.operatorID)
			}
			if idemKey != "" {
				req.Header.Set("Idempotency-Key", idemKey)
			}

			start := time.Now()
			res, err := c.http.Do(req)
			if err != nil {
				lastErr = err
				c.metrics.Record(cl.op, false, time.Since(start))
				c.log.Warn("regulator network error", "op", cl.op, "attempt", attempt, "error", err)
			} else {
				raw, _ := io.ReadAll(io.LimitReader(res.Body, 4<<20))
				res.Body.Close()
				duration := time.Since(start)
				if res.StatusCode >= 200 && res.StatusCode < 300 {
					c.metrics.Record(cl.op, true, duration)
					if out != nil && len(raw) > 0 {
						if err := json.Unmarshal(raw, out); err != nil {
							c.log.Warn("regulator response not json", "op", cl.op, "error", err)
						}
					}
					c.log.Info("regulator call ok",
						"op", cl.op, "attempt", attempt, "duration_ms", duration.Milliseconds())
					return nil
				}
				lastErr = fmt.Errorf("%s status %d: %s", cl.op, res.StatusCode, strings.TrimSpace(string(raw)))
				c.metrics.Record(cl.op, false, duration)
				c.log.Warn("regulator call failed",
					"op", cl.op, "attempt", attempt, "status", res.StatusCode,
					"duration_ms", duration.Milliseconds())
			}
		}
		if attempt < maxAttempts {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return pkgerrors.Wrap(err, pkgerrors.CodeRemoteSync, cl.op+" aborted")
			}
		}
	}
	return pkgerrors.Wrap(lastErr, pkgerrors.CodeRemoteSync, cl.op+" retries exhausted")
}

// OpenVolume registers a volume remotely. Authoritative: failure blocks the
// local open, because every later stage call needs the remote ids.
func (c *Client) OpenVolume(ctx context.Context, req VolumeOpenRequest) (OpenVolumeResult, error) {
	req.MatriculaAeronave = SanitizeRegistration(req.MatriculaAeronave)
	var raw map[string]any
	err := c.do(ctx, call{
		op:      "volume_open",
		method:  http.MethodPost,
		path:    "/DiarioDeBordo/Volume",
		idemTag: "volume:open",
		idemParts: map[string]any{
			"matricula":    req.MatriculaAeronave,
			"numeroVolume": req.NumeroVolume,
			"dataAbertura": req.DataAberturaVolume,
		},
		body: req,
	}, &raw)
	if err != nil {
		return OpenVolumeResult{}, err
	}
	return parseOpenVolumeResult(raw), nil
}

// parseOpenVolumeResult digs the remote ids out of the loosely specified
// response: the volume id appears at the top level, nested under Volume, or
// as a bare id; operators come as a single id or a list.
func parseOpenVolumeResult(raw map[string]any) OpenVolumeResult {
	var result OpenVolumeResult
	if id := stringAt(raw, "idDiarioBordoVolume"); id != "" {
		result.VolumeID = id
	} else if nested, ok := raw["Volume"].(map[string]any); ok {
		result.VolumeID = stringAt(nested, "idDiarioBordoVolume")
	}
	if result.VolumeID == "" {
		result.VolumeID = stringAt(raw, "id")
	}
	if op := stringAt(raw, "idDiarioBordoOperador"); op != "" {
		result.OperatorIDs = []string{op}
	} else if list, ok := raw["Operadores"].([]any); ok {
		for _, v := range list {
			if s := toString(v); s != "" {
				result.OperatorIDs = append(result.OperatorIDs, s)
			}
		}
	}
	return result
}

// CloseVolume notifies the simple close endpoint. Best-effort: exhausted
// retries are logged and swallowed, the local close stands either way.
func (c *Client) CloseVolume(ctx context.Context, remoteVolumeID string) {
	if remoteVolumeID == "" {
		return
	}
	err := c.do(ctx, call{
		op:     "volume_close",
		method: http.MethodPost,
		path:   "/DiarioDeBordo/Volume/" + url.PathEscape(remoteVolumeID) + "/Fechar",
	}, nil)
	if err != nil {
		c.log.Warn("best-effort volume close failed", "remote_volume_id", remoteVolumeID, "error", err)
	}
}

// CloseVolumeAuthoritative performs the formal close PUT. Authoritative.
func (c *Client) CloseVolumeAuthoritative(ctx context.Context, remoteVolumeID, operatorID string, req VolumeCloseRequest) (map[string]any, error) {
	var raw map[string]any
	err := c.do(ctx, call{
		op:         "volume_close_put",
		method:     http.MethodPut,
		path:       "/DiarioDeBordo/closeVolume/" + url.PathEscape(remoteVolumeID),
		operatorID: operatorID,
		idemTag:    "volume:close",
		idemParts: map[string]any{
			"volId":                remoteVolumeID,
			"operatorId":           operatorID,
			"dataFechamentoVolume": req.DataFechamentoVolume,
		},
		body: req,
	}, &raw)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// UpdateVolume pushes opening figures and notes. Authoritative.
func (c *Client) UpdateVolume(ctx context.Context, remoteVolumeID, operatorID string, req VolumeUpdateRequest) error {
	return c.do(ctx, call{
		op:         "volume_update",
		method:     http.MethodPut,
		path:       "/DiarioDeBordo/Volume/" + url.PathEscape(remoteVolumeID),
		operatorID: operatorID,
		idemTag:    "volume:update",
		idemParts: map[string]any{
			"volId":             remoteVolumeID,
			"operatorId":        operatorID,
			"numero":            req.NumeroVolume,
			"minutosTotaisVoo":  req.MinutosTotaisVoo,
			"totalPousos":       req.TotalPousos,
			"totalCiclosCelula": req.TotalCiclosCelula,
		},
		body: req,
	}, nil)
}

// FetchVolume reads one remote volume. Authoritative.
func (c *Client) FetchVolume(ctx context.Context, remoteVolumeID, operatorID string) (map[string]any, error) {
	var raw map[string]any
	err := c.do(ctx, call{
		op:         "volume_fetch",
		method:     http.MethodGet,
		path:       "/DiarioDeBordo/Volume/" + url.PathEscape(remoteVolumeID),
		operatorID: operatorID,
	}, &raw)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// QueryVolumes searches remote volumes. At least one filter is required.
func (c *Client) QueryVolumes(ctx context.Context, q VolumeQuery) ([]map[string]any, error) {
	if q.empty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one volume query parameter required")
	}
	query := url.Values{}
	if q.Registration != "" {
		query.Set("nrMatricula", strings.TrimSpace(q.Registration))
	}
	if q.VolumeID != "" {
		query.Set("volumeId", strings.TrimSpace(q.VolumeID))
	}
	if q.VolumeNumber != "" {
		query.Set("nrVolume", strings.TrimSpace(q.VolumeNumber))
	}
	var raw json.RawMessage
	err := c.do(ctx, call{
		op:     "volume_query",
		method: http.MethodGet,
		path:   "/DiarioDeBordo/Volume",
		query:  query,
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeObjectOrList(raw), nil
}

// CreateStage registers a flight stage remotely. Best-effort: on exhausted
// retries it returns an empty id and the stage stays unlinked locally.
func (c *Client) CreateStage(ctx context.Context, p StagePayload) string {
	var raw map[string]any
	err := c.do(ctx, call{
		op:         "stage_create",
		method:     http.MethodPost,
		path:       "/DiarioDeBordo/EtapaVoo",
		operatorID: p.IDDiarioBordoOperador,
		idemTag:    "flight:create",
		idemParts: map[string]any{
			"vol":     p.IDDiarioBordoVolume,
			"op":      p.IDDiarioBordoOperador,
			"partida": p.HorarioPartida,
			"corte":   p.HorarioCorteMotores,
		},
		body: p,
	}, &raw)
	if err != nil {
		c.log.Warn("best-effort stage create failed", "error", err)
		return ""
	}
	if id := stringAt(raw, "idEtapaVoo"); id != "" {
		return id
	}
	return stringAt(raw, "id")
}

// UpdateStage replaces a remote stage. Authoritative. The remote may mint a
// new stage id on update; the returned id is empty when it kept the old one.
func (c *Client) UpdateStage(ctx context.Context, remoteStageID, operatorID string, p StagePayload) (string, error) {
	var raw map[string]any
	err := c.do(ctx, call{
		op:         "stage_update",
		method:     http.MethodPut,
		path:       "/DiarioDeBordo/EtapaVoo/" + url.PathEscape(remoteStageID),
		operatorID: operatorID,
		idemTag:    "flight:update",
		idemParts: map[string]any{
			"etapaId":    remoteStageID,
			"operatorId": operatorID,
			"partida":    p.HorarioPartida,
			"corte":      p.HorarioCorteMotores,
			"tempo":      p.TempoVooTotal,
		},
		body: p,
	}, &raw)
	if err != nil {
		return "", err
	}
	if id := stringAt(raw, "idEtapaVoo"); id != "" {
		return id, nil
	}
	return stringAt(raw, "id"), nil
}

// SignStage records the operator signature remotely. Authoritative.
func (c *Client) SignStage(ctx context.Context, remoteStageID, operatorID, signedAt string) error {
	return c.do(ctx, call{
		op:         "stage_sign",
		method:     http.MethodPut,
		path:       "/DiarioDeBordo/EtapaVoo/Operador/" + url.PathEscape(remoteStageID),
		operatorID: operatorID,
		idemTag:    "flight:sign",
		idemParts: map[string]any{
			"etapaId":                       remoteStageID,
			"operatorId":                    operatorID,
			"dataHorarioAssinaturaOperador": signedAt,
		},
		body: map[string]string{"dataHorarioAssinaturaOperador": signedAt},
	}, nil)
}

// DeleteStage removes a remote stage. Authoritative.
func (c *Client) DeleteStage(ctx context.Context, remoteStageID, operatorID string) error {
	return c.do(ctx, call{
		op:         "stage_delete",
		method:     http.MethodDelete,
		path:       "/DiarioDeBordo/EtapaVoo/" + url.PathEscape(remoteStageID),
		operatorID: operatorID,
		idemTag:    "flight:delete",
		idemParts: map[string]any{
			"etapaId":    remoteStageID,
			"operatorId": operatorID,
		},
	}, nil)
}

// QueryStages searches remote stages by volume or stage id. Authoritative.
func (c *Client) QueryStages(ctx context.Context, remoteVolumeID, remoteStageID string) ([]map[string]any, error) {
	query := url.Values{}
	if remoteVolumeID != "" {
		query.Set("volumeID", remoteVolumeID)
	}
	if remoteStageID != "" {
		query.Set("etapaID", remoteStageID)
	}
	var raw json.RawMessage
	err := c.do(ctx, call{
		op:     "stage_query",
		method: http.MethodGet,
		path:   "/DiarioDeBordo/EtapaVoo/",
		query:  query,
	}, &raw)
	if err != nil {
		return nil, err
	}
	return decodeObjectOrList(raw), nil
}

func decodeObjectOrList(raw json.RawMessage) []map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var list []map[string]any
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var single map[string]any
	if err := json.Unmarshal(raw, &single); err == nil {
		return []map[string]any{single}
	}
	return nil
}

func stringAt(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	return toString(m[key])
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
