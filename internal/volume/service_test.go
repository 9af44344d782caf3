package volume

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aeroledger/internal/audit"
	"aeroledger/internal/domain"
	platformredis "aeroledger/internal/platform/redis"
	"aeroledger/internal/regulator"
	"aeroledger/internal/storage"
	pkgerrors "aeroledger/pkg/domain-errors"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type fakeGateway struct {
	openResult regulator.OpenVolumeResult
	openErr    error
	openReqs   []regulator.VolumeOpenRequest

	closedIDs chan string

	closeAuthResp map[string]any
	closeAuthErr  error

	updateErr  error
	updateReqs []regulator.VolumeUpdateRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		openResult: regulator.OpenVolumeResult{VolumeID: "rv-1", OperatorIDs: []string{"op-1"}},
		closedIDs:  make(chan string, 8),
	}
}

func (g *fakeGateway) OpenVolume(ctx context.Context, req regulator.VolumeOpenRequest) (regulator.OpenVolumeResult, error) {
	g.openReqs = append(g.openReqs, req)
	return g.openResult, g.openErr
}

func (g *fakeGateway) CloseVolume(ctx context.Context, remoteVolumeID string) {
	g.closedIDs <- remoteVolumeID
}

func (g *fakeGateway) CloseVolumeAuthoritative(ctx context.Context, remoteVolumeID, operatorID string, req regulator.VolumeCloseRequest) (map[string]any, error) {
	return g.closeAuthResp, g.closeAuthErr
}

func (g *fakeGateway) UpdateVolume(ctx context.Context, remoteVolumeID, operatorID string, req regulator.VolumeUpdateRequest) error {
	g.updateReqs = append(g.updateReqs, req)
	return g.updateErr
}

func (g *fakeGateway) FetchVolume(ctx context.Context, remoteVolumeID, operatorID string) (map[string]any, error) {
	return map[string]any{"idDiarioBordoVolume": remoteVolumeID}, nil
}

func (g *fakeGateway) QueryVolumes(ctx context.Context, q regulator.VolumeQuery) ([]map[string]any, error) {
	return nil, nil
}

type captureRecorder struct{ entries []audit.Entry }

func (r *captureRecorder) Record(ctx context.Context, e audit.Entry) {
	r.entries = append(r.entries, e)
}

type volumeFixture struct {
	svc      *Service
	mem      *storage.Memory
	gateway  *fakeGateway
	recorder *captureRecorder
}

func newVolumeFixture(t *testing.T) *volumeFixture {
	t.Helper()
	mem := storage.NewMemory()
	require.NoError(t, mem.Aircraft().Save(context.Background(), domain.Aircraft{
		Registration: "PT-ABC",
	}))
	gateway := newFakeGateway()
	recorder := &captureRecorder{}
	svc := NewService(mem.Volumes(), mem.Aircraft(), mem.Components(), gateway,
		platformredis.NewCache(nil), time.Minute, recorder, discardLogger())
	return &volumeFixture{svc: svc, mem: mem, gateway: gateway, recorder: recorder}
}

func openInput() OpenInput {
	return OpenInput{
		Number:       "7",
		Registration: "PT-ABC",
		OpenedAt:     time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		Minutes:      6000,
		Landings:     150,
		Cycles:       150,
		EngineHours:  map[string]string{"1": "100:30"},
		EngineCycles: map[string]string{"1": "150"},
	}
}

func TestOpenRegistersRemoteFirst(t *testing.T) {
	fx := newVolumeFixture(t)
	ctx := context.Background()

	vol, err := fx.svc.Open(ctx, openInput(), audit.RequestMeta{Actor: "op-1"})
	require.NoError(t, err)

	assert.Equal(t, domain.VolumeOpen, vol.Status)
	assert.Equal(t, "rv-1", vol.RemoteVolumeID)
	assert.Equal(t, []string{"op-1"}, vol.RemoteOperatorIDs)

	require.Len(t, fx.gateway.openReqs, 1)
	req := fx.gateway.openReqs[0]
	assert.Equal(t, "01/03/2026", req.DataAberturaVolume)
	assert.Equal(t, "6000", req.MinutosTotaisVoo)
	assert.Equal(t, "150", req.TotalPousos)

	require.Len(t, fx.recorder.entries, 1)
	assert.Equal(t, audit.ActionOpen, fx.recorder.entries[0].Action)
}

func TestOpenAbortsWhenRemoteFails(t *testing.T) {
	fx := newVolumeFixture(t)
	fx.gateway.openErr = pkgerrors.New(pkgerrors.CodeRemoteSync, "retries exhausted")

	_, err := fx.svc.Open(context.Background(), openInput(), audit.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeRemoteSync, pkgerrors.CodeOf(err))

	list, err := fx.mem.Volumes().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list, "no local volume stored after a remote failure")
}

func TestOpenConflictsWithOpenVolume(t *testing.T) {
	fx := newVolumeFixture(t)
	ctx := context.Background()
	first, err := fx.svc.Open(ctx, openInput(), audit.RequestMeta{})
	require.NoError(t, err)

	in := openInput()
	in.Number = "8"
	_, err = fx.svc.Open(ctx, in, audit.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))

	var le *pkgerrors.LedgerError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, first.ID, le.Details["openVolumeId"])
}

func TestOpenAutoClosesPreviousVolume(t *testing.T) {
	fx := newVolumeFixture(t)
	ctx := context.Background()
	first, err := fx.svc.Open(ctx, openInput(), audit.RequestMeta{})
	require.NoError(t, err)

	in := openInput()
	in.Number = "8"
	in.AutoClose = true
	second, err := fx.svc.Open(ctx, in, audit.RequestMeta{})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	closed, err := fx.mem.Volumes().FindByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VolumeClosed, closed.Status)
	assert.Equal(t, autoCloseNotes, closed.ClosingNotes)

	select {
	case id := <-fx.gateway.closedIDs:
		assert.Equal(t, "rv-1", id)
	default:
		t.Fatal("previous volume never notified to the regulator")
	}
}

func TestOpenValidatesEngineHours(t *testing.T) {
	fx := newVolumeFixture(t)
	in := openInput()
	in.EngineHours = map[string]string{"1": "100h30"}

	_, err := fx.svc.Open(context.Background(), in, audit.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestCloseBlockedByExpiredComponents(t *testing.T) {
	fx := newVolumeFixture(t)
	ctx := context.Background()
	vol, err := fx.svc.Open(ctx, openInput(), audit.RequestMeta{})
	require.NoError(t, err)

	remaining := -3.0
	require.NoError(t, fx.mem.Components().Save(ctx, domain.Component{
		PartNumber:     "PN-EXP",
		RemainingHours: &remaining,
		Status:         domain.ComponentExpired,
	}))

	_, _, err = fx.svc.Close(ctx, vol.ID, "fim", audit.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))

	var le *pkgerrors.LedgerError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, 1, le.Details["count"])

	current, err := fx.mem.Volumes().FindByID(ctx, vol.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VolumeOpen, current.Status)
}

func TestCloseReportsCriticalComponents(t *testing.T) {
	fx := newVolumeFixture(t)
	ctx := context.Background()
	vol, err := fx.svc.Open(ctx, openInput(), audit.RequestMeta{})
	require.NoError(t, err)

	remaining := 12.0
	require.NoError(t, fx.mem.Components().Save(ctx, domain.Component{
		PartNumber:     "PN-CRIT",
		RemainingHours: &remaining,
		Status:         domain.ComponentCritical,
	}))

	closed, critical, err := fx.svc.Close(ctx, vol.ID, "fim do volume", audit.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 1, critical)
	assert.Equal(t, domain.VolumeClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	// The remote notification is fire and forget but must still happen.
	select {
	case id := <-fx.gateway.closedIDs:
		assert.Equal(t, "rv-1", id)
	case <-time.After(time.Second):
		t.Fatal("regulator close notification never sent")
	}
}

func TestCloseRejectsAlreadyClosedVolume(t *testing.T) {
	fx := newVolumeFixture(t)
	ctx := context.Background()
	vol, err := fx.svc.Open(ctx, openInput(), audit.RequestMeta{})
	require.NoError(t, err)
	_, _, err = fx.svc.Close(ctx, vol.ID, "", audit.RequestMeta{})
	require.NoError(t, err)

	_, _, err = fx.svc.Close(ctx, vol.ID, "", audit.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.CodeOf(err))
}

func TestCloseAuthoritativeParsesBRDate(t *testing.T) {
	fx := newVolumeFixture(t)
	ctx := context.Background()
	vol, err := fx.svc.Open(ctx, openInput(), audit.RequestMeta{})
	require.NoError(t, err)

	fx.gateway.closeAuthResp = map[string]any{"status": "FECHADO"}
	closed, remote, err := fx.svc.CloseAuthoritative(ctx, vol.ID, "", CloseInput{
		ClosingDateBR: "15/04/2026",
		Minutes:       6100,
	}, audit.RequestMeta{})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"status": "FECHADO"}, remote)
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC), *closed.ClosedAt)
	assert.Equal(t, "Encerrado", closed.ClosingNotes)

	_, _, err = fx.svc.CloseAuthoritative(ctx, vol.ID, "", CloseInput{ClosingDateBR: "2026-04-15"}, audit.RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestCloseAuthoritativeAbortsOnRemoteFailure(t *testing.T) {
	fx := newVolumeFixture(t)
	ctx := context.Background()
	vol, err := fx.svc.Open(ctx, openInput(), audit.RequestMeta{})
	require.NoError(t, err)

	fx.gateway.closeAuthErr = pkgerrors.New(pkgerrors.CodeRemoteSync, "retries exhausted")
	_, _, err = fx.svc.CloseAuthoritative(ctx, vol.ID, "", CloseInput{ClosingDateBR: "15/04/2026"}, audit.RequestMeta{})
	require.Error(t, err)

	current, err := fx.mem.Volumes().FindByID(ctx, vol.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VolumeOpen, current.Status, "local volume untouched after remote failure")
}

func TestUpdatePatchesOpenVolumeRemoteFirst(t *testing.T) {
	fx := newVolumeFixture(t)
	ctx := context.Background()
	vol, err := fx.svc.Open(ctx, openInput(), audit.RequestMeta{})
	require.NoError(t, err)

	minutes := 6200
	updated, err := fx.svc.Update(ctx, vol.ID, "", UpdateInput{Minutes: &minutes}, audit.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 6200, updated.OpeningMinutes)
	assert.Equal(t, "7", updated.Number, "untouched fields keep their values")

	require.Len(t, fx.gateway.updateReqs, 1)
	assert.Equal(t, "6200", fx.gateway.updateReqs[0].MinutosTotaisVoo)
	assert.Equal(t, "7", fx.gateway.updateReqs[0].NumeroVolume)

	fx.gateway.updateErr = pkgerrors.New(pkgerrors.CodeRemoteSync, "retries exhausted")
	rollback := 6300
	_, err = fx.svc.Update(ctx, vol.ID, "", UpdateInput{Minutes: &rollback}, audit.RequestMeta{})
	require.Error(t, err)

	current, err := fx.mem.Volumes().FindByID(ctx, vol.ID)
	require.NoError(t, err)
	assert.Equal(t, 6200, current.OpeningMinutes, "local figures untouched after remote failure")
}

func TestFetchRemoteRequiresRemoteID(t *testing.T) {
	fx := newVolumeFixture(t)
	ctx := context.Background()
	fx.gateway.openResult = regulator.OpenVolumeResult{}
	vol, err := fx.svc.Open(ctx, openInput(), audit.RequestMeta{})
	require.NoError(t, err)

	_, err = fx.svc.FetchRemote(ctx, vol.ID, "op-1")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.CodeOf(err))
}

func TestGetTranslatesNotFound(t *testing.T) {
	fx := newVolumeFixture(t)
	_, err := fx.svc.Get(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.CodeOf(err))
}

func TestListReadsStoreWithCacheDisabled(t *testing.T) {
	fx := newVolumeFixture(t)
	ctx := context.Background()
	_, err := fx.svc.Open(ctx, openInput(), audit.RequestMeta{})
	require.NoError(t, err)

	list, err := fx.svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
