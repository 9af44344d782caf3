package maintenance

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aeroledger/internal/domain"
	"aeroledger/internal/storage"
	pkgerrors "aeroledger/pkg/domain-errors"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newCascade(t *testing.T) (*Cascade, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	require.NoError(t, mem.Aircraft().Save(context.Background(), domain.Aircraft{
		Registration: "PT-ABC",
		TotalHours:   500,
		TotalCycles:  800,
	}))
	return NewCascade(mem, mem.Aircraft(), mem.Components(), mem.Snapshots(), discardLogger()), mem
}

func addComponent(t *testing.T, mem *storage.Memory, remaining float64) {
	t.Helper()
	r := remaining
	require.NoError(t, mem.Components().Save(context.Background(), domain.Component{
		PartNumber:     "PN",
		RemainingHours: &r,
		Status:         domain.StatusForRemaining(r),
	}))
}

func TestApplyBurnsComponentsAndReclassifies(t *testing.T) {
	cascade, mem := newCascade(t)
	ctx := context.Background()
	addComponent(t, mem, 51.4) // 51.4 - 1.5 = 49.9, just under the critical line
	addComponent(t, mem, 1.4)  // 1.4 - 1.5 = -0.1, expired

	require.NoError(t, cascade.Apply(ctx, 1.5, 2))

	aircraft, err := mem.Aircraft().FindOne(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 501.5, aircraft.TotalHours, 1e-9)
	assert.Equal(t, 802, aircraft.TotalCycles)

	components, err := mem.Components().ListWithRemaining(ctx)
	require.NoError(t, err)
	require.Len(t, components, 2)

	byStatus := map[domain.ComponentStatus]float64{}
	for _, c := range components {
		byStatus[c.Status] = *c.RemainingHours
	}
	assert.InDelta(t, 49.9, byStatus[domain.ComponentCritical], 1e-9)
	assert.InDelta(t, -0.1, byStatus[domain.ComponentExpired], 1e-9)

	for _, c := range components {
		snaps, err := mem.Snapshots().ListByComponent(ctx, c.ID)
		require.NoError(t, err)
		require.Len(t, snaps, 1)
		assert.InDelta(t, 1.5, snaps[0].DeltaHours, 1e-9)
		assert.Equal(t, c.Status, snaps[0].Status)
	}
}

func TestApplySkipsComponentsWithoutHourLimit(t *testing.T) {
	cascade, mem := newCascade(t)
	ctx := context.Background()
	require.NoError(t, mem.Components().Save(ctx, domain.Component{
		PartNumber: "CAL-ONLY",
		Status:     domain.ComponentOK,
	}))

	require.NoError(t, cascade.Apply(ctx, 2.0, 1))

	count, err := mem.Components().CountByStatus(ctx, domain.ComponentOK)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestApplyFailsWithoutAircraft(t *testing.T) {
	mem := storage.NewMemory()
	cascade := NewCascade(mem, mem.Aircraft(), mem.Components(), mem.Snapshots(), discardLogger())

	err := cascade.Apply(context.Background(), 1.0, 1)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeTransactionAbort, pkgerrors.CodeOf(err))
}

func TestRollbackClampsAtZero(t *testing.T) {
	cascade, mem := newCascade(t)
	ctx := context.Background()

	require.NoError(t, cascade.Rollback(ctx, 600, 900))

	aircraft, err := mem.Aircraft().FindOne(ctx)
	require.NoError(t, err)
	assert.Zero(t, aircraft.TotalHours)
	assert.Zero(t, aircraft.TotalCycles)
}

func TestRollbackLeavesComponentsBurned(t *testing.T) {
	cascade, mem := newCascade(t)
	ctx := context.Background()
	addComponent(t, mem, 100)

	require.NoError(t, cascade.Apply(ctx, 2.0, 1))
	require.NoError(t, cascade.Rollback(ctx, 2.0, 1))

	components, err := mem.Components().ListWithRemaining(ctx)
	require.NoError(t, err)
	require.Len(t, components, 1)
	assert.InDelta(t, 98.0, *components[0].RemainingHours, 1e-9)

	aircraft, err := mem.Aircraft().FindOne(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 500.0, aircraft.TotalHours, 1e-9)
	assert.Equal(t, 800, aircraft.TotalCycles)
}
