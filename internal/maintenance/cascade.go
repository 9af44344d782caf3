package maintenance

import (
	"context"
	"fmt"
	"log/slog"

	"aeroledger/internal/domain"
	"aeroledger/internal/storage"
	pkgerrors "aeroledger/pkg/domain-errors"
)

// Cascade propagates a registered flight stage into the maintenance state:
// aircraft lifetime totals and the burn-down of every hour-limited
// component. All writes run inside one transaction boundary so a failure
// never leaves totals and component margins disagreeing.
type Cascade struct {
	tx         storage.TxRunner
	aircraft   storage.AircraftStore
	components storage.ComponentStore
	snapshots  storage.ComponentSnapshotStore
	log        *slog.Logger
}

func NewCascade(tx storage.TxRunner, aircraft storage.AircraftStore, components storage.ComponentStore, snapshots storage.ComponentSnapshotStore, log *slog.Logger) *Cascade {
	return &Cascade{tx: tx, aircraft: aircraft, components: components, snapshots: snapshots, log: log}
}

// Apply adds the stage's block time and cycles to the aircraft totals,
// burns the block time off every component with a remaining-hours figure,
// reclassifies each component's status, and writes one snapshot per
// component recording the applied delta.
func (c *Cascade) Apply(ctx context.Context, blockTimeHours float64, cycles int) error {
	err := c.tx.RunInTx(ctx, func(ctx context.Context) error {
		aircraft, err := c.aircraft.FindOne(ctx)
		if err != nil {
			return fmt.Errorf("load aircraft: %w", err)
		}
		aircraft.TotalHours += blockTimeHours
		aircraft.TotalCycles += cycles
		if err := c.aircraft.Save(ctx, aircraft); err != nil {
			return fmt.Errorf("save aircraft totals: %w", err)
		}

		components, err := c.components.ListWithRemaining(ctx)
		if err != nil {
			return fmt.Errorf("list components: %w", err)
		}
		for _, component := range components {
			remaining := *component.RemainingHours - blockTimeHours
			component.RemainingHours = &remaining
			component.Status = domain.StatusForRemaining(remaining)
			if err := c.components.Save(ctx, component); err != nil {
				return fmt.Errorf("save component %s: %w", component.ID, err)
			}
			_, err := c.snapshots.Create(ctx, domain.ComponentSnapshot{
				ComponentID:    component.ID,
				RemainingHours: remaining,
				Status:         component.Status,
				DeltaHours:     blockTimeHours,
			})
			if err != nil {
				return fmt.Errorf("snapshot component %s: %w", component.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		c.log.Error("maintenance cascade aborted",
			"block_time_hours", blockTimeHours, "cycles", cycles, "error", err)
		return pkgerrors.Wrap(err, pkgerrors.CodeTransactionAbort, "maintenance cascade aborted")
	}
	return nil
}

// Rollback reverses the aircraft totals of a removed stage, clamping at
// zero. Component margins are left as burned: a deleted stage still
// consumed real component life.
func (c *Cascade) Rollback(ctx context.Context, blockTimeHours float64, cycles int) error {
	err := c.tx.RunInTx(ctx, func(ctx context.Context) error {
		aircraft, err := c.aircraft.FindOne(ctx)
		if err != nil {
			return fmt.Errorf("load aircraft: %w", err)
		}
		aircraft.TotalHours -= blockTimeHours
		if aircraft.TotalHours < 0 {
			aircraft.TotalHours = 0
		}
		aircraft.TotalCycles -= cycles
		if aircraft.TotalCycles < 0 {
			aircraft.TotalCycles = 0
		}
		if err := c.aircraft.Save(ctx, aircraft); err != nil {
			return fmt.Errorf("save aircraft totals: %w", err)
		}
		return nil
	})
	if err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CodeTransactionAbort, "maintenance rollback aborted")
	}
	return nil
}
