package storage

import (
	"context"

	"aeroledger/internal/domain"
)

// Stores are interface-driven to keep the domain logic testable and to allow
// swapping in-memory and Postgres persistence without rewiring business code.

type AircraftStore interface {
	// FindOne resolves the single tracked aircraft aggregate.
	FindOne(ctx context.Context) (domain.Aircraft, error)
	Save(ctx context.Context, aircraft domain.Aircraft) error
}

type ComponentStore interface {
	// ListWithRemaining returns components that carry an hour-based
	// remaining-life figure; the maintenance cascade only touches those.
	ListWithRemaining(ctx context.Context) ([]domain.Component, error)
	ListByAircraft(ctx context.Context, aircraftID string) ([]domain.Component, error)
	CountByStatus(ctx context.Context, status domain.ComponentStatus) (int, error)
	Save(ctx context.Context, component domain.Component) error
}

type ComponentSnapshotStore interface {
	Create(ctx context.Context, snapshot domain.ComponentSnapshot) (domain.ComponentSnapshot, error)
	ListByComponent(ctx context.Context, componentID string) ([]domain.ComponentSnapshot, error)
}

type VolumeStore interface {
	Create(ctx context.Context, volume domain.Volume) (domain.Volume, error)
	Save(ctx context.Context, volume domain.Volume) error
	FindByID(ctx context.Context, id string) (domain.Volume, error)
	// FindOpen returns the single ABERTO volume or sentinel.ErrNotFound.
	FindOpen(ctx context.Context) (domain.Volume, error)
	List(ctx context.Context) ([]domain.Volume, error)
}

type FlightStageStore interface {
	Create(ctx context.Context, stage domain.FlightStage) (domain.FlightStage, error)
	Save(ctx context.Context, stage domain.FlightStage) error
	FindByID(ctx context.Context, id string) (domain.FlightStage, error)
	ListByVolume(ctx context.Context, volumeID string, includeDeleted bool) ([]domain.FlightStage, error)
}

// TxRunner provides the multi-entity transaction boundary the maintenance
// cascade requires. The Postgres implementation opens a real transaction and
// threads it through context; the in-memory implementation degrades to
// sequential best-effort writes, a documented consistency gap.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
