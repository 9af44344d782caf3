package postgres

import (
	"context"

	"aeroledger/internal/domain"
	"aeroledger/internal/storage"
)

// Typed views expose the interface-shaped slices of Store so wiring reads
// the same for memory and Postgres backends.

type pgAircraft struct{ *Store }
type pgComponents struct{ *Store }
type pgSnapshots struct{ *Store }
type pgVolumes struct{ *Store }
type pgStages struct{ *Store }

func (s pgComponents) Save(ctx context.Context, c domain.Component) error {
	return s.SaveComponent(ctx, c)
}
func (s pgComponents) ListByAircraft(ctx context.Context, aircraftID string) ([]domain.Component, error) {
	return s.ListComponentsByAircraft(ctx, aircraftID)
}

func (s pgSnapshots) Create(ctx context.Context, snap domain.ComponentSnapshot) (domain.ComponentSnapshot, error) {
	return s.CreateSnapshot(ctx, snap)
}

func (s pgVolumes) Create(ctx context.Context, v domain.Volume) (domain.Volume, error) {
	return s.CreateVolume(ctx, v)
}
func (s pgVolumes) Save(ctx context.Context, v domain.Volume) error {
	return s.SaveVolume(ctx, v)
}
func (s pgVolumes) FindByID(ctx context.Context, id string) (domain.Volume, error) {
	return s.FindVolumeByID(ctx, id)
}
func (s pgVolumes) List(ctx context.Context) ([]domain.Volume, error) {
	return s.ListVolumes(ctx)
}

func (s pgStages) Create(ctx context.Context, st domain.FlightStage) (domain.FlightStage, error) {
	return s.CreateStage(ctx, st)
}
func (s pgStages) Save(ctx context.Context, st domain.FlightStage) error {
	return s.SaveStage(ctx, st)
}
func (s pgStages) FindByID(ctx context.Context, id string) (domain.FlightStage, error) {
	return s.FindStageByID(ctx, id)
}

func (s *Store) Aircraft() storage.AircraftStore           { return pgAircraft{s} }
func (s *Store) Components() storage.ComponentStore        { return pgComponents{s} }
func (s *Store) Snapshots() storage.ComponentSnapshotStore { return pgSnapshots{s} }
func (s *Store) Volumes() storage.VolumeStore              { return pgVolumes{s} }
func (s *Store) Stages() storage.FlightStageStore          { return pgStages{s} }
