package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"aeroledger/internal/domain"
	"aeroledger/pkg/platform/sentinel"
)

// Memory is the in-memory implementation of every store interface plus
// TxRunner. It backs unit tests and broker-less development runs.
type Memory struct {
	mu sync.RWMutex

	aircraft    *domain.Aircraft
	volumes     map[string]domain.Volume
	stages      map[string]domain.FlightStage
	components  map[string]domain.Component
	snapshots   []domain.ComponentSnapshot
	volumeOrder []string
	stageOrder  []string
}

func NewMemory() *Memory {
	return &Memory{
		volumes:    make(map[string]domain.Volume),
		stages:     make(map[string]domain.FlightStage),
		components: make(map[string]domain.Component),
	}
}

// RunInTx runs fn without atomicity. Partial writes are possible on failure;
// the cascade surfaces that as a partial-write warning.
func (m *Memory) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (m *Memory) FindOne(ctx context.Context) (domain.Aircraft, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.aircraft == nil {
		return domain.Aircraft{}, sentinel.ErrNotFound
	}
	return *m.aircraft, nil
}

func (m *Memory) Save(ctx context.Context, aircraft domain.Aircraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if aircraft.ID == "" {
		aircraft.ID = uuid.NewString()
		aircraft.CreatedAt = time.Now().UTC()
	}
	aircraft.UpdatedAt = time.Now().UTC()
	m.aircraft = &aircraft
	return nil
}

func (m *Memory) ListWithRemaining(ctx context.Context) ([]domain.Component, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Component
	for _, c := range m.components {
		if c.RemainingHours != nil {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) ListComponentsByAircraft(ctx context.Context, aircraftID string) ([]domain.Component, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Component
	for _, c := range m.components {
		if aircraftID == "" || c.AircraftID == aircraftID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) CountByStatus(ctx context.Context, status domain.ComponentStatus) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, c := range m.components {
		if c.Status == status {
			n++
		}
	}
	return n, nil
}

func (m *Memory) SaveComponent(ctx context.Context, component domain.Component) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if component.ID == "" {
		component.ID = uuid.NewString()
		component.CreatedAt = time.Now().UTC()
	}
	component.UpdatedAt = time.Now().UTC()
	m.components[component.ID] = component
	return nil
}

func (m *Memory) CreateSnapshot(ctx context.Context, snapshot domain.ComponentSnapshot) (domain.ComponentSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot.ID = uuid.NewString()
	if snapshot.TakenAt.IsZero() {
		snapshot.TakenAt = time.Now().UTC()
	}
	m.snapshots = append(m.snapshots, snapshot)
	return snapshot, nil
}

func (m *Memory) ListByComponent(ctx context.Context, componentID string) ([]domain.ComponentSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.ComponentSnapshot
	for _, s := range m.snapshots {
		if s.ComponentID == componentID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *Memory) CreateVolume(ctx context.Context, volume domain.Volume) (domain.Volume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	volume.ID = uuid.NewString()
	volume.CreatedAt = time.Now().UTC()
	volume.UpdatedAt = volume.CreatedAt
	m.volumes[volume.ID] = volume
	m.volumeOrder = append(m.volumeOrder, volume.ID)
	return volume, nil
}

func (m *Memory) SaveVolume(ctx context.Context, volume domain.Volume) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.volumes[volume.ID]; !ok {
		return sentinel.ErrNotFound
	}
	volume.UpdatedAt = time.Now().UTC()
	m.volumes[volume.ID] = volume
	return nil
}

func (m *Memory) FindVolumeByID(ctx context.Context, id string) (domain.Volume, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.volumes[id]
	if !ok {
		return domain.Volume{}, sentinel.ErrNotFound
	}
	return v, nil
}

func (m *Memory) FindOpen(ctx context.Context) (domain.Volume, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.volumeOrder {
		if v := m.volumes[id]; v.Status == domain.VolumeOpen {
			return v, nil
		}
	}
	return domain.Volume{}, sentinel.ErrNotFound
}

func (m *Memory) ListVolumes(ctx context.Context) ([]domain.Volume, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Volume, 0, len(m.volumeOrder))
	for _, id := range m.volumeOrder {
		out = append(out, m.volumes[id])
	}
	return out, nil
}

func (m *Memory) CreateStage(ctx context.Context, stage domain.FlightStage) (domain.FlightStage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stage.ID = uuid.NewString()
	stage.CreatedAt = time.Now().UTC()
	stage.UpdatedAt = stage.CreatedAt
	m.stages[stage.ID] = stage
	m.stageOrder = append(m.stageOrder, stage.ID)
	return stage, nil
}

func (m *Memory) SaveStage(ctx context.Context, stage domain.FlightStage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stages[stage.ID]; !ok {
		return sentinel.ErrNotFound
	}
	stage.UpdatedAt = time.Now().UTC()
	m.stages[stage.ID] = stage
	return nil
}

func (m *Memory) FindStageByID(ctx context.Context, id string) (domain.FlightStage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stages[id]
	if !ok {
		return domain.FlightStage{}, sentinel.ErrNotFound
	}
	return s, nil
}

func (m *Memory) ListByVolume(ctx context.Context, volumeID string, includeDeleted bool) ([]domain.FlightStage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.FlightStage
	for _, id := range m.stageOrder {
		s := m.stages[id]
		if s.VolumeID != volumeID {
			continue
		}
		if s.Deleted && !includeDeleted {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Typed views expose the interface-shaped slices of Memory so wiring reads
// the same for memory and Postgres backends.

type memoryAircraft struct{ *Memory }
type memoryComponents struct{ *Memory }
type memorySnapshots struct{ *Memory }
type memoryVolumes struct{ *Memory }
type memoryStages struct{ *Memory }

func (m memoryComponents) Save(ctx context.Context, c domain.Component) error {
	return m.SaveComponent(ctx, c)
}
func (m memoryComponents) ListByAircraft(ctx context.Context, aircraftID string) ([]domain.Component, error) {
	return m.ListComponentsByAircraft(ctx, aircraftID)
}

func (m memorySnapshots) Create(ctx context.Context, s domain.ComponentSnapshot) (domain.ComponentSnapshot, error) {
	return m.CreateSnapshot(ctx, s)
}

func (m memoryVolumes) Create(ctx context.Context, v domain.Volume) (domain.Volume, error) {
	return m.CreateVolume(ctx, v)
}
func (m memoryVolumes) Save(ctx context.Context, v domain.Volume) error {
	return m.SaveVolume(ctx, v)
}
func (m memoryVolumes) FindByID(ctx context.Context, id string) (domain.Volume, error) {
	return m.FindVolumeByID(ctx, id)
}
func (m memoryVolumes) List(ctx context.Context) ([]domain.Volume, error) {
	return m.ListVolumes(ctx)
}

func (m memoryStages) Create(ctx context.Context, s domain.FlightStage) (domain.FlightStage, error) {
	return m.CreateStage(ctx, s)
}
func (m memoryStages) Save(ctx context.Context, s domain.FlightStage) error {
	return m.SaveStage(ctx, s)
}
func (m memoryStages) FindByID(ctx context.Context, id string) (domain.FlightStage, error) {
	return m.FindStageByID(ctx, id)
}

func (m *Memory) Aircraft() AircraftStore           { return memoryAircraft{m} }
func (m *Memory) Components() ComponentStore        { return memoryComponents{m} }
func (m *Memory) Snapshots() ComponentSnapshotStore { return memorySnapshots{m} }
func (m *Memory) Volumes() VolumeStore              { return memoryVolumes{m} }
func (m *Memory) Stages() FlightStageStore          { return memoryStages{m} }
