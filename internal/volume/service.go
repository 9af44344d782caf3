package volume

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"aeroledger/internal/audit"
	"aeroledger/internal/domain"
	platformredis "aeroledger/internal/platform/redis"
	"aeroledger/internal/regulator"
	"aeroledger/internal/storage"
	pkgerrors "aeroledger/pkg/domain-errors"
	"aeroledger/pkg/platform/sentinel"
)

const listCacheKey = "volumes:list"

// autoCloseNotes is recorded when opening a new volume closes the previous
// one in the same request.
const autoCloseNotes = "Encerrado automaticamente para abertura de novo volume"

// Gateway is the slice of the regulator client the volume ledger uses.
type Gateway interface {
	OpenVolume(ctx context.Context, req regulator.VolumeOpenRequest) (regulator.OpenVolumeResult, error)
	CloseVolume(ctx context.Context, remoteVolumeID string)
	CloseVolumeAuthoritative(ctx context.Context, remoteVolumeID, operatorID string, req regulator.VolumeCloseRequest) (map[string]any, error)
	UpdateVolume(ctx context.Context, remoteVolumeID, operatorID string, req regulator.VolumeUpdateRequest) error
	FetchVolume(ctx context.Context, remoteVolumeID, operatorID string) (map[string]any, error)
	QueryVolumes(ctx context.Context, q regulator.VolumeQuery) ([]map[string]any, error)
}

// Service owns the volume lifecycle. The regulator holds the authoritative
// copy of every volume: opens and formal closes go remote-first, while the
// simple close and the auto-close notification degrade to best-effort.
type Service struct {
	volumes    storage.VolumeStore
	aircraft   storage.AircraftStore
	components storage.ComponentStore
	gateway    Gateway
	cache      *platformredis.Cache
	cacheTTL   time.Duration
	recorder   audit.Recorder
	log        *slog.Logger

	now func() time.Time
}

func NewService(volumes storage.VolumeStore, aircraft storage.AircraftStore, components storage.ComponentStore, gateway Gateway, cache *platformredis.Cache, cacheTTL time.Duration, recorder audit.Recorder, log *slog.Logger) *Service {
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &Service{
		volumes:    volumes,
		aircraft:   aircraft,
		components: components,
		gateway:    gateway,
		cache:      cache,
		cacheTTL:   cacheTTL,
		recorder:   recorder,
		log:        log,
		now:        time.Now,
	}
}

// OpenInput carries everything needed to open a volume.
type OpenInput struct {
	Number       string            `json:"numeroVolume"`
	Registration string            `json:"matriculaAeronave"`
	OpenedAt     time.Time         `json:"-"`
	Minutes      int               `json:"minutosTotaisVooInicio"`
	Landings     int               `json:"totalPousosInicio"`
	Cycles       int               `json:"totalCiclosCelulaInicio"`
	Notes        string            `json:"observacoesAbertura"`
	EngineHours  map[string]string `json:"horasVooMotor"`
	EngineCycles map[string]string `json:"ciclosMotor"`
	// AutoClose closes a currently open volume instead of failing on it.
	AutoClose bool `json:"autoClose"`
}

func (in OpenInput) validate() error {
	if in.Number == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "volume number required")
	}
	if in.Registration == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "aircraft registration required")
	}
	for engine, hours := range in.EngineHours {
		if _, err := regulator.ParseEngineHours(hours); err != nil {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "engine %s hours %q not in H:MM form", engine, hours)
		}
	}
	return nil
}

// Open creates a volume, enforcing the single-open invariant. The regulator
// registration happens before the local create so a stored volume always
// carries its remote ids; a remote failure aborts the open entirely.
func (s *Service) Open(ctx context.Context, in OpenInput, meta audit.RequestMeta) (domain.Volume, error) {
	if err := in.validate(); err != nil {
		return domain.Volume{}, err
	}

	active, err := s.volumes.FindOpen(ctx)
	switch {
	case err == nil:
		if !in.AutoClose {
			return domain.Volume{}, pkgerrors.New(pkgerrors.CodeConflict, "a volume is already open").
				WithDetail("openVolumeId", active.ID)
		}
		closedAt := s.now().UTC()
		active.Status = domain.VolumeClosed
		active.ClosedAt = &closedAt
		active.ClosingNotes = autoCloseNotes
		if err := s.volumes.Save(ctx, active); err != nil {
			return domain.Volume{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "auto-close previous volume")
		}
		s.gateway.CloseVolume(ctx, active.RemoteVolumeID)
	case !sentinel.IsNotFound(err):
		return domain.Volume{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "resolve open volume")
	}

	openedAt := in.OpenedAt
	if openedAt.IsZero() {
		openedAt = s.now().UTC()
	}
	result, err := s.gateway.OpenVolume(ctx, regulator.VolumeOpenRequest{
		MatriculaAeronave:          in.Registration,
		DataAberturaVolume:         regulator.FormatDateBR(openedAt),
		NumeroVolume:               in.Number,
		MinutosTotaisVoo:           regulator.FormatInt(in.Minutes),
		TotalPousos:                regulator.FormatInt(in.Landings),
		TotalCiclosCelula:          regulator.FormatInt(in.Cycles),
		ObservacoesTermoDeAbertura: in.Notes,
		HorasVooMotor:              in.EngineHours,
		CiclosMotor:                in.EngineCycles,
	})
	if err != nil {
		return domain.Volume{}, err
	}

	created, err := s.volumes.Create(ctx, domain.Volume{
		AircraftRegistration: in.Registration,
		Number:               in.Number,
		OpenedAt:             openedAt,
		OpeningMinutes:       in.Minutes,
		OpeningLandings:      in.Landings,
		OpeningCycles:        in.Cycles,
		EngineHours:          in.EngineHours,
		EngineCycles:         in.EngineCycles,
		Status:               domain.VolumeOpen,
		OpeningNotes:         in.Notes,
		RemoteVolumeID:       result.VolumeID,
		RemoteOperatorIDs:    result.OperatorIDs,
	})
	if err != nil {
		return domain.Volume{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "store volume")
	}

	s.recorder.Record(ctx, meta.Apply(audit.Entry{
		Resource:   "volumes",
		ResourceID: created.ID,
		Action:     audit.ActionOpen,
		StatusCode: 201,
		Payload:    openPayload(in),
	}))
	s.cache.Invalidate(ctx, listCacheKey)
	return created, nil
}

func openPayload(in OpenInput) map[string]any {
	raw, err := json.Marshal(in)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// Close performs the simple close. Expired components block it; the local
// transition then stands regardless of the remote notification, which runs
// fire-and-forget. Returns the closed volume and the count of critical
// components for the caller's response meta.
func (s *Service) Close(ctx context.Context, id, notes string, meta audit.RequestMeta) (domain.Volume, int, error) {
	if _, err := s.aircraft.FindOne(ctx); err != nil {
		if sentinel.IsNotFound(err) {
			return domain.Volume{}, 0, pkgerrors.New(pkgerrors.CodeInternal, "aircraft not initialized")
		}
		return domain.Volume{}, 0, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "load aircraft")
	}
	expired, err := s.components.CountByStatus(ctx, domain.ComponentExpired)
	if err != nil {
		return domain.Volume{}, 0, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "count expired components")
	}
	if expired > 0 {
		return domain.Volume{}, 0, pkgerrors.New(pkgerrors.CodeConflict, "expired components block volume close").
			WithDetail("count", expired)
	}
	critical, err := s.components.CountByStatus(ctx, domain.ComponentCritical)
	if err != nil {
		return domain.Volume{}, 0, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "count critical components")
	}

	vol, err := s.closeLocal(ctx, id, notes, s.now().UTC())
	if err != nil {
		return domain.Volume{}, 0, err
	}

	// Fire and forget: the local close must not wait on, or fail with, the
	// regulator notification.
	if vol.RemoteVolumeID != "" {
		go s.gateway.CloseVolume(context.WithoutCancel(ctx), vol.RemoteVolumeID)
	}

	s.recorder.Record(ctx, meta.Apply(audit.Entry{
		Resource:   "volumes",
		ResourceID: vol.ID,
		Action:     audit.ActionClose,
		StatusCode: 200,
		Payload:    map[string]any{"observacoes": notes, "criticos": critical},
	}))
	s.cache.Invalidate(ctx, listCacheKey)
	return vol, critical, nil
}

// CloseInput is the body of the formal close.
type CloseInput struct {
	ClosingDateBR string            `json:"dataFechamentoVolume"`
	Minutes       int               `json:"minutosTotaisVoo"`
	Landings      int               `json:"totalPousos"`
	Cycles        int               `json:"totalCiclosCelula"`
	Notes         string            `json:"observacoesTermoDeFechamento"`
	EngineHours   map[string]string `json:"horasVooMotor"`
	EngineCycles  map[string]string `json:"ciclosMotor"`
}

// CloseAuthoritative performs the formal close PUT against the regulator
// and then closes locally. The closing date arrives in DD/MM/YYYY and is
// converted for the local timestamp.
func (s *Service) CloseAuthoritative(ctx context.Context, id, operatorID string, in CloseInput, meta audit.RequestMeta) (domain.Volume, map[string]any, error) {
	closedAt, err := regulator.ParseDateBR(in.ClosingDateBR)
	if err != nil {
		return domain.Volume{}, nil, err
	}
	vol, err := s.mutableVolume(ctx, id)
	if err != nil {
		return domain.Volume{}, nil, err
	}
	operatorID, err = resolveOperator(operatorID, vol)
	if err != nil {
		return domain.Volume{}, nil, err
	}

	var remote map[string]any
	if vol.RemoteVolumeID != "" {
		remote, err = s.gateway.CloseVolumeAuthoritative(ctx, vol.RemoteVolumeID, operatorID, regulator.VolumeCloseRequest{
			DataFechamentoVolume:         in.ClosingDateBR,
			MinutosTotaisVoo:             regulator.FormatInt(in.Minutes),
			TotalPousos:                  regulator.FormatInt(in.Landings),
			TotalCiclosCelula:            regulator.FormatInt(in.Cycles),
			ObservacoesTermoDeFechamento: in.Notes,
			HorasVooMotor:                in.EngineHours,
			CiclosMotor:                  in.EngineCycles,
		})
		if err != nil {
			return domain.Volume{}, nil, err
		}
	}

	notes := in.Notes
	if notes == "" {
		notes = "Encerrado"
	}
	closed, err := s.closeLocal(ctx, id, notes, closedAt)
	if err != nil {
		return domain.Volume{}, nil, err
	}

	s.recorder.Record(ctx, meta.Apply(audit.Entry{
		Resource:   "volumes",
		ResourceID: closed.ID,
		Action:     audit.ActionClose,
		StatusCode: 200,
		Payload:    map[string]any{"dataFechamentoVolume": in.ClosingDateBR, "observacoes": notes},
	}))
	s.cache.Invalidate(ctx, listCacheKey)
	return closed, remote, nil
}

func (s *Service) closeLocal(ctx context.Context, id, notes string, closedAt time.Time) (domain.Volume, error) {
	vol, err := s.mutableVolume(ctx, id)
	if err != nil {
		return domain.Volume{}, err
	}
	vol.Status = domain.VolumeClosed
	vol.ClosedAt = &closedAt
	vol.ClosingNotes = notes
	if err := s.volumes.Save(ctx, vol); err != nil {
		return domain.Volume{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "save volume")
	}
	return vol, nil
}

// UpdateInput patches the opening figures of an open volume.
type UpdateInput struct {
	Number       string            `json:"numeroVolume"`
	Minutes      *int              `json:"minutosTotaisVoo"`
	Landings     *int              `json:"totalPousos"`
	Cycles       *int              `json:"totalCiclosCelula"`
	Notes        *string           `json:"observacoesTermoDeAbertura"`
	EngineHours  map[string]string `json:"horasVooMotor"`
	EngineCycles map[string]string `json:"ciclosMotor"`
}

// Update pushes the new figures to the regulator first (authoritative),
// then patches the local volume. Closed volumes reject updates.
func (s *Service) Update(ctx context.Context, id, operatorID string, in UpdateInput, meta audit.RequestMeta) (domain.Volume, error) {
	vol, err := s.mutableVolume(ctx, id)
	if err != nil {
		return domain.Volume{}, err
	}
	operatorID, err = resolveOperator(operatorID, vol)
	if err != nil {
		return domain.Volume{}, err
	}

	number := vol.Number
	if in.Number != "" {
		number = in.Number
	}
	minutes := vol.OpeningMinutes
	if in.Minutes != nil {
		minutes = *in.Minutes
	}
	landings := vol.OpeningLandings
	if in.Landings != nil {
		landings = *in.Landings
	}
	cycles := vol.OpeningCycles
	if in.Cycles != nil {
		cycles = *in.Cycles
	}

	if vol.RemoteVolumeID != "" {
		req := regulator.VolumeUpdateRequest{
			NumeroVolume:      number,
			MinutosTotaisVoo:  regulator.FormatInt(minutes),
			TotalPousos:       regulator.FormatInt(landings),
			TotalCiclosCelula: regulator.FormatInt(cycles),
			HorasVooMotor:     in.EngineHours,
			CiclosMotor:       in.EngineCycles,
		}
		if in.Notes != nil {
			req.ObservacoesTermoDeAbertura = *in.Notes
		}
		if err := s.gateway.UpdateVolume(ctx, vol.RemoteVolumeID, operatorID, req); err != nil {
			return domain.Volume{}, err
		}
	}

	vol.Number = number
	vol.OpeningMinutes = minutes
	vol.OpeningLandings = landings
	vol.OpeningCycles = cycles
	if in.Notes != nil {
		vol.OpeningNotes = *in.Notes
	}
	if in.EngineHours != nil {
		vol.EngineHours = in.EngineHours
	}
	if in.EngineCycles != nil {
		vol.EngineCycles = in.EngineCycles
	}
	if err := s.volumes.Save(ctx, vol); err != nil {
		return domain.Volume{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "save volume")
	}

	s.recorder.Record(ctx, meta.Apply(audit.Entry{
		Resource:   "volumes",
		ResourceID: vol.ID,
		Action:     audit.ActionUpdate,
		StatusCode: 200,
		Payload:    map[string]any{"numeroVolume": number},
	}))
	s.cache.Invalidate(ctx, listCacheKey)
	return vol, nil
}

// List serves the volume list through the short-lived cache.
func (s *Service) List(ctx context.Context) ([]domain.Volume, error) {
	if raw, hit := s.cache.Get(ctx, listCacheKey); hit {
		var cached []domain.Volume
		if err := json.Unmarshal(raw, &cached); err == nil {
			return cached, nil
		}
		s.log.Warn("volume list cache entry unreadable, refreshing")
	}
	list, err := s.volumes.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "list volumes")
	}
	if raw, err := json.Marshal(list); err == nil {
		s.cache.Set(ctx, listCacheKey, raw, s.cacheTTL)
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Volume, error) {
	vol, err := s.volumes.FindByID(ctx, id)
	if err != nil {
		if sentinel.IsNotFound(err) {
			return domain.Volume{}, pkgerrors.New(pkgerrors.CodeNotFound, "volume not found")
		}
		return domain.Volume{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "load volume")
	}
	return vol, nil
}

// FetchRemote reads the regulator's copy of a local volume.
func (s *Service) FetchRemote(ctx context.Context, id, operatorID string) (map[string]any, error) {
	vol, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if vol.RemoteVolumeID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "volume has no remote id")
	}
	operatorID, err = resolveOperator(operatorID, vol)
	if err != nil {
		return nil, err
	}
	return s.gateway.FetchVolume(ctx, vol.RemoteVolumeID, operatorID)
}

// QueryRemote searches the regulator's volumes directly.
func (s *Service) QueryRemote(ctx context.Context, q regulator.VolumeQuery) ([]map[string]any, error) {
	return s.gateway.QueryVolumes(ctx, q)
}

func (s *Service) mutableVolume(ctx context.Context, id string) (domain.Volume, error) {
	vol, err := s.Get(ctx, id)
	if err != nil {
		return domain.Volume{}, err
	}
	if !vol.Open() {
		return domain.Volume{}, pkgerrors.New(pkgerrors.CodeConflict, "volume is closed")
	}
	return vol, nil
}

func resolveOperator(operatorID string, vol domain.Volume) (string, error) {
	if operatorID != "" {
		return operatorID, nil
	}
	if len(vol.RemoteOperatorIDs) > 0 {
		return vol.RemoteOperatorIDs[0], nil
	}
	return "", pkgerrors.New(pkgerrors.CodeValidation, "operator id required")
}
