package flight

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"aeroledger/internal/audit"
	"aeroledger/internal/domain"
	"aeroledger/internal/maintenance"
	"aeroledger/internal/regulator"
	"aeroledger/internal/storage"
	pkgerrors "aeroledger/pkg/domain-errors"
	"aeroledger/pkg/platform/sentinel"
)

// closedVolumeGraceDays is how long after a volume closes its stages still
// accept updates.
const closedVolumeGraceDays = 90

var validNatures = map[string]bool{
	"1": true, "2": true, "4": true, "5": true,
	"6": true, "7": true, "8": true, "10": true,
}

var validRoles = map[string]bool{
	"1": true, "2": true, "3": true, "7": true,
	"8": true, "9": true, "11": true, "12": true,
}

// Gateway is the slice of the regulator client the stage registry uses.
type Gateway interface {
	CreateStage(ctx context.Context, p regulator.StagePayload) string
	UpdateStage(ctx context.Context, remoteStageID, operatorID string, p regulator.StagePayload) (string, error)
	SignStage(ctx context.Context, remoteStageID, operatorID, signedAt string) error
	DeleteStage(ctx context.Context, remoteStageID, operatorID string) error
	QueryStages(ctx context.Context, remoteVolumeID, remoteStageID string) ([]map[string]any, error)
	UpdateVolume(ctx context.Context, remoteVolumeID, operatorID string, req regulator.VolumeUpdateRequest) error
}

// Service is the flight stage registry. Stages are immutable from the
// moment they are stored: every later change is a supersession, an
// append-only correction, or a soft delete, and each feeds the audit chain.
type Service struct {
	stages   storage.FlightStageStore
	volumes  storage.VolumeStore
	aircraft storage.AircraftStore
	gateway  Gateway
	cascade  *maintenance.Cascade
	recorder audit.Recorder
	log      *slog.Logger

	now func() time.Time
}

func NewService(stages storage.FlightStageStore, volumes storage.VolumeStore, aircraft storage.AircraftStore, gateway Gateway, cascade *maintenance.Cascade, recorder audit.Recorder, log *slog.Logger) *Service {
	return &Service{
		stages:   stages,
		volumes:  volumes,
		aircraft: aircraft,
		gateway:  gateway,
		cascade:  cascade,
		recorder: recorder,
		log:      log,
		now:      time.Now,
	}
}

// StageInput is the submitted stage data, shared by register and update.
type StageInput struct {
	FlightNature string
	Origin       domain.Place
	Destination  domain.Place

	PreparationTime time.Time
	TakeoffTime     *time.Time
	LandingTime     *time.Time
	ShutdownTime    time.Time

	DayTime   string
	NightTime string
	IFRTime   string
	IFRCTime  string

	Headcount    int
	CargoWeight  string
	CargoUnit    string
	FuelQuantity float64
	FuelUnit     string
	NavMiles     string
	NavMinutes   string

	LandingCount int
	CycleCount   int

	Crew []domain.CrewMember

	PilotSignedAt    string
	OperatorSignedAt string

	// Justification upgrades an update to a rectification in the audit
	// trail. Ignored on register.
	Justification string
}

func (in StageInput) validate() error {
	if !validNatures[in.FlightNature] {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid flight nature %q", in.FlightNature)
	}
	if len(in.Crew) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one crew member required")
	}
	for i, member := range in.Crew {
		if len(member.DocumentNumber) < 3 {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "crew member %d: document number too short", i)
		}
		if !validRoles[member.Role] {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "crew member %d: invalid role %q", i, member.Role)
		}
	}
	if !in.Origin.Identified() {
		return pkgerrors.New(pkgerrors.CodeValidation, "origin requires ICAO, coordinates or a description")
	}
	if in.LandingCount > 0 {
		if !in.Destination.Identified() {
			return pkgerrors.New(pkgerrors.CodeValidation, "destination requires ICAO, coordinates or a description when a landing is reported")
		}
		if in.TakeoffTime == nil || in.LandingTime == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "takeoff and landing times required when a landing is reported")
		}
	}
	if err := in.validateOrdering(); err != nil {
		return err
	}
	if err := in.validateCrewComposition(); err != nil {
		return err
	}
	return nil
}

// validateOrdering enforces preparation <= takeoff <= landing <= shutdown
// (or preparation <= shutdown without a landing), naming the offending pair
// in the error details.
func (in StageInput) validateOrdering() error {
	pairError := func(first, second string) error {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "%s must not be after %s", first, second).
			WithDetail("fields", []string{first, second})
	}
	if in.TakeoffTime != nil && in.PreparationTime.After(*in.TakeoffTime) {
		return pairError("preparationTime", "takeoffTime")
	}
	if in.TakeoffTime != nil && in.LandingTime != nil && in.TakeoffTime.After(*in.LandingTime) {
		return pairError("takeoffTime", "landingTime")
	}
	if in.LandingTime != nil && in.LandingTime.After(in.ShutdownTime) {
		return pairError("landingTime", "shutdownTime")
	}
	if in.LandingTime == nil && in.PreparationTime.After(in.ShutdownTime) {
		return pairError("preparationTime", "shutdownTime")
	}
	return nil
}

func (in StageInput) validateCrewComposition() error {
	hasPilot := false
	hasInstructor := false
	hasStudent := false
	for _, member := range in.Crew {
		if pilotRoles[member.Role] {
			hasPilot = true
		}
		if member.Role == RoleV1 {
			hasInstructor = true
		}
		if member.Role == RoleI1 || member.Role == RoleV2 {
			hasStudent = true
		}
	}
	if !hasPilot {
		return pkgerrors.New(pkgerrors.CodeValidation, "crew has no pilot")
	}
	if in.FlightNature == natureTraining && (!hasInstructor || !hasStudent) {
		return pkgerrors.New(pkgerrors.CodeValidation, "training flights require an instructor and a student")
	}
	return nil
}

// blockTime computes the stage's block figures: the wall time between the
// effective start (takeoff, else preparation) and effective end (landing,
// else shutdown), rendered floored to HH:MM plus the fractional hours used
// by maintenance arithmetic.
func (in StageInput) blockTime() (string, float64) {
	start := in.PreparationTime
	if in.TakeoffTime != nil {
		start = *in.TakeoffTime
	}
	end := in.ShutdownTime
	if in.LandingTime != nil {
		end = *in.LandingTime
	}
	diff := end.Sub(start)
	if diff < 0 {
		diff = 0
	}
	hours := int(diff / time.Hour)
	minutes := int(diff%time.Hour) / int(time.Minute)
	return fmt.Sprintf("%02d:%02d", hours, minutes), diff.Hours()
}

// Register stores a new stage in the open volume, pushes it to the
// regulator best-effort, and runs the maintenance cascade. The stage is
// registered and the cascade applied even when the remote create fails; it
// just stays unlinked until a later sync.
func (s *Service) Register(ctx context.Context, in StageInput, meta audit.RequestMeta) (domain.FlightStage, error) {
	if err := in.validate(); err != nil {
		return domain.FlightStage{}, err
	}

	vol, err := s.volumes.FindOpen(ctx)
	if err != nil {
		if sentinel.IsNotFound(err) {
			return domain.FlightStage{}, pkgerrors.New(pkgerrors.CodeConflict, "no open volume")
		}
		return domain.FlightStage{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "resolve open volume")
	}
	start := in.PreparationTime
	if in.TakeoffTime != nil {
		start = *in.TakeoffTime
	}
	if !start.After(vol.OpenedAt) {
		return domain.FlightStage{}, pkgerrors.New(pkgerrors.CodeValidation, "stage starts before or at the volume opening")
	}

	blockText, blockHours := in.blockTime()
	fingerprint, err := Fingerprint(struct {
		StageInput
		BlockTime string
	}{in, blockText})
	if err != nil {
		return domain.FlightStage{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "compute fingerprint")
	}

	nowISO := s.now().UTC().Format(time.RFC3339)
	pilotSigned := in.PilotSignedAt
	if pilotSigned == "" {
		pilotSigned = nowISO
	}
	operatorSigned := in.OperatorSignedAt
	if operatorSigned == "" {
		operatorSigned = nowISO
	}

	stage := stageFromInput(in)
	stage.VolumeID = vol.ID
	stage.BlockTime = blockText
	stage.BlockTimeHours = blockHours
	stage.PilotSignedAt = pilotSigned
	stage.OperatorSignedAt = operatorSigned
	stage.Locked = true
	stage.Fingerprint = fingerprint
	stage.CIV = ClassifyCIV(in.FlightNature, in.Crew)

	created, err := s.stages.Create(ctx, stage)
	if err != nil {
		return domain.FlightStage{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "store stage")
	}

	operatorID := ""
	if len(vol.RemoteOperatorIDs) > 0 {
		operatorID = vol.RemoteOperatorIDs[0]
	}
	payload := stagePayload(in, blockText)
	payload.IDDiarioBordoVolume = vol.RemoteVolumeID
	payload.IDDiarioBordoOperador = operatorID
	payload.DataHorarioAssinaturaPiloto = pilotSigned
	payload.DataHorarioAssinaturaOperador = operatorSigned
	if remoteID := s.gateway.CreateStage(ctx, payload); remoteID != "" {
		created.RemoteStageID = remoteID
		created.RemoteOperatorID = operatorID
		if err := s.stages.Save(ctx, created); err != nil {
			return domain.FlightStage{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "link remote stage")
		}
	}

	if err := s.cascade.Apply(ctx, blockHours, in.CycleCount); err != nil {
		return domain.FlightStage{}, err
	}

	s.recorder.Record(ctx, meta.Apply(audit.Entry{
		Resource:   "stages",
		ResourceID: created.ID,
		Action:     audit.ActionCreate,
		StatusCode: 201,
		Payload: map[string]any{
			"flightNature": in.FlightNature,
			"blockTime":    blockText,
			"landingCount": in.LandingCount,
			"cycleCount":   in.CycleCount,
		},
	}))
	return created, nil
}

// Update supersedes a stage: the regulator is updated first
// (authoritative), then the old record is soft-deleted and a fresh locked
// record written in its place, keeping aircraft totals consistent via the
// block time and cycle deltas.
func (s *Service) Update(ctx context.Context, id, operatorID string, in StageInput, meta audit.RequestMeta) (domain.FlightStage, error) {
	if err := in.validate(); err != nil {
		return domain.FlightStage{}, err
	}
	old, err := s.activeStage(ctx, id)
	if err != nil {
		return domain.FlightStage{}, err
	}
	if err := checkOperator(operatorID, old); err != nil {
		return domain.FlightStage{}, err
	}
	if err := s.checkUpdateGrace(ctx, old.VolumeID); err != nil {
		return domain.FlightStage{}, err
	}

	blockText, blockHours := in.blockTime()
	newRemoteID := old.RemoteStageID
	if old.RemoteStageID != "" {
		minted, err := s.gateway.UpdateStage(ctx, old.RemoteStageID, operatorID, stagePayload(in, blockText))
		if err != nil {
			return domain.FlightStage{}, err
		}
		if minted != "" {
			newRemoteID = minted
		}
	}

	old.Deleted = true
	if err := s.stages.Save(ctx, old); err != nil {
		return domain.FlightStage{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "supersede stage")
	}

	replacement := stageFromInput(in)
	replacement.VolumeID = old.VolumeID
	replacement.BlockTime = blockText
	replacement.BlockTimeHours = blockHours
	replacement.Locked = true
	replacement.Fingerprint = old.Fingerprint
	replacement.CIV = ClassifyCIV(in.FlightNature, in.Crew)
	replacement.RemoteStageID = newRemoteID
	replacement.RemoteOperatorID = operatorID
	created, err := s.stages.Create(ctx, replacement)
	if err != nil {
		return domain.FlightStage{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "store replacement stage")
	}

	if err := s.adjustAircraftTotals(ctx, blockHours-old.BlockTimeHours, in.CycleCount-old.CycleCount); err != nil {
		return domain.FlightStage{}, err
	}

	action := audit.ActionUpdate
	justification := ""
	if in.Justification != "" {
		action = audit.ActionRectify
		justification = in.Justification
	}
	s.recorder.Record(ctx, meta.Apply(audit.Entry{
		Resource:      "stages",
		ResourceID:    id,
		Action:        action,
		StatusCode:    200,
		Justification: justification,
		Changes:       stageChanges(old, created),
	}))
	return created, nil
}

// RectifyInput is one append-only correction of a stage field.
type RectifyInput struct {
	Field         string
	NewValue      any
	Justification string
	OperatorID    string
}

var rectifiableFields = map[string]bool{
	"flightNature": true, "originIcao": true, "destinationIcao": true,
	"preparationTime": true, "takeoffTime": true, "landingTime": true,
	"shutdownTime": true, "blockTime": true, "landingCount": true,
	"cycleCount": true,
}

// Rectify appends a correction term to a stage without touching the
// recorded values or the regulator. The correction trail is the official
// record of what the original entry should have said.
func (s *Service) Rectify(ctx context.Context, id string, in RectifyInput, meta audit.RequestMeta) (domain.Correction, error) {
	if !rectifiableFields[in.Field] {
		return domain.Correction{}, pkgerrors.Newf(pkgerrors.CodeValidation, "field %q cannot be rectified", in.Field)
	}
	if len(in.Justification) < 10 {
		return domain.Correction{}, pkgerrors.New(pkgerrors.CodeValidation, "justification must have at least 10 characters")
	}
	if len(in.OperatorID) < 3 {
		return domain.Correction{}, pkgerrors.New(pkgerrors.CodeValidation, "operator id required")
	}
	stage, err := s.activeStage(ctx, id)
	if err != nil {
		return domain.Correction{}, err
	}

	correction := domain.Correction{
		Field:         in.Field,
		OldValue:      stageFieldValue(stage, in.Field),
		NewValue:      in.NewValue,
		Justification: in.Justification,
		OperatorID:    in.OperatorID,
		Timestamp:     s.now().UTC(),
	}
	stage.Corrections = append(stage.Corrections, correction)
	if err := s.stages.Save(ctx, stage); err != nil {
		return domain.Correction{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "save correction")
	}

	s.recorder.Record(ctx, meta.Apply(audit.Entry{
		Resource:      "stages",
		ResourceID:    id,
		Action:        audit.ActionRectify,
		StatusCode:    201,
		Justification: in.Justification,
		Changes: []audit.FieldChange{{
			Field:    in.Field,
			OldValue: correction.OldValue,
			NewValue: in.NewValue,
		}},
	}))
	return correction, nil
}

// DeleteResult reports what a delete did, locally and remotely.
type DeleteResult struct {
	VolumeID            string `json:"volumeId"`
	TotalMinutes        int    `json:"minutosTotaisVoo"`
	TotalLandings       int    `json:"totalPousos"`
	TotalCycles         int    `json:"totalCiclosCelula"`
	RemoteStageDeleted  bool   `json:"etapaDelete"`
	RemoteVolumeUpdated bool   `json:"volumeUpdate"`
}

// Delete removes a stage: remote delete first (authoritative), then the
// local soft delete, the clamped rollback of aircraft totals, and a
// recompute of the volume aggregates from the surviving stages. The final
// push of those aggregates to the regulator is best-effort and runs
// regardless of the volume's state.
func (s *Service) Delete(ctx context.Context, id, operatorID string, meta audit.RequestMeta) (DeleteResult, error) {
	stage, err := s.activeStage(ctx, id)
	if err != nil {
		return DeleteResult{}, err
	}
	if err := checkOperator(operatorID, stage); err != nil {
		return DeleteResult{}, err
	}

	if stage.RemoteStageID != "" {
		if err := s.gateway.DeleteStage(ctx, stage.RemoteStageID, operatorID); err != nil {
			return DeleteResult{}, err
		}
	}

	stage.Deleted = true
	if err := s.stages.Save(ctx, stage); err != nil {
		return DeleteResult{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "soft-delete stage")
	}

	if err := s.cascade.Rollback(ctx, stage.BlockTimeHours, stage.CycleCount); err != nil {
		return DeleteResult{}, err
	}

	result, err := s.recomputeVolumeAggregates(ctx, stage, operatorID)
	if err != nil {
		return DeleteResult{}, err
	}
	result.RemoteStageDeleted = true

	s.recorder.Record(ctx, meta.Apply(audit.Entry{
		Resource:   "stages",
		ResourceID: id,
		Action:     audit.ActionDelete,
		StatusCode: 200,
		Payload: map[string]any{
			"minutosTotaisVoo":  result.TotalMinutes,
			"totalPousos":       result.TotalLandings,
			"totalCiclosCelula": result.TotalCycles,
			"volumeUpdate":      result.RemoteVolumeUpdated,
		},
	}))
	return result, nil
}

// recomputeVolumeAggregates rebuilds the volume's totals from its
// non-deleted stages and decrements the per-engine figures by the deleted
// stage's contribution, clamped at zero.
func (s *Service) recomputeVolumeAggregates(ctx context.Context, deleted domain.FlightStage, operatorID string) (DeleteResult, error) {
	vol, err := s.volumes.FindByID(ctx, deleted.VolumeID)
	if err != nil {
		if sentinel.IsNotFound(err) {
			return DeleteResult{VolumeID: deleted.VolumeID}, nil
		}
		return DeleteResult{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "load volume")
	}

	remaining, err := s.stages.ListByVolume(ctx, vol.ID, false)
	if err != nil {
		return DeleteResult{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "list surviving stages")
	}
	var sumHours float64
	var sumLandings, sumCycles int
	for _, st := range remaining {
		sumHours += st.BlockTimeHours
		sumLandings += st.LandingCount
		sumCycles += st.CycleCount
	}
	result := DeleteResult{
		VolumeID:      vol.ID,
		TotalMinutes:  int(sumHours*60 + 0.5),
		TotalLandings: sumLandings,
		TotalCycles:   sumCycles,
	}

	vol.OpeningMinutes = result.TotalMinutes
	vol.OpeningLandings = result.TotalLandings
	vol.OpeningCycles = result.TotalCycles

	deltaMinutes := int(deleted.BlockTimeHours*60 + 0.5)
	if len(vol.EngineHours) > 0 {
		updated := make(map[string]string, len(vol.EngineHours))
		for engine, hours := range vol.EngineHours {
			next, err := regulator.AddEngineHours(hours, -deltaMinutes)
			if err != nil {
				s.log.Warn("unreadable engine hours figure, keeping as is",
					"volume_id", vol.ID, "engine", engine, "value", hours)
				next = hours
			}
			updated[engine] = next
		}
		vol.EngineHours = updated
	}
	if len(vol.EngineCycles) > 0 {
		updated := make(map[string]string, len(vol.EngineCycles))
		for engine, cycles := range vol.EngineCycles {
			updated[engine] = decrementCycles(cycles, deleted.CycleCount)
		}
		vol.EngineCycles = updated
	}
	if err := s.volumes.Save(ctx, vol); err != nil {
		return DeleteResult{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "save volume aggregates")
	}

	if vol.RemoteVolumeID != "" {
		err := s.gateway.UpdateVolume(ctx, vol.RemoteVolumeID, operatorID, regulator.VolumeUpdateRequest{
			NumeroVolume:      vol.Number,
			MinutosTotaisVoo:  regulator.FormatInt(result.TotalMinutes),
			TotalPousos:       regulator.FormatInt(result.TotalLandings),
			TotalCiclosCelula: regulator.FormatInt(result.TotalCycles),
			HorasVooMotor:     vol.EngineHours,
			CiclosMotor:       vol.EngineCycles,
		})
		if err != nil {
			s.log.Warn("best-effort volume aggregate push failed",
				"volume_id", vol.ID, "error", err)
		} else {
			result.RemoteVolumeUpdated = true
		}
	}
	return result, nil
}

// SignOperator records the operator countersignature, remote-first.
func (s *Service) SignOperator(ctx context.Context, id, operatorID, signedAt string, meta audit.RequestMeta) (domain.FlightStage, error) {
	if signedAt == "" {
		return domain.FlightStage{}, pkgerrors.New(pkgerrors.CodeValidation, "signature timestamp required")
	}
	stage, err := s.activeStage(ctx, id)
	if err != nil {
		return domain.FlightStage{}, err
	}
	if err := checkOperator(operatorID, stage); err != nil {
		return domain.FlightStage{}, err
	}

	if stage.RemoteStageID != "" {
		if err := s.gateway.SignStage(ctx, stage.RemoteStageID, operatorID, signedAt); err != nil {
			return domain.FlightStage{}, err
		}
	}

	stage.OperatorSignedAt = signedAt
	stage.OperatorSignDoc = operatorID
	if err := s.stages.Save(ctx, stage); err != nil {
		return domain.FlightStage{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "save signature")
	}

	s.recorder.Record(ctx, meta.Apply(audit.Entry{
		Resource:   "stages",
		ResourceID: id,
		Action:     audit.ActionSign,
		StatusCode: 200,
		Payload:    map[string]any{"dataHorarioAssinaturaOperador": signedAt},
	}))
	return stage, nil
}

// List returns the non-deleted stages of the open volume, or an empty list
// when no volume is open.
func (s *Service) List(ctx context.Context) ([]domain.FlightStage, error) {
	vol, err := s.volumes.FindOpen(ctx)
	if err != nil {
		if sentinel.IsNotFound(err) {
			return []domain.FlightStage{}, nil
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "resolve open volume")
	}
	stages, err := s.stages.ListByVolume(ctx, vol.ID, false)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "list stages")
	}
	return stages, nil
}

// ListByVolume returns a volume's stages, optionally with soft-deleted ones.
func (s *Service) ListByVolume(ctx context.Context, volumeID string, includeDeleted bool) ([]domain.FlightStage, error) {
	stages, err := s.stages.ListByVolume(ctx, volumeID, includeDeleted)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "list stages")
	}
	return stages, nil
}

// Get returns a stage, deleted or not.
func (s *Service) Get(ctx context.Context, id string) (domain.FlightStage, error) {
	stage, err := s.stages.FindByID(ctx, id)
	if err != nil {
		if sentinel.IsNotFound(err) {
			return domain.FlightStage{}, pkgerrors.New(pkgerrors.CodeNotFound, "stage not found")
		}
		return domain.FlightStage{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "load stage")
	}
	return stage, nil
}

// QueryRemote searches the regulator's stage records directly.
func (s *Service) QueryRemote(ctx context.Context, remoteVolumeID, remoteStageID string) ([]map[string]any, error) {
	return s.gateway.QueryStages(ctx, remoteVolumeID, remoteStageID)
}

func (s *Service) activeStage(ctx context.Context, id string) (domain.FlightStage, error) {
	stage, err := s.Get(ctx, id)
	if err != nil {
		return domain.FlightStage{}, err
	}
	if stage.Deleted {
		return domain.FlightStage{}, pkgerrors.New(pkgerrors.CodeNotFound, "stage not found")
	}
	return stage, nil
}

// checkUpdateGrace rejects updates to stages of volumes closed for longer
// than the grace window.
func (s *Service) checkUpdateGrace(ctx context.Context, volumeID string) error {
	vol, err := s.volumes.FindByID(ctx, volumeID)
	if err != nil {
		if sentinel.IsNotFound(err) {
			return nil
		}
		return pkgerrors.Wrap(err, pkgerrors.CodeInternal, "load volume")
	}
	if vol.Status == domain.VolumeClosed && vol.ClosedAt != nil {
		grace := time.Duration(closedVolumeGraceDays) * 24 * time.Hour
		if s.now().Sub(*vol.ClosedAt) > grace {
			return pkgerrors.New(pkgerrors.CodeConflict, "volume closed for more than 90 days")
		}
	}
	return nil
}

func (s *Service) adjustAircraftTotals(ctx context.Context, deltaHours float64, deltaCycles int) error {
	aircraft, err := s.aircraft.FindOne(ctx)
	if err != nil {
		if sentinel.IsNotFound(err) {
			return nil
		}
		return pkgerrors.Wrap(err, pkgerrors.CodeInternal, "load aircraft")
	}
	aircraft.TotalHours += deltaHours
	if aircraft.TotalHours < 0 {
		aircraft.TotalHours = 0
	}
	aircraft.TotalCycles += deltaCycles
	if aircraft.TotalCycles < 0 {
		aircraft.TotalCycles = 0
	}
	if err := s.aircraft.Save(ctx, aircraft); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.CodeInternal, "save aircraft totals")
	}
	return nil
}

func checkOperator(operatorID string, stage domain.FlightStage) error {
	if operatorID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "operator id required")
	}
	if stage.RemoteOperatorID != "" && operatorID != stage.RemoteOperatorID {
		return pkgerrors.New(pkgerrors.CodeAuthorization, "operator differs from the stage creator")
	}
	return nil
}

func stageFromInput(in StageInput) domain.FlightStage {
	return domain.FlightStage{
		FlightNature:    in.FlightNature,
		Crew:            in.Crew,
		Origin:          in.Origin,
		Destination:     in.Destination,
		PreparationTime: in.PreparationTime,
		TakeoffTime:     in.TakeoffTime,
		LandingTime:     in.LandingTime,
		ShutdownTime:    in.ShutdownTime,
		DayTime:         in.DayTime,
		NightTime:       in.NightTime,
		IFRTime:         in.IFRTime,
		IFRCTime:        in.IFRCTime,
		Headcount:       in.Headcount,
		CargoWeight:     in.CargoWeight,
		CargoUnit:       in.CargoUnit,
		FuelQuantity:    in.FuelQuantity,
		FuelUnit:        in.FuelUnit,
		NavMiles:        in.NavMiles,
		NavMinutes:      in.NavMinutes,
		LandingCount:    in.LandingCount,
		CycleCount:      in.CycleCount,
	}
}

func stagePayload(in StageInput, blockText string) regulator.StagePayload {
	payload := regulator.StagePayload{
		NaturezaVoo:              in.FlightNature,
		SiglaAerodromoDecolagem:  in.Origin.ICAO,
		LatitudeDecolagem:        in.Origin.Latitude,
		LongitudeDecolagem:       in.Origin.Longitude,
		LocalDecolagem:           in.Origin.Description,
		SiglaAerodromoPouso:      in.Destination.ICAO,
		LatitudePouso:            in.Destination.Latitude,
		LongitudePouso:           in.Destination.Longitude,
		LocalPouso:               in.Destination.Description,
		HorarioPartida:           in.PreparationTime.UTC().Format(time.RFC3339),
		HorarioCorteMotores:      in.ShutdownTime.UTC().Format(time.RFC3339),
		TempoVooTotal:            blockText,
		TempoVooDiurno:           in.DayTime,
		TempoVooNoturno:          in.NightTime,
		TempoVooIFR:              in.IFRTime,
		TempoVooIFRC:             in.IFRCTime,
		NumeroPousoEtapa:         in.LandingCount,
		NumeroCicloEtapa:         in.CycleCount,
		QuantidadePessoasVoo:     regulator.FormatInt(in.Headcount),
		CargaTransportada:        in.CargoWeight,
		UnidadeCargaTransportada: in.CargoUnit,
		UnidadeCombustivel:       in.FuelUnit,
		MilhasNavegacao:          in.NavMiles,
		MinutosNavegacao:         in.NavMinutes,
		Aeronautas:               in.Crew,
	}
	if in.FuelQuantity > 0 {
		payload.TotalCombustivel = regulator.FormatFloat(in.FuelQuantity)
	}
	if in.TakeoffTime != nil {
		payload.HorarioDecolagem = in.TakeoffTime.UTC().Format(time.RFC3339)
	}
	if in.LandingTime != nil {
		payload.HorarioPouso = in.LandingTime.UTC().Format(time.RFC3339)
	}
	return payload
}

// stageChanges diffs the headline fields between a superseded stage and its
// replacement for the audit entry.
func stageChanges(old, new domain.FlightStage) []audit.FieldChange {
	var changes []audit.FieldChange
	add := func(field string, oldValue, newValue any) {
		if fmt.Sprint(oldValue) != fmt.Sprint(newValue) {
			changes = append(changes, audit.FieldChange{Field: field, OldValue: oldValue, NewValue: newValue})
		}
	}
	add("flightNature", old.FlightNature, new.FlightNature)
	add("originIcao", old.Origin.ICAO, new.Origin.ICAO)
	add("destinationIcao", old.Destination.ICAO, new.Destination.ICAO)
	add("preparationTime", old.PreparationTime, new.PreparationTime)
	add("shutdownTime", old.ShutdownTime, new.ShutdownTime)
	add("blockTime", old.BlockTime, new.BlockTime)
	add("landingCount", old.LandingCount, new.LandingCount)
	add("cycleCount", old.CycleCount, new.CycleCount)
	add("headcount", old.Headcount, new.Headcount)
	add("fuelQuantity", old.FuelQuantity, new.FuelQuantity)
	return changes
}

func stageFieldValue(stage domain.FlightStage, field string) any {
	switch field {
	case "flightNature":
		return stage.FlightNature
	case "originIcao":
		return stage.Origin.ICAO
	case "destinationIcao":
		return stage.Destination.ICAO
	case "preparationTime":
		return stage.PreparationTime
	case "takeoffTime":
		return stage.TakeoffTime
	case "landingTime":
		return stage.LandingTime
	case "shutdownTime":
		return stage.ShutdownTime
	case "blockTime":
		return stage.BlockTime
	case "landingCount":
		return stage.LandingCount
	case "cycleCount":
		return stage.CycleCount
	default:
		return nil
	}
}

func decrementCycles(text string, delta int) string {
	n := 0
	fmt.Sscanf(text, "%d", &n)
	n -= delta
	if n < 0 {
		n = 0
	}
	return regulator.FormatInt(n)
}
