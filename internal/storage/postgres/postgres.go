package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"aeroledger/internal/domain"
	txcontext "aeroledger/pkg/platform/tx"
	"aeroledger/pkg/platform/sentinel"
)

// Store implements the storage interfaces on PostgreSQL. Writes issued inside
// a cascade transaction are routed through the sql.Tx carried in context.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// RunInTx opens a transaction, threads it through context, and rolls back on
// any failure so cascade writes are all-or-nothing.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %w: %v", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// --- aircraft ---

func (s *Store) FindOne(ctx context.Context) (domain.Aircraft, error) {
	row := s.execer(ctx).QueryRowContext(ctx, `
		SELECT id, registration, msn, model, manufacture_year, total_hours,
		       total_cycles, next_inspection_date, certificate_validity,
		       status, created_at, updated_at
		FROM aircraft LIMIT 1`)
	var a domain.Aircraft
	err := row.Scan(&a.ID, &a.Registration, &a.MSN, &a.Model, &a.ManufactureYear,
		&a.TotalHours, &a.TotalCycles, &a.NextInspectionDate,
		&a.CertificateValidity, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Aircraft{}, sentinel.ErrNotFound
	}
	if err != nil {
		return domain.Aircraft{}, fmt.Errorf("find aircraft: %w", err)
	}
	return a, nil
}

func (s *Store) Save(ctx context.Context, a domain.Aircraft) error {
	now := time.Now().UTC()
	if a.ID == "" {
		a.ID = uuid.NewString()
		_, err := s.execer(ctx).ExecContext(ctx, `
			INSERT INTO aircraft (id, registration, msn, model, manufacture_year,
				total_hours, total_cycles, next_inspection_date,
				certificate_validity, status, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)`,
			a.ID, a.Registration, a.MSN, a.Model, a.ManufactureYear,
			a.TotalHours, a.TotalCycles, a.NextInspectionDate,
			a.CertificateValidity, a.Status, now)
		if err != nil {
			return fmt.Errorf("insert aircraft: %w", err)
		}
		return nil
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE aircraft SET total_hours=$2, total_cycles=$3,
			next_inspection_date=$4, certificate_validity=$5, status=$6,
			updated_at=$7
		WHERE id=$1`,
		a.ID, a.TotalHours, a.TotalCycles, a.NextInspectionDate,
		a.CertificateValidity, a.Status, now)
	if err != nil {
		return fmt.Errorf("update aircraft: %w", err)
	}
	return nil
}

// --- components ---

func (s *Store) ListWithRemaining(ctx context.Context) ([]domain.Component, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, aircraft_id, part_number, serial_number, description,
		       installed_date, installed_hours, installed_cycles,
		       life_limit_hours, life_limit_cycles, calendar_limit_days,
		       remaining_hours, remaining_days, status, ata_chapter,
		       created_at, updated_at
		FROM components
		WHERE remaining_hours IS NOT NULL
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}
	defer rows.Close()
	var out []domain.Component
	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanComponent(rows *sql.Rows) (domain.Component, error) {
	var c domain.Component
	var remaining sql.NullFloat64
	var remainingDays sql.NullInt64
	err := rows.Scan(&c.ID, &c.AircraftID, &c.PartNumber, &c.SerialNumber,
		&c.Description, &c.InstalledDate, &c.InstalledHours, &c.InstalledCycles,
		&c.LifeLimitHours, &c.LifeLimitCycles, &c.CalendarLimitDays,
		&remaining, &remainingDays, &c.Status, &c.ATAChapter,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return domain.Component{}, fmt.Errorf("scan component: %w", err)
	}
	if remaining.Valid {
		v := remaining.Float64
		c.RemainingHours = &v
	}
	if remainingDays.Valid {
		v := int(remainingDays.Int64)
		c.RemainingDays = &v
	}
	return c, nil
}

func (s *Store) ListComponentsByAircraft(ctx context.Context, aircraftID string) ([]domain.Component, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, aircraft_id, part_number, serial_number, description,
		       installed_date, installed_hours, installed_cycles,
		       life_limit_hours, life_limit_cycles, calendar_limit_days,
		       remaining_hours, remaining_days, status, ata_chapter,
		       created_at, updated_at
		FROM components
		WHERE aircraft_id=$1 OR $1=''
		ORDER BY id`, aircraftID)
	if err != nil {
		return nil, fmt.Errorf("list components: %w", err)
	}
	defer rows.Close()
	var out []domain.Component
	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CountByStatus(ctx context.Context, status domain.ComponentStatus) (int, error) {
	var n int
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM components WHERE status=$1`, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count components: %w", err)
	}
	return n, nil
}

func (s *Store) SaveComponent(ctx context.Context, c domain.Component) error {
	now := time.Now().UTC()
	var remaining any
	if c.RemainingHours != nil {
		remaining = *c.RemainingHours
	}
	var remainingDays any
	if c.RemainingDays != nil {
		remainingDays = *c.RemainingDays
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
		_, err := s.execer(ctx).ExecContext(ctx, `
			INSERT INTO components (id, aircraft_id, part_number, serial_number,
				description, installed_date, installed_hours, installed_cycles,
				life_limit_hours, life_limit_cycles, calendar_limit_days,
				remaining_hours, remaining_days, status, ata_chapter,
				created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$16)`,
			c.ID, c.AircraftID, c.PartNumber, c.SerialNumber, c.Description,
			c.InstalledDate, c.InstalledHours, c.InstalledCycles,
			c.LifeLimitHours, c.LifeLimitCycles, c.CalendarLimitDays,
			remaining, remainingDays, c.Status, c.ATAChapter, now)
		if err != nil {
			return fmt.Errorf("insert component: %w", err)
		}
		return nil
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE components SET remaining_hours=$2, remaining_days=$3, status=$4,
			updated_at=$5
		WHERE id=$1`,
		c.ID, remaining, remainingDays, c.Status, now)
	if err != nil {
		return fmt.Errorf("update component: %w", err)
	}
	return nil
}

// --- snapshots ---

func (s *Store) CreateSnapshot(ctx context.Context, snap domain.ComponentSnapshot) (domain.ComponentSnapshot, error) {
	snap.ID = uuid.NewString()
	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now().UTC()
	}
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO component_snapshots (id, component_id, remaining_hours,
			status, delta_hours, taken_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		snap.ID, snap.ComponentID, snap.RemainingHours, snap.Status,
		snap.DeltaHours, snap.TakenAt)
	if err != nil {
		return domain.ComponentSnapshot{}, fmt.Errorf("insert snapshot: %w", err)
	}
	return snap, nil
}

func (s *Store) ListByComponent(ctx context.Context, componentID string) ([]domain.ComponentSnapshot, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, `
		SELECT id, component_id, remaining_hours, status, delta_hours, taken_at
		FROM component_snapshots WHERE component_id=$1 ORDER BY taken_at`,
		componentID)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()
	var out []domain.ComponentSnapshot
	for rows.Next() {
		var sn domain.ComponentSnapshot
		if err := rows.Scan(&sn.ID, &sn.ComponentID, &sn.RemainingHours,
			&sn.Status, &sn.DeltaHours, &sn.TakenAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, sn)
	}
	return out, rows.Err()
}

// --- volumes ---

func (s *Store) CreateVolume(ctx context.Context, v domain.Volume) (domain.Volume, error) {
	v.ID = uuid.NewString()
	now := time.Now().UTC()
	v.CreatedAt = now
	v.UpdatedAt = now
	engineHours, err := json.Marshal(v.EngineHours)
	if err != nil {
		return domain.Volume{}, fmt.Errorf("marshal engine hours: %w", err)
	}
	engineCycles, err := json.Marshal(v.EngineCycles)
	if err != nil {
		return domain.Volume{}, fmt.Errorf("marshal engine cycles: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO volumes (id, aircraft_registration, number, opened_at,
			closed_at, opening_minutes, opening_landings, opening_cycles,
			engine_hours, engine_cycles, status, opening_notes, closing_notes,
			remote_volume_id, remote_operator_ids, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$16)`,
		v.ID, v.AircraftRegistration, v.Number, v.OpenedAt, v.ClosedAt,
		v.OpeningMinutes, v.OpeningLandings, v.OpeningCycles,
		engineHours, engineCycles, v.Status, v.OpeningNotes, v.ClosingNotes,
		v.RemoteVolumeID, pq.Array(v.RemoteOperatorIDs), now)
	if err != nil {
		return domain.Volume{}, fmt.Errorf("insert volume: %w", err)
	}
	return v, nil
}

func (s *Store) SaveVolume(ctx context.Context, v domain.Volume) error {
	engineHours, err := json.Marshal(v.EngineHours)
	if err != nil {
		return fmt.Errorf("marshal engine hours: %w", err)
	}
	engineCycles, err := json.Marshal(v.EngineCycles)
	if err != nil {
		return fmt.Errorf("marshal engine cycles: %w", err)
	}
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE volumes SET number=$2, closed_at=$3, opening_minutes=$4,
			opening_landings=$5, opening_cycles=$6, engine_hours=$7,
			engine_cycles=$8, status=$9, opening_notes=$10, closing_notes=$11,
			remote_volume_id=$12, remote_operator_ids=$13, updated_at=$14
		WHERE id=$1`,
		v.ID, v.Number, v.ClosedAt, v.OpeningMinutes, v.OpeningLandings,
		v.OpeningCycles, engineHours, engineCycles, v.Status, v.OpeningNotes,
		v.ClosingNotes, v.RemoteVolumeID, pq.Array(v.RemoteOperatorIDs),
		time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update volume: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const volumeColumns = `id, aircraft_registration, number, opened_at, closed_at,
	opening_minutes, opening_landings, opening_cycles, engine_hours,
	engine_cycles, status, opening_notes, closing_notes, remote_volume_id,
	remote_operator_ids, created_at, updated_at`

func scanVolume(row interface{ Scan(...any) error }) (domain.Volume, error) {
	var v domain.Volume
	var engineHours, engineCycles []byte
	var closedAt sql.NullTime
	err := row.Scan(&v.ID, &v.AircraftRegistration, &v.Number, &v.OpenedAt,
		&closedAt, &v.OpeningMinutes, &v.OpeningLandings, &v.OpeningCycles,
		&engineHours, &engineCycles, &v.Status, &v.OpeningNotes,
		&v.ClosingNotes, &v.RemoteVolumeID, pq.Array(&v.RemoteOperatorIDs),
		&v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Volume{}, sentinel.ErrNotFound
	}
	if err != nil {
		return domain.Volume{}, fmt.Errorf("scan volume: %w", err)
	}
	if closedAt.Valid {
		t := closedAt.Time
		v.ClosedAt = &t
	}
	if len(engineHours) > 0 {
		if err := json.Unmarshal(engineHours, &v.EngineHours); err != nil {
			return domain.Volume{}, fmt.Errorf("decode engine hours: %w", err)
		}
	}
	if len(engineCycles) > 0 {
		if err := json.Unmarshal(engineCycles, &v.EngineCycles); err != nil {
			return domain.Volume{}, fmt.Errorf("decode engine cycles: %w", err)
		}
	}
	return v, nil
}

func (s *Store) FindVolumeByID(ctx context.Context, id string) (domain.Volume, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+volumeColumns+` FROM volumes WHERE id=$1`, id)
	return scanVolume(row)
}

func (s *Store) FindOpen(ctx context.Context) (domain.Volume, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+volumeColumns+` FROM volumes WHERE status=$1 ORDER BY created_at LIMIT 1`,
		domain.VolumeOpen)
	return scanVolume(row)
}

func (s *Store) ListVolumes(ctx context.Context) ([]domain.Volume, error) {
	rows, err := s.execer(ctx).QueryContext(ctx,
		`SELECT `+volumeColumns+` FROM volumes ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list volumes: %w", err)
	}
	defer rows.Close()
	var out []domain.Volume
	for rows.Next() {
		v, err := scanVolume(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// --- flight stages ---

// stageDoc is the JSON projection of the stage fields that do not merit their
// own columns. Keeping them in one jsonb column mirrors how unevenly the
// regulator payload is queried: only times, totals and linkage are filtered on.
type stageDoc struct {
	FlightNature string                    `json:"flightNature"`
	Crew         []domain.CrewMember       `json:"crew"`
	Origin       domain.Place              `json:"origin"`
	Destination  domain.Place              `json:"destination"`
	DayTime      string                    `json:"dayTime,omitempty"`
	NightTime    string                    `json:"nightTime,omitempty"`
	IFRTime      string                    `json:"ifrTime,omitempty"`
	IFRCTime     string                    `json:"ifrcTime,omitempty"`
	Headcount    int                       `json:"headcount"`
	CargoWeight  string                    `json:"cargoWeight,omitempty"`
	CargoUnit    string                    `json:"cargoUnit,omitempty"`
	FuelQuantity float64                   `json:"fuelQuantity"`
	FuelUnit     string                    `json:"fuelUnit"`
	NavMiles     string                    `json:"navMiles,omitempty"`
	NavMinutes   string                    `json:"navMinutes,omitempty"`
	PilotSigned  string                    `json:"pilotSignedAt,omitempty"`
	OperSigned   string                    `json:"operatorSignedAt,omitempty"`
	OperSignDoc  string                    `json:"operatorSignDoc,omitempty"`
	CIV          *domain.CIVClassification `json:"civ,omitempty"`
	Corrections  []domain.Correction       `json:"corrections,omitempty"`
}

func stageToDoc(st domain.FlightStage) stageDoc {
	return stageDoc{
		FlightNature: st.FlightNature, Crew: st.Crew,
		Origin: st.Origin, Destination: st.Destination,
		DayTime: st.DayTime, NightTime: st.NightTime,
		IFRTime: st.IFRTime, IFRCTime: st.IFRCTime,
		Headcount: st.Headcount, CargoWeight: st.CargoWeight,
		CargoUnit: st.CargoUnit, FuelQuantity: st.FuelQuantity,
		FuelUnit: st.FuelUnit, NavMiles: st.NavMiles,
		NavMinutes: st.NavMinutes, PilotSigned: st.PilotSignedAt,
		OperSigned: st.OperatorSignedAt, OperSignDoc: st.OperatorSignDoc,
		CIV: st.CIV, Corrections: st.Corrections,
	}
}

func (d stageDoc) applyTo(st *domain.FlightStage) {
	st.FlightNature = d.FlightNature
	st.Crew = d.Crew
	st.Origin = d.Origin
	st.Destination = d.Destination
	st.DayTime, st.NightTime = d.DayTime, d.NightTime
	st.IFRTime, st.IFRCTime = d.IFRTime, d.IFRCTime
	st.Headcount = d.Headcount
	st.CargoWeight, st.CargoUnit = d.CargoWeight, d.CargoUnit
	st.FuelQuantity, st.FuelUnit = d.FuelQuantity, d.FuelUnit
	st.NavMiles, st.NavMinutes = d.NavMiles, d.NavMinutes
	st.PilotSignedAt, st.OperatorSignedAt = d.PilotSigned, d.OperSigned
	st.OperatorSignDoc = d.OperSignDoc
	st.CIV = d.CIV
	st.Corrections = d.Corrections
}

func (s *Store) CreateStage(ctx context.Context, st domain.FlightStage) (domain.FlightStage, error) {
	st.ID = uuid.NewString()
	now := time.Now().UTC()
	st.CreatedAt = now
	st.UpdatedAt = now
	doc, err := json.Marshal(stageToDoc(st))
	if err != nil {
		return domain.FlightStage{}, fmt.Errorf("marshal stage doc: %w", err)
	}
	_, err = s.execer(ctx).ExecContext(ctx, `
		INSERT INTO flight_stages (id, volume_id, preparation_time,
			takeoff_time, landing_time, shutdown_time, block_time,
			block_time_hours, landing_count, cycle_count, locked, fingerprint,
			remote_stage_id, remote_operator_id, deleted, doc, created_at,
			updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$17)`,
		st.ID, st.VolumeID, st.PreparationTime, st.TakeoffTime, st.LandingTime,
		st.ShutdownTime, st.BlockTime, st.BlockTimeHours, st.LandingCount,
		st.CycleCount, st.Locked, st.Fingerprint, st.RemoteStageID,
		st.RemoteOperatorID, st.Deleted, doc, now)
	if err != nil {
		return domain.FlightStage{}, fmt.Errorf("insert stage: %w", err)
	}
	return st, nil
}

func (s *Store) SaveStage(ctx context.Context, st domain.FlightStage) error {
	doc, err := json.Marshal(stageToDoc(st))
	if err != nil {
		return fmt.Errorf("marshal stage doc: %w", err)
	}
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE flight_stages SET block_time=$2, block_time_hours=$3,
			landing_count=$4, cycle_count=$5, locked=$6, fingerprint=$7,
			remote_stage_id=$8, remote_operator_id=$9, deleted=$10, doc=$11,
			updated_at=$12
		WHERE id=$1`,
		st.ID, st.BlockTime, st.BlockTimeHours, st.LandingCount, st.CycleCount,
		st.Locked, st.Fingerprint, st.RemoteStageID, st.RemoteOperatorID,
		st.Deleted, doc, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update stage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

const stageColumns = `id, volume_id, preparation_time, takeoff_time,
	landing_time, shutdown_time, block_time, block_time_hours, landing_count,
	cycle_count, locked, fingerprint, remote_stage_id, remote_operator_id,
	deleted, doc, created_at, updated_at`

func scanStage(row interface{ Scan(...any) error }) (domain.FlightStage, error) {
	var st domain.FlightStage
	var takeoff, landing sql.NullTime
	var doc []byte
	err := row.Scan(&st.ID, &st.VolumeID, &st.PreparationTime, &takeoff,
		&landing, &st.ShutdownTime, &st.BlockTime, &st.BlockTimeHours,
		&st.LandingCount, &st.CycleCount, &st.Locked, &st.Fingerprint,
		&st.RemoteStageID, &st.RemoteOperatorID, &st.Deleted, &doc,
		&st.CreatedAt, &st.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FlightStage{}, sentinel.ErrNotFound
	}
	if err != nil {
		return domain.FlightStage{}, fmt.Errorf("scan stage: %w", err)
	}
	if takeoff.Valid {
		t := takeoff.Time
		st.TakeoffTime = &t
	}
	if landing.Valid {
		t := landing.Time
		st.LandingTime = &t
	}
	var d stageDoc
	if len(doc) > 0 {
		if err := json.Unmarshal(doc, &d); err != nil {
			return domain.FlightStage{}, fmt.Errorf("decode stage doc: %w", err)
		}
	}
	d.applyTo(&st)
	return st, nil
}

func (s *Store) FindStageByID(ctx context.Context, id string) (domain.FlightStage, error) {
	row := s.execer(ctx).QueryRowContext(ctx,
		`SELECT `+stageColumns+` FROM flight_stages WHERE id=$1`, id)
	return scanStage(row)
}

func (s *Store) ListByVolume(ctx context.Context, volumeID string, includeDeleted bool) ([]domain.FlightStage, error) {
	query := `SELECT ` + stageColumns + ` FROM flight_stages WHERE volume_id=$1`
	if !includeDeleted {
		query += ` AND NOT deleted`
	}
	query += ` ORDER BY created_at`
	rows, err := s.execer(ctx).QueryContext(ctx, query, volumeID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()
	var out []domain.FlightStage
	for rows.Next() {
		st, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}
