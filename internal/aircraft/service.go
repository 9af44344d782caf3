package aircraft

import (
	"context"
	"log/slog"

	"aeroledger/internal/audit"
	"aeroledger/internal/domain"
	"aeroledger/internal/storage"
	pkgerrors "aeroledger/pkg/domain-errors"
	"aeroledger/pkg/platform/sentinel"
)

// Service exposes the single tracked airframe for reads and administrative
// edits. Lifetime totals normally move only through the maintenance cascade;
// a direct patch here is the escape hatch for corrections and is audited.
type Service struct {
	aircraft   storage.AircraftStore
	components storage.ComponentStore
	recorder   audit.Recorder
	log        *slog.Logger
}

func NewService(aircraft storage.AircraftStore, components storage.ComponentStore, recorder audit.Recorder, log *slog.Logger) *Service {
	return &Service{aircraft: aircraft, components: components, recorder: recorder, log: log}
}

func (s *Service) Get(ctx context.Context) (domain.Aircraft, error) {
	aircraft, err := s.aircraft.FindOne(ctx)
	if err != nil {
		if sentinel.IsNotFound(err) {
			return domain.Aircraft{}, pkgerrors.New(pkgerrors.CodeNotFound, "aircraft not initialized")
		}
		return domain.Aircraft{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "load aircraft")
	}
	return aircraft, nil
}

// PatchInput updates administrative fields; nil fields are left untouched.
type PatchInput struct {
	TotalHours          *float64               `json:"horasTotaisVoo"`
	TotalCycles         *int                   `json:"ciclosTotaisCelula"`
	NextInspectionDate  *string                `json:"proximaInspecao"`
	CertificateValidity *string                `json:"validadeCA"`
	Status              *domain.AircraftStatus `json:"status"`
}

func (in PatchInput) validate() error {
	if in.TotalHours != nil && *in.TotalHours < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "total hours must be non-negative")
	}
	if in.TotalCycles != nil && *in.TotalCycles < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "total cycles must be non-negative")
	}
	if in.Status != nil {
		switch *in.Status {
		case domain.AircraftActive, domain.AircraftParked, domain.AircraftMaintenance:
		default:
			return pkgerrors.Newf(pkgerrors.CodeValidation, "unknown aircraft status %q", *in.Status)
		}
	}
	return nil
}

// Patch applies an administrative edit and records the field changes.
func (s *Service) Patch(ctx context.Context, in PatchInput, meta audit.RequestMeta) (domain.Aircraft, error) {
	if err := in.validate(); err != nil {
		return domain.Aircraft{}, err
	}
	aircraft, err := s.Get(ctx)
	if err != nil {
		return domain.Aircraft{}, err
	}

	var changes []audit.FieldChange
	if in.TotalHours != nil && *in.TotalHours != aircraft.TotalHours {
		changes = append(changes, audit.FieldChange{Field: "totalHours", OldValue: aircraft.TotalHours, NewValue: *in.TotalHours})
		aircraft.TotalHours = *in.TotalHours
	}
	if in.TotalCycles != nil && *in.TotalCycles != aircraft.TotalCycles {
		changes = append(changes, audit.FieldChange{Field: "totalCycles", OldValue: aircraft.TotalCycles, NewValue: *in.TotalCycles})
		aircraft.TotalCycles = *in.TotalCycles
	}
	if in.NextInspectionDate != nil && *in.NextInspectionDate != aircraft.NextInspectionDate {
		changes = append(changes, audit.FieldChange{Field: "nextInspectionDate", OldValue: aircraft.NextInspectionDate, NewValue: *in.NextInspectionDate})
		aircraft.NextInspectionDate = *in.NextInspectionDate
	}
	if in.CertificateValidity != nil && *in.CertificateValidity != aircraft.CertificateValidity {
		changes = append(changes, audit.FieldChange{Field: "certificateValidity", OldValue: aircraft.CertificateValidity, NewValue: *in.CertificateValidity})
		aircraft.CertificateValidity = *in.CertificateValidity
	}
	if in.Status != nil && *in.Status != aircraft.Status {
		changes = append(changes, audit.FieldChange{Field: "status", OldValue: aircraft.Status, NewValue: *in.Status})
		aircraft.Status = *in.Status
	}
	if len(changes) == 0 {
		return aircraft, nil
	}

	if err := s.aircraft.Save(ctx, aircraft); err != nil {
		return domain.Aircraft{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "save aircraft")
	}
	s.recorder.Record(ctx, meta.Apply(audit.Entry{
		Resource:   "aircraft",
		ResourceID: aircraft.ID,
		Action:     audit.ActionUpdate,
		StatusCode: 200,
		Changes:    changes,
	}))
	return aircraft, nil
}

// Components lists the airframe's installed components.
func (s *Service) Components(ctx context.Context) ([]domain.Component, error) {
	aircraft, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	components, err := s.components.ListByAircraft(ctx, aircraft.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "list components")
	}
	return components, nil
}
