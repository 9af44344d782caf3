package domain

import "time"

// AircraftStatus is the operational status of the tracked airframe.
type AircraftStatus string

const (
	AircraftActive      AircraftStatus = "ATIVO"
	AircraftParked      AircraftStatus = "PARADO"
	AircraftMaintenance AircraftStatus = "MANUTENCAO"
)

// Aircraft is the single airframe aggregate the ledger tracks. Totals are
// mutated only by the maintenance cascade and direct administrative edits,
// and must stay non-negative.
type Aircraft struct {
	ID              string
	Registration    string
	MSN             string
	Model           string
	ManufactureYear int

	TotalHours  float64
	TotalCycles int

	// NextInspectionDate and CertificateValidity are ISO dates (YYYY-MM-DD).
	NextInspectionDate  string
	CertificateValidity string

	Status AircraftStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}
