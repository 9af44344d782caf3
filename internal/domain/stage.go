package domain

import "time"

// CrewMember is one crew entry on a flight stage. Role carries the
// regulator's numeric role code ("1" P1, "3" I1, "8" V1, "9" V2, ...).
type CrewMember struct {
	Brazilian       bool   `json:"brazilian"`
	DocumentNumber  string `json:"documentNumber"`
	Name            string `json:"name,omitempty"`
	ForeignName     string `json:"foreignName,omitempty"`
	ForeignEmail    string `json:"foreignEmail,omitempty"`
	Role            string `json:"role"`
	ReportTime      string `json:"reportTime,omitempty"`
	BaseICAO        string `json:"baseIcao,omitempty"`
	BaseDescription string `json:"baseDescription,omitempty"`
}

// Place describes an origin or destination: an ICAO code, coordinates, or a
// free-text locality — at least one form must identify it.
type Place struct {
	ICAO        string `json:"icao,omitempty"`
	Latitude    string `json:"latitude,omitempty"`
	Longitude   string `json:"longitude,omitempty"`
	Description string `json:"description,omitempty"`
}

// Identified reports whether the place is identified by any accepted form.
func (p Place) Identified() bool {
	return p.ICAO != "" || (p.Latitude != "" && p.Longitude != "") || p.Description != ""
}

// CIVClassification is advisory crew-role metadata attached for regulatory
// review. It never gates an operation.
type CIVClassification struct {
	Code  string `json:"code"`
	Notes string `json:"notes"`
}

// Correction is one append-only rectification of an immutable stage field.
type Correction struct {
	Field         string    `json:"field"`
	OldValue      any       `json:"oldValue"`
	NewValue      any       `json:"newValue"`
	Justification string    `json:"justification"`
	OperatorID    string    `json:"operatorId"`
	Timestamp     time.Time `json:"timestamp"`
}

// FlightStage is one flight segment recorded inside a volume. Stages are
// locked from creation: post-creation change happens only via supersession,
// append-only corrections, or soft delete.
type FlightStage struct {
	ID       string
	VolumeID string

	FlightNature string
	Crew         []CrewMember

	Origin      Place
	Destination Place

	// The four ordered event times. Takeoff and Landing are present only when
	// the stage reports a landing.
	PreparationTime time.Time
	TakeoffTime     *time.Time
	LandingTime     *time.Time
	ShutdownTime    time.Time

	// BlockTime is the floored HH:MM rendering; BlockTimeHours the fractional
	// figure used for maintenance arithmetic.
	BlockTime      string
	BlockTimeHours float64

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

	PilotSignedAt    string
	OperatorSignedAt string
	OperatorSignDoc  string

	Locked      bool
	Fingerprint string
	CIV         *CIVClassification
	Corrections []Correction

	RemoteStageID    string
	RemoteOperatorID string

	Deleted bool

	CreatedAt time.Time
	UpdatedAt time.Time
}
