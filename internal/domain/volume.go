package domain

import "time"

// VolumeStatus tracks the logbook volume lifecycle. A volume is created
// ABERTO and transitions exactly once to FECHADO.
type VolumeStatus string

const (
	VolumeOpen   VolumeStatus = "ABERTO"
	VolumeClosed VolumeStatus = "FECHADO"
)

// Volume is a sequential logbook container. At most one volume is ABERTO
// system-wide; a volume is mutable only while ABERTO.
type Volume struct {
	ID                   string
	AircraftRegistration string
	Number               string

	OpenedAt time.Time
	ClosedAt *time.Time

	// Opening figures carried over from the previous volume.
	OpeningMinutes  int
	OpeningLandings int
	OpeningCycles   int

	// EngineHours maps engine position to an "H:MM" figure; EngineCycles maps
	// position to a decimal-string cycle count. Both use the regulator's
	// textual representations and are recomputed arithmetically, never by
	// string surgery.
	EngineHours  map[string]string
	EngineCycles map[string]string

	Status       VolumeStatus
	OpeningNotes string
	ClosingNotes string

	RemoteVolumeID    string
	RemoteOperatorIDs []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Open reports whether the volume still accepts stages and edits.
func (v *Volume) Open() bool { return v.Status == VolumeOpen }
