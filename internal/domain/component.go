package domain

import "time"

// ComponentStatus reflects a life-limited component's remaining margin.
type ComponentStatus string

const (
	ComponentOK          ComponentStatus = "OK"
	ComponentCritical    ComponentStatus = "CRITICO"
	ComponentExpired     ComponentStatus = "VENCIDO"
	ComponentMaintenance ComponentStatus = "EM_MANUTENCAO"
	ComponentRemoved     ComponentStatus = "REMOVIDO"
)

// criticalThresholdHours is the remaining-hours figure below which a
// component is flagged CRITICO.
const criticalThresholdHours = 50

// StatusForRemaining maps a remaining-hours figure to its status.
// Negative margins are VENCIDO, under 50h CRITICO, otherwise OK.
func StatusForRemaining(hours float64) ComponentStatus {
	switch {
	case hours < 0:
		return ComponentExpired
	case hours < criticalThresholdHours:
		return ComponentCritical
	default:
		return ComponentOK
	}
}

// Component is a life-limited component installed on the aircraft. The
// maintenance cascade continuously burns down RemainingHours.
type Component struct {
	ID         string
	AircraftID string

	PartNumber   string
	SerialNumber string
	Description  string

	InstalledDate   string
	InstalledHours  float64
	InstalledCycles int

	LifeLimitHours    float64
	LifeLimitCycles   int
	CalendarLimitDays int

	// RemainingHours is nil for components without an hour-based life limit;
	// the cascade skips those.
	RemainingHours *float64
	RemainingDays  *int

	Status     ComponentStatus
	ATAChapter string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ComponentSnapshot is an append-only point-in-time record written after each
// cascade step, capturing the applied delta so the burn-down history can be
// reconstructed.
type ComponentSnapshot struct {
	ID             string
	ComponentID    string
	RemainingHours float64
	Status         ComponentStatus
	DeltaHours     float64
	TakenAt        time.Time
}
