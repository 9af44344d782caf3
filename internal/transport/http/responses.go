package httptransport

import (
	"time"

	"aeroledger/internal/domain"
)

// Response shapes keep the API's field names stable independently of the
// domain structs. Names follow the logbook's Portuguese vocabulary.

type volumeResponse struct {
	ID                   string            `json:"id"`
	AircraftRegistration string            `json:"matriculaAeronave"`
	Number               string            `json:"numeroVolume"`
	Status               string            `json:"status"`
	OpenedAt             time.Time         `json:"dataAbertura"`
	ClosedAt             *time.Time        `json:"dataFechamento,omitempty"`
	OpeningMinutes       int               `json:"minutosTotaisVoo"`
	OpeningLandings      int               `json:"totalPousos"`
	OpeningCycles        int               `json:"totalCiclosCelula"`
	EngineHours          map[string]string `json:"horasVooMotor,omitempty"`
	EngineCycles         map[string]string `json:"ciclosMotor,omitempty"`
	OpeningNotes         string            `json:"observacoesAbertura,omitempty"`
	ClosingNotes         string            `json:"observacoesFechamento,omitempty"`
	RemoteVolumeID       string            `json:"idDiarioBordoVolume,omitempty"`
	RemoteOperatorIDs    []string          `json:"idsDiarioBordoOperador,omitempty"`
}

func fromVolume(v domain.Volume) volumeResponse {
	return volumeResponse{
		ID:                   v.ID,
		AircraftRegistration: v.AircraftRegistration,
		Number:               v.Number,
		Status:               string(v.Status),
		OpenedAt:             v.OpenedAt,
		ClosedAt:             v.ClosedAt,
		OpeningMinutes:       v.OpeningMinutes,
		OpeningLandings:      v.OpeningLandings,
		OpeningCycles:        v.OpeningCycles,
		EngineHours:          v.EngineHours,
		EngineCycles:         v.EngineCycles,
		OpeningNotes:         v.OpeningNotes,
		ClosingNotes:         v.ClosingNotes,
		RemoteVolumeID:       v.RemoteVolumeID,
		RemoteOperatorIDs:    v.RemoteOperatorIDs,
	}
}

func fromVolumes(vs []domain.Volume) []volumeResponse {
	out := make([]volumeResponse, 0, len(vs))
	for _, v := range vs {
		out = append(out, fromVolume(v))
	}
	return out
}

type stageResponse struct {
	ID       string `json:"id"`
	VolumeID string `json:"volumeId"`

	FlightNature string              `json:"naturezaVoo"`
	Crew         []domain.CrewMember `json:"aeronautas"`

	Origin      domain.Place `json:"origem"`
	Destination domain.Place `json:"destino"`

	PreparationTime time.Time  `json:"horarioPartida"`
	TakeoffTime     *time.Time `json:"horarioDecolagem,omitempty"`
	LandingTime     *time.Time `json:"horarioPouso,omitempty"`
	ShutdownTime    time.Time  `json:"horarioCorteMotores"`

	BlockTime string `json:"tempoVooTotal"`

	DayTime   string `json:"tempoVooDiurno,omitempty"`
	NightTime string `json:"tempoVooNoturno,omitempty"`
	IFRTime   string `json:"tempoVooIFR,omitempty"`
	IFRCTime  string `json:"tempoVooIFRC,omitempty"`

	Headcount    int     `json:"quantidadePessoasVoo,omitempty"`
	CargoWeight  string  `json:"cargaTransportada,omitempty"`
	CargoUnit    string  `json:"unidadeCargaTransportada,omitempty"`
	FuelQuantity float64 `json:"totalCombustivel,omitempty"`
	FuelUnit     string  `json:"unidadeCombustivel,omitempty"`
	NavMiles     string  `json:"milhasNavegacao,omitempty"`
	NavMinutes   string  `json:"minutosNavegacao,omitempty"`

	LandingCount int `json:"numeroPousoEtapa"`
	CycleCount   int `json:"numeroCicloEtapa"`

	PilotSignedAt    string `json:"dataHorarioAssinaturaPiloto,omitempty"`
	OperatorSignedAt string `json:"dataHorarioAssinaturaOperador,omitempty"`

	Locked      bool                      `json:"locked"`
	Fingerprint string                    `json:"fingerprint"`
	CIV         *domain.CIVClassification `json:"civ,omitempty"`
	Corrections []domain.Correction       `json:"correcoes,omitempty"`

	RemoteStageID string `json:"idDiarioBordoEtapa,omitempty"`
	Deleted       bool   `json:"deleted,omitempty"`
}

func fromStage(s domain.FlightStage) stageResponse {
	return stageResponse{
		ID:               s.ID,
		VolumeID:         s.VolumeID,
		FlightNature:     s.FlightNature,
		Crew:             s.Crew,
		Origin:           s.Origin,
		Destination:      s.Destination,
		PreparationTime:  s.PreparationTime,
		TakeoffTime:      s.TakeoffTime,
		LandingTime:      s.LandingTime,
		ShutdownTime:     s.ShutdownTime,
		BlockTime:        s.BlockTime,
		DayTime:          s.DayTime,
		NightTime:        s.NightTime,
		IFRTime:          s.IFRTime,
		IFRCTime:         s.IFRCTime,
		Headcount:        s.Headcount,
		CargoWeight:      s.CargoWeight,
		CargoUnit:        s.CargoUnit,
		FuelQuantity:     s.FuelQuantity,
		FuelUnit:         s.FuelUnit,
		NavMiles:         s.NavMiles,
		NavMinutes:       s.NavMinutes,
		LandingCount:     s.LandingCount,
		CycleCount:       s.CycleCount,
		PilotSignedAt:    s.PilotSignedAt,
		OperatorSignedAt: s.OperatorSignedAt,
		Locked:           s.Locked,
		Fingerprint:      s.Fingerprint,
		CIV:              s.CIV,
		Corrections:      s.Corrections,
		RemoteStageID:    s.RemoteStageID,
		Deleted:          s.Deleted,
	}
}

func fromStages(stages []domain.FlightStage) []stageResponse {
	out := make([]stageResponse, 0, len(stages))
	for _, s := range stages {
		out = append(out, fromStage(s))
	}
	return out
}

type aircraftResponse struct {
	ID                  string  `json:"id"`
	Registration        string  `json:"matricula"`
	MSN                 string  `json:"msn,omitempty"`
	Model               string  `json:"modelo,omitempty"`
	ManufactureYear     int     `json:"anoFabricacao,omitempty"`
	TotalHours          float64 `json:"horasTotaisVoo"`
	TotalCycles         int     `json:"ciclosTotaisCelula"`
	NextInspectionDate  string  `json:"proximaInspecao,omitempty"`
	CertificateValidity string  `json:"validadeCA,omitempty"`
	Status              string  `json:"status"`
}

func fromAircraft(a domain.Aircraft) aircraftResponse {
	return aircraftResponse{
		ID:                  a.ID,
		Registration:        a.Registration,
		MSN:                 a.MSN,
		Model:               a.Model,
		ManufactureYear:     a.ManufactureYear,
		TotalHours:          a.TotalHours,
		TotalCycles:         a.TotalCycles,
		NextInspectionDate:  a.NextInspectionDate,
		CertificateValidity: a.CertificateValidity,
		Status:              string(a.Status),
	}
}

type componentResponse struct {
	ID             string   `json:"id"`
	PartNumber     string   `json:"partNumber"`
	SerialNumber   string   `json:"serialNumber,omitempty"`
	Description    string   `json:"descricao,omitempty"`
	RemainingHours *float64 `json:"horasRestantes,omitempty"`
	RemainingDays  *int     `json:"diasRestantes,omitempty"`
	Status         string   `json:"status"`
	ATAChapter     string   `json:"capituloATA,omitempty"`
}

func fromComponents(cs []domain.Component) []componentResponse {
	out := make([]componentResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, componentResponse{
			ID:             c.ID,
			PartNumber:     c.PartNumber,
			SerialNumber:   c.SerialNumber,
			Description:    c.Description,
			RemainingHours: c.RemainingHours,
			RemainingDays:  c.RemainingDays,
			Status:         string(c.Status),
			ATAChapter:     c.ATAChapter,
		})
	}
	return out
}
