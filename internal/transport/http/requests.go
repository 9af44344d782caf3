package httptransport

import (
	"net/http"
	"time"

	"aeroledger/internal/audit"
	"aeroledger/internal/domain"
	"aeroledger/internal/flight"
	pkgerrors "aeroledger/pkg/domain-errors"
)

// operatorHeader carries the regulator operator id on stage and volume
// mutations, mirroring the remote API's convention.
const operatorHeader = "aircompany"

func requestMeta(r *http.Request) audit.RequestMeta {
	actor := r.Header.Get(operatorHeader)
	if actor == "" {
		actor = "anonymous"
	}
	return audit.RequestMeta{
		Actor:     actor,
		Method:    r.Method,
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}

// stageRequest is the submitted stage body. Timestamps travel as RFC3339.
type stageRequest struct {
	FlightNature string `json:"naturezaVoo"`

	OriginICAO        string `json:"siglaAerodromoDecolagem"`
	OriginLatitude    string `json:"latitudeDecolagem"`
	OriginLongitude   string `json:"longitudeDecolagem"`
	OriginDescription string `json:"localDecolagem"`

	DestinationICAO        string `json:"siglaAerodromoPouso"`
	DestinationLatitude    string `json:"latitudePouso"`
	DestinationLongitude   string `json:"longitudePouso"`
	DestinationDescription string `json:"localPouso"`

	PreparationTime string `json:"horarioPartida"`
	TakeoffTime     string `json:"horarioDecolagem"`
	LandingTime     string `json:"horarioPouso"`
	ShutdownTime    string `json:"horarioCorteMotores"`

	DayTime   string `json:"tempoVooDiurno"`
	NightTime string `json:"tempoVooNoturno"`
	IFRTime   string `json:"tempoVooIFR"`
	IFRCTime  string `json:"tempoVooIFRC"`

	Headcount    int     `json:"quantidadePessoasVoo"`
	CargoWeight  string  `json:"cargaTransportada"`
	CargoUnit    string  `json:"unidadeCargaTransportada"`
	FuelQuantity float64 `json:"totalCombustivel"`
	FuelUnit     string  `json:"unidadeCombustivel"`
	NavMiles     string  `json:"milhasNavegacao"`
	NavMinutes   string  `json:"minutosNavegacao"`

	LandingCount int `json:"numeroPousoEtapa"`
	CycleCount   int `json:"numeroCicloEtapa"`

	Crew []domain.CrewMember `json:"aeronautas"`

	PilotSignedAt    string `json:"dataHorarioAssinaturaPiloto"`
	OperatorSignedAt string `json:"dataHorarioAssinaturaOperador"`

	Justification string `json:"justificativa"`
}

func (req stageRequest) toInput() (flight.StageInput, error) {
	prep, err := parseStageTime("horarioPartida", req.PreparationTime, true)
	if err != nil {
		return flight.StageInput{}, err
	}
	shutdown, err := parseStageTime("horarioCorteMotores", req.ShutdownTime, true)
	if err != nil {
		return flight.StageInput{}, err
	}
	takeoff, err := parseStageTime("horarioDecolagem", req.TakeoffTime, false)
	if err != nil {
		return flight.StageInput{}, err
	}
	landing, err := parseStageTime("horarioPouso", req.LandingTime, false)
	if err != nil {
		return flight.StageInput{}, err
	}

	in := flight.StageInput{
		FlightNature: req.FlightNature,
		Origin: domain.Place{
			ICAO:        req.OriginICAO,
			Latitude:    req.OriginLatitude,
			Longitude:   req.OriginLongitude,
			Description: req.OriginDescription,
		},
		Destination: domain.Place{
			ICAO:        req.DestinationICAO,
			Latitude:    req.DestinationLatitude,
			Longitude:   req.DestinationLongitude,
			Description: req.DestinationDescription,
		},
		PreparationTime:  *prep,
		TakeoffTime:      takeoff,
		LandingTime:      landing,
		ShutdownTime:     *shutdown,
		DayTime:          req.DayTime,
		NightTime:        req.NightTime,
		IFRTime:          req.IFRTime,
		IFRCTime:         req.IFRCTime,
		Headcount:        req.Headcount,
		CargoWeight:      req.CargoWeight,
		CargoUnit:        req.CargoUnit,
		FuelQuantity:     req.FuelQuantity,
		FuelUnit:         req.FuelUnit,
		NavMiles:         req.NavMiles,
		NavMinutes:       req.NavMinutes,
		LandingCount:     req.LandingCount,
		CycleCount:       req.CycleCount,
		Crew:             req.Crew,
		PilotSignedAt:    req.PilotSignedAt,
		OperatorSignedAt: req.OperatorSignedAt,
		Justification:    req.Justification,
	}
	return in, nil
}

func parseStageTime(field, value string, required bool) (*time.Time, error) {
	if value == "" {
		if required {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "%s required", field)
		}
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "%s is not an RFC3339 timestamp", field)
	}
	return &t, nil
}

type rectifyRequest struct {
	Field         string `json:"campo"`
	NewValue      any    `json:"novoValor"`
	Justification string `json:"justificativa"`
}

type signRequest struct {
	SignedAt string `json:"dataHorarioAssinaturaOperador"`
}

type closeRequest struct {
	Notes string `json:"observacoes"`
}
