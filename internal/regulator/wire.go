package regulator

import "aeroledger/internal/domain"

// Wire payload types for the regulator's flight logbook API. Field names
// follow the remote contract; all numerics travel as decimal strings and
// engine figures as "H:MM" maps keyed by engine position.

type VolumeOpenRequest struct {
	MatriculaAeronave          string            `json:"matriculaAeronave"`
	DataAberturaVolume         string            `json:"dataAberturaVolume"`
	NumeroVolume               string            `json:"numeroVolume"`
	MinutosTotaisVoo           string            `json:"minutosTotaisVoo"`
	TotalPousos                string            `json:"totalPousos"`
	TotalCiclosCelula          string            `json:"totalCiclosCelula"`
	ObservacoesTermoDeAbertura string            `json:"observacoesTermoDeAbertura"`
	HorasVooMotor              map[string]string `json:"horasVooMotor,omitempty"`
	CiclosMotor                map[string]string `json:"ciclosMotor,omitempty"`
}

// OpenVolumeResult carries the remote identifiers minted on open. They link
// the local volume to its regulator counterpart for every later call.
type OpenVolumeResult struct {
	VolumeID    string
	OperatorIDs []string
}

type VolumeUpdateRequest struct {
	NumeroVolume               string            `json:"numeroVolume"`
	MinutosTotaisVoo           string            `json:"minutosTotaisVoo"`
	TotalPousos                string            `json:"totalPousos"`
	TotalCiclosCelula          string            `json:"totalCiclosCelula"`
	ObservacoesTermoDeAbertura string            `json:"observacoesTermoDeAbertura,omitempty"`
	HorasVooMotor              map[string]string `json:"horasVooMotor,omitempty"`
	CiclosMotor                map[string]string `json:"ciclosMotor,omitempty"`
}

type VolumeCloseRequest struct {
	DataFechamentoVolume         string            `json:"dataFechamentoVolume"`
	MinutosTotaisVoo             string            `json:"minutosTotaisVoo"`
	TotalPousos                  string            `json:"totalPousos"`
	TotalCiclosCelula            string            `json:"totalCiclosCelula"`
	ObservacoesTermoDeFechamento string            `json:"observacoesTermoDeFechamento,omitempty"`
	HorasVooMotor                map[string]string `json:"horasVooMotor,omitempty"`
	CiclosMotor                  map[string]string `json:"ciclosMotor,omitempty"`
}

// VolumeQuery narrows a remote volume lookup; at least one field must be set.
type VolumeQuery struct {
	Registration string
	VolumeID     string
	VolumeNumber string
}

func (q VolumeQuery) empty() bool {
	return q.Registration == "" && q.VolumeID == "" && q.VolumeNumber == ""
}

// StagePayload is the EtapaVoo body for create and update calls.
type StagePayload struct {
	IDDiarioBordoVolume   string `json:"idDiarioBordoVolume,omitempty"`
	IDDiarioBordoOperador string `json:"idDiarioBordoOperador,omitempty"`

	NaturezaVoo string `json:"naturezaVoo"`

	SiglaAerodromoDecolagem string `json:"siglaAerodromoDecolagem,omitempty"`
	LatitudeDecolagem       string `json:"latitudeDecolagem,omitempty"`
	LongitudeDecolagem      string `json:"longitudeDecolagem,omitempty"`
	LocalDecolagem          string `json:"localDecolagem,omitempty"`
	SiglaAerodromoPouso     string `json:"siglaAerodromoPouso,omitempty"`
	LatitudePouso           string `json:"latitudePouso,omitempty"`
	LongitudePouso          string `json:"longitudePouso,omitempty"`
	LocalPouso              string `json:"localPouso,omitempty"`

	HorarioPartida      string `json:"horarioPartida"`
	HorarioDecolagem    string `json:"horarioDecolagem,omitempty"`
	HorarioPouso        string `json:"horarioPouso,omitempty"`
	HorarioCorteMotores string `json:"horarioCorteMotores"`
	TempoVooTotal       string `json:"tempoVooTotal"`

	TempoVooDiurno  string `json:"tempoVooDiurno,omitempty"`
	TempoVooNoturno string `json:"tempoVooNoturno,omitempty"`
	TempoVooIFR     string `json:"tempoVooIFR,omitempty"`
	TempoVooIFRC    string `json:"tempoVooIFRC,omitempty"`

	NumeroPousoEtapa int `json:"numeroPousoEtapa"`
	NumeroCicloEtapa int `json:"numeroCicloEtapa"`

	QuantidadePessoasVoo      string `json:"quantidadePessoasVoo,omitempty"`
	CargaTransportada         string `json:"cargaTransportada,omitempty"`
	UnidadeCargaTransportada  string `json:"unidadeCargaTransportada,omitempty"`
	TotalCombustivel          string `json:"totalCombustivel,omitempty"`
	UnidadeCombustivel        string `json:"unidadeCombustivel,omitempty"`
	MilhasNavegacao           string `json:"milhasNavegacao,omitempty"`
	MinutosNavegacao          string `json:"minutosNavegacao,omitempty"`

	Aeronautas []domain.CrewMember `json:"aeronautas"`

	DataHorarioAssinaturaPiloto   string `json:"dataHorarioAssinaturaPiloto,omitempty"`
	DataHorarioAssinaturaOperador string `json:"dataHorarioAssinaturaOperador,omitempty"`
}
