package flight

import "aeroledger/internal/domain"

// Crew role codes used by the regulator.
const (
	RoleP1         = "1" // pilot in command
	RoleP2         = "2" // second in command
	RoleI1         = "3" // flight instructor
	RoleV1         = "8" // check pilot / instructor on training flights
	RoleV2         = "9" // student pilot
	natureTraining = "8"
)

// pilotRoles are the roles that satisfy the at-least-one-pilot rule.
var pilotRoles = map[string]bool{
	"1": true, "2": true, "3": true, "7": true, "8": true,
}

// ClassifyCIV attaches advisory crew-composition metadata for regulatory
// review. It never blocks a registration; unusual but legal compositions
// simply get flagged.
func ClassifyCIV(flightNature string, crew []domain.CrewMember) *domain.CIVClassification {
	var hasP1, hasI1, hasV1, hasV2 bool
	for _, member := range crew {
		switch member.Role {
		case RoleP1:
			hasP1 = true
		case RoleI1:
			hasI1 = true
		case RoleV1:
			hasV1 = true
		case RoleV2:
			hasV2 = true
		}
	}
	if (hasP1 && hasV2) || (hasI1 && hasV2) {
		return &domain.CIVClassification{
			Code:  "CIV_RECLASSIFY_SOLO",
			Notes: "Combinação P1/I1 com V2 detectada para reclassificação pela CIV",
		}
	}
	if flightNature == natureTraining && hasV1 && (hasI1 || hasV2) {
		return &domain.CIVClassification{
			Code:  "CIV_TREINAMENTO_INSTRUTOR_ALUNO",
			Notes: "Treinamento com Instrutor e Aluno",
		}
	}
	return nil
}
