package domain

import (
	"sort"

	"github.com/google/uuid"
)

// EligibleProfessional is the finder's view of a directory entry.
type EligibleProfessional struct {
	ID        uuid.UUID
	Phone     string
	Rating    float64
	Latitude  float64
	Longitude float64
}

// RankedCandidate is a professional within radius, ranked for dispatch.
type RankedCandidate struct {
	ProfessionalID uuid.UUID
	Phone          string
	DistanceKM     float64
	Rating         float64
}

// RankCandidates filters the eligible professionals to those within radiusKM
// of the origin and orders them ascending by distance. Ties break on rating
// descending, then on professional ID, so repeated runs are stable.
// Professionals in the excluded set (prior rejectors) never enter the pool.
// An empty result is a legitimate outcome, not an error.
func RankCandidates(
	originLat, originLon, radiusKM float64,
	pros []EligibleProfessional,
	excluded map[uuid.UUID]struct{},
) []RankedCandidate {
	ranked := make([]RankedCandidate, 0, len(pros))
	for _, p := range pros {
		if _, skip := excluded[p.ID]; skip {
			continue
		}
		d := HaversineKM(originLat, originLon, p.Latitude, p.Longitude)
		if d > radiusKM {
			continue
		}
		ranked = append(ranked, RankedCandidate{
			ProfessionalID: p.ID,
			Phone:          p.Phone,
			DistanceKM:     d,
			Rating:         p.Rating,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].DistanceKM != ranked[j].DistanceKM {
			return ranked[i].DistanceKM < ranked[j].DistanceKM
		}
		if ranked[i].Rating != ranked[j].Rating {
			return ranked[i].Rating > ranked[j].Rating
		}
		return ranked[i].ProfessionalID.String() < ranked[j].ProfessionalID.String()
	})

	return ranked
}
