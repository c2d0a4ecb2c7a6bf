package dispatch

import (
	"sort"
	"time"

	"gppo/models"
	"gppo/utils"
)

// rankedCandidate pairs a presence with its distance to the emergency
// origin. Sorting is stable so equal distances keep first-seen order.
type rankedCandidate struct {
	presence models.OfficerPresence
	distance float64
}

// Eligible reports whether an officer can be assigned to an emergency at
// the given time. The emergency officer themselves, officers without a
// fresh position, unavailable officers and officers hidden by an
// operator override are all skipped.
func Eligible(p *models.OfficerPresence, emergencyOfficerID string, now time.Time) bool {
	if p.OfficerID == emergencyOfficerID {
		return false
	}
	if p.Coordinates == nil || !utils.IsValidCoordinate(p.Coordinates.Latitude, p.Coordinates.Longitude) {
		return false
	}
	if !p.IsLive(now) {
		return false
	}
	if p.Status == models.OfficerStatusUnavailable {
		return false
	}
	if p.HiddenFromDispatch() {
		return false
	}
	if p.InEmergency() {
		return false
	}
	return true
}

// SelectNearest returns the eligible officer closest to the emergency
// origin, or nil when nobody qualifies. Officers in exclude are skipped
// on top of the usual eligibility rules.
func SelectNearest(origin models.Coordinates, emergencyOfficerID string, candidates []models.OfficerPresence, exclude map[string]bool) *models.OfficerPresence {
	now := time.Now()

	var best *models.OfficerPresence
	bestDistance := 0.0
	for i := range candidates {
		c := &candidates[i]
		if exclude[c.OfficerID] || !Eligible(c, emergencyOfficerID, now) {
			continue
		}
		d := utils.CalculateDistance(
			origin.Latitude, origin.Longitude,
			c.Coordinates.Latitude, c.Coordinates.Longitude,
		)
		if best == nil || d < bestDistance {
			best = c
			bestDistance = d
		}
	}
	return best
}

// Ranked is one selected officer with the distance that ranked them.
type Ranked struct {
	Presence       models.OfficerPresence
	DistanceMeters float64
}

// SelectNearestN returns up to n eligible officers ordered nearest
// first. Selection is greedy over the same candidate list, which is
// deterministic but not globally optimal for multi-assignment.
func SelectNearestN(origin models.Coordinates, emergencyOfficerID string, candidates []models.OfficerPresence, n int) []Ranked {
	if n <= 0 {
		return nil
	}
	now := time.Now()

	ranked := make([]rankedCandidate, 0, len(candidates))
	for i := range candidates {
		c := candidates[i]
		if !Eligible(&c, emergencyOfficerID, now) {
			continue
		}
		d := utils.CalculateDistance(
			origin.Latitude, origin.Longitude,
			c.Coordinates.Latitude, c.Coordinates.Longitude,
		)
		ranked = append(ranked, rankedCandidate{presence: c, distance: d})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].distance < ranked[j].distance
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]Ranked, len(ranked))
	for i, rc := range ranked {
		out[i] = Ranked{Presence: rc.presence, DistanceMeters: rc.distance}
	}
	return out
}
