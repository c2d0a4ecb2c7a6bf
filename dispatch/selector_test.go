package dispatch

import (
	"testing"
	"time"

	"gppo/models"
)

func presenceAt(id string, lat, lng float64) models.OfficerPresence {
	now := time.Now()
	return models.OfficerPresence{
		OfficerID:   id,
		Name:        id,
		Status:      models.OfficerStatusAvailable,
		Sharing:     true,
		Coordinates: &models.Coordinates{Latitude: lat, Longitude: lng},
		LastUpdated: &now,
	}
}

// metersNorth offsets a latitude by roughly the given meters. One degree
// of latitude is ~111.19 km.
func metersNorth(lat, meters float64) float64 {
	return lat + meters/111190.0
}

func TestSelectNearestPicksClosestEligible(t *testing.T) {
	origin := models.Coordinates{Latitude: 10.625, Longitude: 122.584}

	candidates := []models.OfficerPresence{
		presenceAt("off-500", metersNorth(origin.Latitude, 500), origin.Longitude),
		presenceAt("off-200", metersNorth(origin.Latitude, 200), origin.Longitude),
		presenceAt("off-1000", metersNorth(origin.Latitude, 1000), origin.Longitude),
	}

	got := SelectNearest(origin, "off-emergency", candidates, nil)
	if got == nil || got.OfficerID != "off-200" {
		t.Fatalf("expected off-200, got %+v", got)
	}

	// Excluding the winner falls through to the next-nearest.
	got = SelectNearest(origin, "off-emergency", candidates, map[string]bool{"off-200": true})
	if got == nil || got.OfficerID != "off-500" {
		t.Fatalf("expected off-500 after exclusion, got %+v", got)
	}
}

func TestSelectNearestSkipsIneligible(t *testing.T) {
	origin := models.Coordinates{Latitude: 10.625, Longitude: 122.584}

	hidden := false
	stale := time.Now().Add(-10 * time.Minute)

	nearButHidden := presenceAt("off-hidden", metersNorth(origin.Latitude, 50), origin.Longitude)
	nearButHidden.VisibilityOverride = &hidden

	nearButStale := presenceAt("off-stale", metersNorth(origin.Latitude, 60), origin.Longitude)
	nearButStale.LastUpdated = &stale

	nearButUnavailable := presenceAt("off-busy", metersNorth(origin.Latitude, 70), origin.Longitude)
	nearButUnavailable.Status = models.OfficerStatusUnavailable

	nearButSelf := presenceAt("off-self", metersNorth(origin.Latitude, 10), origin.Longitude)

	noPosition := presenceAt("off-dark", 0, 0)
	noPosition.Coordinates = nil

	eligible := presenceAt("off-far", metersNorth(origin.Latitude, 200), origin.Longitude)

	candidates := []models.OfficerPresence{
		nearButHidden, nearButStale, nearButUnavailable, nearButSelf, noPosition, eligible,
	}

	got := SelectNearest(origin, "off-self", candidates, nil)
	if got == nil || got.OfficerID != "off-far" {
		t.Fatalf("expected the only eligible officer, got %+v", got)
	}
}

func TestSelectNearestReturnsNilWithoutCandidates(t *testing.T) {
	origin := models.Coordinates{Latitude: 10.625, Longitude: 122.584}

	if got := SelectNearest(origin, "off-self", nil, nil); got != nil {
		t.Errorf("expected nil for empty candidates, got %+v", got)
	}

	self := presenceAt("off-self", origin.Latitude, origin.Longitude)
	if got := SelectNearest(origin, "off-self", []models.OfficerPresence{self}, nil); got != nil {
		t.Errorf("emergency officer must never be selected, got %+v", got)
	}
}

func TestSelectNearestNOrdersAndCaps(t *testing.T) {
	origin := models.Coordinates{Latitude: 10.625, Longitude: 122.584}

	candidates := []models.OfficerPresence{
		presenceAt("off-500", metersNorth(origin.Latitude, 500), origin.Longitude),
		presenceAt("off-200", metersNorth(origin.Latitude, 200), origin.Longitude),
		presenceAt("off-1000", metersNorth(origin.Latitude, 1000), origin.Longitude),
	}

	ranked := SelectNearestN(origin, "off-emergency", candidates, 2)
	if len(ranked) != 2 {
		t.Fatalf("expected 2 selections, got %d", len(ranked))
	}
	if ranked[0].Presence.OfficerID != "off-200" || ranked[1].Presence.OfficerID != "off-500" {
		t.Errorf("wrong order: %s, %s", ranked[0].Presence.OfficerID, ranked[1].Presence.OfficerID)
	}
	if ranked[0].DistanceMeters >= ranked[1].DistanceMeters {
		t.Errorf("distances not ascending: %f, %f", ranked[0].DistanceMeters, ranked[1].DistanceMeters)
	}
	if ranked[0].DistanceMeters < 150 || ranked[0].DistanceMeters > 250 {
		t.Errorf("expected ~200m for nearest, got %f", ranked[0].DistanceMeters)
	}

	if got := SelectNearestN(origin, "off-emergency", candidates, 0); got != nil {
		t.Errorf("n=0 must select nobody, got %+v", got)
	}
	if got := SelectNearestN(origin, "off-emergency", candidates, 10); len(got) != 3 {
		t.Errorf("n beyond candidates must return all eligible, got %d", len(got))
	}
}
