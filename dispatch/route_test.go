package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"gppo/models"
	"gppo/utils"
)

func TestEstimateRouteFallbackMatchesHaversine(t *testing.T) {
	origin := models.Coordinates{Latitude: 10.0, Longitude: 122.0}
	destination := models.Coordinates{Latitude: 10.01, Longitude: 122.01}

	est, err := NewEstimator(nil).EstimateRoute(context.Background(), origin, destination)
	if err != nil {
		t.Fatalf("EstimateRoute: %v", err)
	}

	wantDistance := utils.CalculateDistance(10.0, 122.0, 10.01, 122.01)
	if wantDistance <= 0 {
		t.Fatal("expected positive haversine distance")
	}
	if est.DistanceMeters != wantDistance {
		t.Errorf("distance = %f, want %f", est.DistanceMeters, wantDistance)
	}

	wantEta := int(math.Ceil(wantDistance / (30000.0 / 3600.0) / 60))
	if est.EtaMinutes != wantEta {
		t.Errorf("eta = %d, want %d", est.EtaMinutes, wantEta)
	}

	if len(est.Path) != 2 || est.Path[0] != origin || est.Path[1] != destination {
		t.Errorf("expected two-point path, got %+v", est.Path)
	}
	if len(est.Directions) != 2 {
		t.Errorf("expected two-line directions, got %d", len(est.Directions))
	}
	if !strings.Contains(est.ExternalNavURL, "travelmode=driving") ||
		!strings.Contains(est.ExternalNavURL, "api=1") {
		t.Errorf("bad navigation deep link: %s", est.ExternalNavURL)
	}
}

func TestEstimateRouteRejectsInvalidCoordinates(t *testing.T) {
	origin := models.Coordinates{Latitude: 95.0, Longitude: 122.0}
	destination := models.Coordinates{Latitude: 10.0, Longitude: 122.0}

	_, err := NewEstimator(nil).EstimateRoute(context.Background(), origin, destination)
	if !utils.IsCode(err, utils.ErrCodeInvalidLocation) {
		t.Fatalf("expected InvalidLocation, got %v", err)
	}
}

type failingRouter struct{}

func (failingRouter) Route(context.Context, models.Coordinates, models.Coordinates) (*RouteEstimate, error) {
	return nil, errors.New("routing backend down")
}

func TestEstimateRouteFallsBackOnRouterError(t *testing.T) {
	origin := models.Coordinates{Latitude: 10.0, Longitude: 122.0}
	destination := models.Coordinates{Latitude: 10.01, Longitude: 122.01}

	est, err := NewEstimator(failingRouter{}).EstimateRoute(context.Background(), origin, destination)
	if err != nil {
		t.Fatalf("router failure must not propagate, got %v", err)
	}
	if est.DistanceMeters <= 0 || est.EtaMinutes <= 0 {
		t.Errorf("fallback estimate not computed: %+v", est)
	}
}

func TestEstimateRoutePrefersExternalRouter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("profile"); got != "car" {
			t.Errorf("profile = %q, want car", got)
		}
		if pts := r.URL.Query()["point"]; len(pts) != 2 {
			t.Errorf("expected 2 points, got %v", pts)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"paths": []map[string]interface{}{{
				"distance": 1840.0,
				"time":     int64(318000), // 5.3 min in ms
				"points": map[string]interface{}{
					"coordinates": [][]float64{{122.0, 10.0}, {122.005, 10.005}, {122.01, 10.01}},
				},
				"instructions": []map[string]interface{}{
					{"text": "Head north on Rizal St", "distance": 900.0},
					{"text": "Turn right onto Bonifacio Dr", "distance": 940.0},
				},
			}},
		})
	}))
	defer server.Close()

	origin := models.Coordinates{Latitude: 10.0, Longitude: 122.0}
	destination := models.Coordinates{Latitude: 10.01, Longitude: 122.01}

	est, err := NewEstimator(NewRoutingClient(server.URL)).EstimateRoute(context.Background(), origin, destination)
	if err != nil {
		t.Fatalf("EstimateRoute: %v", err)
	}

	if est.DistanceMeters != 1840.0 {
		t.Errorf("distance = %f, want routed 1840", est.DistanceMeters)
	}
	if est.EtaMinutes != 6 { // ceil(5.3)
		t.Errorf("eta = %d, want 6", est.EtaMinutes)
	}
	if len(est.Path) != 3 || est.Path[1].Latitude != 10.005 {
		t.Errorf("routed path not decoded: %+v", est.Path)
	}
	if len(est.Directions) != 2 || est.Directions[0] != "Head north on Rizal St" {
		t.Errorf("turn list not decoded: %+v", est.Directions)
	}
	// The deep link is filled in even when the router supplies the rest.
	if est.ExternalNavURL == "" {
		t.Error("expected navigation link on routed estimate")
	}
}

func TestEtaMinutesEdgeCases(t *testing.T) {
	if got := EtaMinutes(0, 30); got != 0 {
		t.Errorf("zero distance eta = %d", got)
	}
	if got := EtaMinutes(500, 30); got != 1 {
		t.Errorf("500m at 30km/h = %d, want 1", got)
	}
	// 30 km/h covers 500 m/min; 501m must round up.
	if got := EtaMinutes(501, 30); got != 2 {
		t.Errorf("501m at 30km/h = %d, want 2", got)
	}
}
