package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"gppo/models"
	"gppo/utils"
)

// DefaultResponseSpeedKmh is the urban driving speed assumed when no
// routing service supplies a real travel time.
const DefaultResponseSpeedKmh = 30.0

// RouteEstimate is what callers get regardless of whether an external
// routing service was consulted.
type RouteEstimate struct {
	Path           []models.Coordinates `json:"path"`
	DistanceMeters float64              `json:"distanceMeters"`
	EtaMinutes     int                  `json:"etaMinutes"`
	Directions     []string             `json:"directions"`
	ExternalNavURL string               `json:"externalNavUrl"`
}

// ExternalRouter is an optional richer routing backend. Implementations
// return road-following paths and real travel times; the estimator falls
// back to straight-line math when the router is absent or errors.
type ExternalRouter interface {
	Route(ctx context.Context, origin, destination models.Coordinates) (*RouteEstimate, error)
}

// Estimator produces dispatch routes. A nil router means the built-in
// straight-line estimate is always used.
type Estimator struct {
	router   ExternalRouter
	speedKmh float64
}

func NewEstimator(router ExternalRouter) *Estimator {
	return &Estimator{router: router, speedKmh: DefaultResponseSpeedKmh}
}

// EstimateRoute computes a route from an officer to an emergency origin.
// External-router failures degrade to the built-in estimate silently;
// the only error this returns is InvalidLocation for bad coordinates.
func (e *Estimator) EstimateRoute(ctx context.Context, origin, destination models.Coordinates) (*RouteEstimate, error) {
	if !utils.IsValidCoordinate(origin.Latitude, origin.Longitude) ||
		!utils.IsValidCoordinate(destination.Latitude, destination.Longitude) {
		return nil, utils.NewInvalidLocationError("route endpoints must be valid coordinates")
	}

	if e.router != nil {
		est, err := e.router.Route(ctx, origin, destination)
		if err == nil && est != nil {
			if est.ExternalNavURL == "" {
				est.ExternalNavURL = NavigationURL(origin, destination)
			}
			return est, nil
		}
		logrus.Warnf("External routing failed, using straight-line estimate: %v", err)
	}

	return e.fallback(origin, destination), nil
}

func (e *Estimator) fallback(origin, destination models.Coordinates) *RouteEstimate {
	distance := utils.CalculateDistance(
		origin.Latitude, origin.Longitude,
		destination.Latitude, destination.Longitude,
	)
	return &RouteEstimate{
		Path:           []models.Coordinates{origin, destination},
		DistanceMeters: distance,
		EtaMinutes:     EtaMinutes(distance, e.speedKmh),
		Directions: []string{
			"Head directly toward the emergency location.",
			fmt.Sprintf("Continue for approximately %.0f meters to reach the officer.", distance),
		},
		ExternalNavURL: NavigationURL(origin, destination),
	}
}

// EtaMinutes converts a distance to whole minutes at the given average
// speed, always rounding up so the estimate never undershoots.
func EtaMinutes(distanceMeters, speedKmh float64) int {
	if distanceMeters <= 0 || speedKmh <= 0 {
		return 0
	}
	metersPerSecond := speedKmh * 1000 / 3600
	return int(math.Ceil(distanceMeters / metersPerSecond / 60))
}

// NavigationURL builds a deep link that hands the route off to the
// officer's map application in driving mode.
func NavigationURL(origin, destination models.Coordinates) string {
	q := url.Values{}
	q.Set("api", "1")
	q.Set("origin", fmt.Sprintf("%f,%f", origin.Latitude, origin.Longitude))
	q.Set("destination", fmt.Sprintf("%f,%f", destination.Latitude, destination.Longitude))
	q.Set("travelmode", "driving")
	return "https://www.google.com/maps/dir/?" + q.Encode()
}

// ==================== EXTERNAL ROUTING CLIENT ====================

// RoutingClient talks to a GraphHopper-compatible routing service.
type RoutingClient struct {
	baseURL    string
	profile    string
	httpClient *http.Client
}

func NewRoutingClient(baseURL string) *RoutingClient {
	return &RoutingClient{
		baseURL: baseURL,
		profile: "car",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type routingPath struct {
	Distance float64 `json:"distance"`
	Time     int64   `json:"time"` // milliseconds
	Points   struct {
		Coordinates [][]float64 `json:"coordinates"` // [lng, lat]
	} `json:"points"`
	Instructions []struct {
		Text     string  `json:"text"`
		Distance float64 `json:"distance"`
	} `json:"instructions"`
}

type routingResponse struct {
	Paths []routingPath `json:"paths"`
}

func (c *RoutingClient) Route(ctx context.Context, origin, destination models.Coordinates) (*RouteEstimate, error) {
	u, err := url.Parse(c.baseURL + "/route")
	if err != nil {
		return nil, fmt.Errorf("parsing routing URL: %w", err)
	}

	q := u.Query()
	q.Add("point", fmt.Sprintf("%f,%f", origin.Latitude, origin.Longitude))
	q.Add("point", fmt.Sprintf("%f,%f", destination.Latitude, destination.Longitude))
	q.Set("profile", c.profile)
	q.Set("points_encoded", "false")
	q.Set("instructions", "true")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building routing request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("routing request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("routing service returned %d", resp.StatusCode)
	}

	var body routingResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding routing response: %w", err)
	}
	if len(body.Paths) == 0 {
		return nil, fmt.Errorf("routing service found no path")
	}

	path := body.Paths[0]
	est := &RouteEstimate{
		DistanceMeters: path.Distance,
		EtaMinutes:     int(math.Ceil(float64(path.Time) / 1000 / 60)),
	}
	for _, pt := range path.Points.Coordinates {
		if len(pt) < 2 {
			continue
		}
		est.Path = append(est.Path, models.Coordinates{Latitude: pt[1], Longitude: pt[0]})
	}
	for _, ins := range path.Instructions {
		est.Directions = append(est.Directions, ins.Text)
	}
	return est, nil
}
