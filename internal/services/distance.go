package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/chachabrian/rydio-backend/pkg/utils"
	"github.com/sirupsen/logrus"
)

// ErrNoRoute is returned when a location cannot be geocoded or no route
// exists between the two points. Callers must not confuse it with a
// zero-kilometer trip.
var ErrNoRoute = errors.New("no route between locations")

const nominatimURL = "https://nominatim.openstreetmap.org/search"
const orsDirectionsURL = "https://api.openrouteservice.org/v2/directions/driving-car"

// RouteDistanceService resolves free-text locations to coordinates via
// Nominatim and measures road distance via OpenRouteService. Geocoding
// results are cached in Redis for 24 hours.
type RouteDistanceService struct {
	client    *http.Client
	orsAPIKey string
	userAgent string
	log       *logrus.Logger
}

func NewRouteDistanceService(log *logrus.Logger) *RouteDistanceService {
	return &RouteDistanceService{
		client:    &http.Client{Timeout: 10 * time.Second},
		orsAPIKey: os.Getenv("ORS_API_KEY"),
		userAgent: "RydioBackend/1.0 (support@rydio.app)",
		log:       log,
	}
}

// DistanceKm returns the road distance in kilometers between two free-text
// locations. When routing fails but both endpoints geocode, it falls back
// to the straight-line distance rather than failing the caller.
func (s *RouteDistanceService) DistanceKm(ctx context.Context, origin, destination string) (float64, error) {
	originCoords, err := s.geocode(ctx, origin)
	if err != nil {
		return 0, fmt.Errorf("geocode %q: %w", origin, err)
	}
	destCoords, err := s.geocode(ctx, destination)
	if err != nil {
		return 0, fmt.Errorf("geocode %q: %w", destination, err)
	}

	km, err := s.routeDistance(ctx, originCoords, destCoords)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"origin":      origin,
			"destination": destination,
		}).WithError(err).Warn("routing failed, using straight-line distance")
		return utils.HaversineDistance(
			originCoords.Latitude, originCoords.Longitude,
			destCoords.Latitude, destCoords.Longitude,
		), nil
	}
	return km, nil
}

func (s *RouteDistanceService) geocode(ctx context.Context, location string) (*Coords, error) {
	if cached, err := GetGeocodedLocation(ctx, location); err == nil {
		return cached, nil
	}

	reqURL := nominatimURL + "?format=json&limit=1&q=" + url.QueryEscape(location)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("nominatim returned status %d", resp.StatusCode)
	}

	var results []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrNoRoute
	}

	var coords Coords
	if _, err := fmt.Sscanf(results[0].Lat, "%f", &coords.Latitude); err != nil {
		return nil, fmt.Errorf("bad latitude %q: %w", results[0].Lat, err)
	}
	if _, err := fmt.Sscanf(results[0].Lon, "%f", &coords.Longitude); err != nil {
		return nil, fmt.Errorf("bad longitude %q: %w", results[0].Lon, err)
	}

	if err := SetGeocodedLocation(ctx, location, coords); err != nil {
		s.log.WithError(err).Warn("failed to cache geocoded location")
	}
	return &coords, nil
}

func (s *RouteDistanceService) routeDistance(ctx context.Context, origin, dest *Coords) (float64, error) {
	if s.orsAPIKey == "" {
		return 0, errors.New("OpenRouteService API key missing")
	}

	reqURL := fmt.Sprintf("%s?api_key=%s&start=%f,%f&end=%f,%f",
		orsDirectionsURL, s.orsAPIKey,
		origin.Longitude, origin.Latitude,
		dest.Longitude, dest.Latitude,
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("openrouteservice returned status %d", resp.StatusCode)
	}

	var body struct {
		Features []struct {
			Properties struct {
				Summary struct {
					Distance float64 `json:"distance"` // meters
				} `json:"summary"`
			} `json:"properties"`
		} `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, err
	}
	if len(body.Features) == 0 {
		return 0, ErrNoRoute
	}

	return body.Features[0].Properties.Summary.Distance / 1000, nil
}
