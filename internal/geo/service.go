// Package geo resolves the driving-relevant distance between two free-text
// addresses. Geocoding failures degrade to a configured fallback distance so
// a quote can always be produced.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/isaacasamoah/piano-move-ai/platform/config"
	"github.com/isaacasamoah/piano-move-ai/platform/logger"
)

const earthRadiusKm = 6371.0

// Service geocodes addresses via Nominatim and computes great-circle distance.
type Service struct {
	baseURL    string
	userAgent  string
	fallbackKm float64
	client     *http.Client
	limiter    *rate.Limiter
	group      singleflight.Group
	log        *logger.Logger
}

// NewService creates a distance resolver. The limiter keeps lookups within
// the public Nominatim usage policy of one request per second.
func NewService(cfg config.GeoConfig, log *logger.Logger) *Service {
	return &Service{
		baseURL:    cfg.GetGeocoderURL(),
		userAgent:  cfg.GetGeocoderUserAgent(),
		fallbackKm: cfg.GetFallbackDistanceKm(),
		client:     &http.Client{Timeout: 5 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
		log:        log,
	}
}

// Resolve returns the distance in km between two addresses. Any failure
// (lookup miss, network error, ambiguous match) yields the fallback distance;
// this method never returns an error.
func (s *Service) Resolve(ctx context.Context, origin, destination string) float64 {
	from, err := s.geocode(ctx, origin)
	if err != nil {
		s.log.CollaboratorError("geocoder", fmt.Errorf("origin %q: %w", origin, err))
		return s.fallbackKm
	}

	to, err := s.geocode(ctx, destination)
	if err != nil {
		s.log.CollaboratorError("geocoder", fmt.Errorf("destination %q: %w", destination, err))
		return s.fallbackKm
	}

	km := haversineKm(from, to)
	s.log.Info("distance resolved", "origin", origin, "destination", destination, "km", math.Round(km*100)/100)
	return km
}

// geocode resolves a single address to coordinates. Concurrent lookups of the
// same address share one upstream request.
func (s *Service) geocode(ctx context.Context, address string) (Coordinates, error) {
	v, err, _ := s.group.Do(address, func() (interface{}, error) {
		return s.lookup(ctx, address)
	})
	if err != nil {
		return Coordinates{}, err
	}
	return v.(Coordinates), nil
}

func (s *Service) lookup(ctx context.Context, address string) (Coordinates, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Coordinates{}, err
	}

	params := url.Values{}
	params.Add("q", address)
	params.Add("format", "json")
	params.Add("addressdetails", "1")
	params.Add("limit", "1")

	reqURL := fmt.Sprintf("%s?%s", s.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Coordinates{}, err
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return Coordinates{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return Coordinates{}, fmt.Errorf("upstream api error: %d", resp.StatusCode)
	}

	var rawResults []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&rawResults); err != nil {
		return Coordinates{}, err
	}
	if len(rawResults) == 0 {
		return Coordinates{}, fmt.Errorf("no match for address")
	}

	lat, err := strconv.ParseFloat(rawResults[0].Lat, 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("bad latitude in response: %w", err)
	}
	lon, err := strconv.ParseFloat(rawResults[0].Lon, 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("bad longitude in response: %w", err)
	}

	return Coordinates{Lat: lat, Lon: lon}, nil
}

// haversineKm computes the great-circle distance between two points.
func haversineKm(a, b Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
