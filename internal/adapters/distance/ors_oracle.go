package distance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"route-optimizer-service/internal/domain"
	"route-optimizer-service/internal/platform/obs"
	"route-optimizer-service/internal/ports"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultORSBaseURL = "https://api.openrouteservice.org"
	DefaultORSProfile = "driving-car"
)

type ORSOptions struct {
	APIKey  string
	BaseURL string
	Profile string
	// Requests per second across all calls. Zero disables throttling.
	RateLimit float64
	RateBurst int
	Timeout   time.Duration
	// Optional ISO country code restricting geocode results.
	GeocodeCountry string
}

// ORSRoutingOracle implements ports.RoutingOracle using OpenRouteService.
//
// It coordinates:
//   - Waypoint normalization
//   - Literal "lat,lon" waypoints and geocoding of everything else
//   - Persistent geocode caching
//   - Directions calls with throttling and retry/backoff
//
// The oracle is safe for concurrent use.
type ORSRoutingOracle struct {
	session      *http.Client
	apiKey       string
	baseURL      string
	profile      string
	country      string
	limiter      *rate.Limiter
	geocodeCache ports.GeocodeCache
	log          *zap.Logger
}

func NewORSRoutingOracle(
	opts ORSOptions,
	geocodeCache ports.GeocodeCache,
	log *zap.Logger,
) (*ORSRoutingOracle, error) {
	if opts.APIKey == "" {
		return nil, errors.New("ORS api key is empty")
	}

	if opts.BaseURL == "" {
		opts.BaseURL = DefaultORSBaseURL
	}
	if opts.Profile == "" {
		opts.Profile = DefaultORSProfile
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &ORSRoutingOracle{
		session:      &http.Client{Timeout: opts.Timeout},
		apiKey:       opts.APIKey,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		profile:      opts.Profile,
		country:      opts.GeocodeCountry,
		limiter:      limiter,
		geocodeCache: geocodeCache,
		log:          log,
	}, nil
}

// normalize ensures consistent cache keys by collapsing whitespace.
func (o *ORSRoutingOracle) normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// PathLegs resolves every waypoint to coordinates and requests one directions
// route through them. Each returned segment is one leg.
func (o *ORSRoutingOracle) PathLegs(ctx context.Context, waypoints []string) (_ []domain.PairDistance, err error) {
	defer obs.Time(ctx, o.log, "ors.PathLegs")(&err)

	if len(waypoints) < 2 {
		return nil, fmt.Errorf("path legs: need at least 2 waypoints, got %d", len(waypoints))
	}

	norm := make([]string, len(waypoints))
	for i, w := range waypoints {
		norm[i] = o.normalize(w)
		if norm[i] == "" {
			return nil, fmt.Errorf("path legs: waypoint #%d is empty", i)
		}
	}

	coords, err := o.resolveCoordinates(ctx, norm)
	if err != nil {
		return nil, fmt.Errorf("path legs: %w", err)
	}

	path := make([]domain.Coordinates, len(norm))
	for i, w := range norm {
		c, ok := coords[w]
		if !ok {
			return nil, fmt.Errorf("path legs: missing coordinate for %q", w)
		}
		path[i] = c
	}

	legs, err := o.fetchDirections(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("path legs: fetching directions: %w", err)
	}
	return legs, nil
}

// resolveCoordinates maps each distinct waypoint to coordinates. Literal
// "lat,lon" waypoints are parsed; the rest come from the geocode cache or ORS.
func (o *ORSRoutingOracle) resolveCoordinates(ctx context.Context, waypoints []string) (map[string]domain.Coordinates, error) {
	coords := make(map[string]domain.Coordinates, len(waypoints))
	needed := make([]string, 0, len(waypoints))

	for _, w := range waypoints {
		if _, ok := coords[w]; ok {
			continue
		}
		if c, err := domain.ParseCoordinates(w); err == nil {
			coords[w] = c
			continue
		}
		if !contains(needed, w) {
			needed = append(needed, w)
		}
	}

	if len(needed) == 0 {
		return coords, nil
	}

	// Resolve coordinates via cache before calling ORS geocoding.
	if o.geocodeCache != nil {
		hits, err := o.geocodeCache.GetMany(ctx, needed)
		if err != nil {
			o.log.Warn("geocode cache read failed", zap.Error(err))
		}
		for k, v := range hits {
			coords[k] = v
		}
	}

	misses := make([]string, 0, len(needed))
	for _, a := range needed {
		if _, ok := coords[a]; !ok {
			misses = append(misses, a)
		}
	}

	if len(misses) == 0 {
		return coords, nil
	}

	fresh, err := o.geocodeMany(ctx, misses)
	if err != nil {
		return nil, fmt.Errorf("retrieving coordinates: %w", err)
	}

	if o.geocodeCache != nil && len(fresh) > 0 {
		if err := o.geocodeCache.PutMany(ctx, fresh); err != nil {
			o.log.Warn("geocode cache write failed", zap.Error(err))
		}
	}

	for k, v := range fresh {
		coords[k] = v
	}
	return coords, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
