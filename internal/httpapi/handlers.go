package httpapi

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/antigravity/transitcore/internal/model"
	"github.com/antigravity/transitcore/internal/routing"
	"github.com/antigravity/transitcore/internal/store"
	"github.com/gofiber/fiber/v2"
)

// Server holds the dependencies every handler needs: one Router (and the
// Store backing its stop lookups), shared across requests. §5 requires a
// single query to hold a Router's Graph exclusively, so Server serialises
// route computations with a mutex rather than handing out one Router per
// request.
type Server struct {
	router *routing.Router
	store  store.Store
	mu     chan struct{} // 1-buffered, used as a non-reentrant mutex
}

// NewServer returns a Server backed by r and s.
func NewServer(r *routing.Router, s store.Store) *Server {
	srv := &Server{router: r, store: s, mu: make(chan struct{}, 1)}
	srv.mu <- struct{}{}
	return srv
}

func (s *Server) lock() { <-s.mu }

func (s *Server) unlock() { s.mu <- struct{}{} }

// NavStepResponse is the wire representation of a model.NavStep.
type NavStepResponse struct {
	Kind      string `json:"kind"`
	Start     int64  `json:"start_stop_id"`
	End       int64  `json:"end_stop_id"`
	TimeStart int    `json:"time_start_seconds"`
	TimeEnd   int    `json:"time_end_seconds"`
	VariantID string `json:"variant_id,omitempty"`
	CourseID  string `json:"course_id,omitempty"`
}

func stepKindName(k model.StepKind) string {
	switch k {
	case model.StepWalk:
		return "walk"
	case model.StepBoard:
		return "board"
	default:
		return "start"
	}
}

func toResponse(steps []model.NavStep) []NavStepResponse {
	out := make([]NavStepResponse, 0, len(steps))
	for _, s := range steps {
		out = append(out, NavStepResponse{
			Kind:      stepKindName(s.Kind),
			Start:     int64(s.Start),
			End:       int64(s.End),
			TimeStart: s.TimeStart,
			TimeEnd:   s.TimeEnd,
			VariantID: s.VariantID,
			CourseID:  s.CourseID,
		})
	}
	return out
}

// RouteResponse is the /v2/route response body.
type RouteResponse struct {
	Steps           []NavStepResponse `json:"steps"`
	DurationSeconds int               `json:"duration_seconds"`
}

// endpointParam parses a query value that is either "stop:<id>" or
// "geo:<lat>,<lon>" into a routing.Endpoint.
func endpointParam(raw string) (routing.Endpoint, error) {
	if strings.HasPrefix(raw, "stop:") {
		id, err := strconv.ParseInt(strings.TrimPrefix(raw, "stop:"), 10, 64)
		if err != nil {
			return routing.Endpoint{}, fmt.Errorf("invalid stop id: %w", err)
		}
		return routing.StopEndpoint(model.StopID(id)), nil
	}
	if strings.HasPrefix(raw, "geo:") {
		lat, lon, err := parseCoordinates(strings.TrimPrefix(raw, "geo:"))
		if err != nil {
			return routing.Endpoint{}, err
		}
		return routing.GeoEndpoint(lat, lon), nil
	}
	return routing.Endpoint{}, fmt.Errorf("endpoint must be \"stop:<id>\" or \"geo:<lat>,<lon>\"")
}

// RouteSearch handles GET /v2/route: from, to (endpoint params as above),
// and an optional starting_time (seconds since midnight, default 0).
func (s *Server) RouteSearch(c *fiber.Ctx) error {
	fromRaw := c.Query("from")
	toRaw := c.Query("to")
	if fromRaw == "" || toRaw == "" {
		return c.Status(400).JSON(fiber.Map{"error": "missing required parameters: from and to"})
	}

	from, err := endpointParam(fromRaw)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": fmt.Sprintf("invalid 'from': %v", err)})
	}
	to, err := endpointParam(toRaw)
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": fmt.Sprintf("invalid 'to': %v", err)})
	}

	startingSeconds := 0
	if raw := c.Query("starting_time"); raw != "" {
		startingSeconds, err = strconv.Atoi(raw)
		if err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid starting_time"})
		}
	}

	ctx := c.Context()
	cacheKey := RouteKey(fromRaw, toRaw, startingSeconds)
	if cached, err := GetRoute(ctx, cacheKey); err == nil && cached != nil {
		return c.JSON(buildRouteResponse(cached))
	}

	s.lock()
	steps, err := s.router.Route(ctx, time.Duration(startingSeconds)*time.Second, from, to)
	s.unlock()

	if err != nil {
		switch err {
		case routing.ErrSameEndpoints:
			return c.Status(400).JSON(fiber.Map{"error": "start and destination are the same"})
		case routing.ErrNoRoute:
			return c.Status(404).JSON(fiber.Map{"error": "no route found"})
		default:
			log.Printf("route search failed: %v", err)
			return c.Status(502).JSON(fiber.Map{"error": "routing store unavailable"})
		}
	}

	if err := SetRoute(ctx, cacheKey, steps, 10*time.Minute); err != nil {
		log.Printf("failed to cache route: %v", err)
	}

	return c.JSON(buildRouteResponse(steps))
}

func buildRouteResponse(steps []model.NavStep) RouteResponse {
	duration := 0
	if len(steps) > 0 {
		duration = steps[len(steps)-1].TimeEnd - steps[0].TimeStart
	}
	return RouteResponse{Steps: toResponse(steps), DurationSeconds: duration}
}

// Health handles GET /health.
func (s *Server) Health(c *fiber.Ctx) error {
	ctx := c.Context()

	redisErr := HealthCheck(ctx)
	redisStatus := "ok"
	if redisErr != nil {
		redisStatus = redisErr.Error()
	}

	status := "healthy"
	httpStatus := 200
	if redisErr != nil {
		status = "degraded"
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checks": fiber.Map{
			"redis": redisStatus,
		},
	})
}

// parseCoordinates parses "lat,lon" into floats, validating ranges.
func parseCoordinates(coordStr string) (lat, lon float64, err error) {
	parts := strings.Split(coordStr, ",")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected format: lat,lon")
	}

	lat, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude: %w", err)
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude: %w", err)
	}
	if lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("latitude must be between -90 and 90")
	}
	if lon < -180 || lon > 180 {
		return 0, 0, fmt.Errorf("longitude must be between -180 and 180")
	}
	return lat, lon, nil
}

// StopResponse is the wire representation of a model.Stop.
type StopResponse struct {
	ID   int64   `json:"id"`
	Name string  `json:"name"`
	Code string  `json:"code"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// StopsListResponse is the /v2/stops response body.
type StopsListResponse struct {
	Stops []StopResponse `json:"stops"`
	Total int            `json:"total"`
}

// StopsList handles GET /v2/stops: every located stop known to the store.
func (s *Server) StopsList(c *fiber.Ctx) error {
	ctx := c.Context()
	stops, err := s.store.AllStops(ctx)
	if err != nil {
		log.Printf("stops list failed: %v", err)
		return c.Status(502).JSON(fiber.Map{"error": "routing store unavailable"})
	}

	out := make([]StopResponse, 0, len(stops))
	for _, stop := range stops {
		out = append(out, StopResponse{
			ID:   int64(stop.ID),
			Name: stop.Name,
			Code: stop.Code,
			Lat:  stop.Lat,
			Lon:  stop.Lon,
		})
	}
	return c.JSON(StopsListResponse{Stops: out, Total: len(out)})
}
