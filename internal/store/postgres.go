package store

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/antigravity/transitcore/internal/chunk"
	"github.com/antigravity/transitcore/internal/model"
)

// Config holds Postgres connection settings, adapted from the teacher's
// db/connection.go Config — same field set, loaded the same
// env-var-with-fallback way, but constructed explicitly per call site
// instead of behind a sync.Once singleton.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
	SSLMode  string
	MinConns int32
	MaxConns int32
}

// LoadConfigFromEnv builds a Config from environment variables, falling
// back to the teacher's defaults where unset.
func LoadConfigFromEnv() Config {
	port, _ := strconv.Atoi(getEnv("DB_PORT", "5432"))
	minConns, _ := strconv.Atoi(getEnv("DB_MIN_CONNS", "5"))
	maxConns, _ := strconv.Atoi(getEnv("DB_MAX_CONNS", "20"))

	return Config{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     port,
		Database: getEnv("DB_NAME", "transitcore"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
		MinConns: int32(minConns),
		MaxConns: int32(maxConns),
	}
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// PostgresStore implements Store against the schema described in the
// expanded spec's §6.1: stops, variants, variant_stops, courses,
// course_stop_times, walk_neighbours.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a connection pool per cfg and verifies it with a
// ping, mirroring the teacher's initPool but returning the pool wrapped in
// a Store rather than stashing it in a package variable.
func NewPostgresStore(ctx context.Context, cfg Config) (*PostgresStore, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Database, cfg.User, cfg.Password, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("store: parse connection string: %w", err)
	}

	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	// Disable prepared statements for transaction-mode poolers (e.g.
	// Supabase's pgbouncer on 6543), which reject named prepared
	// statements across pooled connections.
	if cfg.Port == 6543 {
		poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("store: create connection pool: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Pool exposes the underlying connection pool for callers outside the
// Store interface that need raw access, such as the loaddata importer's
// batched inserts.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// HealthCheck pings the pool.
func (s *PostgresStore) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("store: health check: %w", err)
	}
	return nil
}

// CoursesTouchingChunk implements Q1. The chunk function is not pushed
// into SQL: the query scopes a broad WHERE on the cell's lat/lon bounding
// box and minute range, then chunk.Of is recomputed in Go per row to keep
// only rows whose exact chunk matches the target (§6.1 of the expanded
// spec). Excluded chunks are resolved to course-id sets the same way and
// subtracted.
func (s *PostgresStore) CoursesTouchingChunk(ctx context.Context, latChunk, lngChunk, timeChunk int, excluded []ExcludedChunk) ([]CourseDeparture, error) {
	target := chunk.Pack(latChunk, lngChunk, timeChunk)

	excludedCourseIDs := make(map[string]bool)
	for _, ex := range excluded {
		ids, err := s.courseIDsInChunk(ctx, ex.LatChunk, ex.LngChunk, ex.TimeChunk)
		if err != nil {
			return nil, fmt.Errorf("store: resolve excluded chunk: %w", err)
		}
		for id := range ids {
			excludedCourseIDs[id] = true
		}
	}

	rows, err := s.queryChunkRows(ctx, latChunk, lngChunk, timeChunk, target)
	if err != nil {
		return nil, err
	}

	courseIDs := make(map[string]bool)
	for _, r := range rows {
		courseIDs[r.CourseID] = true
	}
	for id := range excludedCourseIDs {
		delete(courseIDs, id)
	}

	if len(courseIDs) == 0 {
		return nil, nil
	}

	// Fetch every stop-time row for the surviving course ids, not just the
	// ones inside the bounding box — Q1 must return complete courses.
	ids := make([]string, 0, len(courseIDs))
	for id := range courseIDs {
		ids = append(ids, id)
	}

	query := `
		SELECT cst.stop_id, cst.course_id, cst.departure_minute, c.variant_id
		FROM course_stop_times cst
		JOIN courses c ON c.course_id = cst.course_id
		WHERE cst.course_id = ANY($1)
	`
	pgRows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("store: query course stop times: %w", err)
	}
	defer pgRows.Close()

	var out []CourseDeparture
	for pgRows.Next() {
		var d CourseDeparture
		if err := pgRows.Scan(&d.StopID, &d.CourseID, &d.DepartureMinute, &d.VariantID); err != nil {
			return nil, fmt.Errorf("store: scan course departure: %w", err)
		}
		out = append(out, d)
	}
	return out, nil
}

// courseIDsInChunk resolves which course ids have any departure falling
// exactly in the given chunk, via the same bounding-box-then-refilter
// shape as CoursesTouchingChunk.
func (s *PostgresStore) courseIDsInChunk(ctx context.Context, latChunk, lngChunk, timeChunk int) (map[string]bool, error) {
	target := chunk.Pack(latChunk, lngChunk, timeChunk)
	rows, err := s.queryChunkRows(ctx, latChunk, lngChunk, timeChunk, target)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool, len(rows))
	for _, r := range rows {
		ids[r.CourseID] = true
	}
	return ids, nil
}

func (s *PostgresStore) queryChunkRows(ctx context.Context, latChunk, lngChunk, timeChunk int, target chunk.ID) ([]CourseDeparture, error) {
	latMin, latMax, lonMin, lonMax := chunk.CellBounds(latChunk, lngChunk)
	minMin, maxMin := chunk.TimeBoundsMinutes(timeChunk)

	query := `
		SELECT cst.stop_id, cst.course_id, cst.departure_minute, c.variant_id, s.lat, s.lon
		FROM course_stop_times cst
		JOIN courses c ON c.course_id = cst.course_id
		JOIN stops s ON s.id = cst.stop_id
		WHERE s.lat BETWEEN $1 AND $2
		  AND s.lon BETWEEN $3 AND $4
		  AND cst.departure_minute BETWEEN $5 AND $6
	`
	rows, err := s.pool.Query(ctx, query, latMin, latMax, lonMin, lonMax, minMin, maxMin)
	if err != nil {
		return nil, fmt.Errorf("store: query chunk rows: %w", err)
	}
	defer rows.Close()

	var out []CourseDeparture
	for rows.Next() {
		var d CourseDeparture
		var lat, lon float64
		if err := rows.Scan(&d.StopID, &d.CourseID, &d.DepartureMinute, &d.VariantID, &lat, &lon); err != nil {
			return nil, fmt.Errorf("store: scan chunk row: %w", err)
		}
		if chunk.Of(lat, lon, float64(d.DepartureMinute)*60) != target {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// WalkNeighboursInCell implements Q2.
func (s *PostgresStore) WalkNeighboursInCell(ctx context.Context, latChunk, lngChunk int) ([]WalkNeighbour, error) {
	latMin, latMax, lonMin, lonMax := chunk.CellBounds(latChunk, lngChunk)

	query := `
		SELECT wn.stop_id, wn.neighbour_id, wn.distance_metres
		FROM walk_neighbours wn
		JOIN stops s ON s.id = wn.stop_id
		WHERE s.lat BETWEEN $1 AND $2 AND s.lon BETWEEN $3 AND $4
	`
	rows, err := s.pool.Query(ctx, query, latMin, latMax, lonMin, lonMax)
	if err != nil {
		return nil, fmt.Errorf("store: query walk neighbours: %w", err)
	}
	defer rows.Close()

	var out []WalkNeighbour
	for rows.Next() {
		var w WalkNeighbour
		if err := rows.Scan(&w.StopID, &w.NeighbourID, &w.DistanceMetres); err != nil {
			return nil, fmt.Errorf("store: scan walk neighbour: %w", err)
		}
		out = append(out, w)
	}
	return out, nil
}

// VariantStops implements Q3.
func (s *PostgresStore) VariantStops(ctx context.Context, variantID string) ([]model.StopID, error) {
	query := `
		SELECT stop_id FROM variant_stops
		WHERE variant_id = $1
		ORDER BY seq ASC
	`
	rows, err := s.pool.Query(ctx, query, variantID)
	if err != nil {
		return nil, fmt.Errorf("store: query variant stops: %w", err)
	}
	defer rows.Close()

	var out []model.StopID
	for rows.Next() {
		var id model.StopID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("store: scan variant stop: %w", err)
		}
		out = append(out, id)
	}
	return out, nil
}

// StopByID implements Q4.
func (s *PostgresStore) StopByID(ctx context.Context, id model.StopID) (model.Stop, error) {
	query := `SELECT id, lat, lon, code, name FROM stops WHERE id = $1`
	var stop model.Stop
	var lat, lon *float64
	if err := s.pool.QueryRow(ctx, query, id).Scan(&stop.ID, &lat, &lon, &stop.Code, &stop.Name); err != nil {
		return model.Stop{}, fmt.Errorf("store: query stop %d: %w", id, err)
	}
	if lat != nil && lon != nil {
		stop.Lat, stop.Lon, stop.HasLocation = *lat, *lon, true
	}
	return stop, nil
}

// AllStops implements Q5.
func (s *PostgresStore) AllStops(ctx context.Context) ([]model.Stop, error) {
	query := `SELECT id, lat, lon, code, name FROM stops WHERE lat IS NOT NULL AND lon IS NOT NULL`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: query all stops: %w", err)
	}
	defer rows.Close()

	var out []model.Stop
	for rows.Next() {
		var stop model.Stop
		var lat, lon *float64
		if err := rows.Scan(&stop.ID, &lat, &lon, &stop.Code, &stop.Name); err != nil {
			return nil, fmt.Errorf("store: scan stop: %w", err)
		}
		if lat != nil && lon != nil {
			stop.Lat, stop.Lon, stop.HasLocation = *lat, *lon, true
		}
		out = append(out, stop)
	}
	return out, nil
}
