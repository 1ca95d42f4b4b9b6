// Command loaddata imports the vendor's flat CSV timetable export into the
// Postgres schema internal/store/postgres.go queries against: stops,
// variants, variant_stops, courses, course_stop_times, walk_neighbours.
// It has no notion of GTFS; the timetable format here is the vendor's own
// (§4.4's "a parser that builds that store from a vendor text format" is an
// out-of-scope collaborator the original spec deliberately left external —
// this is that collaborator, not part of the routing core itself).
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/antigravity/transitcore/internal/store"
)

func main() {
	dataDir := flag.String("data", "", "directory containing the vendor CSV export (required)")
	flag.Parse()

	if *dataDir == "" {
		fmt.Println("Usage: loaddata --data=<directory>")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if info, err := os.Stat(*dataDir); err != nil || !info.IsDir() {
		log.Fatalf("data directory not found: %s", *dataDir)
	}

	log.Println("Starting vendor timetable import...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	cfg := store.LoadConfigFromEnv()
	pg, err := store.NewPostgresStore(ctx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("failed to connect to Postgres: %v", err)
	}
	defer pg.Close()

	pool := pg.Pool()
	start := time.Now()

	if err := importStops(context.Background(), pool, *dataDir); err != nil {
		log.Fatalf("import stops: %v", err)
	}
	if err := importVariantStops(context.Background(), pool, *dataDir); err != nil {
		log.Fatalf("import variant_stops: %v", err)
	}
	if err := importCourses(context.Background(), pool, *dataDir); err != nil {
		log.Fatalf("import courses: %v", err)
	}
	if err := importCourseStopTimesChunked(context.Background(), pool, *dataDir); err != nil {
		log.Fatalf("import course_stop_times: %v", err)
	}
	if err := importWalkNeighbours(context.Background(), pool, *dataDir); err != nil {
		log.Fatalf("import walk_neighbours: %v", err)
	}

	log.Printf("Import completed in %s", time.Since(start))
}

// openCSV opens name under dir and returns its header column map plus the
// reader, following the teacher's makeColumnMap/getField idiom so column
// order in the vendor export never matters.
func openCSV(dir, name string) (*csv.Reader, map[string]int, *os.File, error) {
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return nil, nil, nil, err
	}
	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if err != nil {
		f.Close()
		return nil, nil, nil, fmt.Errorf("read header: %w", err)
	}
	return r, makeColumnMap(header), f, nil
}

func makeColumnMap(header []string) map[string]int {
	colMap := make(map[string]int)
	for i, col := range header {
		colMap[strings.TrimSpace(col)] = i
	}
	return colMap
}

func getField(record []string, colMap map[string]int, fieldName string) string {
	if idx, ok := colMap[fieldName]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}

// importStops loads stops.csv: id,code,name,lat,lon (lat/lon optional,
// blank meaning the stop has no fixed location — §3's note that a
// locationless stop is admissible only as a label).
func importStops(ctx context.Context, pool *pgxpool.Pool, dir string) error {
	r, colMap, f, err := openCSV(dir, "stops.csv")
	if err != nil {
		return err
	}
	defer f.Close()

	batch := &pgx.Batch{}
	count := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("Warning: skipping malformed stop row: %v", err)
			continue
		}

		id, err := strconv.ParseInt(getField(record, colMap, "id"), 10, 64)
		if err != nil {
			log.Printf("Warning: skipping stop row with bad id: %v", err)
			continue
		}
		code := getField(record, colMap, "code")
		name := getField(record, colMap, "name")

		var lat, lon interface{}
		if latStr := getField(record, colMap, "lat"); latStr != "" {
			if v, err := strconv.ParseFloat(latStr, 64); err == nil {
				lat = v
			}
		}
		if lonStr := getField(record, colMap, "lon"); lonStr != "" {
			if v, err := strconv.ParseFloat(lonStr, 64); err == nil {
				lon = v
			}
		}

		batch.Queue(`
			INSERT INTO stops (id, code, name, lat, lon)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE
			SET code = EXCLUDED.code, name = EXCLUDED.name, lat = EXCLUDED.lat, lon = EXCLUDED.lon
		`, id, code, name, lat, lon)
		count++
	}

	if err := runBatch(ctx, pool, batch); err != nil {
		return err
	}
	log.Printf("Imported %d stops", count)
	return nil
}

// importVariantStops loads variant_stops.csv: variant_id,seq,stop_id.
func importVariantStops(ctx context.Context, pool *pgxpool.Pool, dir string) error {
	r, colMap, f, err := openCSV(dir, "variant_stops.csv")
	if err != nil {
		return err
	}
	defer f.Close()

	batch := &pgx.Batch{}
	count := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("Warning: skipping malformed variant_stops row: %v", err)
			continue
		}

		variantID := getField(record, colMap, "variant_id")
		seq, err := strconv.Atoi(getField(record, colMap, "seq"))
		if err != nil {
			log.Printf("Warning: skipping variant_stops row with bad seq: %v", err)
			continue
		}
		stopID, err := strconv.ParseInt(getField(record, colMap, "stop_id"), 10, 64)
		if err != nil {
			log.Printf("Warning: skipping variant_stops row with bad stop_id: %v", err)
			continue
		}

		batch.Queue(`
			INSERT INTO variant_stops (variant_id, seq, stop_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (variant_id, seq) DO UPDATE SET stop_id = EXCLUDED.stop_id
		`, variantID, seq, stopID)
		count++
	}

	if err := runBatch(ctx, pool, batch); err != nil {
		return err
	}
	log.Printf("Imported %d variant_stops rows", count)
	return nil
}

// importCourses loads courses.csv: course_id,variant_id.
func importCourses(ctx context.Context, pool *pgxpool.Pool, dir string) error {
	r, colMap, f, err := openCSV(dir, "courses.csv")
	if err != nil {
		return err
	}
	defer f.Close()

	batch := &pgx.Batch{}
	count := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("Warning: skipping malformed course row: %v", err)
			continue
		}

		courseID := getField(record, colMap, "course_id")
		variantID := getField(record, colMap, "variant_id")

		batch.Queue(`
			INSERT INTO courses (course_id, variant_id)
			VALUES ($1, $2)
			ON CONFLICT (course_id) DO UPDATE SET variant_id = EXCLUDED.variant_id
		`, courseID, variantID)
		count++
	}

	if err := runBatch(ctx, pool, batch); err != nil {
		return err
	}
	log.Printf("Imported %d courses", count)
	return nil
}

// importCourseStopTimesChunked loads course_stop_times.csv:
// course_id,stop_id,departure_minute. This is normally the largest file by
// far, so it is committed in chunked transactions the way the teacher's
// importStopTimesChunked handled stop_times.
func importCourseStopTimesChunked(ctx context.Context, pool *pgxpool.Pool, dir string) error {
	r, colMap, f, err := openCSV(dir, "course_stop_times.csv")
	if err != nil {
		return err
	}
	defer f.Close()

	const chunkSize = 1000
	batch := &pgx.Batch{}
	total := 0

	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		results := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				results.Close()
				tx.Rollback(ctx)
				return fmt.Errorf("insert course_stop_times batch: %w", err)
			}
		}
		results.Close()
		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit course_stop_times chunk: %w", err)
		}
		batch = &pgx.Batch{}
		return nil
	}

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("Warning: skipping malformed course_stop_times row: %v", err)
			continue
		}

		courseID := getField(record, colMap, "course_id")
		stopID, err := strconv.ParseInt(getField(record, colMap, "stop_id"), 10, 64)
		if err != nil {
			log.Printf("Warning: skipping course_stop_times row with bad stop_id: %v", err)
			continue
		}
		departureMinute, err := strconv.Atoi(getField(record, colMap, "departure_minute"))
		if err != nil {
			log.Printf("Warning: skipping course_stop_times row with bad departure_minute: %v", err)
			continue
		}

		batch.Queue(`
			INSERT INTO course_stop_times (course_id, stop_id, departure_minute)
			VALUES ($1, $2, $3)
			ON CONFLICT (course_id, stop_id) DO UPDATE SET departure_minute = EXCLUDED.departure_minute
		`, courseID, stopID, departureMinute)
		total++

		if batch.Len() >= chunkSize {
			if err := flush(); err != nil {
				return err
			}
			log.Printf("  imported course_stop_times: %d so far", total)
		}
	}
	if err := flush(); err != nil {
		return err
	}

	log.Printf("Imported %d course_stop_times rows", total)
	return nil
}

// importWalkNeighbours loads walk_neighbours.csv: stop_id,neighbour_id,distance_metres.
func importWalkNeighbours(ctx context.Context, pool *pgxpool.Pool, dir string) error {
	r, colMap, f, err := openCSV(dir, "walk_neighbours.csv")
	if err != nil {
		return err
	}
	defer f.Close()

	batch := &pgx.Batch{}
	count := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Printf("Warning: skipping malformed walk_neighbours row: %v", err)
			continue
		}

		stopID, err := strconv.ParseInt(getField(record, colMap, "stop_id"), 10, 64)
		if err != nil {
			log.Printf("Warning: skipping walk_neighbours row with bad stop_id: %v", err)
			continue
		}
		neighbourID, err := strconv.ParseInt(getField(record, colMap, "neighbour_id"), 10, 64)
		if err != nil {
			log.Printf("Warning: skipping walk_neighbours row with bad neighbour_id: %v", err)
			continue
		}
		distance, err := strconv.ParseFloat(getField(record, colMap, "distance_metres"), 64)
		if err != nil {
			log.Printf("Warning: skipping walk_neighbours row with bad distance_metres: %v", err)
			continue
		}

		batch.Queue(`
			INSERT INTO walk_neighbours (stop_id, neighbour_id, distance_metres)
			VALUES ($1, $2, $3)
			ON CONFLICT (stop_id, neighbour_id) DO UPDATE SET distance_metres = EXCLUDED.distance_metres
		`, stopID, neighbourID, distance)
		count++
	}

	if err := runBatch(ctx, pool, batch); err != nil {
		return err
	}
	log.Printf("Imported %d walk_neighbours rows", count)
	return nil
}

func runBatch(ctx context.Context, pool *pgxpool.Pool, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	results := pool.SendBatch(ctx, batch)
	defer results.Close()
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch exec at row %d: %w", i, err)
		}
	}
	return nil
}
