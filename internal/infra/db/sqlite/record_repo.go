package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	domain "github.com/bryanwahyu/historify/internal/domain/analysis"
)

// RecordRepository is the tertiary (local embedded) tier of the persistence
// chain. It wraps SQLite so a record survives even when no network backend
// is reachable.
type RecordRepository struct {
	db *sql.DB
}

func Open(path string) (*RecordRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	r := &RecordRepository{db: db}
	if err := r.migrate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RecordRepository) Close() error { return r.db.Close() }

func (r *RecordRepository) Name() string { return "sqlite" }

func (r *RecordRepository) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_records (
            id TEXT PRIMARY KEY,
            image_name TEXT,
            image_url TEXT,
            title TEXT NOT NULL,
            event TEXT NOT NULL,
            description TEXT NOT NULL,
            location_name TEXT,
            gps_lat REAL,
            gps_lon REAL,
            year INTEGER,
            exact_date TEXT,
            confidence_year INTEGER NOT NULL DEFAULT 0,
            confidence_location INTEGER NOT NULL DEFAULT 0,
            confidence_event INTEGER NOT NULL DEFAULT 0,
            image_text TEXT NOT NULL DEFAULT '',
            detected_objects TEXT NOT NULL DEFAULT '[]',
            source_links TEXT NOT NULL DEFAULT '[]',
            stage_errors TEXT,
            created_at TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS idx_records_created ON analysis_records(created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_records_year ON analysis_records(year);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save insert/update Record
func (r *RecordRepository) Save(ctx context.Context, rec *domain.Record) (domain.RecordID, error) {
	const q = `
INSERT INTO analysis_records
(id, image_name, image_url, title, event, description, location_name,
 gps_lat, gps_lon, year, exact_date,
 confidence_year, confidence_location, confidence_event,
 image_text, detected_objects, source_links, stage_errors, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT (id) DO UPDATE SET
 title=excluded.title, event=excluded.event, description=excluded.description,
 location_name=excluded.location_name,
 gps_lat=excluded.gps_lat, gps_lon=excluded.gps_lon,
 year=excluded.year, exact_date=excluded.exact_date;
`
	if rec.ID == "" {
		return "", fmt.Errorf("record id is required")
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	objects, links, stageErrs := encodeJSONFields(rec)

	var lat, lon sql.NullFloat64
	if rec.GPS != nil {
		lat = sql.NullFloat64{Float64: rec.GPS.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: rec.GPS.Lon, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, q,
		rec.ID, rec.ImageName, rec.ImageURL, rec.Title, rec.Event, rec.Description, rec.LocationName,
		lat, lon, rec.Year, rec.ExactDate,
		rec.Confidence.Year, rec.Confidence.Location, rec.Confidence.Event,
		rec.ImageText, objects, links, stageErrs, created,
	)
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

const selectColumns = `
id, image_name, image_url, title, event, description, location_name,
gps_lat, gps_lon, year, exact_date,
confidence_year, confidence_location, confidence_event,
image_text, detected_objects, source_links, stage_errors, created_at`

// Get by ID
func (r *RecordRepository) Get(ctx context.Context, id domain.RecordID) (*domain.Record, error) {
	q := `SELECT ` + selectColumns + ` FROM analysis_records WHERE id=? LIMIT 1;`
	return scanRecord(r.db.QueryRowContext(ctx, q, id))
}

// Latest records, newest first
func (r *RecordRepository) Latest(ctx context.Context, limit int) ([]*domain.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT ` + selectColumns + ` FROM analysis_records ORDER BY created_at DESC LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// Search by title, event or location
func (r *RecordRepository) Search(ctx context.Context, query string, limit int) ([]*domain.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	term := "%" + escapeLikePattern(query) + "%"
	q := `SELECT ` + selectColumns + ` FROM analysis_records
WHERE title LIKE ? ESCAPE '\' OR event LIKE ? ESCAPE '\' OR location_name LIKE ? ESCAPE '\'
ORDER BY created_at DESC LIMIT ?;`
	rows, err := r.db.QueryContext(ctx, q, term, term, term, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRecords(rows)
}

// Stats rekap total + per-year histogram
func (r *RecordRepository) Stats(ctx context.Context) (domain.Stats, error) {
	stats := domain.Stats{ByYear: map[int]int{}}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM analysis_records;`).Scan(&stats.TotalRecords); err != nil {
		return domain.Stats{}, err
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT year, COUNT(*) FROM analysis_records
WHERE year IS NOT NULL
GROUP BY year ORDER BY year DESC LIMIT 10;`)
	if err != nil {
		return domain.Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var year, count int
		if err := rows.Scan(&year, &count); err != nil {
			return domain.Stats{}, err
		}
		stats.ByYear[year] = count
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	var (
		rec       domain.Record
		location  sql.NullString
		lat, lon  sql.NullFloat64
		year      sql.NullInt64
		exactDate sql.NullString
		objects   string
		links     string
		stageErrs sql.NullString
	)
	if err := row.Scan(
		&rec.ID, &rec.ImageName, &rec.ImageURL, &rec.Title, &rec.Event, &rec.Description, &location,
		&lat, &lon, &year, &exactDate,
		&rec.Confidence.Year, &rec.Confidence.Location, &rec.Confidence.Event,
		&rec.ImageText, &objects, &links, &stageErrs, &rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	if location.Valid {
		rec.LocationName = &location.String
	}
	if lat.Valid && lon.Valid {
		rec.GPS = &domain.GPS{Lat: lat.Float64, Lon: lon.Float64}
	}
	if year.Valid {
		y := int(year.Int64)
		rec.Year = &y
	}
	if exactDate.Valid && exactDate.String != "" {
		rec.ExactDate = &exactDate.String
	}
	_ = json.Unmarshal([]byte(objects), &rec.DetectedObjects)
	_ = json.Unmarshal([]byte(links), &rec.SourceLinks)
	if stageErrs.Valid && stageErrs.String != "" {
		_ = json.Unmarshal([]byte(stageErrs.String), &rec.StageErrors)
	}
	if rec.DetectedObjects == nil {
		rec.DetectedObjects = []string{}
	}
	if rec.SourceLinks == nil {
		rec.SourceLinks = []string{}
	}
	rec.StorageBackend = "sqlite"
	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]*domain.Record, error) {
	var out []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func encodeJSONFields(rec *domain.Record) (objects, links string, stageErrs sql.NullString) {
	b, _ := json.Marshal(rec.DetectedObjects)
	objects = string(b)
	b, _ = json.Marshal(rec.SourceLinks)
	links = string(b)
	if len(rec.StageErrors) > 0 {
		b, _ = json.Marshal(rec.StageErrors)
		stageErrs = sql.NullString{String: string(b), Valid: true}
	}
	return objects, links, stageErrs
}

// escapeLikePattern escapes special characters in LIKE patterns to prevent SQL injection
func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "%", "\\%")
	s = strings.ReplaceAll(s, "_", "\\_")
	return s
}
