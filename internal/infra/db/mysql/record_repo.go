package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	domain "github.com/bryanwahyu/historify/internal/domain/analysis"
)

// RecordRepository is the secondary (self-hosted relational) tier of the
// persistence chain.
type RecordRepository struct {
	db *sql.DB
}

func NewRecordRepository(db *sql.DB) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) Name() string { return "mysql" }

// Migrate creates the results table when it does not exist yet.
func (r *RecordRepository) Migrate(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS analysis_records (
    id              VARCHAR(64) PRIMARY KEY,
    image_name      VARCHAR(255),
    image_url       TEXT,
    title           VARCHAR(500) NOT NULL,
    event           VARCHAR(500) NOT NULL,
    description     TEXT NOT NULL,
    location_name   VARCHAR(255),
    gps_lat         DECIMAL(10,8),
    gps_lon         DECIMAL(11,8),
    year            INT,
    exact_date      VARCHAR(20),
    confidence_year     INT NOT NULL DEFAULT 0,
    confidence_location INT NOT NULL DEFAULT 0,
    confidence_event    INT NOT NULL DEFAULT 0,
    image_text      TEXT NOT NULL,
    detected_objects TEXT NOT NULL,
    source_links    TEXT NOT NULL,
    stage_errors    TEXT,
    created_at      TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`
	_, err := r.db.ExecContext(ctx, q)
	return err
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
ON DUPLICATE KEY UPDATE
 title=VALUES(title), event=VALUES(event), description=VALUES(description),
 location_name=VALUES(location_name),
 gps_lat=VALUES(gps_lat), gps_lon=VALUES(gps_lon),
 year=VALUES(year), exact_date=VALUES(exact_date);
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
WHERE title LIKE ? OR event LIKE ? OR location_name LIKE ?
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
	rec.StorageBackend = "mysql"
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
