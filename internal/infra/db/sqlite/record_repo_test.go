package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	domain "github.com/bryanwahyu/historify/internal/domain/analysis"
)

func openTestRepo(t *testing.T) *RecordRepository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func sampleRecord(id string, created time.Time) *domain.Record {
	loc := "Brandenburg Gate, Berlin, Germany"
	year := 1989
	date := "1989-11-09"
	return &domain.Record{
		ID:              domain.RecordID(id),
		ImageName:       "berlin.jpg",
		ImageURL:        "https://img.example.com/analyses/berlin.jpg",
		Title:           "Fall of the Berlin Wall",
		Event:           "Fall of the Berlin Wall",
		Description:     "Civilians gather at the Berlin Wall as border crossings open.",
		LocationName:    &loc,
		GPS:             &domain.GPS{Lat: 52.5163, Lon: 13.3777},
		Year:            &year,
		ExactDate:       &date,
		Confidence:      domain.Confidence{Year: 98, Location: 95, Event: 97},
		ImageText:       "9 NOVEMBER 1989",
		DetectedObjects: []string{"person", "wall", "gate"},
		SourceLinks:     []string{"https://en.wikipedia.org/wiki/Fall_of_the_Berlin_Wall"},
		StageErrors:     map[string]string{"geocode": "timeout"},
		CreatedAt:       created,
	}
}

func TestSaveAndGet(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	in := sampleRecord("rec-1", time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC))
	if _, err := repo.Save(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := repo.Get(ctx, "rec-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if got.Title != in.Title || got.Event != in.Event || got.Description != in.Description {
		t.Errorf("got %+v", got)
	}
	if got.LocationName == nil || *got.LocationName != *in.LocationName {
		t.Errorf("location_name = %v", got.LocationName)
	}
	if got.GPS == nil || got.GPS.Lat != 52.5163 || got.GPS.Lon != 13.3777 {
		t.Errorf("gps = %v", got.GPS)
	}
	if got.Year == nil || *got.Year != 1989 {
		t.Errorf("year = %v", got.Year)
	}
	if got.ExactDate == nil || *got.ExactDate != "1989-11-09" {
		t.Errorf("exact_date = %v", got.ExactDate)
	}
	if got.Confidence != in.Confidence {
		t.Errorf("confidence = %+v", got.Confidence)
	}
	if len(got.DetectedObjects) != 3 || got.DetectedObjects[0] != "person" {
		t.Errorf("detected_objects = %v", got.DetectedObjects)
	}
	if got.StageErrors["geocode"] != "timeout" {
		t.Errorf("stage_errors = %v", got.StageErrors)
	}
	if got.StorageBackend != "sqlite" {
		t.Errorf("storage_backend = %q", got.StorageBackend)
	}
}

func TestSaveSentinelRecordWithNullFields(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	in := &domain.Record{
		ID:              "rec-nulls",
		ImageName:       "unknown.jpg",
		Title:           domain.UndeterminedTitle,
		Event:           domain.UndeterminedEvent,
		Description:     domain.UndeterminedDescription,
		DetectedObjects: []string{},
		SourceLinks:     []string{},
		CreatedAt:       time.Now().UTC(),
	}
	if _, err := repo.Save(ctx, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := repo.Get(ctx, "rec-nulls")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LocationName != nil || got.GPS != nil || got.Year != nil || got.ExactDate != nil {
		t.Errorf("nullable fields not round-tripped as nil: %+v", got)
	}
	if got.DetectedObjects == nil || got.SourceLinks == nil {
		t.Error("empty slices must not come back nil")
	}
}

func TestSaveRequiresID(t *testing.T) {
	repo := openTestRepo(t)
	if _, err := repo.Save(context.Background(), &domain.Record{Title: "t"}); err == nil {
		t.Fatal("expected error for record without id")
	}
}

func TestGetMissing(t *testing.T) {
	repo := openTestRepo(t)
	_, err := repo.Get(context.Background(), "absent")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestLatestOrder(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		rec := sampleRecord(id, base.Add(time.Duration(i)*time.Hour))
		if _, err := repo.Save(ctx, rec); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	got, err := repo.Latest(ctx, 2)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(got) != 2 || got[0].ID != "new" || got[1].ID != "mid" {
		ids := make([]domain.RecordID, len(got))
		for i, r := range got {
			ids[i] = r.ID
		}
		t.Errorf("latest ids = %v", ids)
	}
}

func TestSearch(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	wall := sampleRecord("wall", time.Now().UTC())
	if _, err := repo.Save(ctx, wall); err != nil {
		t.Fatal(err)
	}
	other := sampleRecord("moon", time.Now().UTC())
	other.Title = "Apollo 11 Moon Landing"
	other.Event = "Apollo 11 Moon Landing"
	loc := "Sea of Tranquility"
	other.LocationName = &loc
	if _, err := repo.Save(ctx, other); err != nil {
		t.Fatal(err)
	}

	got, err := repo.Search(ctx, "berlin", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "wall" {
		t.Errorf("search results = %v", got)
	}

	// LIKE metacharacters in the query match literally.
	got, err = repo.Search(ctx, "100%", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("wildcard leaked into pattern, got %d results", len(got))
	}
}

func TestStats(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	first := sampleRecord("a", time.Now().UTC())
	second := sampleRecord("b", time.Now().UTC())
	third := sampleRecord("c", time.Now().UTC())
	y := 1969
	third.Year = &y
	noYear := sampleRecord("d", time.Now().UTC())
	noYear.Year = nil
	for _, rec := range []*domain.Record{first, second, third, noYear} {
		if _, err := repo.Save(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalRecords != 4 {
		t.Errorf("total = %d", stats.TotalRecords)
	}
	if stats.ByYear[1989] != 2 || stats.ByYear[1969] != 1 {
		t.Errorf("by_year = %v", stats.ByYear)
	}
	if _, ok := stats.ByYear[0]; ok {
		t.Error("null years must not appear in the histogram")
	}
}
