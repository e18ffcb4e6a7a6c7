package pipeline

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	domain "github.com/bryanwahyu/historify/internal/domain/analysis"
)

// AssembleInput carries the stage results of one pipeline run.
type AssembleInput struct {
	ImageName string
	ImageURL  string
	OCR       domain.StageResult[string]
	Caption   domain.StageResult[string]
	Objects   domain.StageResult[[]string]
	Inference domain.StageResult[domain.Inference]
	Geocode   domain.StageResult[domain.GPS]
	Now       time.Time
}

// Assemble merges stage results into one schema-complete record. It is a
// pure function and is total: any combination of failed stages still yields
// a structurally valid record with documented sentinel values. All default
// and clamping logic for missing fields lives here and nowhere else.
func Assemble(in AssembleInput) *domain.Record {
	rec := &domain.Record{
		ImageName:       in.ImageName,
		ImageURL:        in.ImageURL,
		Title:           domain.UndeterminedTitle,
		Event:           domain.UndeterminedEvent,
		Description:     domain.UndeterminedDescription,
		ImageText:       stripControl(in.OCR.PayloadOr("")),
		DetectedObjects: dedupeObjects(in.Objects.PayloadOr(nil)),
		SourceLinks:     []string{},
		CreatedAt:       in.Now,
	}

	if in.Inference.OK {
		inf := in.Inference.Payload
		if t := strings.TrimSpace(inf.Title); t != "" {
			rec.Title = t
		}
		if e := strings.TrimSpace(inf.Event); e != "" {
			rec.Event = e
		}
		if d := strings.TrimSpace(inf.Description); d != "" {
			rec.Description = d
		}
		if loc := strings.TrimSpace(inf.LocationName); loc != "" && !isUnknownLocation(loc) {
			rec.LocationName = &loc
		}
		rec.Year = plausibleYear(inf.Year, in.Now)
		rec.ExactDate = consistentDate(inf.ExactDate, rec.Year)
		rec.Confidence = clampConfidence(inf.Confidence)
		rec.SourceLinks = wikipediaLinks(rec.Event)
	}

	// gps implies location_name, and coordinates must be in range
	if in.Geocode.OK && rec.LocationName != nil && validGPS(in.Geocode.Payload) {
		gps := in.Geocode.Payload
		rec.GPS = &gps
	}

	for _, sr := range []struct {
		stage  domain.Stage
		ok     bool
		reason string
	}{
		{in.OCR.Stage, in.OCR.OK, in.OCR.Reason},
		{in.Caption.Stage, in.Caption.OK, in.Caption.Reason},
		{in.Objects.Stage, in.Objects.OK, in.Objects.Reason},
		{in.Inference.Stage, in.Inference.OK, in.Inference.Reason},
		{in.Geocode.Stage, in.Geocode.OK, in.Geocode.Reason},
	} {
		if !sr.ok {
			if rec.StageErrors == nil {
				rec.StageErrors = make(map[string]string)
			}
			rec.StageErrors[string(sr.stage)] = sr.reason
		}
	}

	return rec
}

// clampConfidence forces each score into [0,100].
func clampConfidence(c domain.Confidence) domain.Confidence {
	return domain.Confidence{
		Year:     clampScore(c.Year),
		Location: clampScore(c.Location),
		Event:    clampScore(c.Event),
	}
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// plausibleYear rejects years outside [1800, current year].
func plausibleYear(year *int, now time.Time) *int {
	if year == nil {
		return nil
	}
	if *year < 1800 || *year > now.Year() {
		return nil
	}
	y := *year
	return &y
}

// consistentDate keeps an ISO date only when it parses and falls in the
// same calendar year as the record's year.
func consistentDate(exact string, year *int) *string {
	exact = strings.TrimSpace(exact)
	if exact == "" || year == nil {
		return nil
	}
	t, err := time.Parse("2006-01-02", exact)
	if err != nil || t.Year() != *year {
		return nil
	}
	return &exact
}

func isUnknownLocation(loc string) bool {
	switch strings.ToLower(loc) {
	case "unknown", "unknown location", "n/a":
		return true
	}
	return false
}

func validGPS(g domain.GPS) bool {
	return g.Lat >= -90 && g.Lat <= 90 && g.Lon >= -180 && g.Lon <= 180
}

// dedupeObjects preserves first-seen order and never returns nil.
func dedupeObjects(objects []string) []string {
	out := make([]string, 0, len(objects))
	seen := make(map[string]bool, len(objects))
	for _, o := range objects {
		o = strings.TrimSpace(o)
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		out = append(out, o)
	}
	return out
}

// stripControl removes control characters OCR sometimes leaks into text.
func stripControl(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' {
			continue
		}
		b.WriteRune(r)
	}
	return strings.TrimSpace(b.String())
}

func wikipediaLinks(event string) []string {
	if event == "" || event == domain.UndeterminedEvent {
		return []string{}
	}
	search := fmt.Sprintf("https://en.wikipedia.org/w/index.php?search=%s", url.QueryEscape(event))
	direct := fmt.Sprintf("https://en.wikipedia.org/wiki/%s", url.PathEscape(strings.ReplaceAll(event, " ", "_")))
	return []string{search, direct}
}
