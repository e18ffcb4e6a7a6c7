package openai

import (
	"testing"

	domain "github.com/bryanwahyu/historify/internal/domain/analysis"
)

func TestParseInference(t *testing.T) {
	data := []byte(`{
		"title": "Fall of the Berlin Wall",
		"event": "Fall of the Berlin Wall",
		"description": "Civilians gather at the Berlin Wall as border crossings open.",
		"location_name": "Brandenburg Gate, Berlin, Germany",
		"year": 1989,
		"exact_date": "1989-11-09",
		"confidence": {"year": 98, "location": 95, "event": 97}
	}`)

	inf, err := parseInference(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if inf.Title != "Fall of the Berlin Wall" {
		t.Errorf("title = %q", inf.Title)
	}
	if inf.Year == nil || *inf.Year != 1989 {
		t.Errorf("year = %v", inf.Year)
	}
	if inf.ExactDate != "1989-11-09" {
		t.Errorf("exact_date = %q", inf.ExactDate)
	}
	want := domain.Confidence{Year: 98, Location: 95, Event: 97}
	if inf.Confidence != want {
		t.Errorf("confidence = %+v", inf.Confidence)
	}
}

func TestParseInferenceIncompleteResponse(t *testing.T) {
	data := []byte(`{"title": "", "event": "  ", "description": "", "year": 1989}`)
	if _, err := parseInference(data); err == nil {
		t.Fatal("expected error when every identifying field is empty")
	}
}

func TestParseInferenceMalformedJSON(t *testing.T) {
	if _, err := parseInference([]byte(`not json at all`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestParseInferenceYearShapes(t *testing.T) {
	cases := []struct {
		name string
		json string
		want *int
	}{
		{"number", `{"title":"t","year":1989}`, intp(1989)},
		{"numeric string", `{"title":"t","year":"1989"}`, intp(1989)},
		{"unknown string", `{"title":"t","year":"Unknown"}`, nil},
		{"null", `{"title":"t","year":null}`, nil},
		{"absent", `{"title":"t"}`, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inf, err := parseInference([]byte(tc.json))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			switch {
			case tc.want == nil && inf.Year != nil:
				t.Errorf("year = %d, want nil", *inf.Year)
			case tc.want != nil && (inf.Year == nil || *inf.Year != *tc.want):
				t.Errorf("year = %v, want %d", inf.Year, *tc.want)
			}
		})
	}
}

func TestParseInferenceConfidenceDefaults(t *testing.T) {
	cases := []struct {
		name string
		json string
		want domain.Confidence
	}{
		{"absent block", `{"title":"t"}`, domain.Confidence{}},
		{"partial block", `{"title":"t","confidence":{"event":80}}`, domain.Confidence{Event: 80}},
		{"non-numeric entries", `{"title":"t","confidence":{"year":"high","event":97.0}}`, domain.Confidence{Event: 97}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			inf, err := parseInference([]byte(tc.json))
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if inf.Confidence != tc.want {
				t.Errorf("confidence = %+v, want %+v", inf.Confidence, tc.want)
			}
		})
	}
}

func intp(v int) *int { return &v }
