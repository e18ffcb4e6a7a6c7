package vision

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	domain "github.com/bryanwahyu/historify/internal/domain/analysis"
)

func testImage() *domain.PreparedImage {
	return &domain.PreparedImage{JPEG: []byte("jpeg"), Width: 800, Height: 600}
}

func TestDetectObjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("content type = %q", ct)
		}
		fmt.Fprint(w, `{"detections":[
			{"label":"person","confidence":0.92},
			{"label":"wall","confidence":0.87},
			{"label":"gate","confidence":0.81},
			{"label":"kite","confidence":0.95},
			{"label":"person","confidence":0.40},
			{"label":"dog","confidence":0.05}
		]}`)
	}))
	defer srv.Close()

	d := NewDetector(srv.Client(), srv.URL, 0.3)
	got, err := d.DetectObjects(context.Background(), testImage())
	if err != nil {
		t.Fatalf("detect: %v", err)
	}

	// kite is irrelevant, dog is below threshold, person is deduplicated.
	if !reflect.DeepEqual(got, []string{"person", "wall", "gate"}) {
		t.Errorf("objects = %v", got)
	}
}

func TestDetectObjectsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d := NewDetector(srv.Client(), srv.URL, 0.3)
	if _, err := d.DetectObjects(context.Background(), testImage()); err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestDetectObjectsNoEndpoint(t *testing.T) {
	d := NewDetector(nil, "", 0.3)
	if _, err := d.DetectObjects(context.Background(), testImage()); err == nil {
		t.Fatal("expected error without an endpoint")
	}
}

func TestFilterRelevant(t *testing.T) {
	dets := []detection{
		{Label: "Stone Wall", Confidence: 0.6},
		{Label: "person", Confidence: 0.9},
		{Label: "refrigerator", Confidence: 0.99},
		{Label: "flag", Confidence: 0.6},
		{Label: "", Confidence: 0.9},
	}

	got := filterRelevant(dets, 0.3)
	// "stone wall" matches the wall keyword; equal confidences order
	// alphabetically.
	want := []string{"person", "flag", "stone wall"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("filterRelevant = %v, want %v", got, want)
	}
}
