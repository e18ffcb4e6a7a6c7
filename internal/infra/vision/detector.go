package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	domain "github.com/bryanwahyu/historify/internal/domain/analysis"
)

// Detector calls a YOLO-style inference server over HTTP and keeps only the
// historically relevant labels, ordered by detector confidence.
type Detector struct {
	client        *http.Client
	endpoint      string
	minConfidence float64
}

func NewDetector(client *http.Client, endpoint string, minConfidence float64) *Detector {
	if client == nil {
		client = http.DefaultClient
	}
	if minConfidence <= 0 {
		minConfidence = 0.3
	}
	return &Detector{client: client, endpoint: endpoint, minConfidence: minConfidence}
}

type detection struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

func (d *Detector) DetectObjects(ctx context.Context, img *domain.PreparedImage) ([]string, error) {
	if img == nil || len(img.JPEG) == 0 {
		return nil, errors.New("empty image")
	}
	if d.endpoint == "" {
		return nil, errors.New("detector endpoint not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(img.JPEG))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/jpeg")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("detector status %d", resp.StatusCode)
	}

	var data struct {
		Detections []detection `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode detections: %w", err)
	}

	return filterRelevant(data.Detections, d.minConfidence), nil
}

// filterRelevant drops low-confidence and historically uninteresting
// labels, de-duplicates keeping the best confidence per label, and orders
// the result by confidence descending.
func filterRelevant(dets []detection, minConfidence float64) []string {
	best := make(map[string]float64)
	for _, det := range dets {
		label := strings.ToLower(strings.TrimSpace(det.Label))
		if label == "" || det.Confidence < minConfidence || !historicallyRelevant(label) {
			continue
		}
		if det.Confidence > best[label] {
			best[label] = det.Confidence
		}
	}

	out := make([]string, 0, len(best))
	for label := range best {
		out = append(out, label)
	}
	sort.Slice(out, func(i, j int) bool {
		if best[out[i]] != best[out[j]] {
			return best[out[i]] > best[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

// Objects that commonly matter in historical photographs.
var relevantObjects = map[string]bool{
	"person": true, "people": true, "man": true, "woman": true, "child": true,
	"car": true, "truck": true, "bus": true, "motorcycle": true, "bicycle": true,
	"horse": true, "airplane": true, "train": true, "boat": true, "ship": true,
	"building": true, "house": true, "church": true, "tower": true, "wall": true,
	"gate": true, "flag": true, "sign": true, "banner": true,
	"uniform": true, "hat": true, "weapon": true, "gun": true, "tank": true,
	"crowd": true, "monument": true, "statue": true, "memorial": true,
	"bridge": true, "road": true, "street": true,
	"smoke": true, "fire": true, "camera": true, "microphone": true,
	"book": true, "newspaper": true, "document": true,
}

func historicallyRelevant(label string) bool {
	if relevantObjects[label] {
		return true
	}
	for key := range relevantObjects {
		if strings.Contains(label, key) {
			return true
		}
	}
	return false
}
