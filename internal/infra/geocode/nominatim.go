package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	domain "github.com/bryanwahyu/historify/internal/domain/analysis"
)

// Nominatim resolves a location name to coordinates via the Nominatim
// search API. When a full location string yields no match the query is
// retried once with a simplified form.
type Nominatim struct {
	client    *http.Client
	baseURL   string
	userAgent string
}

func NewNominatim(client *http.Client, baseURL, userAgent string) *Nominatim {
	if client == nil {
		client = http.DefaultClient
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://nominatim.openstreetmap.org"
	}
	if strings.TrimSpace(userAgent) == "" {
		userAgent = "historify/1.0"
	}
	return &Nominatim{client: client, baseURL: strings.TrimSuffix(baseURL, "/"), userAgent: userAgent}
}

func (n *Nominatim) Geocode(ctx context.Context, locationName string) (domain.GPS, error) {
	locationName = strings.TrimSpace(locationName)
	if locationName == "" {
		return domain.GPS{}, errors.New("missing location")
	}

	gps, err := n.lookup(ctx, locationName)
	if err == nil {
		return gps, nil
	}

	simplified := SimplifyLocation(locationName)
	if simplified != "" && !strings.EqualFold(simplified, locationName) {
		return n.lookup(ctx, simplified)
	}
	return domain.GPS{}, err
}

func (n *Nominatim) lookup(ctx context.Context, query string) (domain.GPS, error) {
	endpoint := fmt.Sprintf("%s/search?q=%s&format=json&limit=1", n.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.GPS{}, err
	}
	req.Header.Set("User-Agent", n.userAgent)

	resp, err := n.client.Do(req)
	if err != nil {
		return domain.GPS{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return domain.GPS{}, fmt.Errorf("nominatim status %d", resp.StatusCode)
	}

	var data []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return domain.GPS{}, err
	}
	if len(data) == 0 {
		return domain.GPS{}, errors.New("no match")
	}

	lat, err := strconv.ParseFloat(data[0].Lat, 64)
	if err != nil {
		return domain.GPS{}, fmt.Errorf("bad latitude %q", data[0].Lat)
	}
	lon, err := strconv.ParseFloat(data[0].Lon, 64)
	if err != nil {
		return domain.GPS{}, fmt.Errorf("bad longitude %q", data[0].Lon)
	}
	return domain.GPS{Lat: round4(lat), Lon: round4(lon)}, nil
}

// SimplifyLocation strips descriptive filler and reduces a comma-separated
// location to its first and last parts, which geocodes far more reliably
// than "near the front of the Brandenburg Gate, Berlin".
func SimplifyLocation(locationName string) string {
	fillers := []string{
		"near the ", "near ", "around the ", "around ",
		"vicinity of the ", "vicinity of ", "area of the ", "area of ",
		"region of ", "in front of the ", "front of the ", "front of ",
		"outside ", "inside ", "at the ", "in the ",
	}
	simplified := strings.ToLower(locationName)
	for _, f := range fillers {
		simplified = strings.ReplaceAll(simplified, f, "")
	}
	simplified = strings.Join(strings.Fields(simplified), " ")

	parts := strings.Split(simplified, ",")
	if len(parts) >= 2 {
		simplified = strings.TrimSpace(parts[0]) + ", " + strings.TrimSpace(parts[len(parts)-1])
	}
	return strings.Title(simplified)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
