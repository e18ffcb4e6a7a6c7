package analysis

import (
	"time"
)

// ID tipe untuk Record
type RecordID string

// Stage enum
type Stage string

const (
	StageOCR       Stage = "ocr"
	StageCaption   Stage = "caption"
	StageObjects   Stage = "objects"
	StageInference Stage = "inference"
	StageGeocode   Stage = "geocode"
)

// Sentinels substituted when the inference stage fails or omits a field.
// Downstream consumers require title/description to exist, so they are
// never empty on an assembled record.
const (
	UndeterminedTitle       = "Undetermined Event"
	UndeterminedEvent       = "Undetermined Historical Event"
	UndeterminedDescription = "Unable to determine the historical event from the available evidence."
)

// GPS value object. Lat in [-90,90], Lon in [-180,180].
type GPS struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Confidence value object. Every key is always present, 0..100.
type Confidence struct {
	Year     int `json:"year"`
	Location int `json:"location"`
	Event    int `json:"event"`
}

// Aggregate Root: Record
//
// A Record is created once per pipeline run by the assembler and is
// immutable afterwards, except for ID and StorageBackend which the
// persistence chain sets on a successful write.
type Record struct {
	ID              RecordID          `json:"id,omitempty"`
	ImageName       string            `json:"image_name"`
	ImageURL        string            `json:"image_url,omitempty"`
	Title           string            `json:"title"`
	Event           string            `json:"event"`
	Description     string            `json:"description"`
	LocationName    *string           `json:"location_name"`
	GPS             *GPS              `json:"gps"`
	Year            *int              `json:"year"`
	ExactDate       *string           `json:"exact_date"`
	Confidence      Confidence        `json:"confidence"`
	ImageText       string            `json:"image_text"`
	DetectedObjects []string          `json:"detected_objects"`
	SourceLinks     []string          `json:"source_links"`
	StageErrors     map[string]string `json:"stage_errors,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	StorageBackend  string            `json:"storage_backend,omitempty"`
}

// Stats rekap database untuk endpoint /v1/stats
type Stats struct {
	TotalRecords int         `json:"total_records"`
	ByYear       map[int]int `json:"records_by_year"`
}

// Inference is the validated payload of the historical-inference stage.
type Inference struct {
	Title        string
	Event        string
	Description  string
	LocationName string
	Year         *int
	ExactDate    string
	Confidence   Confidence
}

// PreparedImage is the handle produced by image preprocessing. The
// orchestration layer never inspects pixel data, only passes the handle on.
type PreparedImage struct {
	JPEG      []byte
	Width     int
	Height    int
	Grayscale bool
}

// InferenceInput merges whatever the group-A stages recovered. Failed
// stages contribute their zero value so the inference collaborator can
// degrade gracefully on partial input.
type InferenceInput struct {
	Caption   string
	ImageText string
	Objects   []string
}
