package analysis

import "context"

// Repository port (interface untuk persistence backend)
//
// Save assigns the given record ID in the backing store and returns it.
// Every backend in the persistence chain implements the full contract so
// reads keep working when only a fallback tier is reachable.
type Repository interface {
	Name() string
	Save(ctx context.Context, r *Record) (RecordID, error)
	Get(ctx context.Context, id RecordID) (*Record, error)
	Latest(ctx context.Context, limit int) ([]*Record, error)
	Search(ctx context.Context, query string, limit int) ([]*Record, error)
	Stats(ctx context.Context) (Stats, error)
}

// Preprocessor port (decode/resize/normalize uploaded bytes)
type Preprocessor interface {
	Prepare(ctx context.Context, raw []byte) (*PreparedImage, error)
}

// TextExtractor port (OCR collaborator)
type TextExtractor interface {
	ExtractText(ctx context.Context, img *PreparedImage) (string, error)
}

// Captioner port (scene caption collaborator)
type Captioner interface {
	Caption(ctx context.Context, img *PreparedImage) (string, error)
}

// ObjectDetector port. Returns object labels ordered by detector confidence.
type ObjectDetector interface {
	DetectObjects(ctx context.Context, img *PreparedImage) ([]string, error)
}

// Inferencer port (historical-event inference collaborator)
type Inferencer interface {
	InferEvent(ctx context.Context, in InferenceInput) (Inference, error)
}

// Geocoder port (location name to coordinates)
type Geocoder interface {
	Geocode(ctx context.Context, locationName string) (GPS, error)
}

// ImageStore port (object storage for uploaded originals)
type ImageStore interface {
	UploadImage(ctx context.Context, key string, jpeg []byte) (string, error)
}
