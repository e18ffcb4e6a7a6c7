package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bryanwahyu/historify/internal/application"
	domain "github.com/bryanwahyu/historify/internal/domain/analysis"
)

// Service implements the analysis pipeline use-case: run every stage,
// isolate per-stage failure, assemble one canonical record, and persist it
// through the backend chain.
//
// Service is designed to be used concurrently and is thread-safe: each run
// owns its stage results and collaborators own their clients.
type Service struct {
	Pre        domain.Preprocessor
	OCR        domain.TextExtractor
	Captioner  domain.Captioner
	Detector   domain.ObjectDetector
	Inferencer domain.Inferencer
	Geocoder   domain.Geocoder
	Images     domain.ImageStore // optional; nil disables original-image upload
	Chain      *Chain
	Clock      application.Clock

	// StageTimeout bounds each collaborator call, PipelineTimeout the
	// whole run including persistence.
	StageTimeout    time.Duration
	PipelineTimeout time.Duration
}

// AnalyzeCommand carries one uploaded image.
type AnalyzeCommand struct {
	ImageName string
	Data      []byte
}

// AnalyzeResult is what the caller receives: the record always, and the
// persistence outcome. Stored=false means every backend failed and the
// record is not durable.
type AnalyzeResult struct {
	Record  *domain.Record `json:"record"`
	Stored  bool           `json:"stored"`
	Backend string         `json:"backend,omitempty"`
}

// Analyze preprocesses the image, runs the concurrent analysis stages, the
// dependent inference and geocode stages, assembles the record and persists
// it. Individual stage failures never abort the run; only an unusable image
// or a canceled context does.
func (s *Service) Analyze(ctx context.Context, cmd AnalyzeCommand) (AnalyzeResult, error) {
	if s.PipelineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.PipelineTimeout)
		defer cancel()
	}

	img, err := s.Pre.Prepare(ctx, cmd.Data)
	if err != nil {
		return AnalyzeResult{}, fmt.Errorf("prepare image: %w", err)
	}

	// Original upload runs alongside group A; a failed upload only costs
	// the record its image_url.
	imageURL := make(chan string, 1)
	go func() {
		imageURL <- s.uploadOriginal(ctx, cmd.ImageName, img)
	}()

	// Group A: no interdependencies, run concurrently on the read-only
	// prepared image. The merge below must not start before all three
	// reported success or failure.
	var (
		wg      sync.WaitGroup
		ocr     domain.StageResult[string]
		caption domain.StageResult[string]
		objects domain.StageResult[[]string]
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		ocr = runStage(ctx, domain.StageOCR, s.StageTimeout, func(c context.Context) (string, error) {
			return s.OCR.ExtractText(c, img)
		})
	}()
	go func() {
		defer wg.Done()
		caption = runStage(ctx, domain.StageCaption, s.StageTimeout, func(c context.Context) (string, error) {
			return s.Captioner.Caption(c, img)
		})
	}()
	go func() {
		defer wg.Done()
		objects = runStage(ctx, domain.StageObjects, s.StageTimeout, func(c context.Context) ([]string, error) {
			return s.Detector.DetectObjects(c, img)
		})
	}()
	wg.Wait()

	// Stage B consumes whatever group A recovered, empty sentinels for
	// anything that failed.
	input := domain.InferenceInput{
		Caption:   caption.PayloadOr(""),
		ImageText: ocr.PayloadOr(""),
		Objects:   objects.PayloadOr(nil),
	}
	inference := runStage(ctx, domain.StageInference, s.StageTimeout, func(c context.Context) (domain.Inference, error) {
		return s.Inferencer.InferEvent(c, input)
	})

	// Stage C only makes sense with a usable location from stage B.
	geocode := domain.Failed[domain.GPS](domain.StageGeocode, "no location")
	if loc := inferredLocation(inference); loc != "" {
		geocode = runStage(ctx, domain.StageGeocode, s.StageTimeout, func(c context.Context) (domain.GPS, error) {
			return s.Geocoder.Geocode(c, loc)
		})
	}

	for _, line := range []struct {
		stage    domain.Stage
		ok       bool
		reason   string
		duration time.Duration
	}{
		{domain.StageOCR, ocr.OK, ocr.Reason, ocr.Duration},
		{domain.StageCaption, caption.OK, caption.Reason, caption.Duration},
		{domain.StageObjects, objects.OK, objects.Reason, objects.Duration},
		{domain.StageInference, inference.OK, inference.Reason, inference.Duration},
		{domain.StageGeocode, geocode.OK, geocode.Reason, geocode.Duration},
	} {
		if line.ok {
			log.Printf("stage=%s status=ok duration=%s", line.stage, line.duration)
		} else {
			log.Printf("stage=%s status=failed reason=%q duration=%s", line.stage, line.reason, line.duration)
		}
	}

	rec := Assemble(AssembleInput{
		ImageName: cmd.ImageName,
		ImageURL:  <-imageURL,
		OCR:       ocr,
		Caption:   caption,
		Objects:   objects,
		Inference: inference,
		Geocode:   geocode,
		Now:       s.Clock.Now(),
	})

	outcome, err := s.Chain.Persist(ctx, rec)
	if err != nil {
		if !errors.Is(err, domain.ErrStorageExhausted) {
			return AnalyzeResult{}, err
		}
		log.Printf("persist record for image=%q: %v", cmd.ImageName, err)
		return AnalyzeResult{Record: rec}, nil
	}

	return AnalyzeResult{Record: rec, Stored: true, Backend: outcome.Backend}, nil
}

func (s *Service) uploadOriginal(ctx context.Context, name string, img *domain.PreparedImage) string {
	if s.Images == nil {
		return ""
	}
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if base == "" || base == "." {
		base = "upload"
	}
	key := fmt.Sprintf("analyses/%s_%s.jpg", s.Clock.Now().Format("20060102_150405"), strings.ReplaceAll(base, " ", "_"))
	url, err := s.Images.UploadImage(ctx, key, img.JPEG)
	if err != nil {
		log.Printf("image upload key=%s error=%v", key, err)
		return ""
	}
	return url
}

func inferredLocation(r domain.StageResult[domain.Inference]) string {
	if !r.OK {
		return ""
	}
	loc := strings.TrimSpace(r.Payload.LocationName)
	if loc == "" || isUnknownLocation(loc) {
		return ""
	}
	return loc
}
