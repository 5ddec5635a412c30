package vision

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/your-org/homewatch/internal/config"
	"github.com/your-org/homewatch/internal/ingest"
	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/internal/observability"
)

// IdentityResolver decides who a detection is. Implemented by the
// identity arbiter; faked in tests.
type IdentityResolver interface {
	Identify(ctx context.Context, faceVec, bodyVec []float32, clipTime time.Time) (models.Resolution, error)
}

// Scanner runs the per-clip micro-pipeline:
// sample -> detect -> track -> embed -> resolve.
//
// A Scanner owns its ONNX sessions and is not safe for concurrent use;
// the pipeline creates one per worker.
type Scanner struct {
	personDet *PersonDetector
	faceDet   *FaceDetector
	faceEmb   *FaceEmbedder
	bodyEmb   *BodyEmbedder
	resolver  IdentityResolver
	cfg       config.VisionConfig
	trackCfg  config.TrackingConfig
}

// NewScanner initialises all ONNX models and returns a ready scanner.
func NewScanner(cfg config.VisionConfig, trackCfg config.TrackingConfig, resolver IdentityResolver) (*Scanner, error) {
	personPath := filepath.Join(cfg.ModelsDir, "yolov8n.onnx")
	faceDetPath := filepath.Join(cfg.ModelsDir, "det_10g.onnx")
	faceEmbPath := filepath.Join(cfg.ModelsDir, "w600k_r50.onnx")
	bodyEmbPath := filepath.Join(cfg.ModelsDir, "reid_r50.onnx")

	slog.Info("loading person detection model", "path", personPath)
	personDet, err := NewPersonDetector(personPath, float32(cfg.DetectionThreshold), cfg.MinBBoxSide)
	if err != nil {
		return nil, fmt.Errorf("load person detector: %w", err)
	}

	slog.Info("loading face detection model", "path", faceDetPath)
	faceDet, err := NewFaceDetector(faceDetPath, 0.5)
	if err != nil {
		personDet.Close()
		return nil, fmt.Errorf("load face detector: %w", err)
	}

	slog.Info("loading face embedding model", "path", faceEmbPath)
	faceEmb, err := NewFaceEmbedder(faceEmbPath)
	if err != nil {
		personDet.Close()
		faceDet.Close()
		return nil, fmt.Errorf("load face embedder: %w", err)
	}

	slog.Info("loading body embedding model", "path", bodyEmbPath)
	bodyEmb, err := NewBodyEmbedder(bodyEmbPath)
	if err != nil {
		personDet.Close()
		faceDet.Close()
		faceEmb.Close()
		return nil, fmt.Errorf("load body embedder: %w", err)
	}

	return &Scanner{
		personDet: personDet,
		faceDet:   faceDet,
		faceEmb:   faceEmb,
		bodyEmb:   bodyEmb,
		resolver:  resolver,
		cfg:       cfg,
		trackCfg:  trackCfg,
	}, nil
}

// Scan processes one clip and returns its per-frame resolved detections.
// The tracker is created fresh here and dies with the clip.
func (s *Scanner) Scan(ctx context.Context, clip models.Clip) (*models.ClipResult, error) {
	tracker := NewTracker(s.trackCfg.IoUThreshold, s.trackCfg.RevalidateInterval, s.trackCfg.MaxAge)

	result := &models.ClipResult{Clip: clip}

	sample, err := ingest.SampleClip(ctx, clip.VideoPath, s.cfg.SampleFPS, func(frameIdx int, frameData []byte) error {
		img, err := decodeJPEG(frameData)
		if err != nil {
			slog.Warn("skip undecodable frame", "clip", clip.VideoPath, "frame", frameIdx, "error", err)
			result.Frames = append(result.Frames, nil)
			return nil
		}

		bounds := img.Bounds()
		if result.FrameW == 0 {
			result.FrameW = bounds.Dx()
			result.FrameH = bounds.Dy()
		}

		dets, err := s.processFrame(ctx, img, frameIdx, clip.StartTime, tracker)
		if err != nil {
			return err
		}
		result.Frames = append(result.Frames, dets)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sample clip %s: %w", clip.VideoPath, err)
	}

	result.Clip.Duration = sample.Duration
	result.SampledFrames = sample.Frames

	total := 0
	for _, frame := range result.Frames {
		total += len(frame)
	}
	observability.ClipsScanned.WithLabelValues(clip.Camera).Inc()
	observability.PersonsDetected.WithLabelValues(clip.Camera).Add(float64(total))
	return result, nil
}

// processFrame detects persons in one frame and resolves each one,
// reusing live track identities within the revalidation window.
func (s *Scanner) processFrame(ctx context.Context, img image.Image, frameIdx int, clipTime time.Time, tracker *Tracker) ([]models.Detection, error) {
	bounds := img.Bounds()
	origW := bounds.Dx()
	origH := bounds.Dy()

	start := time.Now()
	input := preprocessForPersonDetection(img, 640, 640)
	raws, err := s.personDet.Detect(input, origW, origH)
	if err != nil {
		return nil, fmt.Errorf("detect persons: %w", err)
	}
	observability.StageDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())

	tracker.BeginFrame(frameIdx)

	detections := make([]models.Detection, 0, len(raws))
	for _, raw := range raws {
		det := models.Detection{
			FrameIndex: frameIdx,
			BBox:       raw.BBox,
			Confidence: raw.Confidence,
		}

		tr := tracker.Match(raw.BBox)
		if tr != nil && tracker.CanReuse(tr, frameIdx) {
			tracker.Reuse(tr, frameIdx, raw.BBox)
			det.TrackID = tr.ID
			applyResolution(&det, tr.Resolution)
			observability.TrackReuse.Inc()
			detections = append(detections, det)
			continue
		}

		faceVec, bodyVec := s.extractEmbeddings(img, raw.BBox)
		det.FaceEmbedding = faceVec
		det.BodyEmbedding = bodyVec

		res, err := s.resolver.Identify(ctx, faceVec, bodyVec, clipTime)
		if err != nil {
			slog.Warn("identity resolution failed", "frame", frameIdx, "error", err)
			res = models.Resolution{Label: models.LabelStranger, Method: models.MethodNew}
		}

		tr = tracker.Commit(tr, frameIdx, raw.BBox, res)
		det.TrackID = tr.ID
		applyResolution(&det, res)
		observability.IdentityResolutions.WithLabelValues(res.Method).Inc()
		detections = append(detections, det)
	}

	return detections, nil
}

func applyResolution(det *models.Detection, res models.Resolution) {
	det.PersonID = res.PersonID
	det.PersonName = res.PersonName
	det.Label = res.Label
	det.Method = res.Method
	det.MatchScore = res.Confidence
}

// extractEmbeddings crops the person region and extracts the body
// embedding plus, when a face is visible inside the crop, the face
// embedding. Either vector may be nil.
func (s *Scanner) extractEmbeddings(img image.Image, bbox [4]float32) (faceVec, bodyVec []float32) {
	person := cropRegion(img, bbox, 0.05)
	if person == nil {
		return nil, nil
	}

	bodyInput := preprocessForBodyEmbedding(person, s.bodyEmb.inputW, s.bodyEmb.inputH)
	if vec, err := s.bodyEmb.Extract(bodyInput); err != nil {
		slog.Warn("body embedding failed", "error", err)
	} else {
		bodyVec = vec
	}

	pb := person.Bounds()
	faceInput := preprocessForFaceDetection(person, s.faceDet.inputW, s.faceDet.inputH)
	faces, err := s.faceDet.Detect(faceInput, pb.Dx(), pb.Dy())
	if err != nil {
		slog.Warn("face detection failed", "error", err)
		return nil, bodyVec
	}
	if len(faces) == 0 {
		return nil, bodyVec
	}

	best := largestDetection(faces)
	faceCrop := cropRegion(person, best.BBox, 0.1)
	if faceCrop == nil {
		return nil, bodyVec
	}

	embInput := preprocessForFaceEmbedding(faceCrop, s.faceEmb.inputW, s.faceEmb.inputH)
	if vec, err := s.faceEmb.Extract(embInput); err != nil {
		slog.Warn("face embedding failed", "error", err)
	} else {
		faceVec = vec
	}
	return faceVec, bodyVec
}

// EmbedLargestFace detects the largest face in a standalone image and
// returns its embedding. Used by enrollment.
func (s *Scanner) EmbedLargestFace(imageData []byte) ([]float32, error) {
	img, err := decodeJPEG(imageData)
	if err != nil {
		// enrollment photos may be PNG
		img2, _, err2 := image.Decode(bytesReader(imageData))
		if err2 != nil {
			return nil, fmt.Errorf("decode image: %w", err)
		}
		img = img2
	}

	bounds := img.Bounds()
	input := preprocessForFaceDetection(img, s.faceDet.inputW, s.faceDet.inputH)
	faces, err := s.faceDet.Detect(input, bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, fmt.Errorf("detect face: %w", err)
	}
	if len(faces) == 0 {
		return nil, fmt.Errorf("no face detected")
	}

	best := largestDetection(faces)
	faceCrop := cropRegion(img, best.BBox, 0.1)
	if faceCrop == nil {
		return nil, fmt.Errorf("failed to crop face")
	}

	embInput := preprocessForFaceEmbedding(faceCrop, s.faceEmb.inputW, s.faceEmb.inputH)
	vec, err := s.faceEmb.Extract(embInput)
	if err != nil {
		return nil, fmt.Errorf("embed face: %w", err)
	}
	return vec, nil
}

// largestDetection picks the detection with the largest bbox area.
func largestDetection(dets []RawDetection) RawDetection {
	best := dets[0]
	bestArea := area(best.BBox)
	for _, d := range dets[1:] {
		if a := area(d.BBox); a > bestArea {
			best = d
			bestArea = a
		}
	}
	return best
}

func area(b [4]float32) float32 {
	return (b[2] - b[0]) * (b[3] - b[1])
}

// Close releases all ONNX sessions.
func (s *Scanner) Close() {
	if s.personDet != nil {
		s.personDet.Close()
	}
	if s.faceDet != nil {
		s.faceDet.Close()
	}
	if s.faceEmb != nil {
		s.faceEmb.Close()
	}
	if s.bodyEmb != nil {
		s.bodyEmb.Close()
	}
}
