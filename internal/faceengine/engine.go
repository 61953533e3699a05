package faceengine

import (
	"bytes"
	"context"
	"image/jpeg"
	"sort"

	"github.com/grabpic/pipeline/internal/config"
)

// Engine is the concrete Detector: it resizes the source image, posts
// it to a local detector/recognizer sidecar, filters and normalizes
// the raw detections, and falls back to a deterministic substitute
// face when the sidecar is unreachable and fallback is enabled
// (spec §4.C).
type Engine struct {
	cfg    config.FaceEngineConfig
	client *sidecarClient
}

// New constructs an Engine talking to cfg.ServiceURL.
func New(cfg config.FaceEngineConfig) (*Engine, error) {
	client, err := newSidecarClient(cfg.ServiceURL)
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, client: client}, nil
}

// EmbedFaces implements Detector (spec §4.C).
func (e *Engine) EmbedFaces(ctx context.Context, imageBytes []byte, maxFaces int) ([]Face, error) {
	img, err := decodeImage(imageBytes)
	if err != nil {
		return nil, nil
	}

	resized := resizeForInference(img, e.cfg.ResizeMaxSide)
	rb := resized.Bounds()
	resizedArea := float64(rb.Dx() * rb.Dy())
	if resizedArea <= 0 {
		return nil, nil
	}

	var encoded bytes.Buffer
	if err := jpeg.Encode(&encoded, resized, &jpeg.Options{Quality: 92}); err != nil {
		return nil, nil
	}

	limit := maxFaces
	if e.cfg.MaxFacesPerImage > 0 && e.cfg.MaxFacesPerImage < limit {
		limit = e.cfg.MaxFacesPerImage
	}
	if limit < 1 {
		limit = 1
	}

	raw, err := e.client.detect(ctx, encoded.Bytes(), limit)
	if err != nil {
		if e.cfg.EnableFallback {
			return []Face{fallbackFace(img)}, nil
		}
		return nil, nil
	}

	type candidate struct {
		det       rawDetection
		areaRatio float64
	}
	candidates := make([]candidate, 0, len(raw))
	for _, d := range raw {
		if len(d.BBox) < 4 || d.BBox[2] <= 1 || d.BBox[3] <= 1 {
			continue
		}
		areaRatio := (d.BBox[2] * d.BBox[3]) / resizedArea
		if areaRatio < e.cfg.MinFaceRatio {
			continue
		}
		candidates = append(candidates, candidate{det: d, areaRatio: areaRatio})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].areaRatio != candidates[j].areaRatio {
			return candidates[i].areaRatio > candidates[j].areaRatio
		}
		return candidates[i].det.DetConfidence > candidates[j].det.DetConfidence
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	gray := toGray(resized)
	out := make([]Face, 0, len(candidates))
	for _, c := range candidates {
		x, y, w, h := c.det.BBox[0], c.det.BBox[1], c.det.BBox[2], c.det.BBox[3]
		crop := cropGray(gray, int(x), int(y), int(w+0.5), int(h+0.5))
		if crop == nil {
			continue
		}
		sharpness := laplacianVariance(crop)
		if sharpness < e.cfg.MinSharpness {
			continue
		}

		vec := padOrTruncate(c.det.Embedding, EmbeddingDim)
		normalized := normalize(vec)
		if normalized == nil {
			continue
		}

		out = append(out, Face{
			Embedding:     normalized,
			AreaRatio:     c.areaRatio,
			DetConfidence: c.det.DetConfidence,
			Sharpness:     sharpness,
			BBox:          [4]float64{x, y, w, h},
		})
	}
	return out, nil
}

// EmbedSingleFace implements Detector (spec §4.C): detects up to 8
// candidates and returns the embedding of the one with the largest
// (area_ratio, det_confidence), or nil if none survived filtering.
func (e *Engine) EmbedSingleFace(ctx context.Context, imageBytes []byte) ([]float32, error) {
	faces, err := e.EmbedFaces(ctx, imageBytes, 8)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, nil
	}
	sort.SliceStable(faces, func(i, j int) bool {
		if faces[i].AreaRatio != faces[j].AreaRatio {
			return faces[i].AreaRatio > faces[j].AreaRatio
		}
		return faces[i].DetConfidence > faces[j].DetConfidence
	})
	return faces[0].Embedding, nil
}

// ReferenceConfig relaxes ratio and sharpness thresholds for selfie
// ingest, where subjects are often captured from further away (spec
// §4.C: "The reference-image variant ... may relax ratio and sharpness
// thresholds").
func ReferenceConfig(cfg config.FaceEngineConfig) config.FaceEngineConfig {
	relaxed := cfg
	relaxed.ResizeMaxSide = cfg.ResizeMaxSide * 2
	relaxed.MinFaceRatio = cfg.MinFaceRatio * 0.35
	relaxed.MinSharpness = cfg.MinSharpness * 0.5
	return relaxed
}
