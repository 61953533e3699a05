package faceengine

import "image"

// fallbackFace builds the deterministic substitute used when no
// detector/recognizer is reachable (spec §4.C): a 32x16 greyscale
// downsample of the whole image, flattened, padded/truncated to
// EmbeddingDim and L2-normalized, with area_ratio=1.0, det_confidence=0
// and a whole-image bounding box.
func fallbackFace(img image.Image) Face {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	gray := toGray(img)

	small := downsampleFlatten(gray, 32, 16)
	vec := padOrTruncate(small, EmbeddingDim)
	normalized := normalize(vec)
	if normalized == nil {
		normalized = make([]float32, EmbeddingDim)
	}

	return Face{
		Embedding:     normalized,
		AreaRatio:     1.0,
		DetConfidence: 0.0,
		Sharpness:     laplacianVariance(gray),
		BBox:          [4]float64{0, 0, float64(w), float64(h)},
	}
}
