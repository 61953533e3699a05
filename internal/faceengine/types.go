// Package faceengine implements the Face Engine (spec §4.C): face
// detection and 512-d embedding extraction, with a deterministic
// fallback when no detection sidecar is reachable.
package faceengine

import "context"

// Face is one detected face with its embedding and quality signals.
type Face struct {
	Embedding     []float32
	AreaRatio     float64
	DetConfidence float64
	Sharpness     float64
	BBox          [4]float64 // x, y, w, h
}

// EmbeddingDim is the fixed embedding width stored in the database
// (spec §4.D); detector output is padded or truncated to this size.
const EmbeddingDim = 512

// Detector extracts faces from an encoded image. Implementations must
// return embeddings already padded/truncated to EmbeddingDim and
// L2-normalized.
type Detector interface {
	EmbedFaces(ctx context.Context, imageBytes []byte, maxFaces int) ([]Face, error)
	EmbedSingleFace(ctx context.Context, imageBytes []byte) ([]float32, error)
}
