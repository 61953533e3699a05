// Package match implements the Matcher (spec §4.F): scoring a guest
// selfie embedding against every face indexed for an Event and ranking
// the photos it appears in.
package match

import (
	"sort"

	"github.com/grabpic/pipeline/internal/database"
)

// cosineMapFloor and cosineMapSpan are the calibrated affine transform
// from raw cosine similarity to a 0-100 percent score (spec §4.F step
// 3), carried over unchanged from the prior matching service so stored
// thresholds stay meaningful across the rewrite.
const (
	cosineMapFloor = 0.15
	cosineMapSpan  = 0.37
)

// cosineToPercent maps a cosine similarity into [0,100].
func cosineToPercent(cosine float64) float64 {
	percent := (cosine - cosineMapFloor) / cosineMapSpan * 100
	return clamp(percent, 0, 100)
}

// percentToCosineThreshold inverts cosineToPercent for comparing a
// percent threshold in cosine space. percent is clamped to [1,100]
// first, not [0,100], so a 0% threshold maps to the same cosine as 1%.
func percentToCosineThreshold(percent float64) float64 {
	percent = clamp(percent, 1, 100)
	return percent/100*cosineMapSpan + cosineMapFloor
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// RankedPhotoMatch is one photo's best-face match against the query
// selfie, 1-indexed by Rank (spec §4.F).
type RankedPhotoMatch struct {
	PhotoID      string
	ScoreRatio   float64
	ScorePercent float64
	Rank         int
}

// Params are the Matcher's tunable inputs (spec §4.F, §9 "config, not
// constants"): ThresholdPercent is the strict cutoff T, TopMargin is M,
// AutoRelaxDrop is D and AutoRelaxMinThreshold is F_min for the
// adaptive relaxation path, and MaxResults truncates the final list.
type Params struct {
	ThresholdPercent      float64
	TopMargin             float64
	AutoRelaxDrop         float64
	AutoRelaxMinThreshold float64
	MaxResults            int
}

// Result is the Matcher's full output: the ranked matches plus the
// threshold actually applied and whether relaxation fired.
type Result struct {
	Matches              []RankedPhotoMatch
	UsedThresholdPercent float64
	Relaxed              bool
}

type photoScore struct {
	photoID string
	percent float64
}

// Match scores selfie against every face embedding in pairs and ranks
// the photos they belong to (spec §4.F, steps 1-7). pairs is assumed
// already loaded for one event; an empty pairs returns an empty
// Result with the strict threshold reported as used.
func Match(selfie []float32, pairs []database.EmbeddingPair, params Params) Result {
	if len(pairs) == 0 {
		return Result{UsedThresholdPercent: params.ThresholdPercent}
	}

	best := map[string]float64{}
	order := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		cosine := database.CosineSimilarity(selfie, pair.Embedding)
		percent := cosineToPercent(cosine)
		if _, seen := best[pair.PhotoID]; !seen {
			order = append(order, pair.PhotoID)
		}
		if percent > best[pair.PhotoID] {
			best[pair.PhotoID] = percent
		}
	}

	candidates := make([]photoScore, len(order))
	for i, photoID := range order {
		candidates[i] = photoScore{photoID: photoID, percent: best[photoID]}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].percent > candidates[j].percent
	})

	selected := selectWithThreshold(candidates, params.ThresholdPercent, params.TopMargin)
	usedThreshold := params.ThresholdPercent
	relaxed := false

	if len(selected) == 0 && len(candidates) > 0 {
		relaxedThreshold := params.ThresholdPercent - max(0, params.AutoRelaxDrop)
		usedThreshold = max(params.AutoRelaxMinThreshold, relaxedThreshold)
		relaxedMargin := max(params.TopMargin, 10)
		selected = selectWithThreshold(candidates, usedThreshold, relaxedMargin)
		relaxed = len(selected) > 0
	}

	maxResults := params.MaxResults
	if maxResults <= 0 || maxResults > len(selected) {
		maxResults = len(selected)
	}
	selected = selected[:maxResults]

	matches := make([]RankedPhotoMatch, len(selected))
	for i, c := range selected {
		matches[i] = RankedPhotoMatch{
			PhotoID:      c.photoID,
			ScoreRatio:   c.percent / 100,
			ScorePercent: c.percent,
			Rank:         i + 1,
		}
	}

	return Result{Matches: matches, UsedThresholdPercent: usedThreshold, Relaxed: relaxed}
}

// selectWithThreshold keeps candidates (already sorted descending) at
// or above threshold, then applies the top-margin filter: anything
// below max(threshold, best-topMargin) is dropped (spec §4.F step 5).
func selectWithThreshold(candidates []photoScore, threshold, topMargin float64) []photoScore {
	var selected []photoScore
	for _, c := range candidates {
		if c.percent >= threshold {
			selected = append(selected, c)
		}
	}
	if len(selected) == 0 || topMargin <= 0 {
		return selected
	}

	best := selected[0].percent
	floor := max(threshold, best-topMargin)

	var out []photoScore
	for _, c := range selected {
		if c.percent >= floor {
			out = append(out, c)
		}
	}
	return out
}
