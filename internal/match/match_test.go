package match

import (
	"math"
	"testing"

	"github.com/grabpic/pipeline/internal/database"
)

func unit(xs ...float32) []float32 {
	var sumSq float64
	for _, x := range xs {
		sumSq += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sumSq))
	out := make([]float32, len(xs))
	for i, x := range xs {
		out[i] = x / norm
	}
	return out
}

func TestCosineToPercent_ClampsToZeroAndHundred(t *testing.T) {
	if p := cosineToPercent(cosineMapFloor); p != 0 {
		t.Errorf("expected floor cosine to map to 0, got %v", p)
	}
	if p := cosineToPercent(-1); p != 0 {
		t.Errorf("expected below-floor cosine to clamp to 0, got %v", p)
	}
	if p := cosineToPercent(1); p != 100 {
		t.Errorf("expected a perfect cosine to clamp to 100, got %v", p)
	}
}

func TestPercentToCosineThreshold_ClampsPercentToOneHundredRange(t *testing.T) {
	below := percentToCosineThreshold(0)
	one := percentToCosineThreshold(1)
	if below != one {
		t.Errorf("expected 0%% to clamp to the same cosine as 1%%, got %v vs %v", below, one)
	}
	above := percentToCosineThreshold(150)
	hundred := percentToCosineThreshold(100)
	if above != hundred {
		t.Errorf("expected above-100%% to clamp to the 100%% cosine, got %v vs %v", above, hundred)
	}
}

func TestMatch_EmptyPairsReturnsEmptyResult(t *testing.T) {
	result := Match(unit(1, 0, 0), nil, Params{ThresholdPercent: 70, MaxResults: 10})
	if len(result.Matches) != 0 {
		t.Errorf("expected no matches, got %d", len(result.Matches))
	}
	if result.Relaxed {
		t.Error("expected relaxed=false for empty input")
	}
}

func TestMatch_AggregatesMaxPercentPerPhoto(t *testing.T) {
	selfie := unit(1, 0, 0)
	pairs := []database.EmbeddingPair{
		{PhotoID: "p1", FaceIndex: 0, Embedding: unit(0.2, 1, 0)},
		{PhotoID: "p1", FaceIndex: 1, Embedding: unit(1, 0, 0)},
		{PhotoID: "p2", FaceIndex: 0, Embedding: unit(0, 1, 0)},
	}
	result := Match(selfie, pairs, Params{ThresholdPercent: 1, TopMargin: 0, MaxResults: 10})
	if len(result.Matches) != 1 || result.Matches[0].PhotoID != "p1" {
		t.Fatalf("expected only p1 above threshold, got %+v", result.Matches)
	}
	if result.Matches[0].ScorePercent < 99 {
		t.Errorf("expected p1's best face (identical to selfie) to score near 100, got %v", result.Matches[0].ScorePercent)
	}
}

func TestMatch_TopMarginDropsFarBehindCandidates(t *testing.T) {
	selfie := unit(1, 0, 0)
	pairs := []database.EmbeddingPair{
		{PhotoID: "best", Embedding: unit(1, 0, 0)},
		{PhotoID: "close", Embedding: unit(0.99, 0.01, 0)},
		{PhotoID: "far", Embedding: unit(0.2, 0.98, 0)},
	}
	result := Match(selfie, pairs, Params{ThresholdPercent: 1, TopMargin: 5, MaxResults: 10})
	for _, m := range result.Matches {
		if m.PhotoID == "far" {
			t.Errorf("expected far candidate dropped by the top-margin filter, got matches %+v", result.Matches)
		}
	}
}

func TestMatch_AdaptiveRelaxationFiresWhenStrictIsEmpty(t *testing.T) {
	selfie := unit(1, 0, 0)
	pairs := []database.EmbeddingPair{
		{PhotoID: "p1", Embedding: unit(0.4, 0.9, 0)},
	}
	result := Match(selfie, pairs, Params{
		ThresholdPercent:      95,
		TopMargin:             2,
		AutoRelaxDrop:         40,
		AutoRelaxMinThreshold: 10,
		MaxResults:            10,
	})
	if !result.Relaxed {
		t.Fatal("expected relaxation to fire when the strict pass yields nothing")
	}
	if len(result.Matches) != 1 {
		t.Fatalf("expected one relaxed match, got %d", len(result.Matches))
	}
	if result.UsedThresholdPercent >= 95 {
		t.Errorf("expected a relaxed threshold below the strict one, got %v", result.UsedThresholdPercent)
	}
}

func TestMatch_RelaxationStaysEmptyWhenNoCandidatesExist(t *testing.T) {
	selfie := unit(1, 0, 0)
	pairs := []database.EmbeddingPair{
		{PhotoID: "p1", Embedding: unit(0, 0, 0)},
	}
	result := Match(selfie, pairs, Params{
		ThresholdPercent:      50,
		AutoRelaxDrop:         10,
		AutoRelaxMinThreshold: 5,
		MaxResults:            10,
	})
	if result.Relaxed {
		t.Error("expected relaxed=false when even the relaxed threshold has no candidates")
	}
	if len(result.Matches) != 0 {
		t.Errorf("expected no matches for a zero-norm face, got %+v", result.Matches)
	}
}

func TestMatch_TruncatesToMaxResultsAndAssignsRank(t *testing.T) {
	selfie := unit(1, 0, 0)
	pairs := []database.EmbeddingPair{
		{PhotoID: "p1", Embedding: unit(1, 0, 0)},
		{PhotoID: "p2", Embedding: unit(0.9, 0.1, 0)},
		{PhotoID: "p3", Embedding: unit(0.8, 0.2, 0)},
	}
	result := Match(selfie, pairs, Params{ThresholdPercent: 1, TopMargin: 0, MaxResults: 2})
	if len(result.Matches) != 2 {
		t.Fatalf("expected truncation to 2 results, got %d", len(result.Matches))
	}
	if result.Matches[0].Rank != 1 || result.Matches[1].Rank != 2 {
		t.Errorf("expected ranks 1 and 2, got %d and %d", result.Matches[0].Rank, result.Matches[1].Rank)
	}
	if result.Matches[0].ScoreRatio != result.Matches[0].ScorePercent/100 {
		t.Error("expected score ratio to be percent/100")
	}
}

func TestApproxPreFilter_BypassedBelowMinFaces(t *testing.T) {
	pairs := []database.EmbeddingPair{{PhotoID: "p1", Embedding: unit(1, 0, 0)}}
	out := ApproxPreFilter(unit(1, 0, 0), pairs, 10, 5)
	if len(out) != len(pairs) {
		t.Errorf("expected the pre-filter to pass every pair through below minFaces, got %d", len(out))
	}
}

func TestApproxPreFilter_NarrowsLargeCandidateSets(t *testing.T) {
	selfie := unit(1, 0, 0)
	pairs := make([]database.EmbeddingPair, 0, 20)
	pairs = append(pairs, database.EmbeddingPair{PhotoID: "target", Embedding: unit(1, 0, 0)})
	for i := 0; i < 19; i++ {
		pairs = append(pairs, database.EmbeddingPair{PhotoID: "filler", Embedding: unit(0, 1, float32(i))})
	}
	out := ApproxPreFilter(selfie, pairs, 5, 3)
	if len(out) == 0 || len(out) > 3 {
		t.Fatalf("expected the pre-filter to narrow to at most 3 candidates, got %d", len(out))
	}
	found := false
	for _, p := range out {
		if p.PhotoID == "target" {
			found = true
		}
	}
	if !found {
		t.Error("expected the near-identical face to survive the approximate search")
	}
}
