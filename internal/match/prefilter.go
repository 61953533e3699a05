package match

import (
	"github.com/coder/hnsw"

	"github.com/grabpic/pipeline/internal/database"
)

// ApproxPreFilter narrows pairs to an approximate candidate set before
// the Matcher's exact cosine pass, for events large enough that a full
// linear scan against the selfie would be wasteful. Below minFaces it
// returns pairs unchanged: small events always go straight to the
// exact scan, which is also what every test fixture exercises (spec
// §4.F: "the Matcher is intentionally linear and deterministic").
//
// candidates widens the approximate k-NN search well past what the
// caller ultimately wants ranked, so a genuine match that the HNSW
// graph places slightly out of order still survives into the exact
// pass.
func ApproxPreFilter(selfie []float32, pairs []database.EmbeddingPair, minFaces, candidates int) []database.EmbeddingPair {
	if minFaces <= 0 || len(pairs) < minFaces || candidates <= 0 {
		return pairs
	}

	g := hnsw.NewGraph[int]()
	g.Distance = hnsw.CosineDistance
	for i, pair := range pairs {
		if len(pair.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(i, pair.Embedding))
	}

	k := candidates
	if k > len(pairs) {
		k = len(pairs)
	}
	neighbors := g.Search(selfie, k)
	if len(neighbors) == 0 {
		return pairs
	}

	out := make([]database.EmbeddingPair, 0, len(neighbors))
	for _, n := range neighbors {
		out = append(out, pairs[n.Key])
	}
	return out
}
