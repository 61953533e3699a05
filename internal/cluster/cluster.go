// Package cluster implements the Clusterer (spec §4.E): DBSCAN over
// cosine distance, grouping an Event's faces into FaceCluster rows.
package cluster

import (
	"math"

	"github.com/grabpic/pipeline/internal/database"
	"github.com/grabpic/pipeline/internal/domain"
)

// Point is one Face reduced to what clustering needs.
type Point struct {
	FaceID    string
	PhotoID   string
	Embedding []float32
}

// Result is the rewritten cluster assignment for one Event: Labels is
// parallel to the input Points (nil entries are noise), Clusters holds
// one FaceCluster per non-noise label with ClusterLabel, Centroid,
// FaceCount and CoverPhotoID populated (ID/EventID/timestamps are the
// caller's responsibility to fill in before persisting).
type Result struct {
	Labels   []*int
	Clusters []domain.FaceCluster
}

const (
	unvisited = -2
	noise     = -1
)

// Run clusters points (spec §4.E). points must already be ordered by
// (photo_id, face_index) for the cover-photo first-seen tie-break to
// match the original's insertion-order Counter.most_common(1)
// behavior. If len(points) < minSamples, every point is noise and zero
// clusters are produced (spec's degenerate case).
func Run(points []Point, eps float64, minSamples int) Result {
	n := len(points)
	if n == 0 {
		return Result{}
	}
	if n < minSamples {
		return Result{Labels: make([]*int, n)}
	}

	neighbors := regionQueryAll(points, eps)

	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}
	visited := make([]bool, n)
	clusterID := 0

	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true
		if len(neighbors[i]) < minSamples {
			labels[i] = noise
			continue
		}

		labels[i] = clusterID
		seeds := append([]int{}, neighbors[i]...)
		for k := 0; k < len(seeds); k++ {
			p := seeds[k]
			if !visited[p] {
				visited[p] = true
				if len(neighbors[p]) >= minSamples {
					seeds = append(seeds, neighbors[p]...)
				}
			}
			if labels[p] == unvisited || labels[p] == noise {
				labels[p] = clusterID
			}
		}
		clusterID++
	}

	return buildResult(points, labels, clusterID)
}

func regionQueryAll(points []Point, eps float64) [][]int {
	n := len(points)
	neighbors := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if cosineDistance(points[i].Embedding, points[j].Embedding) <= eps {
				neighbors[i] = append(neighbors[i], j)
			}
		}
	}
	return neighbors
}

func cosineDistance(a, b []float32) float64 {
	return 1 - database.CosineSimilarity(a, b)
}

func buildResult(points []Point, labels []int, clusterCount int) Result {
	n := len(points)
	outLabels := make([]*int, n)
	members := make([][]int, clusterCount)
	for i, l := range labels {
		if l < 0 {
			continue
		}
		v := l
		outLabels[i] = &v
		members[l] = append(members[l], i)
	}

	clusters := make([]domain.FaceCluster, 0, clusterCount)
	for label := 0; label < clusterCount; label++ {
		idxs := members[label]
		if len(idxs) == 0 {
			continue
		}
		cover := coverPhoto(points, idxs)
		clusters = append(clusters, domain.FaceCluster{
			ClusterLabel: label,
			Centroid:     centroidOf(points, idxs),
			FaceCount:    len(idxs),
			CoverPhotoID: &cover,
		})
	}

	return Result{Labels: outLabels, Clusters: clusters}
}

// centroidOf L2-normalizes the mean embedding of idxs, left unnormalized
// when the mean has zero norm (spec §4.E: "centroid = L2-normalize(mean
// of member embeddings)").
func centroidOf(points []Point, idxs []int) []float32 {
	dim := len(points[idxs[0]].Embedding)
	sum := make([]float64, dim)
	for _, i := range idxs {
		for d, v := range points[i].Embedding {
			sum[d] += float64(v)
		}
	}
	count := float64(len(idxs))
	mean := make([]float64, dim)
	var sumSq float64
	for d := range sum {
		mean[d] = sum[d] / count
		sumSq += mean[d] * mean[d]
	}

	norm := math.Sqrt(sumSq)
	out := make([]float32, dim)
	for d, v := range mean {
		if norm > 0 {
			v /= norm
		}
		out[d] = float32(v)
	}
	return out
}

// coverPhoto picks the photo_id contributing the most member faces,
// ties broken by first-seen order among idxs (spec §4.E), matching
// Python's Counter.most_common(1) on an insertion-ordered Counter.
func coverPhoto(points []Point, idxs []int) string {
	counts := map[string]int{}
	var order []string
	for _, i := range idxs {
		pid := points[i].PhotoID
		if _, seen := counts[pid]; !seen {
			order = append(order, pid)
		}
		counts[pid]++
	}

	best := order[0]
	bestCount := counts[best]
	for _, pid := range order[1:] {
		if counts[pid] > bestCount {
			best = pid
			bestCount = counts[pid]
		}
	}
	return best
}
