package artifact

import (
	"math"
	"slices"
)

// points holds 2-D features whose x coordinate is non-decreasing with the
// index. Neighbour queries exploit that ordering: candidates are scanned
// outward from the query index and the scan stops once the x distance alone
// exceeds the search radius.
type points struct {
	x, y []float64
}

func (p points) len() int { return len(p.x) }

func (p points) dist(i, j int) float64 {
	return math.Hypot(p.x[i]-p.x[j], p.y[i]-p.y[j])
}

// region returns the indices within eps of i, including i itself.
func (p points) region(i int, eps float64, buf []int) []int {
	buf = append(buf[:0], i)
	for j := i - 1; j >= 0 && p.x[i]-p.x[j] <= eps; j-- {
		if p.dist(i, j) <= eps {
			buf = append(buf, j)
		}
	}
	for j := i + 1; j < p.len() && p.x[j]-p.x[i] <= eps; j++ {
		if p.dist(i, j) <= eps {
			buf = append(buf, j)
		}
	}
	return buf
}

// kthDistance returns the distance from i to its k-th nearest point, where
// i itself counts as the first.
func (p points) kthDistance(i, k int) float64 {
	best := make([]float64, 0, k)
	best = append(best, 0)
	push := func(d float64) {
		if len(best) < k {
			best = append(best, d)
			slices.Sort(best)
			return
		}
		if d < best[k-1] {
			best[k-1] = d
			slices.Sort(best)
		}
	}

	l, r := i-1, i+1
	for l >= 0 || r < p.len() {
		dl, dr := math.Inf(1), math.Inf(1)
		if l >= 0 {
			dl = p.x[i] - p.x[l]
		}
		if r < p.len() {
			dr = p.x[r] - p.x[i]
		}
		if len(best) == k && math.Min(dl, dr) > best[k-1] {
			break
		}
		if dl <= dr {
			push(p.dist(i, l))
			l--
		} else {
			push(p.dist(i, r))
			r++
		}
	}
	return best[len(best)-1]
}

// kneeEps picks eps at the sharpest bend of the sorted k-distance curve: the
// index maximizing slope[i+1]/slope[i].
func kneeEps(kdist []float64) float64 {
	sorted := slices.Clone(kdist)
	slices.Sort(sorted)
	if len(sorted) < 3 {
		return sorted[len(sorted)-1]
	}

	knee, bestRatio := 0, math.Inf(-1)
	for i := 0; i+2 < len(sorted); i++ {
		s0 := sorted[i+1] - sorted[i]
		s1 := sorted[i+2] - sorted[i+1]
		ratio := s1 / (s0 + 1e-8)
		if ratio > bestRatio {
			knee, bestRatio = i, ratio
		}
	}
	eps := sorted[knee]
	if eps > 0 {
		return eps
	}
	// a zero radius only links identical points; fall back to the smallest
	// positive k-distance
	for _, d := range sorted {
		if d > 0 {
			return d
		}
	}
	return math.SmallestNonzeroFloat64
}

const (
	unvisited = -2
	noise     = -1
)

// dbscan labels every point with a cluster id or noise. A point is a core
// point when its eps-neighbourhood, itself included, holds at least minPts
// points.
func dbscan(p points, eps float64, minPts int) (labels []int, clusters int) {
	labels = make([]int, p.len())
	for i := range labels {
		labels[i] = unvisited
	}

	var nb, nbq []int
	for i := range labels {
		if labels[i] != unvisited {
			continue
		}
		nb = p.region(i, eps, nb)
		if len(nb) < minPts {
			labels[i] = noise
			continue
		}

		labels[i] = clusters
		queue := slices.Clone(nb)
		for qi := 0; qi < len(queue); qi++ {
			q := queue[qi]
			if labels[q] == noise {
				labels[q] = clusters
			}
			if labels[q] != unvisited {
				continue
			}
			labels[q] = clusters
			nbq = p.region(q, eps, nbq)
			if len(nbq) >= minPts {
				queue = append(queue, nbq...)
			}
		}
		clusters++
	}
	return labels, clusters
}
