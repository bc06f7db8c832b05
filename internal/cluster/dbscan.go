// Package cluster implements density-based clustering over a precomputed
// distance matrix.
package cluster

// Noise marks points that belong to no cluster.
const Noise = -1

// DBSCAN clusters points given their pairwise distance matrix. eps is the
// neighborhood radius, minPts the minimum neighborhood size (the point
// itself counts) for a point to be a core point. Returns one label per
// point; Noise (-1) for points in no cluster. With minPts=1 every point is
// at least a singleton cluster.
//
// Labels are assigned in first-seen order, so the result is deterministic
// for a given input ordering.
func DBSCAN(dist [][]float64, eps float64, minPts int) []int {
	n := len(dist)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = Noise
	}
	visited := make([]bool, n)

	next := 0
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		visited[i] = true

		neighbors := regionQuery(dist, i, eps)
		if len(neighbors) < minPts {
			continue // noise, may still be absorbed by a later cluster
		}

		labels[i] = next
		expand(dist, neighbors, labels, visited, next, eps, minPts)
		next++
	}
	return labels
}

// expand grows a cluster from a core point's neighborhood, breadth-first.
func expand(dist [][]float64, seeds []int, labels []int, visited []bool, label int, eps float64, minPts int) {
	for k := 0; k < len(seeds); k++ {
		p := seeds[k]
		if labels[p] == Noise {
			labels[p] = label
		}
		if visited[p] {
			continue
		}
		visited[p] = true

		neighbors := regionQuery(dist, p, eps)
		if len(neighbors) >= minPts {
			seeds = append(seeds, neighbors...)
		}
	}
}

// regionQuery returns all points within eps of point i, including i itself.
func regionQuery(dist [][]float64, i int, eps float64) []int {
	var neighbors []int
	for j := range dist[i] {
		if dist[i][j] <= eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}
