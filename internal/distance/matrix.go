package distance

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Matrix computes the pairwise hybrid distance matrix for a batch of
// complaints. Rows are computed in parallel; each worker writes a disjoint
// set of cells. O(n²) in time and memory, which is acceptable because the
// batch is bounded by the polling interval.
func Matrix(vecs [][]float32, keywords []map[string]bool, w Weights) [][]float64 {
	n := len(vecs)
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			for j := i + 1; j < n; j++ {
				d := w.Hybrid(vecs[i], vecs[j], keywords[i], keywords[j])
				out[i][j] = d
				out[j][i] = d
			}
			return nil
		})
	}
	// Workers never return an error; Wait is only a join point.
	_ = g.Wait()
	return out
}
