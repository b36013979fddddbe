package registry

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomChunks(n, dim int) []ChunkRecord {
	rng := rand.New(rand.NewSource(1))
	chunks := make([]ChunkRecord, n)
	for i := range chunks {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = rng.Float32()
		}
		chunks[i] = ChunkRecord{DocPath: "doc.html", Vector: vec}
	}
	return chunks
}

func TestAnnIndex_ShortlistFindsExactMatch(t *testing.T) {
	chunks := randomChunks(200, 8)
	target := make([]float32, 8)
	copy(target, chunks[42].Vector)

	idx := NewAnnIndex(chunks)
	shortlist := idx.Shortlist(target, 10)
	require.NotEmpty(t, shortlist)
	assert.Contains(t, shortlist, 42)
}

func TestAnnIndex_EmptyGraphReturnsNil(t *testing.T) {
	idx := NewAnnIndex(nil)
	assert.Nil(t, idx.Shortlist([]float32{1, 2, 3}, 5))
}

func TestAnnIndex_NilReceiverIsSafe(t *testing.T) {
	var idx *AnnIndex
	assert.Nil(t, idx.Shortlist([]float32{1}, 5))
}

func TestIngest_NoAnnIndexBelowThreshold(t *testing.T) {
	reg := newTestRegistry(t, &fakeRenderer{})

	entry, err := reg.Ingest(context.Background(), "worker-pool", "example.com/workerpool")
	require.NoError(t, err)
	assert.Nil(t, entry.ANN, "a single rendered page stays far below the threshold")

	entry.Chunks = randomChunks(AnnIndexThreshold+1, 4)
	entry.ANN = NewAnnIndex(entry.Chunks)
	assert.NotNil(t, entry.ANN)
}
