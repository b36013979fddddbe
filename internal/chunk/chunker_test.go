package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loremParagraph = "Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat. "

func makeDocument(targetBytes int) string {
	var sb strings.Builder
	for sb.Len() < targetBytes {
		sb.WriteString(loremParagraph)
	}
	return sb.String()[:targetBytes]
}

func concat(chunks []Chunk) string {
	var sb strings.Builder
	for _, c := range chunks {
		sb.WriteString(c.Content)
	}
	return sb.String()
}

func TestChunkReconstructsByteForByte(t *testing.T) {
	doc := makeDocument(20 * 1024)
	c := NewDefault()
	chunks := c.Chunk(doc)
	require.Equal(t, doc, concat(chunks))
}

func TestChunkSizesWithinBounds(t *testing.T) {
	doc := makeDocument(20 * 1024)
	c := NewDefault()
	chunks := c.Chunk(doc)
	require.Greater(t, len(chunks), 1)
	for i, chk := range chunks[:len(chunks)-1] {
		size := len(chk.Content)
		assert.GreaterOrEqualf(t, size, DefaultMinSize, "chunk %d too small", i)
		assert.LessOrEqualf(t, size, DefaultMaxSize, "chunk %d too large", i)
	}
}

func TestChunkIDDeterministic(t *testing.T) {
	c := NewDefault()
	a := c.Chunk("some short content")
	b := c.Chunk("some short content")
	require.Equal(t, a, b)
}

// E1: chunker determinism over a 20KB document.
func TestE1Determinism(t *testing.T) {
	doc := makeDocument(20 * 1024)
	c := NewDefault()
	first := c.Chunk(doc)
	second := c.Chunk(doc)

	require.GreaterOrEqual(t, len(first), 3)
	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].ID, second[i].ID)
	}
}

// E2: chunker locality — a single-byte edit perturbs at most 2 chunk ids.
func TestE2Locality(t *testing.T) {
	doc := makeDocument(20 * 1024)
	c := NewDefault()
	before := c.Chunk(doc)

	mutated := []byte(doc)
	if mutated[10240] == 'x' {
		mutated[10240] = 'y'
	} else {
		mutated[10240] = 'x'
	}
	after := c.Chunk(string(mutated))

	beforeIDs := make(map[string]bool, len(before))
	for _, chk := range before {
		beforeIDs[chk.ID] = true
	}
	changed := 0
	for _, chk := range after {
		if !beforeIDs[chk.ID] {
			changed++
		}
	}
	assert.LessOrEqual(t, changed, 2)
}

func TestChunkSmallDocumentIsSingleChunk(t *testing.T) {
	c := NewDefault()
	doc := "tiny document"
	chunks := c.Chunk(doc)
	require.Len(t, chunks, 1)
	assert.Equal(t, doc, chunks[0].Content)
}

func TestChunkEmptyDocument(t *testing.T) {
	c := NewDefault()
	assert.Nil(t, c.Chunk(""))
}
