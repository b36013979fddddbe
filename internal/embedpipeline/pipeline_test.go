package embedpipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgdocs-mcp/pkgdocs-mcp/internal/chunk"
)

type fakeEmbedder struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	failOn      string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("embedding failed")
	}
	return []float32{float32(len(text))}, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) Dimensions() int   { return 1 }
func (f *fakeEmbedder) ModelName() string { return "fake" }

func makeChunks(n int) []chunk.Chunk {
	chunks := make([]chunk.Chunk, n)
	for i := range chunks {
		chunks[i] = chunk.Chunk{ID: string(rune('a' + i)), Content: strings.Repeat("word ", 10)}
	}
	return chunks
}

func TestEmbed_AllSucceed(t *testing.T) {
	e := &fakeEmbedder{}
	chunks := makeChunks(5)

	out, tokens, err := Embed(context.Background(), e, chunks)
	require.NoError(t, err)
	assert.Len(t, out, 5)
	assert.Greater(t, tokens, 0)
}

func TestEmbed_BoundsConcurrency(t *testing.T) {
	var inFlight int32
	var maxSeen int32
	e := &blockingEmbedder{
		onStart: func() {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				old := atomic.LoadInt32(&maxSeen)
				if n <= old || atomic.CompareAndSwapInt32(&maxSeen, old, n) {
					break
				}
			}
		},
		onEnd: func() { atomic.AddInt32(&inFlight, -1) },
	}
	chunks := makeChunks(40)

	_, _, err := Embed(context.Background(), e, chunks)
	require.NoError(t, err)
	assert.LessOrEqual(t, int(atomic.LoadInt32(&maxSeen)), Concurrency)
}

type blockingEmbedder struct {
	onStart func()
	onEnd   func()
}

func (b *blockingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	b.onStart()
	defer b.onEnd()
	return []float32{1}, nil
}

func (b *blockingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, nil
}
func (b *blockingEmbedder) Dimensions() int   { return 1 }
func (b *blockingEmbedder) ModelName() string { return "blocking" }

func TestEmbed_FirstErrorWins(t *testing.T) {
	e := &fakeEmbedder{failOn: "word"}
	chunks := makeChunks(3)

	_, _, err := Embed(context.Background(), e, chunks)
	require.Error(t, err)
}

func TestEmbed_SkipsOversizedChunk(t *testing.T) {
	e := &fakeEmbedder{}
	huge := chunk.Chunk{ID: "huge", Content: strings.Repeat("word ", 20000)}
	small := chunk.Chunk{ID: "small", Content: "a short chunk"}

	out, _, err := Embed(context.Background(), e, []chunk.Chunk{huge, small})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "small", out[0].ChunkID)
}

func TestEstimateTokens_EmptyString(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
}

func TestEstimateTokens_ScalesWithWords(t *testing.T) {
	short := EstimateTokens("one two three")
	long := EstimateTokens(strings.Repeat("word ", 100))
	assert.Less(t, short, long)
}
