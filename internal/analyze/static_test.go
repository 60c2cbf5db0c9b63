package analyze

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medialens/medialens/internal/store"
)

func TestStaticEmbedder_DeterministicAndNormalized(t *testing.T) {
	e := NewStaticEmbedder(64)

	a, err := e.EmbedQuery(context.Background(), "sunset over the bay")
	require.NoError(t, err)
	b, err := e.EmbedQuery(context.Background(), "sunset over the bay")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestStaticEmbedder_SimilarTextCloserThanUnrelated(t *testing.T) {
	e := NewStaticEmbedder(128)
	ctx := context.Background()

	query, _ := e.EmbedQuery(ctx, "sunset beach")
	related, _ := e.EmbedQuery(ctx, "sunset at the beach")
	unrelated, _ := e.EmbedQuery(ctx, "quarterly tax spreadsheet")

	assert.Greater(t, cosine(query, related), cosine(query, unrelated))
}

func TestStaticEmbedder_EmptyText(t *testing.T) {
	e := NewStaticEmbedder(16)

	vec, err := e.EmbedQuery(context.Background(), "   ")
	require.NoError(t, err)
	assert.Len(t, vec, 16)
	for _, v := range vec {
		assert.Zero(t, v)
	}
}

func TestStaticAnalyzer_TagsFromPath(t *testing.T) {
	a := NewStaticAnalyzer(64)

	analysis, err := a.Analyze(context.Background(), "/library/hawaii-2025/sunset_beach.mp4", store.MediaTypeVideo)
	require.NoError(t, err)

	assert.Contains(t, analysis.Tags, "sunset")
	assert.Contains(t, analysis.Tags, "beach")
	assert.Contains(t, analysis.Tags, "hawaii")
	require.NotNil(t, analysis.Summary)
	assert.Equal(t, "sunset beach", *analysis.Summary)
	assert.Len(t, analysis.Embedding, 64)
	assert.Equal(t, StaticModelIdentifier, analysis.ModelIdentifier)
}

func TestStaticAnalyzer_DedupesTags(t *testing.T) {
	a := NewStaticAnalyzer(32)

	analysis, err := a.Analyze(context.Background(), "/sunset/sunset.mp4", store.MediaTypeVideo)
	require.NoError(t, err)

	count := 0
	for _, tag := range analysis.Tags {
		if tag == "sunset" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
