package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeEmbedding(t *testing.T) {
	orig := []float32{0, 1.5, -2.25, 3.75}

	decoded, err := DecodeEmbedding(EncodeEmbedding(orig))
	require.NoError(t, err)
	assert.Equal(t, orig, decoded)

	assert.Empty(t, EncodeEmbedding(nil))
	vec, err := DecodeEmbedding(nil)
	require.NoError(t, err)
	assert.Empty(t, vec)

	_, err = DecodeEmbedding([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestCosineSimilarity(t *testing.T) {
	sim, err := CosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)

	sim, err = CosineSimilarity([]float32{1, 0}, []float32{2, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)

	_, err = CosineSimilarity([]float32{1}, []float32{1, 2})
	assert.Error(t, err, "dimension mismatch")
	_, err = CosineSimilarity(nil, nil)
	assert.Error(t, err, "empty")
	_, err = CosineSimilarity([]float32{0, 0}, []float32{1, 1})
	assert.Error(t, err, "zero magnitude")
}
