package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceDict []string

func (d sliceDict) Lookup(i int32) (string, bool) {
	if i < 0 || int(i) >= len(d) {
		return "", false
	}
	return d[i], true
}

func TestLeafFromValue(t *testing.T) {
	l := LeafFromValue(List(3, 1, 4))
	arr, ok := l.(*IntArrayLeaf)
	require.True(t, ok)
	assert.Equal(t, 3, arr.Len())

	dst := make([]int32, 2)
	assert.Equal(t, 2, arr.Fill(dst))
	assert.Equal(t, []int32{3, 1}, dst)

	vals := arr.Values()
	vals[0] = 9
	assert.Equal(t, []int32{3, 1, 4}, arr.Indices)

	s, ok := LeafFromValue(Str("H*")).(*ScalarLeaf)
	require.True(t, ok)
	assert.Equal(t, "H*", s.Value.String())
	assert.False(t, s.IsEmpty())

	assert.True(t, LeafFromValue(List()).IsEmpty())
}

func TestIntFloatLeaf(t *testing.T) {
	_, err := NewIntFloatLeaf([]int32{1}, nil)
	assert.Error(t, err)

	l, err := NewIntFloatLeaf([]int32{5, 7, 9}, []float32{0.2, 0.5, 0.5})
	require.NoError(t, err)
	idx, w, ok := l.MostProbable()
	require.True(t, ok)
	assert.Equal(t, int32(7), idx)
	assert.Equal(t, float32(0.5), w)

	ids := make([]int32, 5)
	ws := make([]float32, 2)
	assert.Equal(t, 2, l.Fill(ids, ws))
	assert.Equal(t, []float32{0.2, 0.5}, ws)

	_, _, ok = (&IntFloatLeaf{}).MostProbable()
	assert.False(t, ok)
}

func TestStringFloatLeaf(t *testing.T) {
	l := &StringFloatLeaf{
		IntFloatLeaf: IntFloatLeaf{Indices: []int32{0, 2}, Weights: []float32{0.1, 0.9}},
		Dict:         sliceDict{"NONE", "H*", "L*"},
	}
	strs, err := l.Strings()
	require.NoError(t, err)
	assert.Equal(t, []string{"NONE", "L*"}, strs)

	best, w, err := l.MostProbableString()
	require.NoError(t, err)
	assert.Equal(t, "L*", best)
	assert.Equal(t, float32(0.9), w)

	l.Indices[1] = 8
	_, err = l.Strings()
	assert.Error(t, err)
}

func TestFeatureVectorLeaf(t *testing.T) {
	grow := NewFeatureVectorLeaf()
	for i := 0; i < 5; i++ {
		require.NoError(t, grow.Add(&FeatureVector{UnitIndex: i}))
	}
	assert.Equal(t, 5, grow.Len())
	assert.Equal(t, 3, grow.Vectors()[3].UnitIndex)

	fixed := NewFixedFeatureVectorLeaf(2)
	assert.True(t, fixed.IsEmpty())
	require.NoError(t, fixed.Add(&FeatureVector{UnitIndex: 1}))
	require.NoError(t, fixed.Add(&FeatureVector{UnitIndex: 2}))
	assert.ErrorIs(t, fixed.Add(&FeatureVector{UnitIndex: 3}), ErrLeafFull)

	dst := make([]*FeatureVector, 4)
	assert.Equal(t, 2, fixed.Fill(dst))
	assert.Equal(t, 2, dst[1].UnitIndex)
}

func TestPdfLeaf(t *testing.T) {
	single, err := NewPdfLeaf([]float32{1, 2, 3}, []float32{0.1, 0.2, 0.3}, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, single.VectorSize())

	multi, err := NewPdfLeaf([]float32{5, 6}, []float32{0.5, 0.6}, 2)
	require.NoError(t, err)
	multi.VoicedWeight = 0.8
	assert.Equal(t, 1, multi.VectorSize())
	assert.Equal(t, float32(6), multi.StreamMean(1))
	assert.Equal(t, float32(0.5), multi.StreamVariance(0))

	mean := make([]float32, 3)
	vari := make([]float32, 3)
	assert.Equal(t, 2, multi.Fill(mean, vari))

	_, err = NewPdfLeaf([]float32{1}, []float32{1, 2}, 1)
	assert.Error(t, err)
	_, err = NewPdfLeaf([]float32{1, 2, 3}, []float32{1, 2, 3}, 2)
	assert.Error(t, err)
	_, err = NewPdfLeaf(nil, nil, 0)
	assert.Error(t, err)
}
