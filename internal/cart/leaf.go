package cart

import (
	"errors"
	"fmt"
)

// Leaf 是下游模块使用的叶子数据的公共能力。
type Leaf interface {
	// Len 返回叶子中数据项的个数。
	Len() int
	// IsEmpty 报告叶子是否不含数据。
	IsEmpty() bool
}

var (
	_ Leaf = (*ScalarLeaf)(nil)
	_ Leaf = (*IntArrayLeaf)(nil)
	_ Leaf = (*IntFloatLeaf)(nil)
	_ Leaf = (*StringFloatLeaf)(nil)
	_ Leaf = (*FeatureVectorLeaf)(nil)
	_ Leaf = (*PdfLeaf)(nil)
)

// LeafFromValue 把树叶子上的值转换为叶子数据：List 转为 IntArrayLeaf，其余为 ScalarLeaf。
func LeafFromValue(v Value) Leaf {
	if v.Kind() == KindList {
		return &IntArrayLeaf{Indices: v.Ints()}
	}
	return &ScalarLeaf{Value: v}
}

// ScalarLeaf 持有单个值。
type ScalarLeaf struct {
	Value Value
}

func (l *ScalarLeaf) Len() int      { return 1 }
func (l *ScalarLeaf) IsEmpty() bool { return false }

// IntArrayLeaf 是分类候选集，保存候选下标。
type IntArrayLeaf struct {
	Indices []int32
}

func (l *IntArrayLeaf) Len() int      { return len(l.Indices) }
func (l *IntArrayLeaf) IsEmpty() bool { return len(l.Indices) == 0 }

// Values 返回候选下标的副本。
func (l *IntArrayLeaf) Values() []int32 {
	out := make([]int32, len(l.Indices))
	copy(out, l.Indices)
	return out
}

// Fill 把候选下标复制到 dst，返回复制的个数。
func (l *IntArrayLeaf) Fill(dst []int32) int {
	return copy(dst, l.Indices)
}

// IntFloatLeaf 保存候选下标及其权重（如概率），两个切片等长。
type IntFloatLeaf struct {
	Indices []int32
	Weights []float32
}

// NewIntFloatLeaf 创建下标-权重叶子，长度不一致时报错。
func NewIntFloatLeaf(indices []int32, weights []float32) (*IntFloatLeaf, error) {
	if len(indices) != len(weights) {
		return nil, fmt.Errorf("下标数 %d 与权重数 %d 不一致", len(indices), len(weights))
	}
	return &IntFloatLeaf{Indices: indices, Weights: weights}, nil
}

func (l *IntFloatLeaf) Len() int      { return len(l.Indices) }
func (l *IntFloatLeaf) IsEmpty() bool { return len(l.Indices) == 0 }

// Fill 把下标和权重分别复制到 idx 和 w，返回复制的对数。
func (l *IntFloatLeaf) Fill(idx []int32, w []float32) int {
	n := min(len(idx), len(w), len(l.Indices))
	copy(idx, l.Indices[:n])
	copy(w, l.Weights[:n])
	return n
}

// MostProbable 返回权重最大的下标；并列时取先出现者。空叶子返回 ok=false。
func (l *IntFloatLeaf) MostProbable() (index int32, weight float32, ok bool) {
	if l.IsEmpty() {
		return 0, 0, false
	}
	best := 0
	for i := 1; i < len(l.Weights); i++ {
		if l.Weights[i] > l.Weights[best] {
			best = i
		}
	}
	return l.Indices[best], l.Weights[best], true
}

// Dictionary 把整数下标解析为字符串（例如特征取值表）。
type Dictionary interface {
	Lookup(index int32) (string, bool)
}

// StringFloatLeaf 与 IntFloatLeaf 相同，但下标通过外部字典解析为字符串。
type StringFloatLeaf struct {
	IntFloatLeaf
	Dict Dictionary
}

// Strings 返回所有下标对应的字符串；任一下标不在字典中时报错。
func (l *StringFloatLeaf) Strings() ([]string, error) {
	out := make([]string, len(l.Indices))
	for i, idx := range l.Indices {
		s, ok := l.Dict.Lookup(idx)
		if !ok {
			return nil, fmt.Errorf("下标 %d 不在字典中", idx)
		}
		out[i] = s
	}
	return out, nil
}

// MostProbableString 返回权重最大的候选字符串。
func (l *StringFloatLeaf) MostProbableString() (string, float32, error) {
	idx, w, ok := l.MostProbable()
	if !ok {
		return "", 0, errors.New("叶子为空")
	}
	s, found := l.Dict.Lookup(idx)
	if !found {
		return "", 0, fmt.Errorf("下标 %d 不在字典中", idx)
	}
	return s, w, nil
}

// FeatureVector 是单元库中某个单元的特征向量。
type FeatureVector struct {
	UnitIndex  int
	Bytes      []byte
	Shorts     []int16
	Continuous []float32
}

// ErrLeafFull 表示固定容量的特征向量叶子已满。
var ErrLeafFull = errors.New("cart: 叶子已满")

// FeatureVectorLeaf 保存特征向量引用；可增长，或在创建时固定容量。
type FeatureVectorLeaf struct {
	vectors []*FeatureVector
	limit   int // 0 表示可增长
}

// NewFeatureVectorLeaf 创建可增长的特征向量叶子。
func NewFeatureVectorLeaf() *FeatureVectorLeaf {
	return &FeatureVectorLeaf{}
}

// NewFixedFeatureVectorLeaf 创建容量为 n 的特征向量叶子。
func NewFixedFeatureVectorLeaf(n int) *FeatureVectorLeaf {
	return &FeatureVectorLeaf{vectors: make([]*FeatureVector, 0, n), limit: n}
}

// Add 追加一个特征向量；固定容量叶子已满时返回 ErrLeafFull。
func (l *FeatureVectorLeaf) Add(fv *FeatureVector) error {
	if l.limit > 0 && len(l.vectors) >= l.limit {
		return fmt.Errorf("%w: 容量 %d", ErrLeafFull, l.limit)
	}
	l.vectors = append(l.vectors, fv)
	return nil
}

// Vectors 返回所有特征向量（切片为副本，元素共享）。
func (l *FeatureVectorLeaf) Vectors() []*FeatureVector {
	out := make([]*FeatureVector, len(l.vectors))
	copy(out, l.vectors)
	return out
}

// Fill 把特征向量引用复制到 dst，返回复制的个数。
func (l *FeatureVectorLeaf) Fill(dst []*FeatureVector) int {
	return copy(dst, l.vectors)
}

func (l *FeatureVectorLeaf) Len() int      { return len(l.vectors) }
func (l *FeatureVectorLeaf) IsEmpty() bool { return len(l.vectors) == 0 }

// PdfLeaf 是高斯概率密度叶子：均值、对角方差及可选的浊音权重。
// 单流时均值和方差是向量；多流时每个流各对应一对标量。
type PdfLeaf struct {
	Mean         []float32
	Variance     []float32
	VoicedWeight float32
	Streams      int
}

// NewPdfLeaf 创建 pdf 叶子。多流时均值长度必须等于流数。
func NewPdfLeaf(mean, variance []float32, streams int) (*PdfLeaf, error) {
	if len(mean) != len(variance) {
		return nil, fmt.Errorf("均值维数 %d 与方差维数 %d 不一致", len(mean), len(variance))
	}
	if streams < 1 {
		return nil, fmt.Errorf("流数 %d 无效", streams)
	}
	if streams > 1 && len(mean) != streams {
		return nil, fmt.Errorf("多流 pdf 需要每流一个均值，流数 %d，均值 %d 个", streams, len(mean))
	}
	return &PdfLeaf{Mean: mean, Variance: variance, Streams: streams}, nil
}

func (l *PdfLeaf) Len() int      { return len(l.Mean) }
func (l *PdfLeaf) IsEmpty() bool { return len(l.Mean) == 0 }

// VectorSize 返回单流 pdf 的向量维数；多流时为 1。
func (l *PdfLeaf) VectorSize() int {
	if l.Streams > 1 {
		return 1
	}
	return len(l.Mean)
}

// StreamMean 返回第 i 个流的均值。
func (l *PdfLeaf) StreamMean(i int) float32 { return l.Mean[i] }

// StreamVariance 返回第 i 个流的方差。
func (l *PdfLeaf) StreamVariance(i int) float32 { return l.Variance[i] }

// Fill 把均值和方差复制到调用方缓冲区，返回复制的维数。
func (l *PdfLeaf) Fill(mean, variance []float32) int {
	n := min(len(mean), len(variance), len(l.Mean))
	copy(mean, l.Mean[:n])
	copy(variance, l.Variance[:n])
	return n
}
