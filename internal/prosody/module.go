// Package prosody 用 CART 为 utterance 标注韵律：时长（Durator）、
// 重音与边界调（Intonator）以及韵律短语切分（Phraser）。
//
// 标注模块只持有只读的树，可以被多个 goroutine 共享；utterance 由调用方独占。
package prosody

import (
	"errors"

	"github.com/iabetor/prosody/internal/cart"
	"github.com/iabetor/prosody/internal/metrics"
	"github.com/iabetor/prosody/internal/utterance"
)

// ErrMissingStatistics 表示找不到音段的时长统计。
var ErrMissingStatistics = errors.New("prosody: 缺少音素时长统计")

// ErrMissingRelation 表示 utterance 缺少标注所需的关系。
var ErrMissingRelation = errors.New("prosody: 缺少关系")

// Module 是作用于整条 utterance 的标注模块。
type Module interface {
	Name() string
	Process(u *utterance.Utterance) error
}

// Option 配置标注模块。
type Option func(*annotator)

// WithMetrics 让模块把每次 CART 解释记录到 m。
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *annotator) { a.metrics = m }
}

// annotator 是各模块共享的部分。
type annotator struct {
	metrics *metrics.Metrics
}

func newAnnotator(opts []Option) annotator {
	var a annotator
	for _, o := range opts {
		o(&a)
	}
	return a
}

func (a *annotator) interpret(t *cart.Tree, it *utterance.Item) (cart.Value, error) {
	v, err := t.Interpret(it)
	a.metrics.ObserveInterpret(t.Name(), err)
	return v, err
}
