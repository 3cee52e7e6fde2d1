package prosody

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iabetor/prosody/internal/cart"
	"github.com/iabetor/prosody/internal/logger"
	"github.com/iabetor/prosody/internal/metrics"
	"github.com/iabetor/prosody/internal/utterance"
)

// DefaultModules 是默认的标注顺序。
var DefaultModules = []string{"phraser", "intonator", "durator"}

// Voice 汇集一个音库的全部树和时长统计。
type Voice struct {
	Duration *cart.Tree
	Accent   *cart.Tree
	Tone     *cart.Tree
	Phrase   *cart.Tree
	Stats    DurationStats
}

// Modules 按名称创建标注模块，缺少所需的树或统计时报错。
func (v *Voice) Modules(names []string, opts ...Option) ([]Module, error) {
	mods := make([]Module, 0, len(names))
	for _, name := range names {
		switch name {
		case "phraser":
			if v.Phrase == nil {
				return nil, fmt.Errorf("phraser 需要 phrase 树")
			}
			mods = append(mods, NewPhraser(v.Phrase, opts...))
		case "intonator":
			if v.Accent == nil || v.Tone == nil {
				return nil, fmt.Errorf("intonator 需要 accent 和 tone 树")
			}
			mods = append(mods, NewIntonator(v.Accent, v.Tone, opts...))
		case "durator":
			if v.Duration == nil || v.Stats == nil {
				return nil, fmt.Errorf("durator 需要 duration 树和时长统计")
			}
			mods = append(mods, NewDurator(v.Duration, v.Stats, opts...))
		default:
			return nil, fmt.Errorf("未知的标注模块: %s", name)
		}
	}
	return mods, nil
}

// Pipeline 按顺序对 utterance 运行标注模块。
type Pipeline struct {
	modules []Module
	metrics *metrics.Metrics
}

// NewPipeline 创建流水线；m 可以为 nil。
func NewPipeline(m *metrics.Metrics, modules ...Module) *Pipeline {
	return &Pipeline{modules: modules, metrics: m}
}

// Process 依次运行所有模块，任一模块失败即中止这条 utterance。
func (p *Pipeline) Process(u *utterance.Utterance) error {
	log := logger.ForUtterance(u.ID)
	for _, m := range p.modules {
		start := time.Now()
		err := m.Process(u)
		p.metrics.ObserveModule(m.Name(), time.Since(start), err)
		if err != nil {
			log.Warnf("[pipeline] 模块 %s 失败: %v", m.Name(), err)
			return fmt.Errorf("utterance %s: %s: %w", u.ID, m.Name(), err)
		}
	}
	p.metrics.UtteranceDone()
	log.Debugf("[pipeline] 标注完成")
	return nil
}

// ProcessAll 并发标注多条 utterance，最多 workers 个同时进行（<=0 表示不限）。
// 每条 utterance 只由一个 goroutine 处理；出现第一个错误后不再启动新的处理。
func (p *Pipeline) ProcessAll(ctx context.Context, utts []*utterance.Utterance, workers int) error {
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for _, u := range utts {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return p.Process(u)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
