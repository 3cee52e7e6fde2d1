package prosody

import (
	"errors"
	"fmt"

	"github.com/iabetor/prosody/internal/cart"
	"github.com/iabetor/prosody/internal/logger"
	"github.com/iabetor/prosody/internal/utterance"
)

// LocalStretchPath 从音段出发找到所属 Token 上的局部时长拉伸系数。
const LocalStretchPath = "R:SylStructure.parent.parent.R:Token.parent.local_duration_stretch"

// Durator 用时长 CART 预测每个音段的 z 分数，还原为绝对时长后累加，
// 写入音段的 end 特征。
type Durator struct {
	annotator
	tree  *cart.Tree
	stats DurationStats
}

// NewDurator 创建时长标注模块。
func NewDurator(tree *cart.Tree, stats DurationStats, opts ...Option) *Durator {
	return &Durator{annotator: newAnnotator(opts), tree: tree, stats: stats}
}

// Name 返回模块名。
func (d *Durator) Name() string { return "durator" }

// Process 依次为 Segment 关系中的每个音段写入累计结束时间。
// 负时长不做截断。
func (d *Durator) Process(u *utterance.Utterance) error {
	segs := u.Relation(utterance.RelSegment)
	if segs == nil {
		return fmt.Errorf("%w: %s", ErrMissingRelation, utterance.RelSegment)
	}

	var end float32
	for seg := segs.Head(); seg != nil; seg = seg.Next() {
		v, err := d.interpret(d.tree, seg)
		if err != nil {
			return fmt.Errorf("[durator] 音段 %q: %w", seg.Name(), err)
		}
		if !v.IsNumeric() {
			return fmt.Errorf("[durator] 音段 %q: %w: 时长树返回 %s", seg.Name(), cart.ErrTypeCoercion, v.Literal())
		}
		z, _ := v.Float32()

		st, ok := d.stats.Lookup(seg.Name())
		if !ok {
			return fmt.Errorf("[durator] %w: %q", ErrMissingStatistics, seg.Name())
		}

		stretch, err := localStretch(seg)
		if err != nil {
			return fmt.Errorf("[durator] 音段 %q: %w", seg.Name(), err)
		}
		if stretch == 0 {
			stretch = u.DurationStretch
		} else {
			stretch *= u.DurationStretch
		}

		end += stretch * (z*st.StdDev + st.Mean)
		seg.Set("end", cart.Float(end))
	}

	logger.Debugf("[durator] utt=%s 共 %d 个音段，总时长 %.3fs", u.ID, segs.Len(), end)
	return nil
}

// localStretch 读取局部拉伸系数；路径无法解析时视为 0。
func localStretch(seg *utterance.Item) (float32, error) {
	v, err := seg.Feature(LocalStretchPath)
	if errors.Is(err, cart.ErrFeatureResolution) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return v.Float32()
}
