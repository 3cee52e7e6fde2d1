package prosody

import (
	"fmt"

	"github.com/iabetor/prosody/internal/cart"
	"github.com/iabetor/prosody/internal/utterance"
)

// None 是重音/边界调树表示“无”的输出。
const None = "NONE"

// Intonator 对每个音节分别查询重音树和边界调树。
type Intonator struct {
	annotator
	accent *cart.Tree
	tone   *cart.Tree
}

// NewIntonator 创建语调标注模块。
func NewIntonator(accent, tone *cart.Tree, opts ...Option) *Intonator {
	return &Intonator{annotator: newAnnotator(opts), accent: accent, tone: tone}
}

// Name 返回模块名。
func (in *Intonator) Name() string { return "intonator" }

// Process 为 Syllable 关系中的音节写入 accent 和 endtone 特征，结果为 NONE 时不写。
func (in *Intonator) Process(u *utterance.Utterance) error {
	syls := u.Relation(utterance.RelSyllable)
	if syls == nil {
		return fmt.Errorf("%w: %s", ErrMissingRelation, utterance.RelSyllable)
	}

	for syl := syls.Head(); syl != nil; syl = syl.Next() {
		accent, err := in.interpret(in.accent, syl)
		if err != nil {
			return fmt.Errorf("[intonator] 音节 %q 重音: %w", syl.Name(), err)
		}
		tone, err := in.interpret(in.tone, syl)
		if err != nil {
			return fmt.Errorf("[intonator] 音节 %q 边界调: %w", syl.Name(), err)
		}

		if s := accent.String(); s != None {
			syl.Set("accent", cart.Str(s))
		}
		if s := tone.String(); s != None {
			syl.Set("endtone", cart.Str(s))
		}
	}
	return nil
}
