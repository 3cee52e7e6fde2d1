package prosody

import (
	"fmt"

	"github.com/iabetor/prosody/internal/cart"
	"github.com/iabetor/prosody/internal/utterance"
)

// BigBreak 是短语边界树的输出，也是新短语的占位名。
const BigBreak = "BB"

// Phraser 根据边界树把 Word 关系切分为连续的短语，写入 Phrase 关系。
type Phraser struct {
	annotator
	tree *cart.Tree
}

// NewPhraser 创建短语切分模块。
func NewPhraser(tree *cart.Tree, opts ...Option) *Phraser {
	return &Phraser{annotator: newAnnotator(opts), tree: tree}
}

// Name 返回模块名。
func (p *Phraser) Name() string { return "phraser" }

// Process 重建 Phrase 关系。每个短语止于树输出 BB 的词；最后一个短语可以不以 BB 结束。
func (p *Phraser) Process(u *utterance.Utterance) error {
	words := u.Relation(utterance.RelWord)
	if words == nil {
		return fmt.Errorf("%w: %s", ErrMissingRelation, utterance.RelWord)
	}
	phrases := u.CreateRelation(utterance.RelPhrase)

	var phrase *utterance.Item
	for w := words.Head(); w != nil; w = w.Next() {
		if phrase == nil {
			phrase = phrases.Append(nil)
			phrase.Set("name", cart.Str(BigBreak))
		}
		phrase.AppendDaughter(w)

		v, err := p.interpret(p.tree, w)
		if err != nil {
			return fmt.Errorf("[phraser] 词 %q: %w", w.Name(), err)
		}
		if v.String() == BigBreak {
			phrase = nil
		}
	}
	return nil
}
