package utterance

import (
	"fmt"
	"strings"

	"github.com/iabetor/prosody/internal/cart"
)

// Item 是关系中的一个节点。
type Item struct {
	contents   *Contents
	relation   *Relation
	prev, next *Item
	parent     *Item
	first      *Item
	last       *Item
}

var _ cart.Unit = (*Item)(nil)

// Contents 返回共享的特征集合。
func (it *Item) Contents() *Contents { return it.contents }

// Relation 返回 Item 所在的关系。
func (it *Item) Relation() *Relation { return it.relation }

// Next 返回同层的下一个 Item。
func (it *Item) Next() *Item { return it.next }

// Prev 返回同层的上一个 Item。
func (it *Item) Prev() *Item { return it.prev }

// Parent 返回父 Item，顶层 Item 返回 nil。
func (it *Item) Parent() *Item { return it.parent }

// FirstDaughter 返回第一个子 Item。
func (it *Item) FirstDaughter() *Item { return it.first }

// LastDaughter 返回最后一个子 Item。
func (it *Item) LastDaughter() *Item { return it.last }

// Daughters 返回全部子 Item。
func (it *Item) Daughters() []*Item {
	var out []*Item
	for d := it.first; d != nil; d = d.next {
		out = append(out, d)
	}
	return out
}

// AppendDaughter 在同一关系中追加一个与 other 共享特征的子 Item 并返回它。
// other 为 nil 时创建新的特征集合。
func (it *Item) AppendDaughter(other *Item) *Item {
	var c *Contents
	if other != nil {
		c = other.contents
	}
	d := it.relation.newItem(c)
	d.parent = it
	if it.last == nil {
		it.first = d
	} else {
		it.last.next = d
		d.prev = it.last
	}
	it.last = d
	return d
}

// InRelation 返回共享同一特征集合、位于指定关系中的 Item。
func (it *Item) InRelation(name string) *Item {
	return it.contents.items[name]
}

// Get 返回特征值。
func (it *Item) Get(name string) (cart.Value, bool) { return it.contents.Get(name) }

// Set 设置特征值。
func (it *Item) Set(name string, v cart.Value) { it.contents.Set(name, v) }

// Name 返回 name 特征的文本，未设置时为空。
func (it *Item) Name() string {
	v, _ := it.contents.Get("name")
	return v.String()
}

// Feature 按点分路径解析特征。导航步骤：n、p、nn、pp、parent、daughter/daughter1、
// daughtern、R:<关系名>；最后一步为特征名。
func (it *Item) Feature(path string) (cart.Value, error) {
	steps := strings.Split(path, ".")
	cur := it
	for i, step := range steps[:len(steps)-1] {
		cur = cur.step(step)
		if cur == nil {
			return cart.Value{}, fmt.Errorf("%w: %s 在第 %d 步 %q 处无目标", cart.ErrFeatureResolution, path, i+1, step)
		}
	}
	name := steps[len(steps)-1]
	v, ok := cur.contents.Get(name)
	if !ok {
		return cart.Value{}, fmt.Errorf("%w: %s 缺少特征 %q", cart.ErrFeatureResolution, path, name)
	}
	return v, nil
}

func (it *Item) step(s string) *Item {
	switch s {
	case "n":
		return it.next
	case "p":
		return it.prev
	case "nn":
		if it.next != nil {
			return it.next.next
		}
		return nil
	case "pp":
		if it.prev != nil {
			return it.prev.prev
		}
		return nil
	case "parent":
		return it.parent
	case "daughter", "daughter1":
		return it.first
	case "daughtern":
		return it.last
	}
	if rel, ok := strings.CutPrefix(s, "R:"); ok {
		return it.InRelation(rel)
	}
	return nil
}
