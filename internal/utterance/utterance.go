// Package utterance 是一个内存中的异构关系图：同一组特征（Contents）可以同时
// 出现在多个关系（Token、Word、Syllable、SylStructure、Segment、Phrase）中。
//
// 图由单个处理请求独占，不做任何加锁。
package utterance

import (
	"github.com/google/uuid"

	"github.com/iabetor/prosody/internal/cart"
)

// 常用关系名。
const (
	RelToken        = "Token"
	RelWord         = "Word"
	RelSyllable     = "Syllable"
	RelSylStructure = "SylStructure"
	RelSegment      = "Segment"
	RelPhrase       = "Phrase"
)

// Utterance 是一次合成请求的语言结构。
type Utterance struct {
	ID   string
	Text string
	// DurationStretch 是全局时长拉伸系数，1 表示不拉伸。
	DurationStretch float32

	relations map[string]*Relation
	order     []string
}

// New 创建空的 Utterance，分配新的 ID。
func New(text string) *Utterance {
	return &Utterance{
		ID:              uuid.NewString(),
		Text:            text,
		DurationStretch: 1,
		relations:       make(map[string]*Relation),
	}
}

// Relation 返回指定名称的关系，不存在时返回 nil。
func (u *Utterance) Relation(name string) *Relation {
	return u.relations[name]
}

// CreateRelation 创建（或替换为空的）指定关系。
func (u *Utterance) CreateRelation(name string) *Relation {
	r := &Relation{name: name, utt: u}
	if _, ok := u.relations[name]; !ok {
		u.order = append(u.order, name)
	}
	u.relations[name] = r
	return r
}

// RelationNames 按创建顺序返回所有关系名。
func (u *Utterance) RelationNames() []string {
	out := make([]string, len(u.order))
	copy(out, u.order)
	return out
}

// Contents 是被多个关系共享的特征集合。
type Contents struct {
	features map[string]cart.Value
	keys     []string
	items    map[string]*Item
}

// NewContents 创建空的特征集合。
func NewContents() *Contents {
	return &Contents{
		features: make(map[string]cart.Value),
		items:    make(map[string]*Item),
	}
}

// Get 返回特征值。
func (c *Contents) Get(name string) (cart.Value, bool) {
	v, ok := c.features[name]
	return v, ok
}

// Set 设置特征值。
func (c *Contents) Set(name string, v cart.Value) {
	if _, ok := c.features[name]; !ok {
		c.keys = append(c.keys, name)
	}
	c.features[name] = v
}

// Keys 按首次设置的顺序返回特征名。
func (c *Contents) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Relation 是 Item 的有序双向链表；顶层 Item 之下可以挂子 Item。
type Relation struct {
	name       string
	utt        *Utterance
	head, tail *Item
	size       int
}

// Name 返回关系名。
func (r *Relation) Name() string { return r.name }

// Utterance 返回所属的 Utterance。
func (r *Relation) Utterance() *Utterance { return r.utt }

// Head 返回第一个顶层 Item。
func (r *Relation) Head() *Item { return r.head }

// Tail 返回最后一个顶层 Item。
func (r *Relation) Tail() *Item { return r.tail }

// Len 返回顶层 Item 个数。
func (r *Relation) Len() int { return r.size }

// Append 在末尾追加顶层 Item。c 为 nil 时创建新的特征集合。
func (r *Relation) Append(c *Contents) *Item {
	it := r.newItem(c)
	if r.tail == nil {
		r.head = it
	} else {
		r.tail.next = it
		it.prev = r.tail
	}
	r.tail = it
	r.size++
	return it
}

// Items 返回所有顶层 Item。
func (r *Relation) Items() []*Item {
	out := make([]*Item, 0, r.size)
	for it := r.head; it != nil; it = it.next {
		out = append(out, it)
	}
	return out
}

func (r *Relation) newItem(c *Contents) *Item {
	if c == nil {
		c = NewContents()
	}
	it := &Item{contents: c, relation: r}
	c.items[r.name] = it
	return it
}
