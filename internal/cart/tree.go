// Package cart 实现分类回归树（CART）的加载、序列化与解释执行。
//
// 树以扁平数组存储，根节点下标为 0。非叶子节点的 True 分支固定为下一个节点，
// False 分支为显式下标。树加载完成后不再修改，可在多个 goroutine 间无锁共享。
package cart

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Unit 是可被查询特征的语言单元（音段、音节、词等），由外部协作者实现。
type Unit interface {
	// Feature 按特征路径解析值。无法解析时返回包装了 ErrFeatureResolution 的错误。
	Feature(path string) (Value, error)
}

// Tree 是加载完成的 CART。
type Tree struct {
	name  string
	nodes []Node
}

// Name 返回树名，未命名时为空。
func (t *Tree) Name() string { return t.name }

// Named 返回共享同一组节点、名称不同的树。
func (t *Tree) Named(name string) *Tree {
	return &Tree{name: name, nodes: t.nodes}
}

// Len 返回节点数。
func (t *Tree) Len() int { return len(t.nodes) }

// Node 返回第 i 个节点的副本。
func (t *Tree) Node(i int) Node { return t.nodes[i] }

// Features 返回树中出现的所有特征路径（去重、排序）。
func (t *Tree) Features() []string {
	seen := make(map[string]struct{})
	for i := range t.nodes {
		if !t.nodes[i].IsLeaf() {
			seen[t.nodes[i].Feature] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Interpret 从根节点开始按分支判断向下走，返回到达的叶子值。
func (t *Tree) Interpret(u Unit) (Value, error) {
	_, v, err := t.walk(u, false)
	return v, err
}

// Trace 与 Interpret 相同，同时返回经过的节点下标（含叶子）。
func (t *Tree) Trace(u Unit) ([]int, Value, error) {
	return t.walk(u, true)
}

func (t *Tree) walk(u Unit, record bool) ([]int, Value, error) {
	if len(t.nodes) == 0 {
		return nil, Value{}, fmt.Errorf("%w: 空树", ErrParse)
	}
	var path []int
	i := 0
	for {
		n := &t.nodes[i]
		if record {
			path = append(path, i)
		}
		if n.IsLeaf() {
			return path, n.Value, nil
		}

		resolved, err := u.Feature(n.Feature)
		if err != nil {
			return path, Value{}, fmt.Errorf("节点 %d: %w", i, err)
		}
		ok, err := n.decide(resolved)
		if err != nil {
			return path, Value{}, fmt.Errorf("节点 %d: %w", i, err)
		}
		if ok {
			i = n.True
		} else {
			i = n.False
		}
	}
}

// ParseText 从字符串加载一棵文本格式的树。
func ParseText(s string) (*Tree, error) {
	return LoadText(strings.NewReader(s))
}

// LoadText 从 r 读取一棵文本格式的树。
func LoadText(r io.Reader) (*Tree, error) {
	t, err := NewDecoder(r).Decode()
	if err == io.EOF {
		return nil, parseErrorf(0, "", "缺少 TOTAL 头")
	}
	return t, err
}

// Decoder 从同一个流中依次读取多棵文本格式的树，每棵树以自己的 TOTAL 头开始。
type Decoder struct {
	sc     *bufio.Scanner
	lineNo int
}

// NewDecoder 创建文本树解码器。
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Decoder{sc: sc}
}

// nextLine 返回下一条非注释、非空行；流结束时返回 io.EOF。
func (d *Decoder) nextLine() (string, error) {
	for d.sc.Scan() {
		d.lineNo++
		line := d.sc.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "***") {
			continue
		}
		return line, nil
	}
	if err := d.sc.Err(); err != nil {
		return "", fmt.Errorf("%w: 读取第 %d 行后出错: %v", ErrParse, d.lineNo, err)
	}
	return "", io.EOF
}

// Decode 读取下一棵树。流中没有更多树时返回 io.EOF。
func (d *Decoder) Decode() (*Tree, error) {
	header, err := d.nextLine()
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(header)
	if len(fields) != 2 || fields[0] != "TOTAL" {
		return nil, parseErrorf(d.lineNo, header, "首行必须是 TOTAL <n>")
	}
	total, err := strconv.Atoi(fields[1])
	if err != nil || total <= 0 {
		return nil, parseErrorf(d.lineNo, header, "节点数 %q 不是正整数", fields[1])
	}

	nodes := make([]Node, 0, total)
	for i := 0; i < total; i++ {
		line, err := d.nextLine()
		if err == io.EOF {
			return nil, parseErrorf(d.lineNo, "", "声明 %d 个节点，只读到 %d 个", total, i)
		}
		if err != nil {
			return nil, err
		}
		n, err := parseNode(line, i, d.lineNo)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return newTree(nodes)
}

// newTree 校验分支下标后构建树：所有分支必须指向当前节点之后的有效下标，
// 因此合法树中不存在环。
func newTree(nodes []Node) (*Tree, error) {
	for i := range nodes {
		n := &nodes[i]
		if n.IsLeaf() {
			continue
		}
		for _, target := range [2]int{n.True, n.False} {
			if target <= i || target >= len(nodes) {
				return nil, &ParseError{
					Text: n.Line,
					Msg:  fmt.Sprintf("节点 %d 的分支下标 %d 无效（节点数 %d）", i, target, len(nodes)),
					Err:  ErrParse,
				}
			}
		}
	}
	return &Tree{nodes: nodes}, nil
}

// DumpText 以文本格式写出树，每个节点写出其原始行。
func (t *Tree) DumpText(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "TOTAL %d\n", len(t.nodes))
	for i := range t.nodes {
		bw.WriteString(t.nodes[i].Line)
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
