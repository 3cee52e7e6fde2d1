package cart

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// NodeKind 区分三种树节点。
type NodeKind int

const (
	// NodeComparison 对特征值做 <、=、> 比较。
	NodeComparison NodeKind = iota
	// NodeMatches 对字符串特征做整串正则匹配。
	NodeMatches
	// NodeLeaf 叶子，携带预测值。
	NodeLeaf
)

var nodeKindNames = [...]string{
	"Comparison",
	"Matches",
	"Leaf",
}

func (k NodeKind) String() string {
	if int(k) >= 0 && int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return "Unknown"
}

// Op 是比较节点的运算符。
type Op int

const (
	OpLess Op = iota
	OpEquals
	OpGreater
)

var opTokens = [...]string{"<", "=", ">"}

func (o Op) String() string {
	if int(o) >= 0 && int(o) < len(opTokens) {
		return opTokens[o]
	}
	return "?"
}

const opMatches = "MATCHES"

// Node 是扁平数组中的一个树节点，下标即节点 ID。
// Line 保存解析时的原始行，二进制导出时原样写出。
type Node struct {
	Kind    NodeKind
	Feature string
	Op      Op             // 仅 NodeComparison
	Value   Value          // NodeComparison 的比较值，或 NodeLeaf 的预测值
	Pattern *regexp.Regexp // 仅 NodeMatches，已锚定为整串匹配
	True    int
	False   int
	Line    string
}

// IsLeaf 报告节点是否为叶子。
func (n Node) IsLeaf() bool { return n.Kind == NodeLeaf }

// parseNode 解析一行 NODE/LEAF 文本。index 为节点下标，用于推导 True 分支；
// lineNo 只用于错误信息。
func parseNode(line string, index, lineNo int) (Node, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Node{}, parseErrorf(lineNo, line, "空节点行")
	}

	switch fields[0] {
	case "LEAF":
		if len(fields) < 2 {
			return Node{}, parseErrorf(lineNo, line, "LEAF 缺少值")
		}
		v, err := ParseValue(fields[1])
		if err != nil {
			return Node{}, parseErrorf(lineNo, line, "%v", err)
		}
		return Node{Kind: NodeLeaf, Value: v, True: -1, False: -1, Line: line}, nil

	case "NODE":
		if len(fields) < 5 {
			return Node{}, parseErrorf(lineNo, line, "NODE 需要 特征 运算符 值 否分支 四个字段，实际 %d 个", len(fields)-1)
		}
		feature, opTok, lit, falseTok := fields[1], fields[2], fields[3], fields[4]

		falseIdx, err := strconv.Atoi(falseTok)
		if err != nil {
			return Node{}, parseErrorf(lineNo, line, "否分支下标 %q 不是整数", falseTok)
		}
		v, err := ParseValue(lit)
		if err != nil {
			return Node{}, parseErrorf(lineNo, line, "%v", err)
		}

		n := Node{Feature: feature, Value: v, True: index + 1, False: falseIdx, Line: line}
		switch opTok {
		case "<":
			n.Kind, n.Op = NodeComparison, OpLess
		case "=":
			n.Kind, n.Op = NodeComparison, OpEquals
		case ">":
			n.Kind, n.Op = NodeComparison, OpGreater
		case opMatches:
			re, err := regexp.Compile(`^(?:` + v.String() + `)$`)
			if err != nil {
				return Node{}, &ParseError{Line: lineNo, Text: line, Msg: err.Error(), Err: ErrPattern}
			}
			n.Kind, n.Pattern = NodeMatches, re
		default:
			return Node{}, parseErrorf(lineNo, line, "未知运算符 %q", opTok)
		}
		return n, nil

	default:
		return Node{}, parseErrorf(lineNo, line, "未知节点类型 %q", fields[0])
	}
}

// decide 计算分支走向：返回 true 表示走 True 分支。
func (n *Node) decide(resolved Value) (bool, error) {
	switch n.Kind {
	case NodeMatches:
		if resolved.Kind() != KindString {
			return false, fmt.Errorf("%w: MATCHES 需要字符串特征，%s 为 %s", ErrTypeCoercion, n.Feature, resolved.Kind())
		}
		return n.Pattern.MatchString(resolved.String()), nil

	case NodeComparison:
		if n.Op == OpEquals {
			return resolved.String() == n.Value.String(), nil
		}
		stored, err := n.Value.Float32()
		if err != nil {
			return false, fmt.Errorf("节点比较值 %s: %w", n.Value.Literal(), err)
		}
		got, err := resolved.Float32()
		if err != nil {
			return false, fmt.Errorf("特征 %s: %w", n.Feature, err)
		}
		if n.Op == OpLess {
			return got < stored, nil
		}
		return got > stored, nil
	}
	return false, fmt.Errorf("cart: 节点类型 %s 不能做分支判断", n.Kind)
}
