package cart

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// 二进制格式：大端 int32 节点数，随后每个节点一条大端 uint16 长度前缀的
// UTF-8 字符串，内容即该节点的原始文本行。

// LoadBinary 读取二进制格式的树，每条节点行按文本格式重新解析。
// 只读取这棵树自身的字节，同一个流中的多棵树可以依次读取。
func LoadBinary(r io.Reader) (*Tree, error) {
	var count int32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: 读取节点数失败: %v", ErrParse, err)
	}
	if count <= 0 {
		return nil, fmt.Errorf("%w: 节点数 %d 不是正整数", ErrParse, count)
	}

	nodes := make([]Node, 0, min(int(count), 1<<16))
	for i := 0; i < int(count); i++ {
		line, err := readUTF(r)
		if err != nil {
			return nil, fmt.Errorf("%w: 读取第 %d 个节点失败: %v", ErrParse, i, err)
		}
		n, err := parseNode(line, i, 0)
		if err != nil {
			return nil, fmt.Errorf("第 %d 个节点: %w", i, err)
		}
		nodes = append(nodes, n)
	}
	return newTree(nodes)
}

// DumpBinary 写出二进制格式，节点行使用解析时保存的原始文本。
func (t *Tree) DumpBinary(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.BigEndian, int32(len(t.nodes))); err != nil {
		return fmt.Errorf("写入节点数失败: %w", err)
	}
	for i := range t.nodes {
		if err := writeUTF(bw, t.nodes[i].Line); err != nil {
			return fmt.Errorf("写入第 %d 个节点失败: %w", i, err)
		}
	}
	return bw.Flush()
}

func readUTF(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	if !utf8.Valid(buf) {
		return "", fmt.Errorf("不是有效的 UTF-8")
	}
	return string(buf), nil
}

func writeUTF(w io.Writer, s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("%w: 节点行长度 %d 超过 %d 字节", ErrParse, len(s), math.MaxUint16)
	}
	if err := binary.Write(w, binary.BigEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}
