package prosody

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// PhoneStats 是某个音素时长的均值和标准差（秒）。
type PhoneStats struct {
	Mean   float32
	StdDev float32
}

// DurationStats 按音素名查询时长统计。
type DurationStats interface {
	Lookup(phone string) (PhoneStats, bool)
}

// DurationTable 是基于 map 的时长统计表。
type DurationTable map[string]PhoneStats

// Lookup 实现 DurationStats。
func (t DurationTable) Lookup(phone string) (PhoneStats, bool) {
	s, ok := t[phone]
	return s, ok
}

// Phones 返回排序后的音素名。
func (t DurationTable) Phones() []string {
	out := make([]string, 0, len(t))
	for p := range t {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// LoadDurationTable 读取 "音素 均值 标准差" 格式的文本，每行一个音素。
// 以 "***" 或 "#" 开头的行为注释。
func LoadDurationTable(r io.Reader) (DurationTable, error) {
	table := make(DurationTable)
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "***") || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("时长表第 %d 行需要 3 个字段，实际 %d 个", lineNo, len(fields))
		}
		mean, err := strconv.ParseFloat(fields[1], 32)
		if err != nil {
			return nil, fmt.Errorf("时长表第 %d 行均值 %q 无效", lineNo, fields[1])
		}
		std, err := strconv.ParseFloat(fields[2], 32)
		if err != nil {
			return nil, fmt.Errorf("时长表第 %d 行标准差 %q 无效", lineNo, fields[2])
		}
		table[fields[0]] = PhoneStats{Mean: float32(mean), StdDev: float32(std)}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("读取时长表失败: %w", err)
	}
	return table, nil
}

// LoadDurationTableFile 从文件读取时长表。
func LoadDurationTableFile(path string) (DurationTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开时长表 %s 失败: %w", path, err)
	}
	defer f.Close()
	return LoadDurationTable(f)
}
