package cart

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind 是 Value 的类型标签。
type Kind int

const (
	KindString Kind = iota
	KindFloat
	KindInt
	KindList
)

var kindNames = [...]string{
	"String",
	"Float",
	"Integer",
	"List",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Unknown"
}

// Value 是带类型标签的小型联合值，既用作比较操作数，也用作叶子数据。
// 零值是空字符串。
type Value struct {
	kind Kind
	s    string
	f    float32
	i    int32
	list []int32
}

// Str 构造字符串值。
func Str(s string) Value { return Value{kind: KindString, s: s} }

// Float 构造浮点值。
func Float(f float32) Value { return Value{kind: KindFloat, f: f} }

// Int 构造整数值。
func Int(i int32) Value { return Value{kind: KindInt, i: i} }

// List 构造整数列表值，参数会被复制。
func List(items ...int32) Value {
	cp := make([]int32, len(items))
	copy(cp, items)
	return Value{kind: KindList, list: cp}
}

// Kind 返回类型标签。
func (v Value) Kind() Kind { return v.kind }

// IsNumeric 报告值是否为 Float 或 Integer。
func (v Value) IsNumeric() bool { return v.kind == KindFloat || v.kind == KindInt }

// Ints 返回列表内容的副本；非列表返回 nil。
func (v Value) Ints() []int32 {
	if v.kind != KindList {
		return nil
	}
	cp := make([]int32, len(v.list))
	copy(cp, v.list)
	return cp
}

// String 返回值的文本形式，"=" 比较即基于该形式。
func (v Value) String() string {
	switch v.kind {
	case KindFloat:
		return formatFloat(v.f)
	case KindInt:
		return strconv.FormatInt(int64(v.i), 10)
	case KindList:
		parts := make([]string, len(v.list))
		for i, n := range v.list {
			parts[i] = strconv.FormatInt(int64(n), 10)
		}
		return strings.Join(parts, ",")
	default:
		return v.s
	}
}

// Literal 返回规范编码 Type(payload)，可被 ParseValue 解析回来。
func (v Value) Literal() string {
	return v.kind.String() + "(" + v.String() + ")"
}

// Float32 将值转换为 float32。非数值类型按其文本形式解析，失败时返回 ErrTypeCoercion。
func (v Value) Float32() (float32, error) {
	switch v.kind {
	case KindFloat:
		return v.f, nil
	case KindInt:
		return float32(v.i), nil
	case KindList:
		return 0, fmt.Errorf("%w: 列表值 %s 不能作为数值比较", ErrTypeCoercion, v.Literal())
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q 不是有效的浮点数", ErrTypeCoercion, v.s)
	}
	return float32(f), nil
}

// Equal 报告两个值的类型和内容是否完全一致。
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindFloat:
		return v.f == o.f || (math.IsNaN(float64(v.f)) && math.IsNaN(float64(o.f)))
	case KindInt:
		return v.i == o.i
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if v.list[i] != o.list[i] {
				return false
			}
		}
		return true
	default:
		return v.s == o.s
	}
}

// ParseValue 解析 Type(payload) 形式的文本，例如 Float(2.3)、List(1,2,3)。
// 列表元素按浮点解析后四舍五入为整数。
func ParseValue(lit string) (Value, error) {
	open := strings.IndexByte(lit, '(')
	if open <= 0 || !strings.HasSuffix(lit, ")") {
		return Value{}, fmt.Errorf("%w: 值 %q 不是 Type(payload) 形式", ErrParse, lit)
	}
	typ, payload := lit[:open], lit[open+1:len(lit)-1]

	switch typ {
	case "String":
		return Str(payload), nil
	case "Float":
		f, err := strconv.ParseFloat(payload, 32)
		if err != nil {
			return Value{}, fmt.Errorf("%w: 无效的浮点数 %q", ErrParse, payload)
		}
		return Float(float32(f)), nil
	case "Integer":
		n, err := strconv.ParseInt(payload, 10, 32)
		if err != nil {
			return Value{}, fmt.Errorf("%w: 无效的整数 %q", ErrParse, payload)
		}
		return Int(int32(n)), nil
	case "List":
		if strings.TrimSpace(payload) == "" {
			return Value{kind: KindList, list: []int32{}}, nil
		}
		fields := strings.Split(payload, ",")
		items := make([]int32, len(fields))
		for i, field := range fields {
			f, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return Value{}, fmt.Errorf("%w: 列表元素 %q 不是数值", ErrParse, field)
			}
			// 0.5 向上取整，-2.5 得 -2
			r := math.Floor(f + 0.5)
			if r > math.MaxInt32 || r < math.MinInt32 {
				return Value{}, fmt.Errorf("%w: 列表元素 %q 超出 int32 范围", ErrParse, field)
			}
			items[i] = int32(r)
		}
		return Value{kind: KindList, list: items}, nil
	default:
		return Value{}, fmt.Errorf("%w: 未知的值类型 %q", ErrParse, typ)
	}
}

// formatFloat 输出可还原 float32 的最短形式：1e-3 <= |f| < 1e7 时为十进制，
// 整数值补 ".0"；其余用科学计数法，如 1.0E10、1.5E-4。
func formatFloat(f float32) string {
	switch {
	case math.IsNaN(float64(f)):
		return "NaN"
	case math.IsInf(float64(f), 1):
		return "Infinity"
	case math.IsInf(float64(f), -1):
		return "-Infinity"
	}
	if abs := math.Abs(float64(f)); abs != 0 && (abs < 1e-3 || abs >= 1e7) {
		s := strconv.FormatFloat(float64(f), 'E', -1, 32)
		mant, exp, _ := strings.Cut(s, "E")
		if !strings.ContainsRune(mant, '.') {
			mant += ".0"
		}
		e, _ := strconv.Atoi(exp)
		return mant + "E" + strconv.Itoa(e)
	}
	s := strconv.FormatFloat(float64(f), 'f', -1, 32)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
