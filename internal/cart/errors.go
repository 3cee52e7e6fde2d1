package cart

import (
	"errors"
	"fmt"
)

var (
	// ErrParse 表示树的文本或二进制输入格式错误，树不会被构建。
	ErrParse = errors.New("cart: 解析失败")
	// ErrPattern 表示 MATCHES 节点中的正则表达式无效。
	ErrPattern = errors.New("cart: 正则表达式无效")
	// ErrFeatureResolution 表示无法在语言单元上解析特征路径。
	ErrFeatureResolution = errors.New("cart: 特征解析失败")
	// ErrTypeCoercion 表示特征值无法转换为比较运算所需的类型。
	ErrTypeCoercion = errors.New("cart: 类型转换失败")
)

// ParseError 记录出错的行号和原始行内容。
type ParseError struct {
	Line int    // 1 起始；0 表示与具体行无关（如二进制头部）
	Text string // 原始行
	Msg  string
	Err  error // ErrParse 或 ErrPattern
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%v: 第 %d 行 %q: %s", e.Err, e.Line, e.Text, e.Msg)
	}
	if e.Text != "" {
		return fmt.Sprintf("%v: %q: %s", e.Err, e.Text, e.Msg)
	}
	return fmt.Sprintf("%v: %s", e.Err, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErrorf(line int, text string, format string, args ...interface{}) *ParseError {
	return &ParseError{Line: line, Text: text, Msg: fmt.Sprintf(format, args...), Err: ErrParse}
}
