// Package frontend 把中文文本构造成 utterance 关系图，供韵律标注使用。
//
// 这里只做结构切分和注音：汉字按字成词、按字成音节，音节拆成声母和韵母两个音段；
// 非汉字的连续字母数字作为一个词、一个音节、一个音段。
package frontend

import (
	"errors"
	"strings"
	"unicode"

	"github.com/mozillazg/go-pinyin"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/iabetor/prosody/internal/cart"
	"github.com/iabetor/prosody/internal/utterance"
)

// ErrEmptyText 表示文本中没有可发音的内容。
var ErrEmptyText = errors.New("frontend: 文本为空")

// Options 控制 utterance 的构造。
type Options struct {
	// DurationStretch 全局时长拉伸系数，0 表示 1。
	DurationStretch float32
	// LocalStretch 按 token 文本指定局部时长拉伸系数。
	LocalStretch map[string]float32
}

// token 是切分后的一个 token：一段连续汉字或一段连续字母数字。
type token struct {
	text string
	han  bool
	punc string
}

// Build 构造包含 Token、Word、Syllable、SylStructure、Segment 关系的 utterance。
func Build(text string, opts Options) (*utterance.Utterance, error) {
	text = norm.NFKC.String(text)
	toks := tokenize(text)
	if len(toks) == 0 {
		return nil, ErrEmptyText
	}

	u := utterance.New(text)
	if opts.DurationStretch != 0 {
		u.DurationStretch = opts.DurationStretch
	}

	b := &builder{
		tokens:    u.CreateRelation(utterance.RelToken),
		words:     u.CreateRelation(utterance.RelWord),
		syls:      u.CreateRelation(utterance.RelSyllable),
		sylStruct: u.CreateRelation(utterance.RelSylStructure),
		segs:      u.CreateRelation(utterance.RelSegment),
		args:      pinyinArgs(pinyin.Tone3),
		initials:  pinyinArgs(pinyin.Initials),
		finals:    pinyinArgs(pinyin.FinalsTone3),
		lower:     cases.Lower(language.Und),
	}
	for _, tk := range toks {
		b.addToken(tk, opts.LocalStretch)
	}
	return u, nil
}

func pinyinArgs(style int) pinyin.Args {
	a := pinyin.NewArgs()
	a.Style = style
	return a
}

// tokenize 以空白和标点切分文本；标点记在前一个 token 上。
func tokenize(text string) []token {
	var toks []token
	var cur strings.Builder
	curHan := false

	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, token{text: cur.String(), han: curHan})
			cur.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			if len(toks) > 0 {
				toks[len(toks)-1].punc += string(r)
			}
		default:
			han := unicode.Is(unicode.Han, r)
			if cur.Len() > 0 && han != curHan {
				flush()
			}
			curHan = han
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

type builder struct {
	tokens, words, syls, sylStruct, segs *utterance.Relation

	args, initials, finals pinyin.Args
	lower                  cases.Caser
}

func (b *builder) addToken(tk token, local map[string]float32) {
	tokItem := b.tokens.Append(nil)
	tokItem.Set("name", cart.Str(tk.text))
	tokItem.Set("punc", cart.Str(tk.punc))
	if s, ok := local[tk.text]; ok {
		tokItem.Set("local_duration_stretch", cart.Float(s))
	}

	if !tk.han {
		name := b.lower.String(tk.text)
		w := b.addWord(tokItem, name, tk.punc)
		syl := b.addSyllable(w, name, 0)
		b.addSegment(syl, name, "+")
		return
	}

	runes := []rune(tk.text)
	for i, r := range runes {
		punc := ""
		if i == len(runes)-1 {
			punc = tk.punc
		}
		w := b.addWord(tokItem, string(r), punc)

		py := pinyin.Pinyin(string(r), b.args)
		if len(py) == 0 || len(py[0]) == 0 {
			// 无读音的字按原字作为一个音节、一个音段
			syl := b.addSyllable(w, string(r), 0)
			b.addSegment(syl, string(r), "+")
			continue
		}
		full := py[0][0]
		syl := b.addSyllable(w, full, toneOf(full))

		if ini := first(pinyin.Pinyin(string(r), b.initials)); ini != "" {
			b.addSegment(syl, ini, "-")
		}
		fin := first(pinyin.Pinyin(string(r), b.finals))
		if fin == "" {
			fin = full
		}
		b.addSegment(syl, fin, "+")
	}
}

func (b *builder) addWord(tok *utterance.Item, name, punc string) *utterance.Item {
	w := b.words.Append(nil)
	w.Set("name", cart.Str(name))
	w.Set("punc", cart.Str(punc))
	tok.AppendDaughter(w)
	b.sylStruct.Append(w.Contents())
	return w
}

// addSyllable 追加音节，tone 为 0 时不写 tone 特征。
func (b *builder) addSyllable(w *utterance.Item, name string, tone int) *utterance.Item {
	syl := b.syls.Append(nil)
	syl.Set("name", cart.Str(name))
	if tone > 0 {
		syl.Set("tone", cart.Int(int32(tone)))
	}
	return w.InRelation(utterance.RelSylStructure).AppendDaughter(syl)
}

func (b *builder) addSegment(syl *utterance.Item, name, vc string) {
	seg := b.segs.Append(nil)
	seg.Set("name", cart.Str(name))
	seg.Set("ph_vc", cart.Str(vc))
	syl.AppendDaughter(seg)
}

// toneOf 取 Tone3 拼音末尾的声调数字，轻声为 5。
func toneOf(py string) int {
	if py == "" {
		return 5
	}
	last := py[len(py)-1]
	if last >= '1' && last <= '4' {
		return int(last - '0')
	}
	return 5
}

func first(py [][]string) string {
	if len(py) == 0 || len(py[0]) == 0 {
		return ""
	}
	return py[0][0]
}
