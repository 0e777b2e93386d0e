package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// blockElements はテキスト化の際に改行で区切る要素。
var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"blockquote": true, "pre": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "tr": true, "table": true,
}

// TextSanitizer は外部フィードのHTMLを、お知らせ本文として保存できるプレーンテキストに変換する。
// 並行利用して安全。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
// script, style, iframe等は中身ごと除去し、構造を表す要素だけを残す。
func NewTextSanitizer() *TextSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "div", "br", "ul", "ol", "li",
		"blockquote", "pre", "code", "strong", "em", "b", "i",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"table", "tr", "td", "th",
	)
	return &TextSanitizer{policy: p}
}

// PlainText はHTMLを無害化した上でテキストを取り出す。
// ブロック要素は改行にし、連続する空白は1つにまとめる。空行は残さない。
// 空入力には空文字を返す。
func (s *TextSanitizer) PlainText(rawHTML string) string {
	if strings.TrimSpace(rawHTML) == "" {
		return ""
	}

	safe := s.policy.Sanitize(rawHTML)

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(safe))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return tidyLines(b.String())
		case html.TextToken:
			b.WriteString(string(z.Text()))
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if blockElements[string(name)] {
				b.WriteByte('\n')
			}
		}
	}
}

// tidyLines は行内の空白を詰め、空行を除く。
func tidyLines(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
