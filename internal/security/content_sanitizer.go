// Package security はアプリケーションのセキュリティ機能を提供する。
//
// HTMLSanitizer はIssue説明文（Markdownから変換したHTML）をサニタイズし、
// 公開ロードマップを閲覧する訪問者をXSSから保護する。
// bluemondayの許可リストベースのポリシーで、安全なタグと属性のみを通過させる。
package security

import (
	"net/url"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// HTMLSanitizer はHTMLのサニタイズ機能のインターフェースを定義する。
type HTMLSanitizer interface {
	// Sanitize はHTMLをサニタイズして安全なHTMLを返す。
	// 空文字列の入力には空文字列を返す。同一入力に対して常に同一出力を返す。
	Sanitize(rawHTML string) string
}

// codeLanguageClass はコードブロックの言語指定クラス（language-go 等）。
var codeLanguageClass = regexp.MustCompile(`^language-[\w+#-]+$`)

// htmlSanitizer はHTMLSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなため、1インスタンスを共有できる。
type htmlSanitizer struct {
	policy *bluemonday.Policy
}

// NewHTMLSanitizer はHTMLSanitizerの新しいインスタンスを生成する。
// ポリシーの内容:
//   - 許可タグ: 段落、見出し、リスト、引用、コード、強調、打ち消し線、表、水平線
//   - script, iframe, style および全てのon*イベント属性は除去
//   - aタグ: href（絶対URLのみ）、target="_blank" と rel="noopener noreferrer" を自動付与
//   - imgタグ: httpsのsrcとaltのみ許可
//   - codeタグ: language-* クラスのみ許可
//   - タスクリストのチェックボックス（input type=checkbox）
func NewHTMLSanitizer() *htmlSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "hr",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "del",
		"table", "thead", "tbody", "tr", "th", "td",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})

	p.AllowAttrs("class").Matching(codeLanguageClass).OnElements("code")
	p.AllowAttrs("align").Matching(regexp.MustCompile(`^(left|right|center)$`)).OnElements("th", "td")

	p.AllowAttrs("type").Matching(regexp.MustCompile(`^checkbox$`)).OnElements("input")
	p.AllowAttrs("checked", "disabled").OnElements("input")

	return &htmlSanitizer{
		policy: p,
	}
}

// Sanitize はHTMLをサニタイズして安全なHTMLを返す。
func (s *htmlSanitizer) Sanitize(rawHTML string) string {
	if rawHTML == "" {
		return ""
	}
	return s.policy.Sanitize(rawHTML)
}
