// Package markdown はIssue説明文のMarkdownを安全なHTMLに変換する。
package markdown

import (
	"bytes"
	"fmt"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hitoshi/roadmap/internal/security"
)

// Renderer はMarkdownをHTMLに変換し、サニタイズして返す。
// goldmarkのインスタンスは並行利用できるため、Rendererも共有してよい。
type Renderer struct {
	md        goldmark.Markdown
	sanitizer security.HTMLSanitizer
}

// NewRenderer はGFM拡張（表、打ち消し線、タスクリスト、自動リンク）を有効にしたRendererを生成する。
// 生のHTMLはgoldmarkの既定どおり出力しないが、出力は必ずsanitizerを通す。
func NewRenderer(sanitizer security.HTMLSanitizer) *Renderer {
	return &Renderer{
		md:        goldmark.New(goldmark.WithExtensions(extension.GFM)),
		sanitizer: sanitizer,
	}
}

// Render はMarkdownをサニタイズ済みHTMLに変換する。空文字列には空文字列を返す。
func (r *Renderer) Render(source string) (string, error) {
	if source == "" {
		return "", nil
	}

	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("markdownの変換に失敗しました: %w", err)
	}

	return r.sanitizer.Sanitize(buf.String()), nil
}
