package model

import "time"

// AnonymousAuthor は投稿者名が取得できないコメントの表示名。
const AnonymousAuthor = "Anonymous"

// Comment は公開用に正規化されたコメントを表す。
// このシステムからは追記のみ行い、編集・削除はしない。
type Comment struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	Author    string    `json:"author"`
	Email     string    `json:"email,omitempty"`
}

// CommentSubmission は匿名訪問者からのコメント投稿内容。
// Honeypotには受信したJSON値をそのまま保持する（型は問わない）。
type CommentSubmission struct {
	Name     string
	Email    string
	Comment  string
	Honeypot any
	ClientID string // レート制限のキー（クライアントIP等の不透明な文字列）
}
