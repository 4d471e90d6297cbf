package roadmap

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/roadmap/internal/model"
)

// 入力値の最大文字数（ルーン単位）
const (
	MaxNameLength    = 100
	MaxCommentLength = 5000
	MaxEmailLength   = 100
)

// コメント拒否理由（メトリクスのラベル）
const (
	RejectHoneypot    = "honeypot"
	RejectRateLimited = "rate_limited"
	RejectValidation  = "validation"
	RejectUpstream    = "upstream"
)

// commentHeader は投稿本文の先頭行。Linear上で公開ロードマップ経由のコメントを識別する。
const commentHeader = "[Public Roadmap Comment]"

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// AddComment は匿名訪問者のコメントをIssueに投稿する。
//
// 審査順:
//  1. ハニーポット（レート制限のカウントを消費しない）
//  2. レート制限
//  3. 必須項目・空白除去後の空チェック・メールアドレス形式
//
// 投稿に成功した場合はそのIssueのコメントキャッシュを無効化する。
func (s *Service) AddComment(ctx context.Context, issueID string, sub model.CommentSubmission) error {
	logger := s.logger.With(
		slog.String("issue_id", issueID),
		slog.String("client_ip", sub.ClientID),
	)

	if !isEmptyHoneypot(sub.Honeypot) {
		s.metrics.RecordCommentRejected(RejectHoneypot)
		logger.Warn("ハニーポットが入力されたため投稿を拒否しました")
		return model.NewInvalidSubmissionError()
	}

	result := s.limiter.Check(sub.ClientID)
	if !result.Allowed {
		s.metrics.RecordCommentRejected(RejectRateLimited)
		logger.Warn("レート制限により投稿を拒否しました",
			slog.Int("limit", result.Limit),
			slog.Duration("reset_in", result.ResetIn),
		)
		return model.NewRateLimitedError(result.Limit, s.limiter.Window(), result.ResetIn)
	}

	if sub.Name == "" || sub.Comment == "" {
		s.metrics.RecordCommentRejected(RejectValidation)
		return model.NewRequiredFieldsError()
	}

	name := truncate(strings.TrimSpace(sub.Name), MaxNameLength)
	comment := truncate(strings.TrimSpace(sub.Comment), MaxCommentLength)
	email := truncate(strings.TrimSpace(sub.Email), MaxEmailLength)

	if name == "" || comment == "" {
		s.metrics.RecordCommentRejected(RejectValidation)
		return model.NewEmptyFieldsError()
	}

	if email != "" && !emailPattern.MatchString(email) {
		s.metrics.RecordCommentRejected(RejectValidation)
		return model.NewInvalidEmailError()
	}

	body := FormatCommentBody(name, email, comment)
	if err := s.tracker.CreateComment(context.WithoutCancel(ctx), issueID, body); err != nil {
		s.metrics.RecordCommentRejected(RejectUpstream)
		return model.NewUpstreamError("Failed to add comment", err)
	}

	s.comments.Invalidate(CommentsCacheKey(issueID))
	s.metrics.RecordCommentSubmitted()
	logger.Info("コメントを投稿しました", slog.Int("remaining", result.Remaining))

	return nil
}

// FormatCommentBody はLinearに送信するコメント本文を組み立てる。
// emailが空の場合はEmail行を含めない。
func FormatCommentBody(name, email, comment string) string {
	var b strings.Builder
	b.WriteString(commentHeader)
	b.WriteString("\nName: ")
	b.WriteString(name)
	if email != "" {
		b.WriteString("\nEmail: ")
		b.WriteString(email)
	}
	b.WriteString("\n\n")
	b.WriteString(comment)
	return b.String()
}

// isEmptyHoneypot はハニーポット値が未入力とみなせるかを判定する。
// null、空文字列、false、0を未入力とし、それ以外（空白のみの文字列を含む）は入力ありとする。
func isEmptyHoneypot(v any) bool {
	switch h := v.(type) {
	case nil:
		return true
	case string:
		return h == ""
	case bool:
		return !h
	case float64:
		return h == 0
	case int:
		return h == 0
	default:
		return false
	}
}

// truncate は文字列をルーン数maxまでに切り詰める。
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
