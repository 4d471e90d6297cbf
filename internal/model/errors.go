package model

import (
	"fmt"
	"time"
)

// APIError は統一エラーフォーマットを表す。
// Titleはレスポンスのerrorフィールド、Messageは詳細（上流エラーの診断情報を含む場合がある）。
type APIError struct {
	Code       string        // エラーコード
	Title      string        // 短いエラー概要
	Message    string        // エラーメッセージ
	Category   string        // カテゴリ: validation, rate_limit, upstream, system
	Action     string        // 利用者向け対処方法
	RetryAfter time.Duration // レート制限時の再試行までの時間
	Err        error         // 原因となったエラー
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Title, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Title)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeInvalidSubmission = "INVALID_SUBMISSION"
	ErrCodeRateLimited       = "RATE_LIMITED"
	ErrCodeValidation        = "VALIDATION_FAILED"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeIssueNotFound     = "ISSUE_NOT_FOUND"
	ErrCodeUpstreamFailed    = "UPSTREAM_FAILED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewInvalidSubmissionError はハニーポット検知時のエラーを生成する。
// ボットに判定材料を与えないよう、詳細は返さない。
func NewInvalidSubmissionError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSubmission,
		Title:    "Invalid submission",
		Message:  "The submission was rejected.",
		Category: "validation",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError(limit int, window, retryAfter time.Duration) *APIError {
	return &APIError{
		Code:       ErrCodeRateLimited,
		Title:      "Rate limit exceeded",
		Message:    fmt.Sprintf("Maximum %d comments per %s. Try again later.", limit, describeWindow(window)),
		Category:   "rate_limit",
		Action:     "Please wait and retry after the specified time.",
		RetryAfter: retryAfter,
	}
}

// NewRequiredFieldsError は必須項目の欠落エラーを生成する。
func NewRequiredFieldsError() *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Title:    "Name and comment are required",
		Message:  "Both name and comment must be provided.",
		Category: "validation",
		Action:   "Fill in your name and comment.",
	}
}

// NewEmptyFieldsError は空白のみの必須項目エラーを生成する。
func NewEmptyFieldsError() *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Title:    "Name and comment cannot be empty",
		Message:  "Name and comment must contain non-whitespace characters.",
		Category: "validation",
		Action:   "Fill in your name and comment.",
	}
}

// NewInvalidEmailError はメールアドレス形式エラーを生成する。
func NewInvalidEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Title:    "Invalid email address",
		Message:  "The email address is not in a valid format.",
		Category: "validation",
		Action:   "Enter an address like name@example.com or leave it blank.",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Title:    "Invalid request body",
		Message:  reason,
		Category: "validation",
		Action:   "Send a JSON object with name, comment and optional email.",
	}
}

// NewIssueNotFoundError はIssue未検出エラーを生成する。
func NewIssueNotFoundError(issueID string, err error) *APIError {
	return &APIError{
		Code:     ErrCodeIssueNotFound,
		Title:    "Issue not found",
		Message:  fmt.Sprintf("Issue not found: %s", issueID),
		Category: "validation",
		Action:   "Check the issue ID.",
		Err:      err,
	}
}

// NewUpstreamError はLinear API呼び出し失敗エラーを生成する。
// 診断のため上流エラーの内容をMessageに含める。
func NewUpstreamError(title string, err error) *APIError {
	msg := "Unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Title:    title,
		Message:  msg,
		Category: "upstream",
		Action:   "Please try again later.",
		Err:      err,
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、利用者には一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Title:    "Internal server error",
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Please try again later.",
	}
}

// describeWindow はレート制限ウィンドウを文言用に整形する。
func describeWindow(window time.Duration) string {
	switch window {
	case time.Hour:
		return "hour"
	case time.Minute:
		return "minute"
	case 24 * time.Hour:
		return "day"
	default:
		return window.String()
	}
}
