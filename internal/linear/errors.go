package linear

import (
	"errors"
	"fmt"
)

var (
	// ErrIssueNotFound はIssueが存在しない場合のエラー。
	ErrIssueNotFound = errors.New("issue not found")
	// ErrCommentRejected はcommentCreateがsuccess=falseを返した場合のエラー。
	ErrCommentRejected = errors.New("failed to create comment")
)

// UpstreamError はLinear APIが2xx以外のHTTPステータスを返した場合のエラー。
type UpstreamError struct {
	StatusCode int
	Status     string // "503 Service Unavailable" 形式
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("Linear API error: %s", e.Status)
}

// GraphQLError はレスポンスにerrorsが含まれていた場合のエラー。
// Rawにはerrors配列のJSONをそのまま保持する。
type GraphQLError struct {
	Raw string
}

func (e *GraphQLError) Error() string {
	return fmt.Sprintf("Linear GraphQL error: %s", e.Raw)
}
