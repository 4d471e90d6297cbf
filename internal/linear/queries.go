package linear

import (
	"fmt"
	"strings"
)

// issuesPageSize は1回のIssue取得件数。
const issuesPageSize = 100

// Filter はIssue一覧の絞り込み条件。
// 空のフィールドはクエリから完全に除外される（nullとして送信しない）。
type Filter struct {
	TeamID    string
	ProjectID string
	LabelName string
}

// IsZero は絞り込み条件が1つも設定されていないかを返す。
func (f Filter) IsZero() bool {
	return f.TeamID == "" && f.ProjectID == "" && f.LabelName == ""
}

const issueFields = `
      nodes {
        id
        identifier
        title
        description
        state {
          name
        }
        labels {
          nodes {
            name
            color
          }
        }
        createdAt
        updatedAt
      }`

// buildIssuesQuery はFilterに応じたIssue一覧クエリと変数を組み立てる。
// 設定された条件ごとに変数宣言とフィルタ句を追加し、条件はANDで結合される。
func buildIssuesQuery(f Filter) (string, map[string]any) {
	var (
		decls   []string
		clauses []string
	)
	vars := make(map[string]any)

	if f.TeamID != "" {
		decls = append(decls, "$teamId: String")
		clauses = append(clauses, "team: { id: { eq: $teamId } }")
		vars["teamId"] = f.TeamID
	}
	if f.ProjectID != "" {
		decls = append(decls, "$projectId: String")
		clauses = append(clauses, "project: { id: { eq: $projectId } }")
		vars["projectId"] = f.ProjectID
	}
	if f.LabelName != "" {
		decls = append(decls, "$labelName: String")
		clauses = append(clauses, "labels: { name: { eq: $labelName } }")
		vars["labelName"] = f.LabelName
	}

	var b strings.Builder
	b.WriteString("query GetIssues")
	if len(decls) > 0 {
		b.WriteString("(" + strings.Join(decls, ", ") + ")")
	}
	b.WriteString(" {\n  issues(")
	if len(clauses) > 0 {
		b.WriteString("filter: { " + strings.Join(clauses, " ") + " }, ")
	}
	fmt.Fprintf(&b, "first: %d) {", issuesPageSize)
	b.WriteString(issueFields)
	b.WriteString("\n  }\n}")

	return b.String(), vars
}

const issueCommentsQuery = `query GetIssueComments($issueId: String!) {
  issue(id: $issueId) {
    id
    comments {
      nodes {
        id
        body
        createdAt
        user {
          name
          email
        }
      }
    }
  }
}`

const addCommentMutation = `mutation AddComment($issueId: String!, $body: String!) {
  commentCreate(input: { issueId: $issueId, body: $body }) {
    success
    comment {
      id
      createdAt
    }
  }
}`
