// Package model はドメインモデルを定義する。
package model

import "time"

// PublicStatus は公開ロードマップ上のステータスを表す。
// Linearのワークフロー状態名はこの4値のいずれかに正規化される。
type PublicStatus string

const (
	// StatusTodo は未着手。
	StatusTodo PublicStatus = "todo"
	// StatusInProgress は作業中。
	StatusInProgress PublicStatus = "in-progress"
	// StatusDone は完了。
	StatusDone PublicStatus = "done"
	// StatusCancelled は中止。
	StatusCancelled PublicStatus = "cancelled"
)

// Label はIssueに付与されたラベル。
type Label struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Issue は公開用に正規化されたIssueを表す。
// Linearのレスポンスから導出される読み取り専用の値で、ローカルでは変更しない。
type Issue struct {
	ID              string       `json:"id"`
	Identifier      string       `json:"identifier"`
	Title           string       `json:"title"`
	Description     *string      `json:"description"`
	DescriptionHTML string       `json:"descriptionHtml,omitempty"`
	Status          PublicStatus `json:"status"`
	Labels          []Label      `json:"labels"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}
