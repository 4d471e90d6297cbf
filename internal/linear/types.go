package linear

import (
	"encoding/json"
	"time"

	"github.com/hitoshi/roadmap/internal/model"
)

// graphQLRequest はGraphQLリクエストのボディ。
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// graphQLResponse はGraphQLレスポンスのエンベロープ。
type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors json.RawMessage `json:"errors"`
}

type wireIssue struct {
	ID          string  `json:"id"`
	Identifier  string  `json:"identifier"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	State       *struct {
		Name string `json:"name"`
	} `json:"state"`
	Labels struct {
		Nodes []model.Label `json:"nodes"`
	} `json:"labels"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type issuesData struct {
	Issues struct {
		Nodes []wireIssue `json:"nodes"`
	} `json:"issues"`
}

type wireComment struct {
	ID        string    `json:"id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	User      *struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"user"`
}

type issueCommentsData struct {
	Issue *struct {
		ID       string `json:"id"`
		Comments struct {
			Nodes []wireComment `json:"nodes"`
		} `json:"comments"`
	} `json:"issue"`
}

type commentCreateData struct {
	CommentCreate struct {
		Success bool `json:"success"`
		Comment *struct {
			ID        string    `json:"id"`
			CreatedAt time.Time `json:"createdAt"`
		} `json:"comment"`
	} `json:"commentCreate"`
}
