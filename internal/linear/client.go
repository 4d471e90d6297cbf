// Package linear はLinear GraphQL APIのクライアントを提供する。
// Issue一覧の取得、Issueコメントの取得、コメントの投稿の3操作のみを扱う。
package linear

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/roadmap/internal/model"
	"github.com/hitoshi/roadmap/internal/status"
)

const (
	// DefaultEndpoint はLinear GraphQL APIのエンドポイント。
	DefaultEndpoint = "https://api.linear.app/graphql"
	// maxResponseSize はレスポンスボディの読み取り上限（10MB）。
	maxResponseSize = 10 << 20
	userAgent       = "Roadmap/1.0"
)

// 操作名（ログ・メトリクスのラベル）
const (
	OpListIssues    = "list_issues"
	OpListComments  = "list_comments"
	OpCreateComment = "create_comment"
)

// StateMapper はワークフロー状態名を公開ステータスに変換する。
type StateMapper interface {
	Map(name string) model.PublicStatus
}

// MetricsRecorder は上流呼び出しの結果を記録する。
type MetricsRecorder interface {
	RecordUpstreamRequest(operation, outcome string, duration time.Duration)
}

// Client はLinear GraphQL APIのクライアント。
// すべてのリクエストにAPIキーをAuthorizationヘッダーとして付与する。
type Client struct {
	httpClient *http.Client
	apiKey     string
	logger     *slog.Logger
	endpoint   string
	mapper     StateMapper
	metrics    MetricsRecorder
}

// Option はClientの生成オプション。
type Option func(*Client)

// WithEndpoint はエンドポイントを差し替える。
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = endpoint
	}
}

// WithStateMapper は状態名の正規化処理を差し替える。
func WithStateMapper(m StateMapper) Option {
	return func(c *Client) {
		c.mapper = m
	}
}

// WithMetrics はメトリクス記録先を設定する。
func WithMetrics(m MetricsRecorder) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient はClientの新しいインスタンスを生成する。
// apiKeyが空の場合はエラーを返す。
func NewClient(httpClient *http.Client, apiKey string, logger *slog.Logger, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("linear API key is required")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		httpClient: httpClient,
		apiKey:     apiKey,
		logger:     logger,
		endpoint:   DefaultEndpoint,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.mapper == nil {
		c.mapper = &status.Normalizer{Logger: logger}
	}

	return c, nil
}

// FetchIssues はIssue一覧を取得し、公開用に正規化して返す。
// 最大100件。
func (c *Client) FetchIssues(ctx context.Context, filter Filter) ([]model.Issue, error) {
	query, vars := buildIssuesQuery(filter)

	var data issuesData
	if err := c.do(ctx, OpListIssues, query, vars, &data); err != nil {
		return nil, err
	}

	issues := make([]model.Issue, 0, len(data.Issues.Nodes))
	for _, n := range data.Issues.Nodes {
		stateName := ""
		if n.State != nil {
			stateName = n.State.Name
		}
		labels := n.Labels.Nodes
		if labels == nil {
			labels = []model.Label{}
		}
		issues = append(issues, model.Issue{
			ID:          n.ID,
			Identifier:  n.Identifier,
			Title:       n.Title,
			Description: n.Description,
			Status:      c.mapper.Map(stateName),
			Labels:      labels,
			CreatedAt:   n.CreatedAt,
			UpdatedAt:   n.UpdatedAt,
		})
	}

	return issues, nil
}

// FetchIssueComments はIssueのコメント一覧を取得する。
// Issueが存在しない場合はErrIssueNotFoundをラップしたエラーを返す。
func (c *Client) FetchIssueComments(ctx context.Context, issueID string) ([]model.Comment, error) {
	var data issueCommentsData
	err := c.do(ctx, OpListComments, issueCommentsQuery, map[string]any{"issueId": issueID}, &data)
	if err != nil {
		return nil, err
	}

	if data.Issue == nil {
		return nil, fmt.Errorf("Issue not found: %s: %w", issueID, ErrIssueNotFound)
	}

	comments := make([]model.Comment, 0, len(data.Issue.Comments.Nodes))
	for _, n := range data.Issue.Comments.Nodes {
		author := model.AnonymousAuthor
		email := ""
		if n.User != nil {
			if n.User.Name != "" {
				author = n.User.Name
			}
			email = n.User.Email
		}
		comments = append(comments, model.Comment{
			ID:        n.ID,
			Body:      n.Body,
			CreatedAt: n.CreatedAt,
			Author:    author,
			Email:     email,
		})
	}

	return comments, nil
}

// CreateComment はIssueにコメントを投稿する。
// bodyは整形済みの本文をそのまま送信する。
func (c *Client) CreateComment(ctx context.Context, issueID, body string) error {
	var data commentCreateData
	err := c.do(ctx, OpCreateComment, addCommentMutation, map[string]any{
		"issueId": issueID,
		"body":    body,
	}, &data)
	if err != nil {
		return err
	}

	if !data.CommentCreate.Success {
		return ErrCommentRejected
	}

	return nil
}

// do はGraphQLリクエストを送信し、dataフィールドをoutにデコードする。
// 自動リトライは行わない。
func (c *Client) do(ctx context.Context, operation, query string, vars map[string]any, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "error"
			c.logger.Error("Linear APIの呼び出しに失敗しました",
				slog.String("operation", operation),
				slog.String("error", err.Error()),
				slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
			)
		} else {
			c.logger.Debug("Linear APIの呼び出しが完了しました",
				slog.String("operation", operation),
				slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
			)
		}
		if c.metrics != nil {
			c.metrics.RecordUpstreamRequest(operation, outcome, time.Since(start))
		}
	}()

	payload, err := json.Marshal(graphQLRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("リクエストのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("Linear APIへのリクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if len(envelope.Errors) > 0 && string(envelope.Errors) != "null" {
		return &GraphQLError{Raw: string(envelope.Errors)}
	}

	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return fmt.Errorf("Linear APIのレスポンスにdataが含まれていません")
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("レスポンスdataのパースに失敗しました: %w", err)
	}

	return nil
}
