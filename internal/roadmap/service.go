// Package roadmap は公開ロードマップのゲートウェイを提供する。
//
// Linearから取得したIssue・コメントをTTLキャッシュ越しに返し、
// 匿名訪問者のコメント投稿をハニーポット・レート制限・入力検証の順に審査してからLinearへ書き込む。
package roadmap

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/roadmap/internal/cache"
	"github.com/hitoshi/roadmap/internal/linear"
	"github.com/hitoshi/roadmap/internal/metrics"
	"github.com/hitoshi/roadmap/internal/model"
	"github.com/hitoshi/roadmap/internal/ratelimit"
	"github.com/hitoshi/roadmap/internal/status"
)

// キャッシュ名（ログ・メトリクスのラベル）
const (
	IssuesCacheName   = "issues"
	CommentsCacheName = "comments"
)

// IssuesCacheKey はIssue一覧のキャッシュキー。
const IssuesCacheKey = "issues:all"

// CommentsCacheKey はIssueごとのコメント一覧のキャッシュキーを返す。
func CommentsCacheKey(issueID string) string {
	return "issue:" + issueID + ":comments"
}

// IssueTracker はLinear APIの呼び出しインターフェース。
type IssueTracker interface {
	FetchIssues(ctx context.Context, filter linear.Filter) ([]model.Issue, error)
	FetchIssueComments(ctx context.Context, issueID string) ([]model.Comment, error)
	CreateComment(ctx context.Context, issueID, body string) error
}

// DescriptionRenderer はIssue説明文をHTMLに変換する。
type DescriptionRenderer interface {
	Render(source string) (string, error)
}

// MetricsCollector はゲートウェイが記録するメトリクスのインターフェース。
type MetricsCollector interface {
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)
	RecordCommentSubmitted()
	RecordCommentRejected(reason string)
}

// Config はゲートウェイの設定を保持する。
type Config struct {
	Filter      linear.Filter
	IssuesTTL   time.Duration
	CommentsTTL time.Duration
}

// DefaultConfig はデフォルト設定を返す。Issue一覧5分、コメント一覧2分。
func DefaultConfig() Config {
	return Config{
		IssuesTTL:   5 * time.Minute,
		CommentsTTL: 2 * time.Minute,
	}
}

// Deps はServiceの依存関係をまとめた構造体。
// Renderer、Metrics、Loggerは省略可能。
type Deps struct {
	Tracker      IssueTracker
	IssueCache   *cache.Cache[[]model.Issue]
	CommentCache *cache.Cache[[]model.Comment]
	Limiter      *ratelimit.Limiter
	Renderer     DescriptionRenderer
	Metrics      MetricsCollector
	Logger       *slog.Logger
}

// Service は公開ロードマップのゲートウェイ。
type Service struct {
	tracker  IssueTracker
	issues   *cache.Cache[[]model.Issue]
	comments *cache.Cache[[]model.Comment]
	limiter  *ratelimit.Limiter
	renderer DescriptionRenderer
	metrics  MetricsCollector
	logger   *slog.Logger
	config   Config
	group    singleflight.Group
}

// NewService はServiceを生成する。
// TTLが0以下の場合はデフォルト値を使用する。
func NewService(deps Deps, config Config) *Service {
	defaults := DefaultConfig()
	if config.IssuesTTL <= 0 {
		config.IssuesTTL = defaults.IssuesTTL
	}
	if config.CommentsTTL <= 0 {
		config.CommentsTTL = defaults.CommentsTTL
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	return &Service{
		tracker:  deps.Tracker,
		issues:   deps.IssueCache,
		comments: deps.CommentCache,
		limiter:  deps.Limiter,
		renderer: deps.Renderer,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
		config:   config,
	}
}

// ListIssues はIssue一覧を返す。2つ目の戻り値はキャッシュから返したかどうか。
// キャッシュミス時の同時リクエストは1回の上流呼び出しにまとめる。
func (s *Service) ListIssues(ctx context.Context) ([]model.Issue, bool, error) {
	if issues, ok := s.issues.Get(IssuesCacheKey); ok {
		s.metrics.RecordCacheHit(IssuesCacheName)
		return issues, true, nil
	}
	s.metrics.RecordCacheMiss(IssuesCacheName)

	// 呼び出し元の切断で上流呼び出しを中断しない
	upstreamCtx := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(IssuesCacheKey, func() (any, error) {
		issues, err := s.tracker.FetchIssues(upstreamCtx, s.config.Filter)
		if err != nil {
			return nil, err
		}
		s.renderDescriptions(issues)
		s.issues.Set(IssuesCacheKey, issues, s.config.IssuesTTL)
		return issues, nil
	})
	if err != nil {
		return nil, false, model.NewUpstreamError("Failed to fetch issues", err)
	}

	return v.([]model.Issue), false, nil
}

// ListComments はIssueのコメント一覧を返す。
// Issueが存在しない場合はISSUE_NOT_FOUNDエラーを返し、結果はキャッシュしない。
func (s *Service) ListComments(ctx context.Context, issueID string) ([]model.Comment, bool, error) {
	key := CommentsCacheKey(issueID)
	if comments, ok := s.comments.Get(key); ok {
		s.metrics.RecordCacheHit(CommentsCacheName)
		return comments, true, nil
	}
	s.metrics.RecordCacheMiss(CommentsCacheName)

	upstreamCtx := context.WithoutCancel(ctx)
	v, err, _ := s.group.Do(key, func() (any, error) {
		comments, err := s.tracker.FetchIssueComments(upstreamCtx, issueID)
		if err != nil {
			return nil, err
		}
		s.comments.Set(key, comments, s.config.CommentsTTL)
		return comments, nil
	})
	if err != nil {
		if errors.Is(err, linear.ErrIssueNotFound) {
			return nil, false, model.NewIssueNotFoundError(issueID, err)
		}
		return nil, false, model.NewUpstreamError("Failed to fetch comments", err)
	}

	return v.([]model.Comment), false, nil
}

// Column はボード表示の1列（公開ステータス単位）。
type Column struct {
	Status model.PublicStatus `json:"status"`
	Label  string             `json:"label"`
	Issues []model.Issue      `json:"issues"`
}

// Board はIssue一覧を公開ステータスごとにまとめて返す。
// 列の順序は固定で、該当Issueがない列も空配列で含める。
func (s *Service) Board(ctx context.Context) ([]Column, bool, error) {
	issues, cached, err := s.ListIssues(ctx)
	if err != nil {
		return nil, false, err
	}

	statuses := status.All()
	index := make(map[model.PublicStatus]int, len(statuses))
	columns := make([]Column, len(statuses))
	for i, st := range statuses {
		index[st] = i
		columns[i] = Column{Status: st, Label: status.Label(st), Issues: []model.Issue{}}
	}
	for _, issue := range issues {
		i, ok := index[issue.Status]
		if !ok {
			i = index[model.StatusTodo]
		}
		columns[i].Issues = append(columns[i].Issues, issue)
	}

	return columns, cached, nil
}

// renderDescriptions は説明文のHTMLを生成する。
// 変換に失敗したIssueはHTMLなしで返す。
func (s *Service) renderDescriptions(issues []model.Issue) {
	if s.renderer == nil {
		return
	}
	for i := range issues {
		if issues[i].Description == nil || *issues[i].Description == "" {
			continue
		}
		html, err := s.renderer.Render(*issues[i].Description)
		if err != nil {
			s.logger.Warn("説明文のHTML変換に失敗しました",
				slog.String("issue_id", issues[i].ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		issues[i].DescriptionHTML = html
	}
}
