package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/roadmap/internal/cache"
	"github.com/hitoshi/roadmap/internal/config"
	"github.com/hitoshi/roadmap/internal/handler"
	"github.com/hitoshi/roadmap/internal/linear"
	"github.com/hitoshi/roadmap/internal/logger"
	"github.com/hitoshi/roadmap/internal/markdown"
	"github.com/hitoshi/roadmap/internal/metrics"
	"github.com/hitoshi/roadmap/internal/middleware"
	"github.com/hitoshi/roadmap/internal/model"
	"github.com/hitoshi/roadmap/internal/ratelimit"
	"github.com/hitoshi/roadmap/internal/roadmap"
	"github.com/hitoshi/roadmap/internal/security"
	"github.com/hitoshi/roadmap/internal/status"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数（と任意の設定ファイル）からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer, configFile string) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 設定の読み込み
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. ログレベルの反映
	if !logger.SetLevel(cfg.LogLevel) {
		slog.Warn("unknown log level, using info", slog.String("log_level", cfg.LogLevel))
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。ctxがキャンセルされるとサーバーを停止する。
func Run(ctx context.Context, w io.Writer, args []string) error {
	root := newRootCommand(w)
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// server はHTTPサーバーと、停止時に解放するバックグラウンド処理をまとめたもの。
type server struct {
	http    *http.Server
	closers []func()
}

// close はキャッシュとレートリミッターのスイープを停止する。
func (s *server) close() {
	for _, c := range s.closers {
		c()
	}
}

// newServer は全依存関係をワイヤリングしたserverを構築する。
func newServer(cfg *config.Config, log *slog.Logger) (*server, error) {
	// 1. 上流エンドポイントの検証とHTTPクライアント
	ssrfGuard := security.NewSSRFGuard()
	if err := ssrfGuard.ValidateURL(cfg.LinearAPIURL); err != nil {
		return nil, fmt.Errorf("LINEAR_API_URL: %w", err)
	}
	httpClient := ssrfGuard.NewSafeClient(cfg.LinearTimeout)

	// 2. メトリクス
	var (
		collector      roadmapMetrics = metrics.Nop{}
		statusRecorder middleware.StatusRecorder
		metricsHandler http.Handler
	)
	if cfg.MetricsEnabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		c := metrics.NewCollector(registry)
		collector = c
		statusRecorder = c
		metricsHandler = metrics.Handler(registry)
	}

	// 3. Linearクライアント
	normalizer := &status.Normalizer{
		Overrides: cfg.StatusOverrides,
		Logger:    log,
		OnUnknown: func(string) { collector.RecordUnknownState() },
	}
	tracker, err := linear.NewClient(httpClient, cfg.LinearAPIKey, log,
		linear.WithEndpoint(cfg.LinearAPIURL),
		linear.WithStateMapper(normalizer),
		linear.WithMetrics(collector),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create linear client: %w", err)
	}

	// 4. キャッシュとレートリミッター
	issueCache := cache.New[[]model.Issue](cache.Options{
		Name:          roadmap.IssuesCacheName,
		SweepInterval: cfg.CacheSweepInterval,
		Logger:        log,
	})
	commentCache := cache.New[[]model.Comment](cache.Options{
		Name:          roadmap.CommentsCacheName,
		SweepInterval: cfg.CacheSweepInterval,
		Logger:        log,
	})
	commentLimiter := ratelimit.New(ratelimit.Config{
		MaxRequests:   cfg.RateLimitMaxComments,
		Window:        cfg.RateLimitWindow,
		SweepInterval: cfg.RateLimitSweepInterval,
		Logger:        log,
	})
	generalCfg := middleware.PerMinute(cfg.RateLimitGeneral)
	generalCfg.Logger = log
	generalLimiter := middleware.NewRateLimiter(generalCfg)

	// 5. ドメインサービス
	deps := roadmap.Deps{
		Tracker:      tracker,
		IssueCache:   issueCache,
		CommentCache: commentCache,
		Limiter:      commentLimiter,
		Metrics:      collector,
		Logger:       log,
	}
	if cfg.RenderMarkdown {
		deps.Renderer = markdown.NewRenderer(security.NewHTMLSanitizer())
	}
	service := roadmap.NewService(deps, roadmap.Config{
		Filter:      cfg.Filter(),
		IssuesTTL:   cfg.IssuesCacheTTL,
		CommentsTTL: cfg.CommentsCacheTTL,
	})

	// 6. ルーター
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		RateLimiter:       generalLimiter,
		StatusRecorder:    statusRecorder,
		RoadmapService:    service,
		MetricsHandler:    metricsHandler,
	})

	return &server{
		http: &http.Server{
			Addr:         ":" + cfg.ServerPort,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		closers: []func(){
			issueCache.Stop,
			commentCache.Stop,
			commentLimiter.Stop,
			generalLimiter.Stop,
		},
	}, nil
}

// roadmapMetrics はサーバー全体で共有するメトリクスの記録先。
type roadmapMetrics interface {
	roadmap.MetricsCollector
	linear.MetricsRecorder
	RecordUnknownState()
}

// runServe はAPIサーバーモードで起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	log := slog.Default()

	log.Info("starting application",
		slog.String("command", string(CommandServe)),
		slog.String("port", cfg.ServerPort),
		slog.String("linear_api_url", cfg.LinearAPIURL),
		slog.Bool("render_markdown", cfg.RenderMarkdown),
		slog.Bool("metrics_enabled", cfg.MetricsEnabled),
	)

	srv, err := newServer(cfg, log)
	if err != nil {
		return err
	}
	defer srv.close()

	errCh := make(chan error, 1)
	go func() {
		log.Info("API server starting", slog.String("addr", srv.http.Addr))
		if err := srv.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := srv.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("API server stopped gracefully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
