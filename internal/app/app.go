package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/hitoshi/collegeconnect/internal/auth"
	"github.com/hitoshi/collegeconnect/internal/config"
	"github.com/hitoshi/collegeconnect/internal/database"
	"github.com/hitoshi/collegeconnect/internal/handler"
	"github.com/hitoshi/collegeconnect/internal/logger"
	"github.com/hitoshi/collegeconnect/internal/metrics"
	"github.com/hitoshi/collegeconnect/internal/middleware"
	"github.com/hitoshi/collegeconnect/internal/model"
	"github.com/hitoshi/collegeconnect/internal/notice"
	"github.com/hitoshi/collegeconnect/internal/query"
	"github.com/hitoshi/collegeconnect/internal/repository"
	"github.com/hitoshi/collegeconnect/internal/security"
	"github.com/hitoshi/collegeconnect/internal/worker/cleanup"
	"github.com/hitoshi/collegeconnect/internal/worker/importer"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、.envがあれば読み込んだうえで環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. .envと環境変数から設定を読み込む
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	var promote PromoteArgs
	if cmd == CommandPromote {
		var err error
		if promote, err = ParsePromoteArgs(args[1:]); err != nil {
			return err
		}
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandPromote:
		return runPromote(cfg, promote)
	default:
		return runServe(cfg)
	}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// openSessionStore は設定に応じてセッションストアを返す。
// Redisの場合は返却するclose関数で接続を閉じる。
func openSessionStore(cfg *config.Config, db *sql.DB) (repository.SessionRepository, func() error, error) {
	if cfg.SessionStore != "redis" {
		return repository.NewPostgresSessionRepo(db), func() error { return nil }, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("redis session store connected", slog.String("addr", opts.Addr))
	return repository.NewRedisSessionRepo(client), client.Close, nil
}

// rateLimiterConfig は設定値（req/min/user）をレートリミッターの設定に変換する。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rl := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rl.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rl.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitSubmission > 0 {
		rl.SubmissionRate = rate.Limit(float64(cfg.RateLimitSubmission) / 60.0)
		rl.SubmissionBurst = cfg.RateLimitSubmission
	}
	return rl
}

// googleProvider はGoogleサインインの設定が揃っている場合のみプロバイダーを返す。
// 戻り値のnilはインターフェースとしてのnilであり、auth.ServiceはGoogleサインインを無効として扱う。
func googleProvider(cfg *config.Config) auth.OAuthProvider {
	if !cfg.GoogleEnabled() {
		return nil
	}
	return auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		HostedDomain: cfg.GoogleHostedDomain,
	})
}

// runServe はWebサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続とセッションストア
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	sessionRepo, closeSessions, err := openSessionStore(cfg, db)
	if err != nil {
		return err
	}
	defer closeSessions()

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)
	noticeRepo := repository.NewPostgresNoticeRepo(db)
	queryRepo := repository.NewPostgresQueryRepo(db)

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 4. ドメインサービスの初期化
	policy, err := model.TransitionPolicyByName(cfg.QueryStatusPolicy)
	if err != nil {
		return err
	}

	authService := auth.NewService(
		googleProvider(cfg), userRepo, identRepo, profileRepo, sessionRepo, collector,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	resolver := auth.NewResolver(sessionRepo, profileRepo)
	noticeService := notice.NewService(noticeRepo, collector)
	queryService := query.NewService(queryRepo, policy, collector)

	views, err := handler.NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		Resolver:          resolver,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},

		HealthChecker: db,
		Metrics:       collector,
		Gatherer:      registry,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		NoticeService: noticeService,
		QueryService:  queryService,
		Views:         views,
	}

	router := handler.NewRouter(deps)

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("web server starting",
			slog.String("addr", server.Addr),
			slog.Bool("google_sign_in", authService.GoogleEnabled()),
			slog.String("session_store", cfg.SessionStore),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down web server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// お知らせ取り込み（フィード設定時）と期限切れセッションの掃除（PostgreSQLセッション時）を実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	category, err := model.ParseNoticeCategory(cfg.NoticeImportCategory)
	if err != nil {
		return fmt.Errorf("invalid NOTICE_IMPORT_CATEGORY: %w", err)
	}

	// 2. 取り込みの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	noticeImporter := importer.New(
		repository.NewPostgresNoticeRepo(db),
		security.NewGuard(),
		security.NewTextSanitizer(),
		collector,
		slog.Default(),
		importer.Config{
			Feeds:       cfg.NoticeImportFeeds,
			Category:    category,
			AuthorID:    cfg.NoticeImportAuthorID,
			Timeout:     cfg.FetchTimeout,
			MaxBodySize: cfg.FetchMaxSize,
		},
	)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Int("import_feeds", len(cfg.NoticeImportFeeds)),
		slog.Duration("import_interval", cfg.NoticeImportInterval),
		slog.String("session_store", cfg.SessionStore),
	)

	// 3. ヘルスチェックとメトリクスの公開（healthcheckサブコマンドと共用）
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           workerRouter(db, registry),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker status server error", slog.String("error", err.Error()))
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	// 4. 期限切れセッションの掃除を日次でバックグラウンド実行
	if cfg.SessionStore == "postgres" {
		go cleanup.NewSessionCleanupJob(db, slog.Default()).Start(ctx, 24*time.Hour)
	}

	// 5. お知らせ取り込みをメインgoroutineで実行（ブロッキング）
	if noticeImporter.Enabled() {
		noticeImporter.Start(ctx, cfg.NoticeImportInterval)
	} else {
		slog.Info("notice import disabled: NOTICE_IMPORT_FEEDS is empty")
		<-ctx.Done()
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// workerRouter はワーカーの /health と /metrics を返すルーターを構成する。
func workerRouter(db handler.HealthChecker, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(nil))
	r.Get("/health", handler.HealthHandler(db))
	r.Handle("/metrics", metrics.Handler(gatherer))
	return r
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runPromote はメールアドレスで指定したユーザーのロールを変更する。
// 管理者アカウントの払い出しはこのコマンドでのみ行う。
func runPromote(cfg *config.Config, args PromoteArgs) error {
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	sessionRepo, closeSessions, err := openSessionStore(cfg, db)
	if err != nil {
		return err
	}
	defer closeSessions()

	authService := auth.NewService(
		nil,
		repository.NewPostgresUserRepo(db),
		repository.NewPostgresIdentityRepo(db),
		repository.NewPostgresProfileRepo(db),
		sessionRepo,
		nil,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	profile, err := authService.Promote(ctx, args.Email, args.Role)
	if err != nil {
		return fmt.Errorf("promote failed: %w", err)
	}

	slog.Info("role updated",
		slog.String("email", args.Email),
		slog.String("user_id", profile.UserID),
		slog.String("role", string(profile.Role)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
