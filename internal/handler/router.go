package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/collegeconnect/internal/metrics"
	"github.com/hitoshi/collegeconnect/internal/middleware"
	"github.com/hitoshi/collegeconnect/internal/model"
)

// HealthChecker は /health で疎通確認する依存先。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Resolver          middleware.ViewerResolver
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRF              middleware.CSRFConfig

	// 運用
	HealthChecker HealthChecker
	Metrics       metrics.MetricsCollector
	Gatherer      prometheus.Gatherer // nilの場合 /metrics を公開しない

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ドメイン
	NoticeService NoticeServiceInterface
	QueryService  QueryServiceInterface
	Views         *Renderer
}

// NewRouter はページ、認証、JSON APIのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Viewer → CSRF
//
// ログイン後のルートには RateLimit(General) を、書き込みには RateLimit(Submission) を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(deps.Metrics))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.Views, deps.AuthConfig)
	pageHandler := NewPageHandler(deps.NoticeService, deps.QueryService, deps.Views, deps.AuthConfig.cookies())
	apiHandler := NewAPIHandler(deps.NoticeService, deps.QueryService)
	rl := deps.RateLimiter

	// --- 運用エンドポイント（セッション不要） ---
	r.Get("/health", HealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}
	r.Handle("/static/*", StaticHandler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewViewerMiddleware(deps.Resolver))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		// --- ページ ---
		r.Get("/", pageHandler.Landing)
		r.Get("/dashboard", pageHandler.Dashboard)

		r.Route("/auth", func(r chi.Router) {
			r.Get("/", authHandler.Page)
			r.Post("/signup", authHandler.SignUp)
			r.Post("/signin", authHandler.SignIn)
			r.Get("/google/login", authHandler.Login)
			r.Get("/google/callback", authHandler.Callback)
			r.Post("/logout", authHandler.Logout)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequirePageViewer)
			r.Use(rl.GeneralMiddleware())
			r.Use(rl.SubmissionMiddleware())

			r.Post("/dashboard/notices", pageHandler.CreateNotice)
			r.Post("/dashboard/queries", pageHandler.SubmitQuery)
			r.Post("/dashboard/queries/{id}/response", pageHandler.RespondQuery)
		})

		// --- JSON API ---
		r.Route("/api", func(r chi.Router) {
			r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF).ServeHTTP)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireViewer())
				r.Use(rl.GeneralMiddleware())

				r.Get("/me", apiHandler.Me)

				r.Get("/notices", apiHandler.ListNotices)
				r.With(middleware.RequireRole(model.RoleAdmin), rl.SubmissionMiddleware()).
					Post("/notices", apiHandler.CreateNotice)

				r.Get("/queries", apiHandler.ListQueries)
				r.With(rl.SubmissionMiddleware()).Post("/queries", apiHandler.SubmitQuery)
				r.With(middleware.RequireRole(model.RoleAdmin), rl.SubmissionMiddleware()).
					Put("/queries/{id}/response", apiHandler.RespondQuery)
			})
		})
	})

	return r
}

// HealthHandler はDBへの疎通を確認する。checkerがnilの場合は常に200を返す。
// GET /health
func HealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
