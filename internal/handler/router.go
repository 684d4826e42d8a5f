package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/aula/internal/metrics"
	"github.com/hitoshi/aula/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig

	// 認証
	AuthService AuthServiceInterface
	Resolver    CallbackResolver
	AuthConfig  AuthHandlerConfig

	// ドメインサービス
	CourseService  CourseServiceInterface
	ContentService ContentServiceInterface
	ModuleLister   CourseModuleLister
	Announcements  AnnouncementLister
	ProfileService ProfileServiceInterface

	// 観測
	Logger         *slog.Logger             // nilの場合はslog.Default()
	Metrics        metrics.MetricsCollector // nil可
	MetricsHandler http.Handler             // /metrics（nil可）
	HealthCheck    func() error             // /healthのDB疎通確認（nil可）
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Metrics → Logging
//	→ (認証ルート以下) Session → RateLimit(General) → CSRF
//
// 認証ルート（/auth/*）と/health、/metricsはセッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Metrics != nil {
		r.Use(metrics.Middleware(deps.Metrics))
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r.Use(middleware.NewLoggingMiddleware(logger))

	var authMetrics AuthMetrics
	if deps.Metrics != nil {
		authMetrics = deps.Metrics
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.Resolver, authMetrics, deps.AuthConfig)
	courseHandler := NewCourseHandler(deps.CourseService, deps.ModuleLister, deps.Announcements, deps.ProfileService)
	contentHandler := NewContentHandler(deps.ContentService, deps.ProfileService)
	profileHandler := NewProfileHandler(deps.ProfileService)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		if deps.HealthCheck != nil {
			if err := deps.HealthCheck(); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// CSRFトークン取得エンドポイント
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	// 認証フロー
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", authHandler.Login)
		r.Post("/signup", authHandler.SignUp)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
		r.Get("/google/login", authHandler.GoogleLogin)
		r.Get("/callback", authHandler.Callback)
		r.Post("/reset-password", authHandler.ResetPassword)
		r.Post("/update-password", authHandler.UpdatePassword)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		contentWrite := deps.RateLimiter.ContentWriteMiddleware()

		// コース管理
		r.Route("/api/courses", func(r chi.Router) {
			r.Get("/", courseHandler.List)
			r.With(contentWrite).Post("/", courseHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", courseHandler.Get)
				r.With(contentWrite).Put("/", courseHandler.Update)
				r.Delete("/", courseHandler.Delete)

				r.Get("/teachers", courseHandler.ListTeachers)
				r.Post("/teachers/{userId}", courseHandler.AssignTeacher)
				r.Delete("/teachers/{userId}", courseHandler.RemoveTeacher)

				r.Get("/modules", courseHandler.ListModules)
				r.Get("/announcements", courseHandler.ListAnnouncements)
			})
		})

		// モジュール管理（書き込みにはコンテンツ専用レート制限を追加）
		r.Route("/api/modules", func(r chi.Router) {
			r.With(contentWrite).Post("/", contentHandler.CreateModule)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", contentHandler.GetModule)
				r.With(contentWrite).Put("/", contentHandler.UpdateModule)
				r.Delete("/", contentHandler.DeleteModule)

				r.Get("/lessons", contentHandler.ListLessons)
			})
		})

		// レッスン管理
		r.Route("/api/lessons", func(r chi.Router) {
			r.With(contentWrite).Post("/", contentHandler.CreateLesson)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", contentHandler.GetLesson)
				r.With(contentWrite).Put("/", contentHandler.UpdateLesson)
				r.Delete("/", contentHandler.DeleteLesson)
			})
		})

		// プロフィール管理
		r.Route("/api/profiles", func(r chi.Router) {
			r.Get("/me", profileHandler.Me)
			r.Get("/people", profileHandler.ListPeople)

			r.Route("/{id}", func(r chi.Router) {
				r.Post("/promote", profileHandler.Promote)
				r.Post("/demote", profileHandler.Demote)
				r.Delete("/", profileHandler.Delete)
			})
		})
	})

	return r
}
