package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/agrogestao/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	RateLimiter *middleware.RateLimiter
	CSRFConfig  middleware.CSRFConfig

	// セッションゲート
	Session SessionService

	// 商品一覧画面
	View     ProductView
	Renderer interface {
		LoginRenderer
		ProductsRenderer
	}

	// MetricsHandler がnilの場合 /metrics は公開しない
	MetricsHandler http.Handler
}

// NewRouter はローカルUIのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → RateLimit(General) → CSRF → Session
//
// /health と /metrics はレート制限とCSRFの外に配置する。
// 未定義のパスはすべてログイン画面へリダイレクトする。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	authHandler := NewAuthHandler(deps.Session, deps.Renderer, deps.Logger)
	productHandler := NewProductHandler(deps.View, deps.Renderer, deps.Logger)

	// --- 運用向けルート ---
	r.Get("/health", Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		// --- 認証不要のルート ---
		r.Get(middleware.LoginPath, authHandler.LoginForm)
		r.Post(middleware.LoginPath, authHandler.Login)
		r.Post("/logout", authHandler.Logout)

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewSessionMiddleware(deps.Session))

			r.Route("/products", func(r chi.Router) {
				r.Get("/", productHandler.List)
				// POST /products - 商品作成（変更系のレート制限を追加）
				r.With(deps.RateLimiter.MutationMiddleware()).Post("/", productHandler.Create)
				r.Post("/refresh", productHandler.Refresh)

				r.Post("/add/open", productHandler.OpenAdd)
				r.Post("/add/close", productHandler.CloseAdd)

				r.Post("/{id}/delete", productHandler.RequestDelete)
				r.With(deps.RateLimiter.MutationMiddleware()).Post("/delete/confirm", productHandler.ConfirmDelete)
				r.Post("/delete/cancel", productHandler.CancelDelete)
			})

			r.Post("/notice/dismiss", productHandler.DismissNotice)
		})
	})

	toLogin := func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
	}
	r.NotFound(toLogin)
	r.MethodNotAllowed(toLogin)

	return r
}
