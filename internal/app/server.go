package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/agrogestao/internal/apiclient"
	"github.com/hitoshi/agrogestao/internal/config"
	"github.com/hitoshi/agrogestao/internal/credential"
	"github.com/hitoshi/agrogestao/internal/handler"
	"github.com/hitoshi/agrogestao/internal/metrics"
	"github.com/hitoshi/agrogestao/internal/middleware"
	"github.com/hitoshi/agrogestao/internal/model"
	"github.com/hitoshi/agrogestao/internal/product"
	"github.com/hitoshi/agrogestao/internal/security"
	"github.com/hitoshi/agrogestao/internal/session"
	"github.com/hitoshi/agrogestao/internal/view"
	"github.com/prometheus/client_golang/prometheus"
)

// server はserveモードで組み立てる依存関係の一式。
// セッションゲート・商品ストア・一覧画面はプロセスで1つずつ存在する。
type server struct {
	gate        *session.Gate
	store       *product.Store
	view        *view.ListView
	rateLimiter *middleware.RateLimiter
	handler     http.Handler
}

// newServer は設定から全依存関係をワイヤリングする。
// ゲートのInitは呼ばないため、呼び出し側で起動時チェックを行う必要がある。
func newServer(cfg *config.Config, creds credential.Store, logger *slog.Logger, reg *prometheus.Registry) (*server, error) {
	// 1. メトリクス
	collector := metrics.NewCollector(reg)

	// 2. リモートAPIクライアント
	client, err := apiclient.NewClient(
		&http.Client{Timeout: cfg.APITimeout},
		logger,
		cfg.APIBaseURL,
		apiclient.WithMetrics(collector),
		apiclient.WithMaxResponseSize(cfg.APIMaxResponseSize),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	// 3. セッションゲート（クライアントは以後ゲートのトークンを使い、401でゲートを破棄する）
	gate := session.NewGate(creds, client, logger, collector)
	client.BindSession(gate)

	// 4. 商品ストアと一覧画面
	store := product.NewStore(client, logger)
	store.Subscribe(func(st product.State) {
		collector.SetProductCount(len(st.Items))
	})

	lv := view.NewListView(store, security.NewTextSanitizer(), logger, view.Options{
		WindowSize: cfg.ListWindowSize,
		Overscan:   cfg.ListOverscan,
		Threshold:  cfg.ListWindowThreshold,
	})

	// セッション破棄時は商品と画面の一時状態をすべて捨てる
	gate.OnChange(func(status model.SessionStatus) {
		if status != model.SessionUnauthenticated {
			return
		}
		store.Reset()
		lv.Reset()
	})

	renderer, err := view.NewRenderer()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	// 5. ルーター
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitMutation),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:         logger,
		RateLimiter:    rateLimiter,
		CSRFConfig:     middleware.CSRFConfig{CookieSecure: cfg.CookieSecure},
		Session:        gate,
		View:           lv,
		Renderer:       renderer,
		MetricsHandler: metrics.Handler(reg),
	})

	return &server{
		gate:        gate,
		store:       store,
		view:        lv,
		rateLimiter: rateLimiter,
		handler:     router,
	}, nil
}

// Close はバックグラウンドのクリーンアップを停止する。
func (s *server) Close() {
	s.rateLimiter.Stop()
}
