// Package session はプロセス全体で1つの認証セッション（セッションゲート）を提供する。
//
// 状態遷移:
//
//	Unknown → Authenticated     永続化トークンがあり、APIでの検証に成功
//	Unknown → Unauthenticated   トークンなし、または検証失敗（トークンは削除）
//	Authenticated → Unauthenticated   ログアウト、または任意の401
//	Unauthenticated → Authenticated   ログイン成功（トークンを永続化）
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/agrogestao/internal/apiclient"
	"github.com/hitoshi/agrogestao/internal/credential"
	"github.com/hitoshi/agrogestao/internal/metrics"
	"github.com/hitoshi/agrogestao/internal/model"
)

// Authenticator はゲートが必要とするリモートAPIの認証操作。
// apiclient.Client が実装する。
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
	ValidateToken(ctx context.Context, token string) error
}

// Gate はセッション状態と認証トークンを保持する。
// トークンは状態がAuthenticatedのときに限り存在する。
type Gate struct {
	store   credential.Store
	auth    Authenticator
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	now     func() time.Time

	mu        sync.RWMutex
	status    model.SessionStatus
	token     string
	listeners []func(model.SessionStatus)
}

// NewGate はUnknown状態のGateを生成する。起動時にInitを呼ぶ必要がある。
func NewGate(store credential.Store, auth Authenticator, logger *slog.Logger, m metrics.MetricsCollector) *Gate {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Gate{
		store:   store,
		auth:    auth,
		logger:  logger,
		metrics: m,
		now:     time.Now,
		status:  model.SessionUnknown,
	}
}

// OnChange は状態遷移の通知先を登録する。
// 通知はロックの外で、遷移が確定した後に行われる。
func (g *Gate) OnChange(fn func(model.SessionStatus)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, fn)
}

// Status は現在の状態を返す。
func (g *Gate) Status() model.SessionStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.status
}

// IsAuthenticated は認証済みかどうかを返す。
func (g *Gate) IsAuthenticated() bool {
	return g.Status() == model.SessionAuthenticated
}

// Token は現在のトークンを返す。未認証の場合は空文字列。
func (g *Gate) Token() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.token
}

// Init は起動時チェックを行う。
// 永続化トークンをAPIで検証し、UnknownからAuthenticatedまたはUnauthenticatedに遷移する。
// 検証失敗はエラーではなく状態として扱い、永続化ストアの読み書き失敗のみエラーを返す。
func (g *Gate) Init(ctx context.Context) error {
	stored, err := g.store.Load()
	if err != nil {
		g.transition(model.SessionUnauthenticated, "")
		return fmt.Errorf("failed to load persisted credential: %w", err)
	}

	if stored == "" {
		g.logger.Info("no persisted credential, login required")
		g.transition(model.SessionUnauthenticated, "")
		return nil
	}

	if g.expired(stored) {
		g.logger.Info("persisted credential has expired, discarding")
		return g.reject()
	}

	if err := g.auth.ValidateToken(ctx, stored); err != nil {
		g.logger.Warn("persisted credential was rejected",
			slog.String("error", err.Error()),
		)
		return g.reject()
	}

	g.logger.Info("persisted credential validated")
	g.transition(model.SessionAuthenticated, stored)
	return nil
}

// reject は永続化トークンを削除してUnauthenticatedに遷移する。
func (g *Gate) reject() error {
	g.transition(model.SessionUnauthenticated, "")
	if err := g.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear persisted credential: %w", err)
	}
	return nil
}

// expired はトークンがJWTで、expクレームが過去を指している場合にtrueを返す。
// 署名は検証しない（検証はAPI側の責務）。JWTでないトークンは常にfalse。
func (g *Gate) expired(token string) bool {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return !g.now().Before(claims.ExpiresAt.Time)
}

// Login はAPIでログインし、成功したらトークンを永続化してAuthenticatedに遷移する。
// 失敗時は画面に表示できる*model.APIErrorを返す。
func (g *Gate) Login(ctx context.Context, username, password string) error {
	token, err := g.auth.Login(ctx, username, password)
	if err != nil {
		g.logger.Warn("login failed", slog.String("error", err.Error()))
		return classifyLoginError(err)
	}

	if err := g.store.Save(token); err != nil {
		g.logger.Error("failed to persist credential", slog.String("error", err.Error()))
		return model.NewUnknownError()
	}

	g.logger.Info("login succeeded")
	g.transition(model.SessionAuthenticated, token)
	return nil
}

// classifyLoginError はログイン失敗を画面向けのエラーに分類する。
func classifyLoginError(err error) *model.APIError {
	var statusErr *apiclient.StatusError
	switch {
	case errors.As(err, &statusErr), errors.Is(err, apiclient.ErrInvalidCredentials):
		return model.NewInvalidCredentialsError()
	case errors.Is(err, apiclient.ErrUnreachable):
		return model.NewConnectionFailedError()
	default:
		return model.NewUnknownError()
	}
}

// Logout は明示的なログアウト。永続化トークンを削除してUnauthenticatedに遷移する。
func (g *Gate) Logout() error {
	g.transition(model.SessionUnauthenticated, "")
	g.metrics.RecordSessionTeardown("logout")
	g.logger.Info("logged out")
	if err := g.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear persisted credential: %w", err)
	}
	return nil
}

// Deauthenticate は401検知時の強制ログアウト。
// どの操作が401を受けたかに関係なく呼ばれ、既に未認証であれば何もしない。
func (g *Gate) Deauthenticate(reason string) {
	g.mu.RLock()
	alreadyOut := g.status != model.SessionAuthenticated && g.token == ""
	g.mu.RUnlock()

	if err := g.store.Clear(); err != nil {
		g.logger.Error("failed to clear persisted credential",
			slog.String("error", err.Error()),
		)
	}
	if alreadyOut {
		return
	}

	g.transition(model.SessionUnauthenticated, "")
	g.metrics.RecordSessionTeardown(reason)
	g.logger.Warn("session torn down", slog.String("reason", reason))
}

// transition は状態とトークンを一括で更新し、リスナーに通知する。
func (g *Gate) transition(status model.SessionStatus, token string) {
	g.mu.Lock()
	changed := g.status != status
	g.status = status
	g.token = token
	listeners := append([]func(model.SessionStatus){}, g.listeners...)
	g.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range listeners {
		fn(status)
	}
}
