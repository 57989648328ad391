// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/agrogestao/internal/model"
)

// LoginPath は未認証時のリダイレクト先。
const LoginPath = "/login"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// csrfTokenContextKey はリクエストコンテキストにCSRFトークンを格納するためのキー。
var csrfTokenContextKey = contextKey("csrf_token")

// SessionChecker はセッションゲートの部分集合。
// session.Gate が実装する。
type SessionChecker interface {
	IsAuthenticated() bool
}

// NewSessionMiddleware はセッションゲートが認証済みでないリクエストを
// ログイン画面にリダイレクトするミドルウェアを返す。
// JSONを求めるリクエストにはリダイレクトの代わりに401を返す。
func NewSessionMiddleware(gate SessionChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !gate.IsAuthenticated() {
				if strings.Contains(r.Header.Get("Accept"), "application/json") {
					WriteErrorResponse(w, r, http.StatusUnauthorized, model.NewUnauthorizedError())
					return
				}
				http.Redirect(w, r, LoginPath, http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CSRFTokenFromContext はリクエストコンテキストからCSRFトークンを取得する。
// CSRFミドルウェアを通過したリクエストでのみ有効。見つからない場合は空文字列。
func CSRFTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(csrfTokenContextKey).(string)
	return token
}

// ContextWithCSRFToken はコンテキストにCSRFトークンを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfTokenContextKey, token)
}
