// Package handler はローカルUIのHTTPハンドラーを提供する。
package handler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/agrogestao/internal/middleware"
	"github.com/hitoshi/agrogestao/internal/model"
)

// productsPath はログイン後の遷移先。
const productsPath = "/products"

// SessionService は認証ハンドラーが必要とするセッションゲートの操作。
// session.Gate が実装する。
type SessionService interface {
	IsAuthenticated() bool
	Login(ctx context.Context, username, password string) error
	Logout() error
}

// LoginRenderer はログイン画面の描画。view.Renderer が実装する。
type LoginRenderer interface {
	Login(w io.Writer, csrfToken, username string, apiErr *model.APIError) error
}

// AuthHandler はログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	session  SessionService
	renderer LoginRenderer
	logger   *slog.Logger
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(session SessionService, renderer LoginRenderer, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		session:  session,
		renderer: renderer,
		logger:   logger,
	}
}

// LoginForm はログイン画面を表示する。認証済みの場合は商品一覧へリダイレクトする。
// GET /login
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if h.session.IsAuthenticated() {
		http.Redirect(w, r, productsPath, http.StatusSeeOther)
		return
	}
	h.render(w, r, http.StatusOK, "", nil)
}

// Login は資格情報を検証してセッションを開始する。
// 失敗した場合はエラーモーダル付きでログイン画面を再表示する。
// POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, "", model.NewUnknownError())
		return
	}
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")

	// クライアント切断でAPI呼び出しを中断しない
	ctx := context.WithoutCancel(r.Context())
	if err := h.session.Login(ctx, username, password); err != nil {
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) {
			apiErr = model.NewUnknownError()
		}
		h.logger.Info("login rejected",
			slog.String("code", apiErr.Code),
		)
		h.render(w, r, loginFailureStatus(apiErr), username, apiErr)
		return
	}

	http.Redirect(w, r, productsPath, http.StatusSeeOther)
}

// Logout はセッションを破棄してログイン画面へリダイレクトする。
// POST /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(); err != nil {
		// 状態は破棄済みのため、永続化の失敗はログのみ
		h.logger.Error("failed to clear credential", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
}

func (h *AuthHandler) render(w http.ResponseWriter, r *http.Request, status int, username string, apiErr *model.APIError) {
	var buf bytes.Buffer
	token := middleware.CSRFTokenFromContext(r.Context())
	if err := h.renderer.Login(&buf, token, username, apiErr); err != nil {
		h.logger.Error("failed to render login page", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w, r)
		return
	}
	writeHTML(w, status, buf.Bytes())
}

// loginFailureStatus はログイン失敗の分類をHTTPステータスに対応付ける。
func loginFailureStatus(apiErr *model.APIError) int {
	switch apiErr.Category {
	case model.CategoryAuth:
		return http.StatusUnauthorized
	case model.CategoryRequest:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
