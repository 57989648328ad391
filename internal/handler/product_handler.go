package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/agrogestao/internal/middleware"
	"github.com/hitoshi/agrogestao/internal/model"
	"github.com/hitoshi/agrogestao/internal/product"
	"github.com/hitoshi/agrogestao/internal/view"
)

// ProductView は商品ハンドラーが必要とする一覧画面の操作。
// view.ListView が実装する。
type ProductView interface {
	EnsureLoaded(ctx context.Context) error
	Refresh(ctx context.Context) error
	Page(offset int) view.Page

	OpenAddForm()
	CloseAddForm()
	SubmitAdd(ctx context.Context, name, price string) error

	RequestDelete(id model.ProductID)
	CancelDelete()
	ConfirmDelete(ctx context.Context) error

	DismissNotice()
}

// ProductsRenderer は商品一覧画面の描画。view.Renderer が実装する。
type ProductsRenderer interface {
	Products(w io.Writer, csrfToken string, page view.Page) error
}

// ProductHandler は商品一覧画面のHTTPハンドラー。
// 状態変更はすべてPOSTで受け、処理後は一覧画面へリダイレクトする。
type ProductHandler struct {
	view     ProductView
	renderer ProductsRenderer
	logger   *slog.Logger
}

// NewProductHandler はProductHandlerを生成する。
func NewProductHandler(v ProductView, renderer ProductsRenderer, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		view:     v,
		renderer: renderer,
		logger:   logger,
	}
}

// List は商品一覧を表示する。セッションで初回の表示時に一覧を取得する。
// GET /products?offset=N
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	if err := h.view.EnsureLoaded(detach(r)); product.IsUnauthorized(err) {
		http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
		return
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	var buf bytes.Buffer
	token := middleware.CSRFTokenFromContext(r.Context())
	if err := h.renderer.Products(&buf, token, h.view.Page(offset)); err != nil {
		h.logger.Error("failed to render products page", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w, r)
		return
	}
	writeHTML(w, http.StatusOK, buf.Bytes())
}

// Refresh は商品一覧を再取得する。
// POST /products/refresh
func (h *ProductHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.redirectAfter(w, r, h.view.Refresh(detach(r)))
}

// OpenAdd は追加フォームを開く。
// POST /products/add/open
func (h *ProductHandler) OpenAdd(w http.ResponseWriter, r *http.Request) {
	h.view.OpenAddForm()
	h.redirectAfter(w, r, nil)
}

// CloseAdd は追加フォームを閉じて入力を破棄する。
// POST /products/add/close
func (h *ProductHandler) CloseAdd(w http.ResponseWriter, r *http.Request) {
	h.view.CloseAddForm()
	h.redirectAfter(w, r, nil)
}

// Create は追加フォームの入力で商品を作成する。
// 入力不備やリクエスト失敗は画面状態に保持され、リダイレクト先で表示される。
// POST /products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		middleware.WriteErrorResponse(w, r, http.StatusBadRequest, model.NewRequiredFieldsError())
		return
	}
	err := h.view.SubmitAdd(detach(r), r.PostFormValue("name"), r.PostFormValue("price"))
	h.redirectAfter(w, r, err)
}

// RequestDelete は削除確認ダイアログを開く。
// POST /products/{id}/delete
func (h *ProductHandler) RequestDelete(w http.ResponseWriter, r *http.Request) {
	h.view.RequestDelete(model.ProductID(chi.URLParam(r, "id")))
	h.redirectAfter(w, r, nil)
}

// ConfirmDelete は確認中の商品を削除する。
// POST /products/delete/confirm
func (h *ProductHandler) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	h.redirectAfter(w, r, h.view.ConfirmDelete(detach(r)))
}

// CancelDelete は削除確認ダイアログを閉じる。
// POST /products/delete/cancel
func (h *ProductHandler) CancelDelete(w http.ResponseWriter, r *http.Request) {
	h.view.CancelDelete()
	h.redirectAfter(w, r, nil)
}

// DismissNotice はエラー通知を閉じる。
// POST /notice/dismiss
func (h *ProductHandler) DismissNotice(w http.ResponseWriter, r *http.Request) {
	h.view.DismissNotice()
	h.redirectAfter(w, r, nil)
}

// redirectAfter は操作結果に応じた画面へリダイレクトする。
// 401でセッションが破棄された場合のみログイン画面へ、それ以外は一覧画面へ戻す。
func (h *ProductHandler) redirectAfter(w http.ResponseWriter, r *http.Request, err error) {
	if product.IsUnauthorized(err) {
		http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
		return
	}
	if err != nil {
		h.logger.Debug("product operation failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	http.Redirect(w, r, productsPath, http.StatusSeeOther)
}

// detach はリクエストの値を引き継ぎ、キャンセルのみ切り離したコンテキストを返す。
// 画面遷移やクライアント切断で進行中のAPI呼び出しを中断しない。
func detach(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}
