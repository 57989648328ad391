// Package view は商品一覧画面の一時状態と描画モデルを提供する。
//
// ListView はフォームの開閉、入力中の値、削除確認の対象、エラー通知の表示状態を保持する。
// 商品一覧そのものは product.Store が所有し、ListView は操作の意図を Store に渡すだけで
// 状態を直接変更しない。
package view

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/hitoshi/agrogestao/internal/model"
	"github.com/hitoshi/agrogestao/internal/product"
	"github.com/hitoshi/agrogestao/internal/security"
)

// ProductStore はListViewが参照する商品状態コンテナ。
// product.Store が実装する。
type ProductStore interface {
	Snapshot() product.State
	Load(ctx context.Context) error
	Create(ctx context.Context, name, priceText string) (model.Product, error)
	Delete(ctx context.Context, id model.ProductID) error
}

// Options は一覧の描画設定。
type Options struct {
	// WindowSize は1画面に表示する行数。
	WindowSize int
	// Overscan は表示範囲の前後に追加で描画する行数。
	Overscan int
	// Threshold を超える件数のときだけウィンドウ描画を行う。
	Threshold int
}

// DefaultOptions はデフォルトの描画設定を返す。
func DefaultOptions() Options {
	return Options{WindowSize: 20, Overscan: 5, Threshold: 50}
}

// Draft は追加フォームの入力中の値。
type Draft struct {
	Name  string
	Price string
}

// ListView は商品一覧画面の一時状態を保持する。
type ListView struct {
	store     ProductStore
	sanitizer security.TextSanitizer
	logger    *slog.Logger
	opts      Options

	mu         sync.Mutex
	loaded     bool
	formOpen   bool
	draft      Draft
	formErr    *model.APIError
	hasPending bool
	pendingID  model.ProductID
	opNotice   *model.APIError
	// 読み込みエラーの通知を閉じたときのGeneration
	loadNoticeHidden   bool
	loadNoticeHiddenAt uint64
}

// NewListView はListViewの新しいインスタンスを生成する。
func NewListView(store ProductStore, sanitizer security.TextSanitizer, logger *slog.Logger, opts Options) *ListView {
	return &ListView{
		store:     store,
		sanitizer: sanitizer,
		logger:    logger,
		opts:      opts,
	}
}

// OpenAddForm は追加フォームを開き、入力値を初期化する。
func (v *ListView) OpenAddForm() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.formOpen = true
	v.draft = Draft{}
	v.formErr = nil
}

// CloseAddForm は追加フォームを閉じ、入力値を破棄する。
func (v *ListView) CloseAddForm() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closeFormLocked()
}

func (v *ListView) closeFormLocked() {
	v.formOpen = false
	v.draft = Draft{}
	v.formErr = nil
}

// setDraftLocked は入力値を更新する。価格が入力規則に合わない場合は直前の値を保持する。
func (v *ListView) setDraftLocked(name, price string) {
	v.draft.Name = name
	if product.AcceptsPriceInput(price) {
		v.draft.Price = price
	}
}

// canSubmit は名前と価格がどちらも入力済みかどうかを返す。
func canSubmit(d Draft) bool {
	return strings.TrimSpace(d.Name) != "" && strings.TrimSpace(d.Price) != ""
}

// SubmitAdd は入力値で商品を作成する。
// 成功するとフォームを閉じる。失敗してもフォームは開いたままで、
// 入力不備はフォーム内に、リクエスト失敗はエラー通知に表示する。
func (v *ListView) SubmitAdd(ctx context.Context, name, price string) error {
	v.mu.Lock()
	if !product.AcceptsPriceInput(price) {
		v.draft.Name = name
		v.formErr = model.NewInvalidPriceError(price)
		v.mu.Unlock()
		return v.formErr
	}
	v.setDraftLocked(name, price)
	draft := v.draft
	if !canSubmit(draft) {
		v.formErr = model.NewRequiredFieldsError()
		v.mu.Unlock()
		return v.formErr
	}
	v.mu.Unlock()

	_, err := v.store.Create(ctx, draft.Name, draft.Price)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err == nil {
		v.closeFormLocked()
		return nil
	}
	if product.IsUnauthorized(err) {
		// セッションは破棄済みで、画面状態もResetで初期化されている
		return err
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Category == model.CategoryValidation {
		v.formErr = apiErr
		return err
	}
	v.formErr = nil
	v.opNotice = noticeFor(err, model.NewCreateFailedError())
	return err
}

// RequestDelete は削除確認ダイアログを開き、対象のIDを保持する。
func (v *ListView) RequestDelete(id model.ProductID) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.hasPending = true
	v.pendingID = id
}

// CancelDelete は削除確認ダイアログを閉じる。APIは呼ばない。
func (v *ListView) CancelDelete() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.hasPending = false
	v.pendingID = ""
}

// ConfirmDelete は確認中の商品を削除する。成功した場合だけダイアログを閉じ、
// 失敗した場合はダイアログと対象を残したままエラー通知を表示する。
// 確認中の対象がなければ何もしない。
func (v *ListView) ConfirmDelete(ctx context.Context) error {
	v.mu.Lock()
	if !v.hasPending {
		v.mu.Unlock()
		return nil
	}
	id := v.pendingID
	v.mu.Unlock()

	err := v.store.Delete(ctx, id)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err == nil || product.IsUnauthorized(err) {
		// 待機中に別の対象が選ばれていればそちらは残す
		if v.hasPending && v.pendingID == id {
			v.hasPending = false
			v.pendingID = ""
		}
		return err
	}
	v.opNotice = noticeFor(err, model.NewDeleteFailedError())
	return err
}

// noticeFor はエラーに含まれる画面向けエラーを返す。含まれない場合はfallbackを返す。
func noticeFor(err error, fallback *model.APIError) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return fallback
}

// DismissNotice はエラー通知を閉じる。Store側のErrは変更しない。
// 読み込みエラーの通知は次にLoadの結果が反映されるまで表示しない。
func (v *ListView) DismissNotice() {
	st := v.store.Snapshot()

	v.mu.Lock()
	defer v.mu.Unlock()
	v.opNotice = nil
	if st.Err != nil {
		v.loadNoticeHidden = true
		v.loadNoticeHiddenAt = st.Generation
	}
}

// Refresh は商品一覧を再取得する。
func (v *ListView) Refresh(ctx context.Context) error {
	v.mu.Lock()
	v.loaded = true
	v.mu.Unlock()
	return v.store.Load(ctx)
}

// EnsureLoaded は認証済みセッションで最初の1回だけ商品一覧を取得する。
func (v *ListView) EnsureLoaded(ctx context.Context) error {
	v.mu.Lock()
	if v.loaded {
		v.mu.Unlock()
		return nil
	}
	v.loaded = true
	v.mu.Unlock()

	v.logger.Debug("initial product load")
	return v.store.Load(ctx)
}

// Reset はセッション破棄時に一時状態をすべて破棄する。
func (v *ListView) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.loaded = false
	v.closeFormLocked()
	v.hasPending = false
	v.pendingID = ""
	v.opNotice = nil
	v.loadNoticeHidden = false
	v.loadNoticeHiddenAt = 0
}
