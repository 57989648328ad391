// Package product は商品一覧の状態コンテナを提供する。
// 状態の変更はLoad・Create・Deleteの3操作に限られ、各遷移は1回のロック取得で完結する。
package product

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hitoshi/agrogestao/internal/apiclient"
	"github.com/hitoshi/agrogestao/internal/model"
	"github.com/shopspring/decimal"
)

// API は状態コンテナが利用するリモート商品API。
// apiclient.Client が実装する。
type API interface {
	ListProducts(ctx context.Context) ([]model.Product, error)
	CreateProduct(ctx context.Context, name string, price decimal.Decimal) (model.Product, error)
	DeleteProduct(ctx context.Context, id model.ProductID) error
}

// State は商品一覧の状態。ビューはSnapshotで得たコピーのみを参照する。
type State struct {
	Items   []model.Product
	Loading bool
	// Err は直近のLoadが失敗した場合に設定される。新しいLoadの開始または成功でクリアされる。
	Err *model.APIError
	// Generation はLoadの結果が反映されるたびに増える。
	Generation uint64
}

// OpError はCreate・Deleteのリクエスト失敗を表す。
// 画面向けの*model.APIErrorと原因の両方をerrors.As/errors.Isで取り出せる。
type OpError struct {
	Display *model.APIError
	Cause   error
}

// Error はerrorインターフェースを実装する。
func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %v", e.Display.Code, e.Cause)
}

// Unwrap は画面向けエラーと原因を返す。
func (e *OpError) Unwrap() []error {
	return []error{e.Display, e.Cause}
}

// Store は商品一覧の状態コンテナ。
type Store struct {
	api    API
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	ticket  uint64 // 最後に発行したLoadの番号
	nextSub int
	subs    map[int]func(State)
}

// NewStore はStoreの新しいインスタンスを生成する。
func NewStore(api API, logger *slog.Logger) *Store {
	return &Store{
		api:    api,
		logger: logger,
		state:  State{Items: []model.Product{}},
		subs:   make(map[int]func(State)),
	}
}

// Snapshot は現在の状態のコピーを返す。
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	st := s.state
	st.Items = append([]model.Product(nil), s.state.Items...)
	if s.state.Err != nil {
		e := *s.state.Err
		st.Err = &e
	}
	return st
}

// Subscribe は状態遷移ごとに呼ばれるリスナーを登録し、解除関数を返す。
// リスナーはロックの外で呼ばれる。
func (s *Store) Subscribe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// update はロックを取得してfnで状態を変更し、変更後の状態をリスナーに通知する。
// fnがfalseを返した場合は通知しない。
func (s *Store) update(fn func(st *State) bool) {
	s.mu.Lock()
	if !fn(&s.state) {
		s.mu.Unlock()
		return
	}
	snap := s.snapshotLocked()
	listeners := make([]func(State), 0, len(s.subs))
	for _, l := range s.subs {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}

// Load はリモートAPIから商品一覧を取得して置き換える。
// 失敗はErrとして状態に記録され、既存のItemsはそのまま残る。
// 並行して複数のLoadが走った場合、最後に開始したLoadの結果のみが反映される。
// 返り値のエラーは呼び出し元が401を判定するためのもので、画面表示は状態側で行う。
func (s *Store) Load(ctx context.Context) error {
	var ticket uint64
	s.update(func(st *State) bool {
		s.ticket++
		ticket = s.ticket
		st.Loading = true
		st.Err = nil
		return true
	})

	items, err := s.api.ListProducts(ctx)

	applied := false
	s.update(func(st *State) bool {
		if ticket != s.ticket {
			return false
		}
		applied = true
		st.Loading = false
		st.Generation++
		if err != nil {
			st.Err = model.NewLoadFailedError()
			return true
		}
		st.Items = dedupe(items)
		return true
	})

	if !applied {
		s.logger.Debug("stale product load result discarded", slog.Uint64("ticket", ticket))
	}
	if err != nil {
		s.logger.Warn("商品一覧の取得に失敗しました", slog.String("error", err.Error()))
		return fmt.Errorf("商品一覧の取得に失敗しました: %w", err)
	}
	return nil
}

// Create は入力を検証してから商品を作成し、サーバーが返した商品を末尾に追加する。
// 入力が不正な場合はAPIを呼ばずに*model.APIErrorを返す。
func (s *Store) Create(ctx context.Context, name, priceText string) (model.Product, error) {
	name = strings.TrimSpace(name)
	price, verr := Validate(name, priceText)
	if verr != nil {
		return model.Product{}, verr
	}

	created, err := s.api.CreateProduct(ctx, name, price)
	if err != nil {
		s.logger.Warn("商品の追加に失敗しました", slog.String("error", err.Error()))
		return model.Product{}, &OpError{Display: model.NewCreateFailedError(), Cause: err}
	}

	s.update(func(st *State) bool {
		for i := range st.Items {
			if st.Items[i].ID == created.ID {
				st.Items[i] = created
				return true
			}
		}
		st.Items = append(st.Items, created)
		return true
	})
	return created, nil
}

// Delete は商品を削除し、成功したら一致するIDの項目を1件だけ取り除く。
// 一覧に存在しないIDの場合、状態は変わらない。
func (s *Store) Delete(ctx context.Context, id model.ProductID) error {
	if err := s.api.DeleteProduct(ctx, id); err != nil {
		s.logger.Warn("商品の削除に失敗しました",
			slog.String("product_id", id.String()),
			slog.String("error", err.Error()),
		)
		return &OpError{Display: model.NewDeleteFailedError(), Cause: err}
	}

	s.update(func(st *State) bool {
		for i := range st.Items {
			if st.Items[i].ID == id {
				st.Items = append(st.Items[:i:i], st.Items[i+1:]...)
				return true
			}
		}
		return false
	})
	return nil
}

// Reset はセッション破棄時に状態を初期化する。実行中のLoadの結果は破棄される。
func (s *Store) Reset() {
	s.update(func(st *State) bool {
		s.ticket++
		*st = State{Items: []model.Product{}, Generation: st.Generation + 1}
		return true
	})
}

// IsUnauthorized はエラーが401によるセッション破棄を示すかどうかを返す。
func IsUnauthorized(err error) bool {
	return errors.Is(err, apiclient.ErrUnauthorized)
}

// dedupe は同じIDの2件目以降を取り除く。順序は保持する。
func dedupe(items []model.Product) []model.Product {
	seen := make(map[model.ProductID]struct{}, len(items))
	out := make([]model.Product, 0, len(items))
	for _, p := range items {
		if _, ok := seen[p.ID]; ok {
			continue
		}
		seen[p.ID] = struct{}{}
		out = append(out, p)
	}
	return out
}
