package view

// Page は商品一覧画面の描画モデル。
type Page struct {
	// Loading はLoadの実行中にtrue。
	Loading bool
	Rows    []RowView
	// Empty は商品が0件で読み込み中でないときにtrue。
	Empty bool
	// Notice は表示中のエラー通知。空文字列なら非表示。
	Notice string

	AddForm       *AddForm
	ConfirmDelete *ConfirmDelete

	Total      int
	Windowed   bool
	Offset     int
	HasPrev    bool
	PrevOffset int
	HasNext    bool
	NextOffset int
}

// RowView はテーブルの1行。
type RowView struct {
	Key   string
	ID    string
	Name  string
	Price string
}

// AddForm は追加フォームの描画モデル。
type AddForm struct {
	Name      string
	Price     string
	CanSubmit bool
	Error     string
}

// ConfirmDelete は削除確認ダイアログの描画モデル。
type ConfirmDelete struct {
	ID string
}

// Page は現在の状態から描画モデルを組み立てる。
// 件数がThresholdを超える場合はoffsetを先頭とする範囲のみを描画する。
func (v *ListView) Page(offset int) Page {
	st := v.store.Snapshot()

	v.mu.Lock()
	defer v.mu.Unlock()

	total := len(st.Items)
	page := Page{
		Loading: st.Loading,
		Empty:   total == 0 && !st.Loading,
		Total:   total,
	}

	r := Range{Start: 0, End: total}
	if v.opts.Threshold >= 0 && total > v.opts.Threshold && v.opts.WindowSize > 0 {
		offset = clamp(offset, 0, total-1)
		r = Window(total, offset, v.opts.WindowSize, v.opts.Overscan)
		page.Windowed = true
		page.Offset = offset
		page.HasPrev = offset > 0
		page.PrevOffset = max(0, offset-v.opts.WindowSize)
		page.NextOffset = offset + v.opts.WindowSize
		page.HasNext = page.NextOffset < total
	}

	for _, row := range Rows(st.Items, r) {
		page.Rows = append(page.Rows, RowView{
			Key:   row.Key,
			ID:    row.Product.ID.String(),
			Name:  v.sanitizer.PlainText(row.Product.Name),
			Price: FormatBRL(row.Product.Price),
		})
	}

	switch {
	case v.opNotice != nil:
		page.Notice = v.opNotice.Message
	case st.Err != nil && !(v.loadNoticeHidden && v.loadNoticeHiddenAt == st.Generation):
		page.Notice = st.Err.Message
	}

	if v.formOpen {
		form := &AddForm{
			Name:      v.draft.Name,
			Price:     v.draft.Price,
			CanSubmit: canSubmit(v.draft),
		}
		if v.formErr != nil {
			form.Error = v.formErr.Message
		}
		page.AddForm = form
	}

	if v.hasPending {
		page.ConfirmDelete = &ConfirmDelete{ID: v.pendingID.String()}
	}

	return page
}
