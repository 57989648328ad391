package view

import "github.com/hitoshi/agrogestao/internal/model"

// Range は一覧のうち描画する範囲 [Start, End) を表す。
type Range struct {
	Start int
	End   int
}

// Len は範囲に含まれる件数を返す。
func (r Range) Len() int {
	return r.End - r.Start
}

// Window は件数と表示範囲から描画すべき範囲を求める。
// offsetは[0, total)に丸められ、表示範囲の前後にoverscan件ずつ追加する。
// visibleが0以下の場合は全件を返す。
func Window(total, offset, visible, overscan int) Range {
	if total <= 0 {
		return Range{}
	}
	if visible <= 0 {
		return Range{Start: 0, End: total}
	}
	if overscan < 0 {
		overscan = 0
	}
	offset = clamp(offset, 0, total-1)

	return Range{
		Start: max(0, offset-overscan),
		End:   min(total, offset+visible+overscan),
	}
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// Row は描画する1行。Keyは再描画をまたいで行を識別する。
type Row struct {
	Key     string
	Product model.Product
}

// RowKey は商品IDから行キーを作る。
func RowKey(id model.ProductID) string {
	return "product-" + id.String()
}

// Rows は範囲内の商品を行に変換する。範囲外の指定は丸められる。
func Rows(items []model.Product, r Range) []Row {
	start := clamp(r.Start, 0, len(items))
	end := clamp(r.End, start, len(items))

	rows := make([]Row, 0, end-start)
	for _, p := range items[start:end] {
		rows = append(rows, Row{Key: RowKey(p.ID), Product: p})
	}
	return rows
}
