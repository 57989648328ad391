// Package model はドメインモデルを定義する。
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// ProductID はサーバーが採番する商品の識別子。
// クライアントは値を生成・変更せず、不透明な文字列として扱う。
type ProductID string

// UnmarshalJSON はJSONの数値・文字列のどちらからでもProductIDを復元する。
func (id *ProductID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("product id must not be null")
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("failed to decode product id: %w", err)
		}
		*id = ProductID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("failed to decode product id: %w", err)
	}
	*id = ProductID(n.String())
	return nil
}

// MarshalJSON は数値として解釈できるIDは数値のまま、それ以外は文字列として出力する。
func (id ProductID) MarshalJSON() ([]byte, error) {
	// "007"や"+5"のような非正規表現は数値にするとJSONとして不正になるため文字列のまま出す
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// String はIDの文字列表現を返す。
func (id ProductID) String() string {
	return string(id)
}

// Product は農業製品を表す。
// IDはリモートAPIの作成レスポンスで確定し、以後変化しない。
type Product struct {
	ID    ProductID       `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// NewProductRequest は商品作成リクエストのボディ。
// IDはサーバー側で採番されるため含まない。
type NewProductRequest struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// MarshalJSON はpriceを文字列ではなくJSONの数値として出力する。
func (r NewProductRequest) MarshalJSON() ([]byte, error) {
	name, err := json.Marshal(r.Name)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(`{"name":`)
	buf.Write(name)
	buf.WriteString(`,"price":`)
	buf.WriteString(r.Price.String())
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
