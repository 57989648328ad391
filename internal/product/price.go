package product

import (
	"regexp"
	"strings"

	"github.com/hitoshi/agrogestao/internal/model"
	"github.com/shopspring/decimal"
)

// priceInputPattern は価格入力として許可する文字列。小数点は.または,の1つまで。
var priceInputPattern = regexp.MustCompile(`^[0-9]*[.,]?[0-9]*$`)

// AcceptsPriceInput は入力途中の価格文字列が許可される形かどうかを返す。
// 空文字列や"12,"のような途中状態も許可する。
func AcceptsPriceInput(text string) bool {
	return priceInputPattern.MatchString(text)
}

// parsePrice は価格文字列を0以上の10進数に変換する。
// 小数点には.と,のどちらも使える。
func parsePrice(text string) (decimal.Decimal, *model.APIError) {
	trimmed := strings.TrimSpace(text)
	if !priceInputPattern.MatchString(trimmed) || strings.Trim(trimmed, ".,") == "" {
		return decimal.Decimal{}, model.NewInvalidPriceError(text)
	}

	normalized := strings.Replace(trimmed, ",", ".", 1)
	if strings.HasPrefix(normalized, ".") {
		normalized = "0" + normalized
	}
	normalized = strings.TrimSuffix(normalized, ".")

	price, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Decimal{}, model.NewInvalidPriceError(text)
	}
	return price, nil
}

// Validate は商品作成の入力を検証し、解釈済みの価格を返す。
func Validate(name, priceText string) (decimal.Decimal, *model.APIError) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(priceText) == "" {
		return decimal.Decimal{}, model.NewRequiredFieldsError()
	}
	return parsePrice(priceText)
}
