package view

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var brlPrinter = message.NewPrinter(language.BrazilianPortuguese)

// FormatBRL は価格をpt-BRの通貨表記（例: R$ 1.234,50）に整形する。
// float64を経由せず、小数点以下2桁に丸めた10進表現から組み立てる。
func FormatBRL(price decimal.Decimal) string {
	fixed := price.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		fixed = fixed[1:]
		if strings.Trim(fixed, "0.") != "" {
			sign = "-"
		}
	}
	intPart, frac, _ := strings.Cut(fixed, ".")
	return "R$ " + sign + groupThousands(intPart) + "," + frac
}

// groupThousands は整数部の桁をpt-BRの桁区切りで整形する。
// int64に収まらない桁数は3桁ごとに.を挿入する。
func groupThousands(digits string) string {
	if n, err := strconv.ParseInt(digits, 10, 64); err == nil {
		return brlPrinter.Sprint(number.Decimal(n))
	}
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return b.String()
}
