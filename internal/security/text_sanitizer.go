// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はリモートAPIから受け取った商品名などの文字列を表示用に整える。
// <や&を含む文字列も商品名の一部としてそのまま残し、
// 出力時のエスケープはhtml/templateに任せる。
package security

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// TextSanitizer はプレーンテキスト化のインターフェースを定義する。
type TextSanitizer interface {
	// PlainText は連続する空白を1つにまとめたNFC正規化済みの文字列を返す。
	PlainText(raw string) string
}

// textSanitizer はTextSanitizerの実装。状態を持たないためスレッドセーフ。
type textSanitizer struct {
	form norm.Form
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{form: norm.NFC}
}

// PlainText は表示用に正規化した文字列を返す。
func (s *textSanitizer) PlainText(raw string) string {
	if raw == "" {
		return ""
	}
	return s.form.String(strings.Join(strings.Fields(raw), " "))
}
