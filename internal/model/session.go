package model

// SessionStatus はクライアントセッションの認証状態を表す。
type SessionStatus int

const (
	// SessionUnknown は起動時チェック完了前の初期状態。
	SessionUnknown SessionStatus = iota
	// SessionUnauthenticated は未認証状態。ログイン画面を表示する。
	SessionUnauthenticated
	// SessionAuthenticated は認証済み状態。トークンを保持している。
	SessionAuthenticated
)

// String はログ出力用の状態名を返す。
func (s SessionStatus) String() string {
	switch s {
	case SessionUnauthenticated:
		return "unauthenticated"
	case SessionAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}
