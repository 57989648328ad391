package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示するメッセージと対処方法を含む。生の技術的なエラー文字列はここに入れない。
type APIError struct {
	Code     string // エラーコード
	Message  string // 画面に表示するメッセージ
	Category string // カテゴリ: validation, auth, request, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeRequiredFields     = "REQUIRED_FIELDS"
	ErrCodeInvalidPrice       = "INVALID_PRICE"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeConnectionFailed   = "CONNECTION_FAILED"
	ErrCodeUnknown            = "UNKNOWN_ERROR"
	ErrCodeLoadFailed         = "LOAD_FAILED"
	ErrCodeCreateFailed       = "CREATE_FAILED"
	ErrCodeDeleteFailed       = "DELETE_FAILED"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
)

// エラーカテゴリ
const (
	CategoryValidation = "validation"
	CategoryAuth       = "auth"
	CategoryRequest    = "request"
	CategorySystem     = "system"
)

// NewRequiredFieldsError は名前または価格が未入力の場合のエラーを生成する。
func NewRequiredFieldsError() *APIError {
	return &APIError{
		Code:     ErrCodeRequiredFields,
		Message:  "Nome e preço são obrigatórios",
		Category: CategoryValidation,
		Action:   "Preencha o nome e o preço do produto.",
	}
}

// NewInvalidPriceError は価格が数値として解釈できない場合のエラーを生成する。
func NewInvalidPriceError(input string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPrice,
		Message:  fmt.Sprintf("Preço inválido: %s", input),
		Category: CategoryValidation,
		Action:   "Informe um valor numérico, por exemplo 120.00 ou 120,00.",
	}
}

// NewInvalidCredentialsError はログインが拒否された場合のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Credenciais não válidas",
		Category: CategoryAuth,
		Action:   "Verifique o usuário e a senha.",
	}
}

// NewConnectionFailedError はサーバーから応答がない場合のエラーを生成する。
func NewConnectionFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeConnectionFailed,
		Message:  "Erro ao conectar ao servidor",
		Category: CategoryRequest,
		Action:   "Verifique se o servidor está disponível e tente novamente.",
	}
}

// NewUnknownError は分類できないエラーを生成する。
func NewUnknownError() *APIError {
	return &APIError{
		Code:     ErrCodeUnknown,
		Message:  "Erro desconhecido. Tente novamente.",
		Category: CategorySystem,
		Action:   "Tente novamente em alguns instantes.",
	}
}

// NewLoadFailedError は商品一覧の取得に失敗した場合のエラーを生成する。
func NewLoadFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeLoadFailed,
		Message:  "Erro ao buscar produtos",
		Category: CategoryRequest,
		Action:   "Tente atualizar a lista novamente.",
	}
}

// NewCreateFailedError は商品の追加に失敗した場合のエラーを生成する。
func NewCreateFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeCreateFailed,
		Message:  "Erro ao adicionar produto",
		Category: CategoryRequest,
		Action:   "Confira os dados e tente novamente.",
	}
}

// NewDeleteFailedError は商品の削除に失敗した場合のエラーを生成する。
func NewDeleteFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeDeleteFailed,
		Message:  "Erro ao excluir produto",
		Category: CategoryRequest,
		Action:   "Tente novamente em alguns instantes.",
	}
}

// NewUnauthorizedError は認証が失われた場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Sessão expirada",
		Category: CategoryAuth,
		Action:   "Faça login novamente.",
	}
}
