package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/hitoshi/agrogestao/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

const appTitle = "AgroGestão"

// Modal は共通のエラーモーダル（タイトル「Erro」、ボタン「Fechar」）の描画モデル。
type Modal struct {
	Message string
	Action  string
	// DismissURL が空の場合はログイン画面に戻る
	DismissURL string
	CSRFToken  string
}

type loginData struct {
	Title     string
	CSRFToken string
	Username  string
	Error     *Modal
	Refresh   bool
	LoggedIn  bool
}

type productsData struct {
	Title     string
	CSRFToken string
	Page      Page
	Notice    *Modal
	Refresh   bool
	LoggedIn  bool
}

// Renderer は埋め込みテンプレートからHTMLを生成する。
type Renderer struct {
	tmpl *template.Template
}

// NewRenderer は埋め込みテンプレートを読み込んでRendererを生成する。
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Login はログイン画面を描画する。apiErrがnilでなければエラーモーダルを表示する。
func (r *Renderer) Login(w io.Writer, csrfToken, username string, apiErr *model.APIError) error {
	data := loginData{
		Title:     appTitle + " | Login",
		CSRFToken: csrfToken,
		Username:  username,
	}
	if apiErr != nil {
		data.Error = &Modal{Message: apiErr.Message, Action: apiErr.Action}
	}
	return r.tmpl.ExecuteTemplate(w, "login.html", data)
}

// Products は商品一覧画面を描画する。読み込み中は1秒ごとに自動更新する。
func (r *Renderer) Products(w io.Writer, csrfToken string, page Page) error {
	data := productsData{
		Title:     appTitle + " | Produtos",
		CSRFToken: csrfToken,
		Page:      page,
		Refresh:   page.Loading,
		LoggedIn:  true,
	}
	if page.Notice != "" {
		data.Notice = &Modal{
			Message:    page.Notice,
			DismissURL: "/notice/dismiss",
			CSRFToken:  csrfToken,
		}
	}
	return r.tmpl.ExecuteTemplate(w, "products.html", data)
}
