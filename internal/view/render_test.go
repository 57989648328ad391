package view

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/hitoshi/agrogestao/internal/model"
	"golang.org/x/net/html"
)

// countRows は描画結果の<tr>をthead・tbody別に数える。
func countRows(t *testing.T, doc string) (header, body int, keys []string) {
	t.Helper()
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("failed to parse HTML: %v", err)
	}

	var walk func(n *html.Node, section string)
	walk = func(n *html.Node, section string) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "thead", "tbody":
				section = n.Data
			case "tr":
				if section == "thead" {
					header++
				} else if section == "tbody" {
					body++
					for _, a := range n.Attr {
						if a.Key == "data-key" {
							keys = append(keys, a.Val)
						}
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, section)
		}
	}
	walk(root, "")
	return header, body, keys
}

func renderProducts(t *testing.T, r *Renderer, v *ListView) string {
	t.Helper()
	var buf bytes.Buffer
	if err := r.Products(&buf, "csrf-test", v.Page(0)); err != nil {
		t.Fatalf("Products がエラーを返した: %v", err)
	}
	return buf.String()
}

func TestRenderer_Scenario_LoadDeleteCreate(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer がエラーを返した: %v", err)
	}
	v, _ := newTestView(seedAPI(), DefaultOptions())
	ctx := context.Background()

	_ = v.EnsureLoaded(ctx)
	header, body, keys := countRows(t, renderProducts(t, r, v))
	if header != 1 || body != 2 {
		t.Fatalf("after load: header=%d body=%d, want 1 and 2", header, body)
	}
	if strings.Join(keys, ",") != "product-1,product-2" {
		t.Errorf("keys = %v", keys)
	}

	v.RequestDelete("1")
	if err := v.ConfirmDelete(ctx); err != nil {
		t.Fatalf("ConfirmDelete がエラーを返した: %v", err)
	}
	_, body, keys = countRows(t, renderProducts(t, r, v))
	if body != 1 || keys[0] != "product-2" {
		t.Fatalf("after delete: body=%d keys=%v, want only product-2", body, keys)
	}

	v.OpenAddForm()
	if err := v.SubmitAdd(ctx, "Produto 3", "150.00"); err != nil {
		t.Fatalf("SubmitAdd がエラーを返した: %v", err)
	}
	doc := renderProducts(t, r, v)
	_, body, keys = countRows(t, doc)
	if body != 2 || strings.Join(keys, ",") != "product-2,product-3" {
		t.Fatalf("after create: body=%d keys=%v, want product-2,product-3", body, keys)
	}
	if !strings.Contains(doc, "R$ 150,00") {
		t.Error("created product price should be rendered in BRL")
	}
}

func TestRenderer_Products_Regions(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer がエラーを返した: %v", err)
	}

	t.Run("empty state", func(t *testing.T) {
		var buf bytes.Buffer
		_ = r.Products(&buf, "tok", Page{Empty: true})
		doc := buf.String()
		if !strings.Contains(doc, "Nenhum produto encontrado") {
			t.Error("empty message missing")
		}
		if strings.Contains(doc, "<table") {
			t.Error("table should not render when empty")
		}
	})

	t.Run("loading refreshes", func(t *testing.T) {
		var buf bytes.Buffer
		_ = r.Products(&buf, "tok", Page{Loading: true})
		doc := buf.String()
		if !strings.Contains(doc, `http-equiv="refresh"`) || !strings.Contains(doc, "Carregando") {
			t.Error("loading page should show the indicator and refresh itself")
		}
		if strings.Contains(doc, "Nenhum produto encontrado") {
			t.Error("empty message must not show while loading")
		}
	})

	t.Run("notice modal", func(t *testing.T) {
		var buf bytes.Buffer
		_ = r.Products(&buf, "tok", Page{Notice: "Erro ao buscar produtos"})
		doc := buf.String()
		for _, want := range []string{"Erro ao buscar produtos", ">Erro<", "Fechar", `action="/notice/dismiss"`} {
			if !strings.Contains(doc, want) {
				t.Errorf("notice modal should contain %q", want)
			}
		}
	})

	t.Run("modals", func(t *testing.T) {
		var buf bytes.Buffer
		_ = r.Products(&buf, "tok", Page{
			AddForm:       &AddForm{Name: "Adubo", Error: "Preço inválido: x"},
			ConfirmDelete: &ConfirmDelete{ID: "9"},
		})
		doc := buf.String()
		for _, want := range []string{
			"Adicionar Novo Produto", "Ex: Fertilizante Orgânico", "Ex: 120.00", `value="Adubo"`,
			"Confirmar Exclusão", "Tem certeza que deseja excluir este produto?", `name="id" value="9"`,
		} {
			if !strings.Contains(doc, want) {
				t.Errorf("page should contain %q", want)
			}
		}
	})

	t.Run("names are escaped", func(t *testing.T) {
		var buf bytes.Buffer
		_ = r.Products(&buf, "tok", Page{Rows: []RowView{{Key: "product-1", ID: "1", Name: "<script>x</script>", Price: "R$ 1,00"}}})
		if strings.Contains(buf.String(), "<script>x</script>") {
			t.Error("product names must be escaped")
		}
	})
}

func TestRenderer_Login(t *testing.T) {
	r, err := NewRenderer()
	if err != nil {
		t.Fatalf("NewRenderer がエラーを返した: %v", err)
	}

	var buf bytes.Buffer
	if err := r.Login(&buf, "tok", "admin", model.NewInvalidCredentialsError()); err != nil {
		t.Fatalf("Login がエラーを返した: %v", err)
	}
	doc := buf.String()
	for _, want := range []string{
		"AgroGestão — Sistema de Gestão de Produtos Agrícolas",
		"Credenciais não válidas",
		"Fechar",
		`name="csrf_token" value="tok"`,
		`value="admin"`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("login page should contain %q", want)
		}
	}

	buf.Reset()
	_ = r.Login(&buf, "tok", "", nil)
	if strings.Contains(buf.String(), "error-modal") {
		t.Error("no modal without an error")
	}
}
