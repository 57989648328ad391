package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hitoshi/agrogestao/internal/model"
	"github.com/shopspring/decimal"
)

// 操作名。ログとメトリクスのラベルに使う。
const (
	OpLogin         = "login"
	OpValidateToken = "validate_token"
	OpListProducts  = "list_products"
	OpCreateProduct = "create_product"
	OpDeleteProduct = "delete_product"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// Login は認証情報をPOST login/ に送り、アクセストークンを返す。
// 2xxでもaccessが含まれない場合はErrInvalidCredentialsを返す。
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var resp loginResponse
	err := c.do(ctx, call{
		operation: OpLogin,
		method:    http.MethodPost,
		path:      "login/",
		body:      loginRequest{Username: username, Password: password},
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Access == "" {
		return "", fmt.Errorf("%s: %w", OpLogin, ErrInvalidCredentials)
	}
	return resp.Access, nil
}

// ValidateToken は指定トークンでGET products/ を呼び、トークンが有効か確認する。
// 起動時チェック専用で、401を受けてもセッション破棄は行わない（判断はゲートに委ねる）。
func (c *Client) ValidateToken(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%s: token is empty", OpValidateToken)
	}
	return c.do(ctx, call{
		operation:    OpValidateToken,
		method:       http.MethodGet,
		path:         "products/",
		token:        token,
		skipTeardown: true,
	}, nil)
}

// ListProducts は商品一覧をサーバーの応答順で取得する。
func (c *Client) ListProducts(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	err := c.do(ctx, call{
		operation: OpListProducts,
		method:    http.MethodGet,
		path:      "products/",
	}, &products)
	if err != nil {
		return nil, err
	}
	if products == nil {
		products = []model.Product{}
	}
	return products, nil
}

// CreateProduct は商品を作成し、サーバーが採番したIDを含む商品を返す。
func (c *Client) CreateProduct(ctx context.Context, name string, price decimal.Decimal) (model.Product, error) {
	var created model.Product
	err := c.do(ctx, call{
		operation: OpCreateProduct,
		method:    http.MethodPost,
		path:      "products/",
		body:      model.NewProductRequest{Name: name, Price: price},
	}, &created)
	if err != nil {
		return model.Product{}, err
	}
	if created.ID == "" {
		return model.Product{}, fmt.Errorf("%s: response did not contain a product id", OpCreateProduct)
	}
	return created, nil
}

// DeleteProduct はIDを指定して商品を削除する。2xxであれば成功とみなす。
func (c *Client) DeleteProduct(ctx context.Context, id model.ProductID) error {
	if id == "" {
		return fmt.Errorf("%s: product id is empty", OpDeleteProduct)
	}
	return c.do(ctx, call{
		operation: OpDeleteProduct,
		method:    http.MethodDelete,
		path:      "products/" + url.PathEscape(id.String()) + "/",
	}, nil)
}
