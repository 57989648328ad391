package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/agrogestao/internal/apiclient"
	"github.com/hitoshi/agrogestao/internal/middleware"
	"github.com/hitoshi/agrogestao/internal/model"
	"github.com/hitoshi/agrogestao/internal/product"
	"github.com/hitoshi/agrogestao/internal/view"
)

// --- モック定義 ---

// mockSession はSessionServiceのモック実装。
type mockSession struct {
	authenticated bool
	loginFn       func(ctx context.Context, username, password string) error
	logoutErr     error

	loginCalls  int
	logoutCalls int
}

func (m *mockSession) IsAuthenticated() bool { return m.authenticated }

func (m *mockSession) Login(ctx context.Context, username, password string) error {
	m.loginCalls++
	if m.loginFn != nil {
		return m.loginFn(ctx, username, password)
	}
	m.authenticated = true
	return nil
}

func (m *mockSession) Logout() error {
	m.logoutCalls++
	m.authenticated = false
	return m.logoutErr
}

// mockView はProductViewのモック実装。呼び出しを記録する。
type mockView struct {
	ensureLoadedFn  func(ctx context.Context) error
	refreshFn       func(ctx context.Context) error
	submitAddFn     func(ctx context.Context, name, price string) error
	confirmDeleteFn func(ctx context.Context) error
	page            view.Page

	calls      []string
	pageOffset int
	requested  model.ProductID
}

func (m *mockView) EnsureLoaded(ctx context.Context) error {
	m.calls = append(m.calls, "EnsureLoaded")
	if m.ensureLoadedFn != nil {
		return m.ensureLoadedFn(ctx)
	}
	return nil
}

func (m *mockView) Refresh(ctx context.Context) error {
	m.calls = append(m.calls, "Refresh")
	if m.refreshFn != nil {
		return m.refreshFn(ctx)
	}
	return nil
}

func (m *mockView) Page(offset int) view.Page {
	m.pageOffset = offset
	return m.page
}

func (m *mockView) OpenAddForm()  { m.calls = append(m.calls, "OpenAddForm") }
func (m *mockView) CloseAddForm() { m.calls = append(m.calls, "CloseAddForm") }

func (m *mockView) SubmitAdd(ctx context.Context, name, price string) error {
	m.calls = append(m.calls, "SubmitAdd")
	if m.submitAddFn != nil {
		return m.submitAddFn(ctx, name, price)
	}
	return nil
}

func (m *mockView) RequestDelete(id model.ProductID) {
	m.calls = append(m.calls, "RequestDelete")
	m.requested = id
}

func (m *mockView) CancelDelete() { m.calls = append(m.calls, "CancelDelete") }

func (m *mockView) ConfirmDelete(ctx context.Context) error {
	m.calls = append(m.calls, "ConfirmDelete")
	if m.confirmDeleteFn != nil {
		return m.confirmDeleteFn(ctx)
	}
	return nil
}

func (m *mockView) DismissNotice() { m.calls = append(m.calls, "DismissNotice") }

// mockRenderer は描画内容を簡易な文字列で書き出すモック実装。
type mockRenderer struct {
	err error

	loginToken string
	loginUser  string
	loginErr   *model.APIError
	page       view.Page
}

func (m *mockRenderer) Login(w io.Writer, csrfToken, username string, apiErr *model.APIError) error {
	if m.err != nil {
		return m.err
	}
	m.loginToken, m.loginUser, m.loginErr = csrfToken, username, apiErr
	_, err := fmt.Fprintf(w, "login:%s", username)
	return err
}

func (m *mockRenderer) Products(w io.Writer, csrfToken string, page view.Page) error {
	if m.err != nil {
		return m.err
	}
	m.page = page
	_, err := fmt.Fprintf(w, "products:%d", len(page.Rows))
	return err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// unauthorizedErr はストアが401を受けたときに返すエラーと同じ形のエラー。
func unauthorizedErr() error {
	return &product.OpError{
		Display: model.NewLoadFailedError(),
		Cause:   &apiclient.StatusError{Operation: apiclient.OpListProducts, StatusCode: http.StatusUnauthorized},
	}
}

func postForm(path string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func assertRedirect(t *testing.T, w *httptest.ResponseRecorder, want string) {
	t.Helper()
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusSeeOther)
	}
	if got := w.Header().Get("Location"); got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}
}

// --- GET /login テスト ---

func TestAuthHandler_LoginForm_Unauthenticated(t *testing.T) {
	renderer := &mockRenderer{}
	h := NewAuthHandler(&mockSession{}, renderer, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req = req.WithContext(middleware.ContextWithCSRFToken(req.Context(), "tok-1"))
	w := httptest.NewRecorder()
	h.LoginForm(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if renderer.loginToken != "tok-1" {
		t.Errorf("csrf token = %q, want %q", renderer.loginToken, "tok-1")
	}
	if renderer.loginErr != nil {
		t.Errorf("no error modal expected, got %v", renderer.loginErr)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
}

func TestAuthHandler_LoginForm_AuthenticatedRedirects(t *testing.T) {
	h := NewAuthHandler(&mockSession{authenticated: true}, &mockRenderer{}, discardLogger())

	w := httptest.NewRecorder()
	h.LoginForm(w, httptest.NewRequest(http.MethodGet, "/login", nil))

	assertRedirect(t, w, "/products")
}

// --- POST /login テスト ---

func TestAuthHandler_Login_Success(t *testing.T) {
	session := &mockSession{
		loginFn: func(ctx context.Context, username, password string) error {
			if username != "admin" || password != " secret " {
				t.Errorf("credentials = %q/%q, want admin/\" secret \"", username, password)
			}
			return nil
		},
	}
	h := NewAuthHandler(session, &mockRenderer{}, discardLogger())

	w := httptest.NewRecorder()
	h.Login(w, postForm("/login", url.Values{"username": {"  admin "}, "password": {" secret "}}))

	assertRedirect(t, w, "/products")
	if session.loginCalls != 1 {
		t.Errorf("loginCalls = %d, want 1", session.loginCalls)
	}
}

func TestAuthHandler_Login_Failure(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid credentials",
			err:        model.NewInvalidCredentialsError(),
			wantStatus: http.StatusUnauthorized,
			wantCode:   model.ErrCodeInvalidCredentials,
		},
		{
			name:       "connection failed",
			err:        model.NewConnectionFailedError(),
			wantStatus: http.StatusBadGateway,
			wantCode:   model.ErrCodeConnectionFailed,
		},
		{
			name:       "unclassified error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   model.ErrCodeUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renderer := &mockRenderer{}
			session := &mockSession{
				loginFn: func(ctx context.Context, username, password string) error { return tt.err },
			}
			h := NewAuthHandler(session, renderer, discardLogger())

			w := httptest.NewRecorder()
			h.Login(w, postForm("/login", url.Values{"username": {"admin"}, "password": {"x"}}))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if renderer.loginErr == nil || renderer.loginErr.Code != tt.wantCode {
				t.Errorf("modal error = %v, want code %s", renderer.loginErr, tt.wantCode)
			}
			if renderer.loginUser != "admin" {
				t.Errorf("username should be kept in the form, got %q", renderer.loginUser)
			}
		})
	}
}

func TestAuthHandler_Login_IgnoresClientCancellation(t *testing.T) {
	session := &mockSession{
		loginFn: func(ctx context.Context, username, password string) error {
			if ctx.Err() != nil {
				t.Errorf("login context should not be cancelled: %v", ctx.Err())
			}
			return nil
		},
	}
	h := NewAuthHandler(session, &mockRenderer{}, discardLogger())

	req := postForm("/login", url.Values{"username": {"a"}, "password": {"b"}})
	ctx, cancel := context.WithCancel(req.Context())
	cancel()

	w := httptest.NewRecorder()
	h.Login(w, req.WithContext(ctx))
	assertRedirect(t, w, "/products")
}

func TestAuthHandler_RenderFailure(t *testing.T) {
	h := NewAuthHandler(&mockSession{}, &mockRenderer{err: errors.New("template")}, discardLogger())

	w := httptest.NewRecorder()
	h.LoginForm(w, httptest.NewRequest(http.MethodGet, "/login", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

// --- POST /logout テスト ---

func TestAuthHandler_Logout(t *testing.T) {
	for _, logoutErr := range []error{nil, errors.New("disk full")} {
		session := &mockSession{authenticated: true, logoutErr: logoutErr}
		h := NewAuthHandler(session, &mockRenderer{}, discardLogger())

		w := httptest.NewRecorder()
		h.Logout(w, httptest.NewRequest(http.MethodPost, "/logout", nil))

		assertRedirect(t, w, "/login")
		if session.logoutCalls != 1 {
			t.Errorf("logoutCalls = %d, want 1", session.logoutCalls)
		}
	}
}

// --- GET /products テスト ---

func TestProductHandler_List(t *testing.T) {
	renderer := &mockRenderer{}
	v := &mockView{page: view.Page{Rows: []view.RowView{{Key: "product-1"}, {Key: "product-2"}}}}
	h := NewProductHandler(v, renderer, discardLogger())

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/products?offset=40", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if w.Body.String() != "products:2" {
		t.Errorf("body = %q, want %q", w.Body.String(), "products:2")
	}
	if v.pageOffset != 40 {
		t.Errorf("offset = %d, want 40", v.pageOffset)
	}
	if len(v.calls) != 1 || v.calls[0] != "EnsureLoaded" {
		t.Errorf("calls = %v, want [EnsureLoaded]", v.calls)
	}
}

func TestProductHandler_List_InvalidOffsetIsZero(t *testing.T) {
	v := &mockView{pageOffset: -1}
	h := NewProductHandler(v, &mockRenderer{}, discardLogger())

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/products?offset=abc", nil))

	if v.pageOffset != 0 {
		t.Errorf("offset = %d, want 0", v.pageOffset)
	}
}

func TestProductHandler_List_LoadFailureStillRenders(t *testing.T) {
	v := &mockView{
		ensureLoadedFn: func(ctx context.Context) error {
			return &product.OpError{Display: model.NewLoadFailedError(), Cause: apiclient.ErrUnreachable}
		},
		page: view.Page{Notice: "Erro ao buscar produtos"},
	}
	renderer := &mockRenderer{}
	h := NewProductHandler(v, renderer, discardLogger())

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/products", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if renderer.page.Notice == "" {
		t.Error("load failure should surface as a notice")
	}
}

func TestProductHandler_List_UnauthorizedRedirects(t *testing.T) {
	v := &mockView{ensureLoadedFn: func(ctx context.Context) error { return unauthorizedErr() }}
	h := NewProductHandler(v, &mockRenderer{}, discardLogger())

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest(http.MethodGet, "/products", nil))

	assertRedirect(t, w, "/login")
}

// --- 状態変更系テスト ---

func TestProductHandler_Intents(t *testing.T) {
	tests := []struct {
		name     string
		call     func(h *ProductHandler, w http.ResponseWriter, r *http.Request)
		wantCall string
	}{
		{name: "refresh", call: (*ProductHandler).Refresh, wantCall: "Refresh"},
		{name: "open add", call: (*ProductHandler).OpenAdd, wantCall: "OpenAddForm"},
		{name: "close add", call: (*ProductHandler).CloseAdd, wantCall: "CloseAddForm"},
		{name: "confirm delete", call: (*ProductHandler).ConfirmDelete, wantCall: "ConfirmDelete"},
		{name: "cancel delete", call: (*ProductHandler).CancelDelete, wantCall: "CancelDelete"},
		{name: "dismiss notice", call: (*ProductHandler).DismissNotice, wantCall: "DismissNotice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &mockView{}
			h := NewProductHandler(v, &mockRenderer{}, discardLogger())

			w := httptest.NewRecorder()
			tt.call(h, w, httptest.NewRequest(http.MethodPost, "/x", nil))

			assertRedirect(t, w, "/products")
			if len(v.calls) != 1 || v.calls[0] != tt.wantCall {
				t.Errorf("calls = %v, want [%s]", v.calls, tt.wantCall)
			}
		})
	}
}

func TestProductHandler_Create(t *testing.T) {
	v := &mockView{
		submitAddFn: func(ctx context.Context, name, price string) error {
			if name != "Adubo" || price != "120,00" {
				t.Errorf("SubmitAdd(%q, %q), want Adubo/120,00", name, price)
			}
			return nil
		},
	}
	h := NewProductHandler(v, &mockRenderer{}, discardLogger())

	w := httptest.NewRecorder()
	h.Create(w, postForm("/products", url.Values{"name": {"Adubo"}, "price": {"120,00"}}))

	assertRedirect(t, w, "/products")
}

func TestProductHandler_Create_FailureStaysOnProducts(t *testing.T) {
	v := &mockView{
		submitAddFn: func(ctx context.Context, name, price string) error {
			return model.NewRequiredFieldsError()
		},
	}
	h := NewProductHandler(v, &mockRenderer{}, discardLogger())

	w := httptest.NewRecorder()
	h.Create(w, postForm("/products", url.Values{"name": {""}, "price": {""}}))

	assertRedirect(t, w, "/products")
}

func TestProductHandler_UnauthorizedRedirectsToLogin(t *testing.T) {
	v := &mockView{
		refreshFn:       func(ctx context.Context) error { return unauthorizedErr() },
		submitAddFn:     func(ctx context.Context, name, price string) error { return unauthorizedErr() },
		confirmDeleteFn: func(ctx context.Context) error { return unauthorizedErr() },
	}
	h := NewProductHandler(v, &mockRenderer{}, discardLogger())

	for name, call := range map[string]http.HandlerFunc{
		"refresh": h.Refresh,
		"create":  h.Create,
		"confirm": h.ConfirmDelete,
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			call(w, postForm("/x", url.Values{"name": {"a"}, "price": {"1"}}))
			assertRedirect(t, w, "/login")
		})
	}
}

func TestProductHandler_RequestDelete_UsesPathID(t *testing.T) {
	v := &mockView{}
	h := NewProductHandler(v, &mockRenderer{}, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/products/7/delete", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "7")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	w := httptest.NewRecorder()
	h.RequestDelete(w, req)

	assertRedirect(t, w, "/products")
	if v.requested != "7" {
		t.Errorf("requested id = %q, want %q", v.requested, "7")
	}
}

func TestProductHandler_OperationsIgnoreClientCancellation(t *testing.T) {
	check := func(ctx context.Context) error {
		if ctx.Err() != nil {
			t.Errorf("operation context should not be cancelled: %v", ctx.Err())
		}
		return nil
	}
	v := &mockView{ensureLoadedFn: check, refreshFn: check, confirmDeleteFn: check}
	h := NewProductHandler(v, &mockRenderer{}, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h.List(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/products", nil).WithContext(ctx))
	h.Refresh(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/products/refresh", nil).WithContext(ctx))
	h.ConfirmDelete(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/products/delete/confirm", nil).WithContext(ctx))
}

// --- GET /health テスト ---

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Errorf("Health = %d %q, want 200 ok", w.Code, w.Body.String())
	}
}
