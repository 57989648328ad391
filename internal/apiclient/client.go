// Package apiclient はリモート商品APIへの唯一の出口となるHTTPクライアントを提供する。
// すべてのリクエストにセッションのBearerトークンを付与し、
// 401レスポンスを検知した時点でセッションを破棄する。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/agrogestao/internal/metrics"
)

const (
	// DefaultBaseURL はリモートAPIのデフォルトのベースURL。
	DefaultBaseURL = "http://127.0.0.1:8000/api/"
	// DefaultMaxResponseSize はレスポンスボディの最大サイズ（バイト）。
	DefaultMaxResponseSize int64 = 5 << 20

	requestIDHeader = "X-Request-ID"
)

var (
	// ErrUnauthorized はリモートAPIが401を返したことを示す。
	// このエラーが返る時点でセッションは既に破棄されている。
	ErrUnauthorized = errors.New("remote API returned 401 Unauthorized")
	// ErrUnreachable はリモートAPIからレスポンスが得られなかったことを示す。
	ErrUnreachable = errors.New("remote API is unreachable")
	// ErrInvalidCredentials はログインレスポンスにアクセストークンが含まれなかったことを示す。
	ErrInvalidCredentials = errors.New("login response did not contain an access token")
)

// StatusError はリモートAPIが2xx以外のステータスを返したことを表す。
// 401以外のステータスは呼び出し元にそのまま渡される。
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: remote API returned status %d", e.Operation, e.StatusCode)
}

// Unwrap は401の場合にErrUnauthorizedを返し、errors.Isで判定できるようにする。
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// Session はクライアントが参照するプロセス全体のセッション。
// session.Gate が実装する。
type Session interface {
	// Token は現在の認証トークンを返す。未認証の場合は空文字列。
	Token() string
	// Deauthenticate はセッションを強制的に破棄する。
	Deauthenticate(reason string)
}

// Option はClientの任意設定。
type Option func(*Client)

// WithMetrics はAPIリクエストのメトリクス記録先を設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithMaxResponseSize はレスポンスボディの最大サイズを設定する。
func WithMaxResponseSize(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxResponseSize = n
		}
	}
}

// Client はリモート商品APIのクライアント。
// タイムアウトは注入された*http.Clientの設定に従い、リトライは行わない。
type Client struct {
	httpClient      *http.Client
	logger          *slog.Logger
	baseURL         *url.URL
	maxResponseSize int64
	metrics         metrics.MetricsCollector

	mu      sync.RWMutex
	session Session
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLはhttpまたはhttpsの絶対URLでなければならない。末尾の/は補完する。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string, opts ...Option) (*Client, error) {
	u, err := ParseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		httpClient:      httpClient,
		logger:          logger,
		baseURL:         u,
		maxResponseSize: DefaultMaxResponseSize,
		metrics:         metrics.Nop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ParseBaseURL はAPIのベースURLを検証して正規化する。
func ParseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid API base URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid API base URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q: host is empty", raw)
	}
	if len(u.Path) == 0 || u.Path[len(u.Path)-1] != '/' {
		u.Path += "/"
	}
	return u, nil
}

// BindSession はプロセス全体のセッションを関連付ける。
// 以後のリクエストはこのセッションのトークンを付与する。
func (c *Client) BindSession(s Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
}

func (c *Client) currentSession() Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// call は1回のAPI呼び出しを表す。
type call struct {
	operation string
	method    string
	path      string
	body      any

	// token が空でない場合はセッションのトークンの代わりに使う
	token string
	// skipTeardown がtrueの場合、401でもセッションを破棄しない（起動時検証用）
	skipTeardown bool
}

// do はリクエストを送信し、2xxレスポンスのボディをoutにデコードする。
// outがnilの場合はボディを読み捨てる。
func (c *Client) do(ctx context.Context, cl call, out any) error {
	ref, err := url.Parse(cl.path)
	if err != nil {
		return fmt.Errorf("%s: invalid request path: %w", cl.operation, err)
	}
	endpoint := c.baseURL.ResolveReference(ref)

	var body io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request body: %w", cl.operation, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", cl.operation, err)
	}

	requestID := uuid.New().String()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, requestID)
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	session := c.currentSession()
	token := cl.token
	if token == "" && session != nil {
		token = session.Token()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.metrics.RecordAPIRequest(cl.operation, 0, duration)
		c.logger.Error("リモートAPIの呼び出しに失敗しました",
			slog.String("operation", cl.operation),
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%s: %w: %w", cl.operation, ErrUnreachable, err)
	}
	defer resp.Body.Close()

	c.metrics.RecordAPIRequest(cl.operation, resp.StatusCode, duration)
	c.logRequest(ctx, cl, resp.StatusCode, duration, requestID)

	// 401はボディの内容に関係なくセッションを破棄する
	if resp.StatusCode == http.StatusUnauthorized {
		if !cl.skipTeardown && session != nil {
			session.Deauthenticate("unauthorized")
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize))
		return &StatusError{Operation: cl.operation, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	if err != nil {
		return fmt.Errorf("%s: %w: failed to read response body: %w", cl.operation, ErrUnreachable, err)
	}
	if int64(len(raw)) > c.maxResponseSize {
		return fmt.Errorf("%s: response body exceeds %d bytes", cl.operation, c.maxResponseSize)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Operation: cl.operation, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: failed to decode response JSON: %w", cl.operation, err)
	}
	return nil
}

// logRequest はステータスコードに応じたレベルでAPI呼び出しを記録する。
func (c *Client) logRequest(ctx context.Context, cl call, status int, duration time.Duration, requestID string) {
	level := slog.LevelInfo
	if status >= 500 {
		level = slog.LevelError
	} else if status >= 400 {
		level = slog.LevelWarn
	}

	c.logger.LogAttrs(ctx, level, "api_request",
		slog.String("operation", cl.operation),
		slog.String("method", cl.method),
		slog.String("path", cl.path),
		slog.Int("status", status),
		slog.Float64("duration_ms", float64(duration.Nanoseconds())/float64(time.Millisecond)),
		slog.String("request_id", requestID),
	)
}
