// Package credential は認証トークンの永続化スロットを提供する。
// スロットは固定名のキー1つだけを持ち、プロセス再起動後も値が残る。
package credential

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TokenKey は永続化スロットの固定キー名。
const TokenKey = "token"

// Store は認証トークンの永続化スロットのインターフェース。
// 書き込みはログイン・ログアウト・401検知時、読み込みは起動時に1回行われる。
type Store interface {
	// Load は保存済みトークンを返す。未保存の場合は空文字列を返す。
	Load() (string, error)
	// Save はトークンを保存する。既存の値は上書きされる。
	Save(token string) error
	// Clear は保存済みトークンを削除する。未保存でもエラーにしない。
	Clear() error
}

// FileStore はディレクトリ内の1ファイルにトークンを保存するStoreの実装。
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore は指定ディレクトリにトークンを保存するFileStoreを生成する。
// ディレクトリは最初のSave時に作成される。
func NewFileStore(dir string) *FileStore {
	return &FileStore{path: filepath.Join(dir, TokenKey)}
}

// Path はトークンファイルのパスを返す。
func (s *FileStore) Path() string {
	return s.path
}

// Load は保存済みトークンを読み込む。
func (s *FileStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read credential file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save はトークンを一時ファイル経由で原子的に書き込む。
// ファイルの権限は0600とする。
func (s *FileStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, TokenKey+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp credential file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod credential file: %w", err)
	}
	if _, err := tmp.WriteString(token); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credential file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close credential file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace credential file: %w", err)
	}
	return nil
}

// Clear はトークンファイルを削除する。
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove credential file: %w", err)
	}
	return nil
}

// MemoryStore はプロセス内メモリにトークンを保持するStoreの実装。
// 永続化を無効にした場合とテストで使用する。
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

// NewMemoryStore は初期値を持つMemoryStoreを生成する。
func NewMemoryStore(token string) *MemoryStore {
	return &MemoryStore{token: token}
}

// Load は保持しているトークンを返す。
func (s *MemoryStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

// Save はトークンを保持する。
func (s *MemoryStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}

// Clear は保持しているトークンを破棄する。
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	return nil
}
