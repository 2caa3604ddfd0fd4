// Package storage はプロセス再起動をまたいで値を保持するキー・バリューストレージを提供する。
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// LocalStorage は文字列のキーと値を永続化するストレージのインターフェース。
type LocalStorage interface {
	// GetItem はキーの値を返す。存在しない場合はfalseを返す。
	GetItem(key string) (string, bool)
	// SetItem はキーに値を保存する。
	SetItem(key, value string) error
	// RemoveItem はキーを削除する。存在しない場合も成功とする。
	RemoveItem(key string) error
}

// FileStorage はJSONファイル1つに全キーを保存するLocalStorage実装。
// 書き込みは一時ファイル経由のrenameで行い、途中状態のファイルを残さない。
type FileStorage struct {
	path string

	mu    sync.Mutex
	items map[string]string
}

// DefaultFileName は状態ディレクトリ内の保存ファイル名。
const DefaultFileName = "local_storage.json"

// NewFileStorage はdir配下のファイルを使うFileStorageを生成する。
// ファイルが存在しない、または壊れている場合は空として扱う。
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	s := &FileStorage{
		path:  filepath.Join(dir, DefaultFileName),
		items: make(map[string]string),
	}

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read storage file: %w", err)
	}

	if err := json.Unmarshal(data, &s.items); err != nil || s.items == nil {
		s.items = make(map[string]string)
	}

	return s, nil
}

// Path は保存先ファイルのパスを返す。
func (s *FileStorage) Path() string {
	return s.path
}

// GetItem はキーの値を返す。
func (s *FileStorage) GetItem(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	return v, ok
}

// SetItem はキーに値を保存し、ファイルへ書き出す。
func (s *FileStorage) SetItem(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.items[key]
	s.items[key] = value
	if err := s.flushLocked(); err != nil {
		if had {
			s.items[key] = prev
		} else {
			delete(s.items, key)
		}
		return err
	}
	return nil
}

// RemoveItem はキーを削除し、ファイルへ書き出す。
func (s *FileStorage) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.items[key]
	if !had {
		return nil
	}
	delete(s.items, key)
	if err := s.flushLocked(); err != nil {
		s.items[key] = prev
		return err
	}
	return nil
}

func (s *FileStorage) flushLocked() error {
	data, err := json.MarshalIndent(s.items, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode storage: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".local_storage-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace storage file: %w", err)
	}
	return nil
}

// MemoryStorage はプロセス内だけで値を保持するLocalStorage実装。
// テストやヘッドレス実行で使用する。
type MemoryStorage struct {
	mu    sync.Mutex
	items map[string]string
}

// NewMemoryStorage は空のMemoryStorageを生成する。
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

// GetItem はキーの値を返す。
func (s *MemoryStorage) GetItem(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	return v, ok
}

// SetItem はキーに値を保存する。
func (s *MemoryStorage) SetItem(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return nil
}

// RemoveItem はキーを削除する。
func (s *MemoryStorage) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// compile-time interface check
var (
	_ LocalStorage = (*FileStorage)(nil)
	_ LocalStorage = (*MemoryStorage)(nil)
)
