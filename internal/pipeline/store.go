// =============================================================================
// store.go - 履歴テーブルの保存先
// =============================================================================
//
// 【保存先の種類】
//   - FileStore: ローカルのCSVファイル（CLI実行時の既定）
//   - S3Store:   S3オブジェクト（Lambdaなど永続ファイルシステムがない環境）
//
// どちらも「存在しない」「空」を初回実行として扱い、空テーブルを返す。
// 書き込みは毎回全体の上書きで、アトミック性は保証しない。
//
// =============================================================================
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// TableStore は履歴テーブルの読み書きを担当する
type TableStore interface {
	Load(ctx context.Context) ([]CountRow, error)
	Save(ctx context.Context, rows []CountRow) error
	Location() string
}

// NewTableStore は設定に応じた保存先を返す
//
// storage.bucket が設定されていればS3、なければローカルファイル。
func NewTableStore(ctx context.Context, cfg *Config) (TableStore, error) {
	if cfg.Storage.Bucket != "" {
		return NewS3Store(ctx, cfg.Storage)
	}
	return NewFileStore(cfg.Paths.Table), nil
}

// -----------------------------------------------------------------------------
// FileStore
// -----------------------------------------------------------------------------

// FileStore はローカルCSVファイルに保存する
type FileStore struct {
	path string
}

// NewFileStore は path に保存するFileStoreを作成する
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load はCSVファイルを読み込む（ファイルがなければ空テーブル）
func (s *FileStore) Load(_ context.Context) ([]CountRow, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open table %s: %w", s.path, err)
	}
	rows, err := ReadTable(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("load table %s: %w", s.path, err)
	}
	return rows, nil
}

// Save はCSVファイルを上書きする
//
// 【ファイル権限】0o644 = 所有者は読み書き可、他は読み取りのみ
func (s *FileStore) Save(_ context.Context, rows []CountRow) error {
	data, err := encodeTable(rows)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create table directory: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write table %s: %w", s.path, err)
	}
	return nil
}

// Location は保存先のパスを返す
func (s *FileStore) Location() string {
	return s.path
}
