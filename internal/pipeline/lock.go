// =============================================================================
// lock.go - 実行ロック
// =============================================================================
//
// 履歴テーブルはロックなしで全体を上書きするため、
// 同時に2つのジョブが動くと片方の更新が失われる。
// flockでロックファイルを取り、2つ目の実行は即座にエラーで終了させる。
//
// =============================================================================
package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrRunInProgress は別のジョブがロックを保持している場合のエラー
var ErrRunInProgress = errors.New("another guardian-trend run is already in progress")

// RunLock はロックファイルによる排他制御
type RunLock struct {
	path string
	lock *flock.Flock
}

// NewRunLock は path をロックファイルとするRunLockを作成する
func NewRunLock(path string) *RunLock {
	return &RunLock{path: path, lock: flock.New(path)}
}

// Acquire はロックの取得を試みる（待機しない）
func (l *RunLock) Acquire() error {
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create lock directory: %w", err)
		}
	}

	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock %s: %w", l.path, err)
	}
	if !ok {
		return ErrRunInProgress
	}
	debugf("acquired lock %s", l.path)
	return nil
}

// Release はロックを解放する
func (l *RunLock) Release() {
	if err := l.lock.Unlock(); err != nil {
		warnf("failed to release lock %s: %v", l.path, err)
	}
}
