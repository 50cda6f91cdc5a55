package pipeline

import (
	"errors"
	"path/filepath"
	"testing"

	"gotest.tools/assert"
)

func TestRunLockIsExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "articles.csv.lock")

	first := NewRunLock(path)
	assert.NilError(t, first.Acquire())

	second := NewRunLock(path)
	err := second.Acquire()
	assert.Assert(t, errors.Is(err, ErrRunInProgress))

	first.Release()
	assert.NilError(t, second.Acquire())
	second.Release()
}
