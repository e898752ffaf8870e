package persistence

import (
	"fmt"
	"path/filepath"

	"github.com/talgya/forager/internal/engine"
	"github.com/talgya/forager/internal/knowledge"
	"github.com/talgya/forager/internal/learning"
)

// Store is everything the simulation persists.
type Store interface {
	learning.TableStore
	knowledge.PointStore
	engine.RunRecorder
	Close() error
}

var (
	_ Store = (*FileStore)(nil)
	_ Store = (*DB)(nil)
)

// Backend names accepted by OpenStore.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// OpenStore opens the named backend rooted at dir. dbFile is relative to dir.
func OpenStore(backend, dir, dbFile string) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(dir)
	case BackendSQLite:
		if _, err := NewFileStore(dir); err != nil {
			return nil, err
		}
		return Open(filepath.Join(dir, dbFile))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
