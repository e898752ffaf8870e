package learning

import (
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"
)

// TableStore is the durable home of a Q-table. A missing key loads as an
// empty map with a nil error.
type TableStore interface {
	LoadTable(key string) (map[Key]float64, error)
	SaveTable(key string, values map[Key]float64) error
}

// Load reads the table stored under key, or returns an empty table on a cold start.
func Load(store TableStore, key string) (*QTable, error) {
	values, err := store.LoadTable(key)
	if err != nil {
		return nil, fmt.Errorf("load q-table %q: %w", key, err)
	}
	if len(values) == 0 {
		slog.Info("no stored model, starting empty", "key", key)
		return NewQTable(), nil
	}
	slog.Info("model loaded", "key", key, "entries", humanize.Comma(int64(len(values))))
	return FromMap(values), nil
}

// Save writes every materialized entry of t under key.
func Save(store TableStore, key string, t *QTable) error {
	snap := t.Snapshot()
	if err := store.SaveTable(key, snap); err != nil {
		return fmt.Errorf("save q-table %q: %w", key, err)
	}
	slog.Info("model saved", "key", key, "entries", humanize.Comma(int64(len(snap))))
	return nil
}
