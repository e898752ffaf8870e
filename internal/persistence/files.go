package persistence

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/talgya/forager/internal/engine"
	"github.com/talgya/forager/internal/geom"
	"github.com/talgya/forager/internal/learning"
)

// ResultsFile is the name of the appended per-run results log.
const ResultsFile = "SimulationResults.txt"

// FileStore keeps each Q-table as <key>.json and each point list as <key>.txt
// under one directory. Writes replace files atomically.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the store's root directory.
func (fs *FileStore) Dir() string { return fs.dir }

// Close is a no-op for files.
func (fs *FileStore) Close() error { return nil }

type tableEntry struct {
	State  int     `json:"state"`
	Action int     `json:"action"`
	Value  float64 `json:"value"`
}

// rawEntry detects missing fields; a wrong type fails Unmarshal.
type rawEntry struct {
	State  *int     `json:"state"`
	Action *int     `json:"action"`
	Value  *float64 `json:"value"`
}

// LoadTable reads <key>.json. Malformed entries are skipped; duplicate keys
// keep the first value seen. A file that stops parsing part way keeps the
// entries before the damage and is copied to <key>.json.corrupt.
func (fs *FileStore) LoadTable(key string) (map[learning.Key]float64, error) {
	values := make(map[learning.Key]float64)
	data, err := os.ReadFile(fs.tablePath(key))
	if errors.Is(err, os.ErrNotExist) {
		return values, nil
	}
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return values, nil
	}

	entries, err := readEntries(data)
	if err != nil {
		backup := fs.tablePath(key) + ".corrupt"
		slog.Warn("model file damaged, keeping readable entries",
			"path", fs.tablePath(key), "entries", len(entries), "backup", backup, "error", err)
		if err := writeAtomic(backup, data); err != nil {
			slog.Warn("back up damaged model file", "path", backup, "error", err)
		}
	}

	skipped := 0
	for _, raw := range entries {
		var e rawEntry
		if err := json.Unmarshal(raw, &e); err != nil || e.State == nil || e.Action == nil || e.Value == nil {
			skipped++
			continue
		}
		k := learning.Key{State: *e.State, Action: *e.Action}
		if _, dup := values[k]; dup {
			continue
		}
		values[k] = *e.Value
	}
	if skipped > 0 {
		slog.Warn("skipped malformed model entries", "path", fs.tablePath(key), "skipped", skipped)
	}
	return values, nil
}

// readEntries walks the "entries" array of a model file one element at a
// time. On a syntax error it returns the entries read so far with the error.
func readEntries(data []byte) ([]json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	var entries []json.RawMessage
	for dec.More() {
		name, err := dec.Token()
		if err != nil {
			return entries, err
		}
		if name != "entries" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return entries, err
			}
			continue
		}
		tok, err := dec.Token()
		if err != nil {
			return entries, err
		}
		if tok == nil {
			continue
		}
		if tok != json.Delim('[') {
			return entries, fmt.Errorf("entries: want array, got %v", tok)
		}
		for dec.More() {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return entries, err
			}
			entries = append(entries, raw)
		}
		if err := expectDelim(dec, ']'); err != nil {
			return entries, err
		}
	}
	return entries, expectDelim(dec, '}')
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok != want {
		return fmt.Errorf("want %v, got %v", want, tok)
	}
	return nil
}

// SaveTable writes <key>.json with entries ordered by state then action.
func (fs *FileStore) SaveTable(key string, values map[learning.Key]float64) error {
	keys := make([]learning.Key, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].State != keys[j].State {
			return keys[i].State < keys[j].State
		}
		return keys[i].Action < keys[j].Action
	})

	out := struct {
		Entries []tableEntry `json:"entries"`
	}{Entries: make([]tableEntry, 0, len(keys))}
	for _, k := range keys {
		out.Entries = append(out.Entries, tableEntry{State: k.State, Action: k.Action, Value: values[k]})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}
	return writeAtomic(fs.tablePath(key), data)
}

// LoadPoints reads <key>.txt, one "x,y,z" per line. Malformed lines are
// skipped whatever their length.
func (fs *FileStore) LoadPoints(key string) ([]geom.Point3, error) {
	f, err := os.Open(fs.pointsPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return []geom.Point3{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	pts := []geom.Point3{}
	skipped := 0
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			if p, ok := ParsePoint(line); ok {
				pts = append(pts, p)
			} else {
				skipped++
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fs.pointsPath(key), err)
		}
	}
	if skipped > 0 {
		slog.Debug("skipped malformed point lines", "path", fs.pointsPath(key), "skipped", skipped)
	}
	return pts, nil
}

// SavePoints rewrites <key>.txt.
func (fs *FileStore) SavePoints(key string, pts []geom.Point3) error {
	var buf bytes.Buffer
	for _, p := range pts {
		buf.WriteString(FormatPoint(p))
		buf.WriteByte('\n')
	}
	return writeAtomic(fs.pointsPath(key), buf.Bytes())
}

// RecordRun appends the run's summary line to the results log.
func (fs *FileStore) RecordRun(rec engine.RunRecord) error {
	f, err := os.OpenFile(filepath.Join(fs.dir, ResultsFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open results log: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(rec.Line() + "\n"); err != nil {
		return fmt.Errorf("append results log: %w", err)
	}
	return nil
}

func (fs *FileStore) tablePath(key string) string {
	return filepath.Join(fs.dir, key+".json")
}

func (fs *FileStore) pointsPath(key string) string {
	return filepath.Join(fs.dir, key+".txt")
}

// ParsePoint parses "x,y,z".
func ParsePoint(s string) (geom.Point3, bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return geom.Zero, false
	}
	var v [3]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return geom.Zero, false
		}
		v[i] = f
	}
	return geom.Pt(v[0], v[1], v[2]), true
}

// FormatPoint renders p as "x,y,z" with the shortest exact representation.
func FormatPoint(p geom.Point3) string {
	return strconv.FormatFloat(p.X, 'g', -1, 64) + "," +
		strconv.FormatFloat(p.Y, 'g', -1, 64) + "," +
		strconv.FormatFloat(p.Z, 'g', -1, 64)
}

// writeAtomic writes data to a temp file beside path and renames it into
// place, so readers see the old file or the new one and never a partial write.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
