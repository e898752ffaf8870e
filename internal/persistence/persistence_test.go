package persistence

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/forager/internal/engine"
	"github.com/talgya/forager/internal/geom"
	"github.com/talgya/forager/internal/knowledge"
	"github.com/talgya/forager/internal/learning"
)

func openBoth(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	db, err := Open(filepath.Join(t.TempDir(), "forager.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return map[string]Store{BackendFile: fs, BackendSQLite: db}
}

func TestTableRoundTrip(t *testing.T) {
	want := map[learning.Key]float64{
		{State: 0, Action: 1}: 0.5,
		{State: 2, Action: 3}: -1.2,
	}
	for name, store := range openBoth(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.SaveTable("trained_model", want))
			got, err := store.LoadTable("trained_model")
			require.NoError(t, err)
			assert.Equal(t, want, got)

			// A second save replaces rather than merges.
			require.NoError(t, store.SaveTable("trained_model", map[learning.Key]float64{{State: 9, Action: 0}: 1}))
			got, err = store.LoadTable("trained_model")
			require.NoError(t, err)
			assert.Equal(t, map[learning.Key]float64{{State: 9, Action: 0}: 1}, got)
		})
	}
}

func TestColdStartLoadsEmpty(t *testing.T) {
	for name, store := range openBoth(t) {
		t.Run(name, func(t *testing.T) {
			table, err := learning.Load(store, "trained_model")
			require.NoError(t, err)
			assert.Zero(t, table.Len())

			kb, err := knowledge.Open(store, knowledge.FoodKey, knowledge.NoResourceKey)
			require.NoError(t, err)
			assert.Empty(t, kb.FoodLocations())
			assert.Empty(t, kb.NoResourceAreas())
		})
	}
}

func TestPointsRoundTrip(t *testing.T) {
	pts := []geom.Point3{geom.Pt(1.5, 0, -2.25), geom.Pt(-0.1, 0.5, 3), geom.Pt(1.5, 0, -2.25)}
	for name, store := range openBoth(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.SavePoints(knowledge.FoodKey, pts))
			got, err := store.LoadPoints(knowledge.FoodKey)
			require.NoError(t, err)
			assert.Equal(t, pts, got)

			require.NoError(t, store.SavePoints(knowledge.FoodKey, pts[:1]))
			got, err = store.LoadPoints(knowledge.FoodKey)
			require.NoError(t, err)
			assert.Equal(t, pts[:1], got)
		})
	}
}

func TestKnowledgeBaseSurvivesReopen(t *testing.T) {
	for name, store := range openBoth(t) {
		t.Run(name, func(t *testing.T) {
			kb, err := knowledge.Open(store, knowledge.FoodKey, knowledge.NoResourceKey)
			require.NoError(t, err)
			require.NoError(t, kb.AddFoodLocation(geom.Pt(18, 0, 18)))
			require.NoError(t, kb.AddNoResourceArea(geom.Pt(1, 0, 1)))

			again, err := knowledge.Open(store, knowledge.FoodKey, knowledge.NoResourceKey)
			require.NoError(t, err)
			best, ok := again.BestFoodLocation()
			require.True(t, ok)
			assert.Equal(t, geom.Pt(18, 0, 18), best)
			assert.True(t, again.InNoResourceArea(geom.Pt(2, 0, 2), 5))
		})
	}
}

func TestLoadTableSkipsMalformedAndKeepsFirstDuplicate(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	doc := `{"entries": [
		{"state": 0, "action": 1, "value": 0.5},
		{"state": 0, "action": 1, "value": 9.0},
		{"state": "x", "action": 1, "value": 1.0},
		{"state": 1, "value": 1.0},
		[1, 2, 3],
		{"state": 2, "action": 3, "value": -1.2}
	]}`
	require.NoError(t, os.WriteFile(filepath.Join(fs.Dir(), "m.json"), []byte(doc), 0644))

	got, err := fs.LoadTable("m")
	require.NoError(t, err)
	assert.Equal(t, map[learning.Key]float64{
		{State: 0, Action: 1}: 0.5,
		{State: 2, Action: 3}: -1.2,
	}, got)
}

func TestLoadTableUnreadableFileIsEmpty(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(fs.Dir(), "m.json"), []byte("{not json"), 0644))
	got, err := fs.LoadTable("m")
	require.NoError(t, err)
	assert.Empty(t, got)

	backup, err := os.ReadFile(filepath.Join(fs.Dir(), "m.json.corrupt"))
	require.NoError(t, err)
	assert.Equal(t, "{not json", string(backup))
}

func TestLoadTableKeepsEntriesBeforeDamage(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	doc := `{"entries": [
		{"state": 0, "action": 1, "value": 0.5},
		{"state": 1, "action": 0, "value": NaN},
		{"state": 2, "action": 3, "value": -1.2}
	]}`
	require.NoError(t, os.WriteFile(filepath.Join(fs.Dir(), "m.json"), []byte(doc), 0644))

	got, err := fs.LoadTable("m")
	require.NoError(t, err)
	assert.Equal(t, map[learning.Key]float64{{State: 0, Action: 1}: 0.5}, got)

	// The next save replaces the model file; the damaged original survives.
	require.NoError(t, fs.SaveTable("m", got))
	backup, err := os.ReadFile(filepath.Join(fs.Dir(), "m.json.corrupt"))
	require.NoError(t, err)
	assert.Equal(t, doc, string(backup))
}

func TestLoadTableIgnoresOtherFields(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	doc := `{"version": {"major": 1}, "entries": [{"state": 4, "action": 2, "value": 1.5}], "note": "x"}`
	require.NoError(t, os.WriteFile(filepath.Join(fs.Dir(), "m.json"), []byte(doc), 0644))

	got, err := fs.LoadTable("m")
	require.NoError(t, err)
	assert.Equal(t, map[learning.Key]float64{{State: 4, Action: 2}: 1.5}, got)
	assert.NoFileExists(t, filepath.Join(fs.Dir(), "m.json.corrupt"))
}

func TestLoadPointsSkipsMalformedLines(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	lines := "1,2,3\n\nbad\n4,5\n7,x,9\n 0.5 , 0 , -1 \n"
	require.NoError(t, os.WriteFile(filepath.Join(fs.Dir(), "pts.txt"), []byte(lines), 0644))

	got, err := fs.LoadPoints("pts")
	require.NoError(t, err)
	assert.Equal(t, []geom.Point3{geom.Pt(1, 2, 3), geom.Pt(0.5, 0, -1)}, got)
}

func TestLoadPointsSkipsOverlongLines(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	lines := "1,2,3\n" + strings.Repeat("x", 70*1024) + "\n4,5,6"
	require.NoError(t, os.WriteFile(filepath.Join(fs.Dir(), "pts.txt"), []byte(lines), 0644))

	got, err := fs.LoadPoints("pts")
	require.NoError(t, err)
	assert.Equal(t, []geom.Point3{geom.Pt(1, 2, 3), geom.Pt(4, 5, 6)}, got)
}

func TestWritesLeaveNoTempFiles(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, fs.SaveTable("m", map[learning.Key]float64{{State: 1, Action: 1}: 1}))
	require.NoError(t, fs.SavePoints("p", []geom.Point3{geom.Pt(1, 0, 1)}))

	entries, err := os.ReadDir(fs.Dir())
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"m.json", "p.txt"}, names)
}

func TestFormatPointRoundTrip(t *testing.T) {
	p := geom.Pt(0.1, -3, 1e-7)
	got, ok := ParsePoint(FormatPoint(p))
	require.True(t, ok)
	assert.Equal(t, p, got)
}

func TestFileStoreRecordRunAppends(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, fs.RecordRun(engine.RunRecord{Run: 1, MaxRuns: 3, Elapsed: 12.5}))
	require.NoError(t, fs.RecordRun(engine.RunRecord{Run: 2, MaxRuns: 3, Elapsed: 9}))

	data, err := os.ReadFile(filepath.Join(fs.Dir(), ResultsFile))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Simulation 1 of 3 completed in 12.50 seconds.",
		"Simulation 2 of 3 completed in 9.00 seconds.",
	}, strings.Split(strings.TrimSpace(string(data)), "\n"))
}

func TestDBRunHistory(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "forager.db"))
	require.NoError(t, err)
	defer db.Close()

	finished := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		require.NoError(t, db.RecordRun(engine.RunRecord{
			CampaignID: "c1",
			Run:        i,
			MaxRuns:    3,
			Elapsed:    float64(i) * 1.5,
			Wall:       time.Duration(i) * time.Second,
			Agents:     5,
			Found:      5,
			TimedOut:   i == 3,
			FinishedAt: finished,
		}))
	}

	runs, err := db.RecentRuns(2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 3, runs[0].Run)
	assert.True(t, runs[0].TimedOut)
	assert.Equal(t, 4.5, runs[0].Elapsed)
	assert.Equal(t, 3*time.Second, runs[0].Wall)
	assert.True(t, finished.Equal(runs[0].FinishedAt))
	assert.Equal(t, 2, runs[1].Run)
	assert.False(t, runs[1].TimedOut)
}

func TestDBRunHistoryToleratesBadFinishTime(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "forager.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.conn.Exec(`INSERT INTO runs
		(campaign_id, run, max_runs, elapsed_s, wall_ms, agents, found, timed_out, finished_at)
		VALUES ('c1', 1, 1, 2.5, 2500, 5, 5, 0, 'yesterday')`)
	require.NoError(t, err)

	var logs bytes.Buffer
	old := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, nil)))
	defer slog.SetDefault(old)

	runs, err := db.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 1, runs[0].Run)
	assert.Equal(t, 2500*time.Millisecond, runs[0].Wall)
	assert.True(t, runs[0].FinishedAt.IsZero())
	assert.Contains(t, logs.String(), "unreadable finish time")
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	s, err := OpenStore(BackendFile, dir, "forager.db")
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = OpenStore(BackendSQLite, filepath.Join(dir, "nested"), "forager.db")
	require.NoError(t, err)
	assert.IsType(t, &DB{}, s)
	require.NoError(t, s.Close())

	_, err = OpenStore("redis", dir, "")
	assert.Error(t, err)
}
