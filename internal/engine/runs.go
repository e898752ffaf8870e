package engine

import (
	"fmt"
	"time"
)

// RunRecord summarizes one completed run.
type RunRecord struct {
	CampaignID string        `json:"campaign_id"`
	Run        int           `json:"run"`
	MaxRuns    int           `json:"max_runs"`
	Elapsed    float64       `json:"elapsed_s"` // simulated seconds
	Wall       time.Duration `json:"wall_ns"`
	Agents     int           `json:"agents"`
	Found      int           `json:"found"`
	TimedOut   bool          `json:"timed_out"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Line is the results-log form of the record.
func (r RunRecord) Line() string {
	return fmt.Sprintf("Simulation %d of %d completed in %.2f seconds.", r.Run, r.MaxRuns, r.Elapsed)
}

// RunRecorder persists completed runs.
type RunRecorder interface {
	RecordRun(RunRecord) error
}
