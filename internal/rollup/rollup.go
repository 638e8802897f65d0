// Package rollup derives job-level summary counts and the aggregate job
// status from the statuses of the job's files. The computation is pure so
// that any number of stateless workers can recompute it at any time.
package rollup

import (
	"docflow/constants"
	"docflow/internal/entity"
)

// StageCount is one row of the grouped per-job status query.
type StageCount struct {
	Extraction constants.StageStatus
	Processing constants.StageStatus
	Count      int
}

// Summarize tallies counts per stage status and derives the aggregate job
// status:
//
//   - queued     — no files exist yet
//   - processing — any file's processing is non-terminal
//   - failed     — every file terminal and all failed
//   - completed  — every file terminal and at least one completed
func Summarize(counts []StageCount) (*entity.Summary, constants.JobStatus) {
	summary := &entity.Summary{
		Pairs:      make(map[string]int),
		Extraction: make(map[string]int),
		Processing: make(map[string]int),
	}

	var nonTerminal, completed int
	for _, c := range counts {
		summary.Total += c.Count
		summary.Pairs[string(c.Extraction)+"/"+string(c.Processing)] += c.Count
		summary.Extraction[string(c.Extraction)] += c.Count
		summary.Processing[string(c.Processing)] += c.Count
		if !c.Processing.Terminal() {
			nonTerminal += c.Count
		}
		if c.Processing == constants.StageCompleted {
			completed += c.Count
		}
	}

	switch {
	case summary.Total == 0:
		return summary, constants.JobStatusQueued
	case nonTerminal > 0:
		return summary, constants.JobStatusProcessing
	case completed > 0:
		return summary, constants.JobStatusCompleted
	default:
		return summary, constants.JobStatusFailed
	}
}
