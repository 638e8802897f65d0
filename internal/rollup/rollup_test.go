package rollup

import (
	"testing"

	"docflow/constants"
)

func TestSummarize(t *testing.T) {
	tests := []struct {
		name   string
		counts []StageCount
		want   constants.JobStatus
		total  int
	}{
		{
			name:  "no files is queued",
			want:  constants.JobStatusQueued,
			total: 0,
		},
		{
			name: "any pending processing keeps the job processing",
			counts: []StageCount{
				{Extraction: constants.StageCompleted, Processing: constants.StageCompleted, Count: 2},
				{Extraction: constants.StageCompleted, Processing: constants.StagePending, Count: 1},
			},
			want:  constants.JobStatusProcessing,
			total: 3,
		},
		{
			name: "in-flight processing keeps the job processing",
			counts: []StageCount{
				{Extraction: constants.StageCompleted, Processing: constants.StageProcessing, Count: 1},
				{Extraction: constants.StageFailed, Processing: constants.StageFailed, Count: 4},
			},
			want:  constants.JobStatusProcessing,
			total: 5,
		},
		{
			name: "one completion carries the job",
			counts: []StageCount{
				{Extraction: constants.StageCompleted, Processing: constants.StageCompleted, Count: 1},
				{Extraction: constants.StageCompleted, Processing: constants.StageFailed, Count: 9},
			},
			want:  constants.JobStatusCompleted,
			total: 10,
		},
		{
			name: "all failed fails the job",
			counts: []StageCount{
				{Extraction: constants.StageFailed, Processing: constants.StageFailed, Count: 3},
			},
			want:  constants.JobStatusFailed,
			total: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, status := Summarize(tt.counts)
			if status != tt.want {
				t.Errorf("status = %q, want %q", status, tt.want)
			}
			if summary.Total != tt.total {
				t.Errorf("total = %d, want %d", summary.Total, tt.total)
			}
		})
	}
}

func TestSummarizeCountsBothStages(t *testing.T) {
	summary, _ := Summarize([]StageCount{
		{Extraction: constants.StageCompleted, Processing: constants.StagePending, Count: 2},
		{Extraction: constants.StageFailed, Processing: constants.StageFailed, Count: 1},
	})

	if summary.Pairs["completed/pending"] != 2 || summary.Pairs["failed/failed"] != 1 {
		t.Errorf("pair counts = %v", summary.Pairs)
	}
	if len(summary.Pairs) != 2 {
		t.Errorf("pair count entries = %d, want 2", len(summary.Pairs))
	}
	if summary.Extraction["completed"] != 2 || summary.Extraction["failed"] != 1 {
		t.Errorf("extraction counts = %v", summary.Extraction)
	}
	if summary.Processing["pending"] != 2 || summary.Processing["failed"] != 1 {
		t.Errorf("processing counts = %v", summary.Processing)
	}
}
