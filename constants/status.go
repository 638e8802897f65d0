package constants

// JobStatus is the aggregate status for rows in jobs. It is derived by the
// rollup except at creation (QUEUED) and explicit cancellation.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// UploadStatus tracks the upload sub-state-machine of a job file.
type UploadStatus string

const (
	UploadPending   UploadStatus = "pending"
	UploadUploading UploadStatus = "uploading"
	UploadCompleted UploadStatus = "completed"
	UploadFailed    UploadStatus = "failed"
)

// StageStatus is shared by the extraction and processing pipelines of a file.
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageProcessing StageStatus = "processing"
	StageCompleted  StageStatus = "completed"
	StageFailed     StageStatus = "failed"
)

// Terminal reports whether a stage reached completed or failed. No further
// transition is expected without an explicit re-attempt.
func (s StageStatus) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// Valid reports whether s is one of the four known stage values.
func (s StageStatus) Valid() bool {
	switch s {
	case StagePending, StageProcessing, StageCompleted, StageFailed:
		return true
	}
	return false
}

// Valid reports whether s is one of the four known upload values.
func (s UploadStatus) Valid() bool {
	switch s {
	case UploadPending, UploadUploading, UploadCompleted, UploadFailed:
		return true
	}
	return false
}
