package constants

// JobStatus is the lifecycle status of a generation job.
type JobStatus string

// Stable values (stored as-is by the job stores).
const (
	JobStatusPending    JobStatus = "pending"    // created, not yet handed to a worker
	JobStatusQueued     JobStatus = "queued"     // waiting for a worker slot
	JobStatusProcessing JobStatus = "processing" // pipeline running
	JobStatusCompleted  JobStatus = "completed"  // terminal, result set
	JobStatusFailed     JobStatus = "failed"     // terminal, error set
)

// Rank orders statuses along the lifecycle. Both terminal statuses share the top rank.
func (s JobStatus) Rank() int {
	switch s {
	case JobStatusPending:
		return 0
	case JobStatusQueued:
		return 1
	case JobStatusProcessing:
		return 2
	case JobStatusCompleted, JobStatusFailed:
		return 3
	default:
		return -1
	}
}

func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

func (s JobStatus) Valid() bool {
	return s.Rank() >= 0
}

// CanTransition reports whether a job may move from s to next.
// Transitions only move forward one or more ranks and never leave a terminal status.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if !next.Valid() || s.IsTerminal() {
		return false
	}
	return next.Rank() > s.Rank()
}
