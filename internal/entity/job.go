package entity

import (
	"fmt"
	"slices"
	"time"

	"github.com/joseph-ayodele/content-engine/constants"
	"github.com/joseph-ayodele/content-engine/internal/common"
)

// Job is one tracked generation request, as seen by pollers.
type Job struct {
	ID              string              `json:"id"`
	Status          constants.JobStatus `json:"status"`
	ProgressPercent int                 `json:"progress_percent"`
	CurrentStage    string              `json:"current_stage"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
	Result          *PipelineResult     `json:"result"`
	Error           *string             `json:"error"`
	Warnings        []string            `json:"warnings"`
}

// Lease is the execution handle of a job. Stores accept updates only from the
// holder of the job's current lease token.
type Lease struct {
	JobID string
	Token string
}

// NewJob returns a pending job stamped with now.
func NewJob(id string, now time.Time) *Job {
	return &Job{
		ID:           id,
		Status:       constants.JobStatusPending,
		CurrentStage: constants.StageLabelSubmitted,
		CreatedAt:    now,
		UpdatedAt:    now,
		Warnings:     []string{},
	}
}

// Transition moves the job to next. Only forward moves out of a non-terminal
// status are accepted; terminal statuses must go through Complete or Fail.
func (j *Job) Transition(next constants.JobStatus, now time.Time) error {
	if next.IsTerminal() {
		return fmt.Errorf("%w: use Complete or Fail to reach %s", common.ErrInvalidTransition, next)
	}
	if !j.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", common.ErrInvalidTransition, j.Status, next)
	}
	j.Status = next
	j.UpdatedAt = now
	return nil
}

// SetProgress records progress. The percent never decreases, and a report with
// a lower percent than already recorded leaves the stage label alone too.
func (j *Job) SetProgress(percent int, stage string, now time.Time) error {
	if j.Status.IsTerminal() {
		return fmt.Errorf("%w: progress after %s", common.ErrInvalidTransition, j.Status)
	}
	percent = min(max(percent, 0), constants.ProgressDone)
	if percent < j.ProgressPercent {
		return nil
	}
	j.ProgressPercent = percent
	if stage != "" {
		j.CurrentStage = stage
	}
	j.UpdatedAt = now
	return nil
}

// AppendWarnings adds warnings in order.
func (j *Job) AppendWarnings(ws ...string) {
	j.Warnings = append(j.Warnings, ws...)
}

// Complete attaches the result and moves the job to completed.
func (j *Job) Complete(result *PipelineResult, now time.Time) error {
	if result == nil {
		return fmt.Errorf("%w: completed job needs a result", common.ErrInvalidTransition)
	}
	if !j.Status.CanTransition(constants.JobStatusCompleted) {
		return fmt.Errorf("%w: %s -> %s", common.ErrInvalidTransition, j.Status, constants.JobStatusCompleted)
	}
	j.Status = constants.JobStatusCompleted
	j.Result = result.Clone()
	j.Error = nil
	j.ProgressPercent = constants.ProgressDone
	j.CurrentStage = constants.StageLabelCompleted
	j.UpdatedAt = now
	return nil
}

// Fail records msg and moves the job to failed. Any partial result is dropped.
func (j *Job) Fail(msg string, now time.Time) error {
	if !j.Status.CanTransition(constants.JobStatusFailed) {
		return fmt.Errorf("%w: %s -> %s", common.ErrInvalidTransition, j.Status, constants.JobStatusFailed)
	}
	if msg == "" {
		msg = "unknown failure"
	}
	j.Status = constants.JobStatusFailed
	j.Error = &msg
	j.Result = nil
	j.CurrentStage = constants.StageLabelFailed
	j.UpdatedAt = now
	return nil
}

// Clone returns a deep copy safe to hand to readers.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	out.Warnings = slices.Clone(j.Warnings)
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	out.Result = j.Result.Clone()
	if j.Error != nil {
		e := *j.Error
		out.Error = &e
	}
	return &out
}

// SubmitResponse is returned to callers of submit.
type SubmitResponse struct {
	JobID                      string              `json:"job_id"`
	Status                     constants.JobStatus `json:"status"`
	EstimatedCompletionSeconds int                 `json:"estimated_completion_seconds"`
}
