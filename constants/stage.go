package constants

// Stage names a pipeline step. Labels double as Job.current_stage values.
type Stage string

const (
	StageResearch    Stage = "research"
	StageDraft       Stage = "draft"
	StageEnhancement Stage = "enhancement"
	StagePolish      Stage = "polish"
)

// Labels that only appear as Job.current_stage.
const (
	StageLabelSubmitted = "submitted"
	StageLabelQueued    = "queued"
	StageLabelFinishing = "finishing"
	StageLabelCompleted = "completed"
	StageLabelFailed    = "failed"
)

// Stages lists the pipeline steps in execution order.
var Stages = []Stage{StageResearch, StageDraft, StageEnhancement, StagePolish}

// StartPercent is the progress reported when a stage begins.
func (s Stage) StartPercent() int {
	switch s {
	case StageResearch:
		return 5
	case StageDraft:
		return 25
	case StageEnhancement:
		return 55
	case StagePolish:
		return 80
	default:
		return 0
	}
}

const (
	ProgressFinishing = 95
	ProgressDone      = 100
)
