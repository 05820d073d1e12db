package domain

type PlanStatus string

const (
	PlanNotStarted PlanStatus = "not_started"
	PlanInProgress PlanStatus = "in_progress"
	PlanCompleted  PlanStatus = "completed"
	PlanPaused     PlanStatus = "paused"
	PlanFailed     PlanStatus = "failed"
)

func (s PlanStatus) Valid() bool {
	switch s {
	case PlanNotStarted, PlanInProgress, PlanCompleted, PlanPaused, PlanFailed:
		return true
	}
	return false
}

// ParsePlanStatus validates a raw status value at the boundary.
func ParsePlanStatus(raw string) (PlanStatus, bool) {
	s := PlanStatus(raw)
	return s, s.Valid()
}

type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
	StepSkipped    StepStatus = "skipped"
)

func (s StepStatus) Valid() bool {
	switch s {
	case StepPending, StepInProgress, StepCompleted, StepFailed, StepSkipped:
		return true
	}
	return false
}

// ParseStepStatus validates a raw status value at the boundary.
func ParseStepStatus(raw string) (StepStatus, bool) {
	s := StepStatus(raw)
	return s, s.Valid()
}
