package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Progress is a snapshot of step counts by status. The five buckets always
// sum to Total.
type Progress struct {
	TotalSteps           int     `json:"total_steps"`
	CompletedSteps       int     `json:"completed_steps"`
	InProgressSteps      int     `json:"in_progress_steps"`
	PendingSteps         int     `json:"pending_steps"`
	FailedSteps          int     `json:"failed_steps"`
	SkippedSteps         int     `json:"skipped_steps"`
	CompletionPercentage float64 `json:"completion_percentage"`
}

// Summary is the plan header plus headline step counts, for listings.
type Summary struct {
	PlanID         uuid.UUID  `json:"plan_id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Status         PlanStatus `json:"status"`
	UserID         string     `json:"user_id"`
	TotalSteps     int        `json:"total_steps"`
	CompletedSteps int        `json:"completed_steps"`
	PendingSteps   int        `json:"pending_steps"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Progress counts the steps per status. The percentage is completed over
// total, rounded to two decimals, and 0.0 for an empty plan.
func (p *Plan) Progress() Progress {
	progress := Progress{TotalSteps: len(p.Steps)}
	if progress.TotalSteps == 0 {
		return progress
	}

	for _, step := range p.Steps {
		switch step.Status {
		case StepCompleted:
			progress.CompletedSteps++
		case StepInProgress:
			progress.InProgressSteps++
		case StepPending:
			progress.PendingSteps++
		case StepFailed:
			progress.FailedSteps++
		case StepSkipped:
			progress.SkippedSteps++
		}
	}

	pct := float64(progress.CompletedSteps) / float64(progress.TotalSteps) * 100
	progress.CompletionPercentage = math.Round(pct*100) / 100
	return progress
}

// Summary condenses the plan for list and summary responses.
func (p *Plan) Summary() Summary {
	progress := p.Progress()
	return Summary{
		PlanID:         p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Status:         p.Status,
		UserID:         p.UserID,
		TotalSteps:     progress.TotalSteps,
		CompletedSteps: progress.CompletedSteps,
		PendingSteps:   progress.PendingSteps,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}
