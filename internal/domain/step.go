package domain

import (
	"time"

	"github.com/google/uuid"
)

// Step is a single unit of work inside a plan. Steps exist only as part of
// a Plan and are mutated through it.
type Step struct {
	ID          uuid.UUID   `json:"step_id"`
	Order       int         `json:"order"`
	Description string      `json:"description"`
	Status      StepStatus  `json:"status"`
	DependsOn   []uuid.UUID `json:"depends_on"`
	Notes       string      `json:"notes"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	CompletedAt *time.Time  `json:"completed_at"`
}

// setStatus applies a status change and keeps the timestamps consistent.
// CompletedAt is only ever written when the step reaches completed.
func (s *Step) setStatus(status StepStatus, now time.Time) {
	s.Status = status
	s.UpdatedAt = now
	if status == StepCompleted {
		completed := now
		s.CompletedAt = &completed
	}
}
