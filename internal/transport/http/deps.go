// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"context"

	"github.com/google/uuid"
	"github.com/planagent/planning-service/internal/domain"
)

// Planner covers plan construction: creation and wholesale regeneration.
type Planner interface {
	CreatePlan(ctx context.Context, params domain.CreatePlanParams) (*domain.Plan, error)
	RegeneratePlan(ctx context.Context, id uuid.UUID, description *string, steps []domain.StepParams) (*domain.Plan, error)
}

// Executor covers the read and step-progression surface used while a plan
// is being worked.
type Executor interface {
	GetPlan(ctx context.Context, id uuid.UUID) (*domain.Plan, error)
	ListPlans(ctx context.Context, filter domain.PlanFilter) ([]*domain.Plan, error)
	UpdateStep(ctx context.Context, planID, stepID uuid.UUID, status *domain.StepStatus, notes *string) (*domain.Step, error)
	SkipStep(ctx context.Context, planID, stepID uuid.UUID) (*domain.Step, error)
	NextStep(ctx context.Context, planID uuid.UUID) (*domain.Step, error)
	Progress(ctx context.Context, planID uuid.UUID) (domain.Progress, error)
	Summary(ctx context.Context, planID uuid.UUID) (domain.Summary, error)
}

// Manager covers plan and step management: metadata, structure, lifecycle.
type Manager interface {
	UpdatePlanMetadata(ctx context.Context, id uuid.UUID, name, description *string, status *domain.PlanStatus) (*domain.Plan, error)
	DeletePlan(ctx context.Context, id uuid.UUID) error
	AddStep(ctx context.Context, planID uuid.UUID, params domain.StepParams) (*domain.Step, error)
	DeleteStep(ctx context.Context, planID, stepID uuid.UUID) error
	ResetSteps(ctx context.Context, id uuid.UUID) (*domain.Plan, error)
}

type HealthChecker interface {
	Check(ctx context.Context) error
}
