// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/planagent/planning-service/internal/domain"
	"github.com/planagent/planning-service/internal/metrics"
)

// PlanStore is the persistence gateway the service drives. Absence of a
// plan travels as pgx.ErrNoRows from the Postgres implementation; the
// service passes it through untouched so transport can map it to 404.
type PlanStore interface {
	Load(ctx context.Context, id uuid.UUID) (*domain.Plan, error)
	Save(ctx context.Context, plan *domain.Plan) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter domain.PlanFilter) ([]*domain.Plan, error)
}

// Service implements every plan operation as a load → mutate-in-memory →
// save cycle. Each mutating cycle holds the per-plan lock for its whole
// duration; the save itself overwrites whatever is stored (last writer
// wins across processes).
type Service struct {
	store  PlanStore
	locks  *planLocks
	logger *slog.Logger
}

func New(store PlanStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		locks:  newPlanLocks(),
		logger: logger,
	}
}

// CreatePlan builds a new aggregate from user-provided steps and persists
// it. Step order defaults to the step's position in the request.
func (s *Service) CreatePlan(ctx context.Context, params domain.CreatePlanParams) (*domain.Plan, error) {
	plan := domain.NewPlan(params.Name, params.Description, params.UserID)
	addSteps(plan, params.Steps)

	if err := s.store.Save(ctx, plan); err != nil {
		s.logger.Error("create plan failed", "error", err)
		return nil, err
	}

	s.logger.Info("plan created", "plan_id", plan.ID, "steps", len(plan.Steps))
	return plan, nil
}

// RegeneratePlan replaces a plan's steps wholesale and resets it to
// not_started.
func (s *Service) RegeneratePlan(ctx context.Context, id uuid.UUID, description *string, steps []domain.StepParams) (*domain.Plan, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	plan, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	plan.Regenerate(description, steps)

	if err := s.store.Save(ctx, plan); err != nil {
		s.logger.Error("regenerate plan failed", "plan_id", id, "error", err)
		return nil, err
	}

	s.logger.Info("plan regenerated", "plan_id", id, "steps", len(plan.Steps))
	return plan, nil
}

func (s *Service) GetPlan(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	return s.store.Load(ctx, id)
}

func (s *Service) ListPlans(ctx context.Context, filter domain.PlanFilter) ([]*domain.Plan, error) {
	return s.store.List(ctx, filter)
}

// UpdateStep changes one step's status and/or notes. Returns the updated
// step, or domain.ErrStepNotFound when the plan exists but the step does
// not.
func (s *Service) UpdateStep(ctx context.Context, planID, stepID uuid.UUID, status *domain.StepStatus, notes *string) (*domain.Step, error) {
	unlock := s.locks.Lock(planID)
	defer unlock()

	plan, err := s.store.Load(ctx, planID)
	if err != nil {
		return nil, err
	}

	if !plan.UpdateStep(stepID, status, notes) {
		return nil, domain.ErrStepNotFound
	}

	if err := s.store.Save(ctx, plan); err != nil {
		s.logger.Error("update step failed", "plan_id", planID, "step_id", stepID, "error", err)
		return nil, err
	}

	if status != nil {
		metrics.IncStepStatus(string(*status))
		s.logger.Info("step status updated", "plan_id", planID, "step_id", stepID, "status", *status)
	}

	step, _ := plan.Step(stepID)
	return step, nil
}

// SkipStep marks a step skipped.
func (s *Service) SkipStep(ctx context.Context, planID, stepID uuid.UUID) (*domain.Step, error) {
	skipped := domain.StepSkipped
	return s.UpdateStep(ctx, planID, stepID, &skipped, nil)
}

// AddStep inserts a new step and returns it.
func (s *Service) AddStep(ctx context.Context, planID uuid.UUID, params domain.StepParams) (*domain.Step, error) {
	unlock := s.locks.Lock(planID)
	defer unlock()

	plan, err := s.store.Load(ctx, planID)
	if err != nil {
		return nil, err
	}

	stepID := plan.AddStep(params)

	if err := s.store.Save(ctx, plan); err != nil {
		s.logger.Error("add step failed", "plan_id", planID, "error", err)
		return nil, err
	}

	s.logger.Info("step added", "plan_id", planID, "step_id", stepID)
	step, _ := plan.Step(stepID)
	return step, nil
}

// DeleteStep removes one step; the aggregate renumbers the remainder.
func (s *Service) DeleteStep(ctx context.Context, planID, stepID uuid.UUID) error {
	unlock := s.locks.Lock(planID)
	defer unlock()

	plan, err := s.store.Load(ctx, planID)
	if err != nil {
		return err
	}

	if !plan.DeleteStep(stepID) {
		return domain.ErrStepNotFound
	}

	if err := s.store.Save(ctx, plan); err != nil {
		s.logger.Error("delete step failed", "plan_id", planID, "step_id", stepID, "error", err)
		return err
	}

	s.logger.Info("step deleted", "plan_id", planID, "step_id", stepID)
	return nil
}

// NextStep returns the next eligible pending step, or nil when there is
// none. An unknown plan id also yields nil rather than an error; callers
// learn only that there is nothing to do.
func (s *Service) NextStep(ctx context.Context, planID uuid.UUID) (*domain.Step, error) {
	plan, err := s.store.Load(ctx, planID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	step, ok := plan.NextStep()
	if !ok {
		return nil, nil
	}
	return step, nil
}

func (s *Service) Progress(ctx context.Context, planID uuid.UUID) (domain.Progress, error) {
	plan, err := s.store.Load(ctx, planID)
	if err != nil {
		return domain.Progress{}, err
	}
	return plan.Progress(), nil
}

func (s *Service) Summary(ctx context.Context, planID uuid.UUID) (domain.Summary, error) {
	plan, err := s.store.Load(ctx, planID)
	if err != nil {
		return domain.Summary{}, err
	}
	return plan.Summary(), nil
}

// UpdatePlanMetadata overwrites plan name, description and/or status.
func (s *Service) UpdatePlanMetadata(ctx context.Context, id uuid.UUID, name, description *string, status *domain.PlanStatus) (*domain.Plan, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	plan, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	plan.ApplyMetadata(name, description, status)

	if err := s.store.Save(ctx, plan); err != nil {
		s.logger.Error("update plan metadata failed", "plan_id", id, "error", err)
		return nil, err
	}

	s.logger.Info("plan metadata updated", "plan_id", id)
	return plan, nil
}

func (s *Service) DeletePlan(ctx context.Context, id uuid.UUID) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("plan deleted", "plan_id", id)
	return nil
}

// ResetSteps puts every step back to pending and the plan to not_started.
func (s *Service) ResetSteps(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	plan, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	plan.ResetSteps()

	if err := s.store.Save(ctx, plan); err != nil {
		s.logger.Error("reset steps failed", "plan_id", id, "error", err)
		return nil, err
	}

	s.logger.Info("plan steps reset", "plan_id", id)
	return plan, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// addSteps replays user-provided steps through the aggregate, defaulting
// each order to its position in the list.
func addSteps(plan *domain.Plan, steps []domain.StepParams) {
	for i, params := range steps {
		if params.Order == 0 {
			params.Order = i + 1
		}
		plan.AddStep(params)
	}
}
