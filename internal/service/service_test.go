// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/planagent/planning-service/internal/domain"
)

// memStore keeps plans as serialized documents, like the real gateway, so
// tests exercise the same copy-on-load behavior.
type memStore struct {
	mu        sync.Mutex
	docs      map[uuid.UUID][]byte
	saveCalls int
	saveErr   error
	loadErr   error
}

func newMemStore() *memStore {
	return &memStore{docs: make(map[uuid.UUID][]byte)}
}

func (m *memStore) Load(_ context.Context, id uuid.UUID) (*domain.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	doc, ok := m.docs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	var plan domain.Plan
	if err := json.Unmarshal(doc, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (m *memStore) Save(_ context.Context, plan *domain.Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	doc, err := json.Marshal(plan)
	if err != nil {
		return err
	}
	m.docs[plan.ID] = doc
	return nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.docs[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.docs, id)
	return nil
}

func (m *memStore) List(_ context.Context, filter domain.PlanFilter) ([]*domain.Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	plans := make([]*domain.Plan, 0, len(m.docs))
	for _, doc := range m.docs {
		var plan domain.Plan
		if err := json.Unmarshal(doc, &plan); err != nil {
			return nil, err
		}
		if filter.UserID != "" && plan.UserID != filter.UserID {
			continue
		}
		plans = append(plans, &plan)
	}
	return plans, nil
}

func newTestService(store PlanStore) *Service {
	return New(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCreatePlanPersistsSteps(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	plan, err := svc.CreatePlan(context.Background(), domain.CreatePlanParams{
		Name:        "release",
		Description: "ship it",
		UserID:      "user-1",
		Steps: []domain.StepParams{
			{Description: "build"},
			{Description: "test"},
			{Description: "deploy", Order: 3},
		},
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	if len(plan.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(plan.Steps))
	}
	if plan.Status != domain.PlanNotStarted {
		t.Fatalf("expected not_started, got %s", plan.Status)
	}

	stored, err := store.Load(context.Background(), plan.ID)
	if err != nil {
		t.Fatalf("load stored plan: %v", err)
	}
	if len(stored.Steps) != 3 || stored.Steps[2].Order != 3 {
		t.Fatalf("unexpected stored plan: %+v", stored)
	}
}

func TestUpdateStepLoadMutateSave(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	plan, err := svc.CreatePlan(context.Background(), domain.CreatePlanParams{
		Name: "p", Description: "d", UserID: "u",
		Steps: []domain.StepParams{{Description: "one"}},
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}

	status := domain.StepCompleted
	step, err := svc.UpdateStep(context.Background(), plan.ID, plan.Steps[0].ID, &status, nil)
	if err != nil {
		t.Fatalf("update step: %v", err)
	}
	if step.Status != domain.StepCompleted {
		t.Fatalf("expected completed, got %s", step.Status)
	}

	stored, _ := store.Load(context.Background(), plan.ID)
	if stored.Status != domain.PlanCompleted {
		t.Fatalf("expected stored plan completed, got %s", stored.Status)
	}
}

func TestUpdateStepUnknownPlan(t *testing.T) {
	svc := newTestService(newMemStore())

	status := domain.StepCompleted
	_, err := svc.UpdateStep(context.Background(), uuid.New(), uuid.New(), &status, nil)
	if !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestUpdateStepUnknownStepDoesNotSave(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	plan, err := svc.CreatePlan(context.Background(), domain.CreatePlanParams{
		Name: "p", Description: "d", UserID: "u",
		Steps: []domain.StepParams{{Description: "one"}},
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	savesAfterCreate := store.saveCalls

	status := domain.StepCompleted
	_, err = svc.UpdateStep(context.Background(), plan.ID, uuid.New(), &status, nil)
	if !errors.Is(err, domain.ErrStepNotFound) {
		t.Fatalf("expected ErrStepNotFound, got %v", err)
	}
	if store.saveCalls != savesAfterCreate {
		t.Fatal("failed step update must not persist")
	}
}

func TestSkipStep(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	plan, err := svc.CreatePlan(context.Background(), domain.CreatePlanParams{
		Name: "p", Description: "d", UserID: "u",
		Steps: []domain.StepParams{{Description: "one"}},
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}

	step, err := svc.SkipStep(context.Background(), plan.ID, plan.Steps[0].ID)
	if err != nil {
		t.Fatalf("skip step: %v", err)
	}
	if step.Status != domain.StepSkipped {
		t.Fatalf("expected skipped, got %s", step.Status)
	}
}

func TestAddAndDeleteStep(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	plan, err := svc.CreatePlan(context.Background(), domain.CreatePlanParams{
		Name: "p", Description: "d", UserID: "u",
		Steps: []domain.StepParams{{Description: "one"}, {Description: "two"}},
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}

	added, err := svc.AddStep(context.Background(), plan.ID, domain.StepParams{Description: "between", Order: 2})
	if err != nil {
		t.Fatalf("add step: %v", err)
	}
	if added.Order != 2 {
		t.Fatalf("expected order 2, got %d", added.Order)
	}

	if err := svc.DeleteStep(context.Background(), plan.ID, added.ID); err != nil {
		t.Fatalf("delete step: %v", err)
	}
	if err := svc.DeleteStep(context.Background(), plan.ID, added.ID); !errors.Is(err, domain.ErrStepNotFound) {
		t.Fatalf("expected ErrStepNotFound, got %v", err)
	}

	stored, _ := store.Load(context.Background(), plan.ID)
	if len(stored.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(stored.Steps))
	}
	for i, step := range stored.Steps {
		if step.Order != i+1 {
			t.Fatalf("expected contiguous orders, got %d at %d", step.Order, i)
		}
	}
}

func TestNextStepUnknownPlanYieldsAbsent(t *testing.T) {
	svc := newTestService(newMemStore())

	step, err := svc.NextStep(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("expected no error for unknown plan, got %v", err)
	}
	if step != nil {
		t.Fatal("expected absent step")
	}
}

func TestNextStepPropagatesStoreFailure(t *testing.T) {
	store := newMemStore()
	store.loadErr = errors.New("connection refused")
	svc := newTestService(store)

	if _, err := svc.NextStep(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected store failure to propagate")
	}
}

func TestRegeneratePlanResetsStatus(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	plan, err := svc.CreatePlan(context.Background(), domain.CreatePlanParams{
		Name: "p", Description: "d", UserID: "u",
		Steps: []domain.StepParams{{Description: "one"}},
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	status := domain.StepCompleted
	if _, err := svc.UpdateStep(context.Background(), plan.ID, plan.Steps[0].ID, &status, nil); err != nil {
		t.Fatalf("update step: %v", err)
	}

	description := "take two"
	regenerated, err := svc.RegeneratePlan(context.Background(), plan.ID, &description, []domain.StepParams{
		{Description: "fresh one"},
		{Description: "fresh two"},
	})
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if regenerated.Status != domain.PlanNotStarted {
		t.Fatalf("expected not_started, got %s", regenerated.Status)
	}
	if regenerated.Description != "take two" {
		t.Fatalf("unexpected description %q", regenerated.Description)
	}
	if len(regenerated.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(regenerated.Steps))
	}
}

func TestResetStepsRoundTrip(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	plan, err := svc.CreatePlan(context.Background(), domain.CreatePlanParams{
		Name: "p", Description: "d", UserID: "u",
		Steps: []domain.StepParams{{Description: "one"}, {Description: "two"}},
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	status := domain.StepFailed
	if _, err := svc.UpdateStep(context.Background(), plan.ID, plan.Steps[0].ID, &status, nil); err != nil {
		t.Fatalf("update step: %v", err)
	}

	reset, err := svc.ResetSteps(context.Background(), plan.ID)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if reset.Status != domain.PlanNotStarted {
		t.Fatalf("expected not_started, got %s", reset.Status)
	}
	for _, step := range reset.Steps {
		if step.Status != domain.StepPending {
			t.Fatalf("expected pending, got %s", step.Status)
		}
	}
}

func TestDeletePlanUnknown(t *testing.T) {
	svc := newTestService(newMemStore())
	if err := svc.DeletePlan(context.Background(), uuid.New()); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestUpdatePlanMetadata(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	plan, err := svc.CreatePlan(context.Background(), domain.CreatePlanParams{
		Name: "p", Description: "d", UserID: "u",
		Steps: []domain.StepParams{{Description: "one"}},
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}

	name := "renamed"
	status := domain.PlanPaused
	updated, err := svc.UpdatePlanMetadata(context.Background(), plan.ID, &name, nil, &status)
	if err != nil {
		t.Fatalf("update metadata: %v", err)
	}
	if updated.Name != "renamed" || updated.Status != domain.PlanPaused {
		t.Fatalf("unexpected plan: name=%q status=%s", updated.Name, updated.Status)
	}
}

func TestConcurrentStepUpdatesDoNotInterleave(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	steps := make([]domain.StepParams, 8)
	for i := range steps {
		steps[i] = domain.StepParams{Description: "step"}
	}
	plan, err := svc.CreatePlan(context.Background(), domain.CreatePlanParams{
		Name: "p", Description: "d", UserID: "u", Steps: steps,
	})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}

	var wg sync.WaitGroup
	for _, step := range plan.Steps {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			status := domain.StepCompleted
			if _, err := svc.UpdateStep(context.Background(), plan.ID, id, &status, nil); err != nil {
				t.Errorf("update step: %v", err)
			}
		}(step.ID)
	}
	wg.Wait()

	stored, err := store.Load(context.Background(), plan.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// With each cycle serialized behind the plan lock, no update is lost.
	for _, step := range stored.Steps {
		if step.Status != domain.StepCompleted {
			t.Fatalf("lost update: step %s is %s", step.ID, step.Status)
		}
	}
	if stored.Status != domain.PlanCompleted {
		t.Fatalf("expected completed, got %s", stored.Status)
	}
}

func TestPlanLocksRelease(t *testing.T) {
	locks := newPlanLocks()
	id := uuid.New()

	unlock := locks.Lock(id)
	unlock()

	locks.mu.Lock()
	remaining := len(locks.plans)
	locks.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected lock map drained, got %d entries", remaining)
	}
}
