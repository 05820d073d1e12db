package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Plan is the aggregate root: it owns its steps and is the only place step
// ordering, status derivation and next-step selection happen. All mutation
// is in-place; callers hold an exclusive instance per load-mutate-save
// cycle.
type Plan struct {
	ID          uuid.UUID  `json:"plan_id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      PlanStatus `json:"status"`
	UserID      string     `json:"user_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	Steps       []*Step    `json:"steps"`
}

// StepParams carries the caller-supplied fields for a new step. Order 0
// means "append at the end". DependsOn ids are stored as given; they are
// not checked against existing steps.
type StepParams struct {
	Description string
	Order       int
	DependsOn   []uuid.UUID
	Notes       string
}

// CreatePlanParams carries everything needed to build a new plan with its
// initial steps.
type CreatePlanParams struct {
	Name        string
	Description string
	UserID      string
	Steps       []StepParams
}

// PlanFilter narrows plan listings. Zero values mean no constraint.
type PlanFilter struct {
	UserID        string
	Status        PlanStatus
	NameSubstring string
}

func NewPlan(name, description, userID string) *Plan {
	now := time.Now().UTC()
	return &Plan{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		Status:      PlanNotStarted,
		UserID:      userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// AddStep inserts a step at the requested order and shifts later steps up
// by one, keeping the order set contiguous at 1..N. With Order 0 the step
// is appended. Returns the new step's id.
func (p *Plan) AddStep(params StepParams) uuid.UUID {
	order := params.Order
	if order == 0 {
		order = len(p.Steps) + 1
	}

	now := time.Now().UTC()
	step := &Step{
		ID:          uuid.New(),
		Order:       order,
		Description: params.Description,
		Status:      StepPending,
		DependsOn:   append([]uuid.UUID(nil), params.DependsOn...),
		Notes:       params.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Insert before the first step with a strictly greater order so the
	// relative order of existing steps is preserved.
	inserted := false
	for i, existing := range p.Steps {
		if existing.Order > order {
			p.Steps = append(p.Steps[:i], append([]*Step{step}, p.Steps[i:]...)...)
			inserted = true
			break
		}
	}
	if !inserted {
		p.Steps = append(p.Steps, step)
	}

	// Shift every other step at or past the requested order.
	for _, other := range p.Steps {
		if other.ID != step.ID && other.Order >= order {
			other.Order++
		}
	}

	p.UpdatedAt = now
	p.refreshStatus()
	return step.ID
}

// Step looks up a step by id without mutating anything.
func (p *Plan) Step(id uuid.UUID) (*Step, bool) {
	for _, step := range p.Steps {
		if step.ID == id {
			return step, true
		}
	}
	return nil, false
}

// UpdateStep applies a status and/or notes change to one step. A nil field
// is left untouched. Reports false when the step does not exist, in which
// case nothing is mutated.
func (p *Plan) UpdateStep(id uuid.UUID, status *StepStatus, notes *string) bool {
	step, ok := p.Step(id)
	if !ok {
		return false
	}

	now := time.Now().UTC()
	if status != nil {
		step.setStatus(*status, now)
		if notes != nil {
			step.Notes = *notes
		}
	} else if notes != nil {
		step.Notes = *notes
		step.UpdatedAt = now
	}

	p.UpdatedAt = now
	p.refreshStatus()
	return true
}

// DeleteStep removes a step and renumbers the remainder 1..N in their
// current order. The renumber is total, so gaps from any earlier
// corruption are closed as well.
func (p *Plan) DeleteStep(id uuid.UUID) bool {
	if _, ok := p.Step(id); !ok {
		return false
	}

	kept := p.Steps[:0]
	for _, step := range p.Steps {
		if step.ID != id {
			kept = append(kept, step)
		}
	}
	p.Steps = kept

	sort.SliceStable(p.Steps, func(i, j int) bool {
		return p.Steps[i].Order < p.Steps[j].Order
	})
	for i, step := range p.Steps {
		step.Order = i + 1
	}

	p.UpdatedAt = time.Now().UTC()
	p.refreshStatus()
	return true
}

// ResetSteps puts every step back to pending and clears completion marks.
// Order, descriptions, dependencies and notes are untouched.
func (p *Plan) ResetSteps() {
	now := time.Now().UTC()
	for _, step := range p.Steps {
		step.Status = StepPending
		step.CompletedAt = nil
		step.UpdatedAt = now
	}
	p.Status = PlanNotStarted
	p.UpdatedAt = now
}

// NextStep returns the first pending step, in ascending order, whose
// dependencies are all met. Selection is recomputed from scratch on every
// call.
func (p *Plan) NextStep() (*Step, bool) {
	ordered := append([]*Step(nil), p.Steps...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Order < ordered[j].Order
	})

	for _, step := range ordered {
		if step.Status == StepPending && p.dependenciesMet(step) {
			return step, true
		}
	}
	return nil, false
}

// dependenciesMet reports whether every dependency resolves to an existing
// step whose status is completed. A dangling dependency id never resolves,
// so it keeps the step ineligible.
func (p *Plan) dependenciesMet(step *Step) bool {
	for _, depID := range step.DependsOn {
		dep, ok := p.Step(depID)
		if !ok || dep.Status != StepCompleted {
			return false
		}
	}
	return true
}

// refreshStatus derives the plan status from the step statuses alone.
// Precedence: empty, all-completed, any-failed, any started, otherwise
// not started. A lone completed step among pending ones counts as
// in_progress.
func (p *Plan) refreshStatus() {
	if len(p.Steps) == 0 {
		p.Status = PlanNotStarted
		return
	}

	allCompleted := true
	anyFailed := false
	anyStarted := false
	for _, step := range p.Steps {
		if step.Status != StepCompleted {
			allCompleted = false
		}
		if step.Status == StepFailed {
			anyFailed = true
		}
		if step.Status == StepInProgress || step.Status == StepCompleted {
			anyStarted = true
		}
	}

	switch {
	case allCompleted:
		p.Status = PlanCompleted
	case anyFailed:
		p.Status = PlanFailed
	case anyStarted:
		p.Status = PlanInProgress
	default:
		p.Status = PlanNotStarted
	}
}

// ApplyMetadata overwrites plan metadata fields. Nil fields are left as
// they are. This is the one path that sets Status independently of the
// steps.
func (p *Plan) ApplyMetadata(name, description *string, status *PlanStatus) {
	if name != nil {
		p.Name = *name
	}
	if description != nil {
		p.Description = *description
	}
	if status != nil {
		p.Status = *status
	}
	p.UpdatedAt = time.Now().UTC()
}

// Regenerate replaces the whole step list, rebuilding it through AddStep,
// and forces the plan back to not_started: a freshly regenerated plan has
// not been worked yet, whatever the derivation rule would say.
func (p *Plan) Regenerate(description *string, steps []StepParams) {
	if description != nil {
		p.Description = *description
	}
	p.Steps = nil

	for i, params := range steps {
		if params.Order == 0 {
			params.Order = i + 1
		}
		p.AddStep(params)
	}

	p.Status = PlanNotStarted
	p.UpdatedAt = time.Now().UTC()
}
