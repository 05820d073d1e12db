package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/planagent/planning-service/internal/domain"
	"github.com/planagent/planning-service/internal/metrics"
)

// PlanRepository stores each plan as one JSONB document, with a few
// columns extracted for filtering and list ordering. Saves overwrite
// whatever revision is stored under the plan id; there is no version
// check, so concurrent writers are last-writer-wins.
type PlanRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewPlanRepository(pool *pgxpool.Pool, logger *slog.Logger) *PlanRepository {
	return &PlanRepository{
		pool:   pool,
		logger: logger,
	}
}

func (r *PlanRepository) Load(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	started := time.Now()

	var doc []byte
	err := r.pool.QueryRow(ctx,
		`SELECT doc FROM plans WHERE id=$1`,
		id,
	).Scan(&doc)
	if err != nil {
		return nil, err
	}

	plan, err := decodePlan(doc)
	if err != nil {
		r.logger.Error("decode plan document failed", "plan_id", id, "error", err)
		return nil, err
	}

	metrics.ObservePlanLoadDuration(time.Since(started))
	return plan, nil
}

func (r *PlanRepository) Save(ctx context.Context, plan *domain.Plan) error {
	started := time.Now()

	doc, err := json.Marshal(plan)
	if err != nil {
		r.logger.Error("encode plan document failed", "plan_id", plan.ID, "error", err)
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO plans (id, user_id, name, status, created_at, updated_at, doc)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at,
			doc = EXCLUDED.doc
	`,
		plan.ID,
		plan.UserID,
		plan.Name,
		string(plan.Status),
		plan.CreatedAt,
		plan.UpdatedAt,
		doc,
	)
	if err != nil {
		r.logger.Error("save plan failed", "plan_id", plan.ID, "error", err)
		return err
	}

	metrics.ObservePlanSaveDuration(time.Since(started))
	metrics.IncPlanStatus(string(plan.Status))
	return nil
}

func (r *PlanRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM plans WHERE id=$1`, id)
	if err != nil {
		r.logger.Error("delete plan failed", "plan_id", id, "error", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	r.logger.Info("plan deleted", "plan_id", id)
	return nil
}

func (r *PlanRepository) List(ctx context.Context, filter domain.PlanFilter) ([]*domain.Plan, error) {
	query, args := buildListQuery(filter)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("list plans failed", "error", err)
		return nil, err
	}
	defer rows.Close()

	plans := make([]*domain.Plan, 0, 16)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}

		plan, err := decodePlan(doc)
		if err != nil {
			r.logger.Error("decode plan document failed", "error", err)
			return nil, err
		}
		plans = append(plans, plan)
	}

	return plans, rows.Err()
}

// buildListQuery composes the filtered list statement. Newest plans first.
func buildListQuery(filter domain.PlanFilter) (string, []any) {
	query := `SELECT doc FROM plans`
	args := make([]any, 0, 3)
	where := ""

	appendClause := func(clause string, arg any) {
		args = append(args, arg)
		if where == "" {
			where = " WHERE "
		} else {
			where += " AND "
		}
		where += fmt.Sprintf(clause, len(args))
	}

	if filter.UserID != "" {
		appendClause("user_id = $%d", filter.UserID)
	}
	if filter.Status != "" {
		appendClause("status = $%d", string(filter.Status))
	}
	if filter.NameSubstring != "" {
		appendClause("name ILIKE '%%' || $%d || '%%'", filter.NameSubstring)
	}

	return query + where + ` ORDER BY created_at DESC`, args
}

// decodePlan turns a stored document back into the aggregate. A document
// that no longer parses is corrupt state and is surfaced as such instead
// of being skipped.
func decodePlan(doc []byte) (*domain.Plan, error) {
	var plan domain.Plan
	if err := json.Unmarshal(doc, &plan); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptPlan, err)
	}
	return &plan, nil
}
