// SPDX-License-Identifier: Apache-2.0

package repository

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/planagent/planning-service/internal/domain"
)

func encodeForTest(t *testing.T, plan *domain.Plan) []byte {
	t.Helper()
	doc, err := json.Marshal(plan)
	if err != nil {
		t.Fatalf("marshal plan: %v", err)
	}
	return doc
}

func TestNewPlanRepository(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var pool *pgxpool.Pool

	repo := NewPlanRepository(pool, logger)
	if repo == nil {
		t.Fatal("expected plan repository instance")
	}
	if repo.pool != pool {
		t.Fatal("expected pool reference to be preserved")
	}
	if repo.logger != logger {
		t.Fatal("expected logger reference to be preserved")
	}
}

func TestBuildListQueryNoFilter(t *testing.T) {
	query, args := buildListQuery(domain.PlanFilter{})

	if query != `SELECT doc FROM plans ORDER BY created_at DESC` {
		t.Fatalf("unexpected query: %s", query)
	}
	if len(args) != 0 {
		t.Fatalf("expected no args, got %d", len(args))
	}
}

func TestBuildListQueryAllFilters(t *testing.T) {
	query, args := buildListQuery(domain.PlanFilter{
		UserID:        "user-1",
		Status:        domain.PlanInProgress,
		NameSubstring: "web",
	})

	if !strings.Contains(query, "user_id = $1") {
		t.Fatalf("expected user_id clause: %s", query)
	}
	if !strings.Contains(query, "status = $2") {
		t.Fatalf("expected status clause: %s", query)
	}
	if !strings.Contains(query, "name ILIKE '%' || $3 || '%'") {
		t.Fatalf("expected name clause: %s", query)
	}
	if !strings.HasSuffix(query, "ORDER BY created_at DESC") {
		t.Fatalf("expected newest-first ordering: %s", query)
	}
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(args))
	}
	if args[0] != "user-1" || args[1] != "in_progress" || args[2] != "web" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestBuildListQuerySingleFilter(t *testing.T) {
	query, args := buildListQuery(domain.PlanFilter{Status: domain.PlanCompleted})

	if !strings.Contains(query, "WHERE status = $1") {
		t.Fatalf("unexpected query: %s", query)
	}
	if len(args) != 1 || args[0] != "completed" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestDecodePlanCorruptDocument(t *testing.T) {
	_, err := decodePlan([]byte(`{"plan_id": 42}`))
	if err == nil {
		t.Fatal("expected corrupt document to fail")
	}
	if !strings.Contains(err.Error(), domain.ErrCorruptPlan.Error()) {
		t.Fatalf("expected corrupt plan error, got %v", err)
	}
}

func TestDecodePlanRoundTrip(t *testing.T) {
	plan := domain.NewPlan("name", "desc", "user-1")
	plan.AddStep(domain.StepParams{Description: "one", Notes: "hello"})

	doc := encodeForTest(t, plan)
	decoded, err := decodePlan(doc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if decoded.ID != plan.ID {
		t.Fatalf("expected id %s, got %s", plan.ID, decoded.ID)
	}
	if len(decoded.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(decoded.Steps))
	}
	if decoded.Steps[0].Notes != "hello" {
		t.Fatalf("unexpected notes %q", decoded.Steps[0].Notes)
	}
	if decoded.Steps[0].CompletedAt != nil {
		t.Fatal("expected completed_at to stay nil")
	}
}
