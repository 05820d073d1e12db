// SPDX-License-Identifier: Apache-2.0

package httptransport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/planagent/planning-service/internal/domain"
	"github.com/planagent/planning-service/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	Planner   Planner
	Executor  Executor
	Manager   Manager
	Health    HealthChecker
	Logger    *slog.Logger
	Version   string
	Commit    string
	BuildDate string
}

type nextStepResponse struct {
	Step    *domain.Step `json:"step"`
	Message string       `json:"message"`
}

type healthResponse struct {
	Status            string    `json:"status"`
	Timestamp         time.Time `json:"timestamp"`
	DatabaseConnected bool      `json:"database_connected"`
}

func NewRouter(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics.Init()
	version := valueOrDefault(deps.Version, "dev")
	commit := valueOrDefault(deps.Commit, "none")
	buildDate := valueOrDefault(deps.BuildDate, "unknown")

	r := chi.NewRouter()
	r.Use(requestIDMiddleware())
	r.Use(requestLoggingMiddleware(logger))

	// ---------------- HEALTH ----------------

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("health check hit")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		connected := false
		if deps.Health != nil {
			if err := deps.Health.Check(r.Context()); err != nil {
				logger.Warn("database health check failed", "error", err)
			} else {
				connected = true
			}
		}

		status := "healthy"
		if !connected {
			status = "degraded"
		}

		writeJSON(w, http.StatusOK, healthResponse{
			Status:            status,
			Timestamp:         time.Now().UTC(),
			DatabaseConnected: connected,
		})
	})

	// ---------------- METRICS ----------------

	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// ---------------- VERSION ----------------

	r.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version":    version,
			"commit":     commit,
			"build_date": buildDate,
		})
	})

	// ---------------- PLANS ----------------

	r.Route("/api/plans", func(r chi.Router) {

		// ---------------- CREATE PLAN ----------------

		r.Post("/", func(w http.ResponseWriter, r *http.Request) {
			var reqBody createPlanRequest
			if err := decodeJSON(r, &reqBody); err != nil {
				http.Error(w, "invalid request body", http.StatusBadRequest)
				return
			}

			params, err := reqBody.validate()
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			plan, err := deps.Planner.CreatePlan(r.Context(), params)
			if err != nil {
				logger.Error("create plan failed", "error", err)
				http.Error(w, "failed to create plan", http.StatusInternalServerError)
				return
			}

			logger.Info("plan created via API", "plan_id", plan.ID)
			writeJSON(w, http.StatusCreated, plan)
		})

		// ---------------- LIST PLANS ----------------

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			filter, err := parsePlanFilter(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			plans, err := deps.Executor.ListPlans(r.Context(), filter)
			if err != nil {
				logger.Error("list plans failed", "error", err)
				http.Error(w, "failed to list plans", http.StatusInternalServerError)
				return
			}
			if plans == nil {
				plans = []*domain.Plan{}
			}

			writeJSON(w, http.StatusOK, struct {
				Plans []*domain.Plan `json:"plans"`
				Count int            `json:"count"`
			}{
				Plans: plans,
				Count: len(plans),
			})
		})

		r.Route("/{id}", func(r chi.Router) {

			// ---------------- GET PLAN ----------------

			r.Get("/", func(w http.ResponseWriter, r *http.Request) {
				planID, ok := parsePlanID(w, r)
				if !ok {
					return
				}

				plan, err := deps.Executor.GetPlan(r.Context(), planID)
				if err != nil {
					if errors.Is(err, pgx.ErrNoRows) {
						logger.Warn("plan not found", "plan_id", planID)
						http.Error(w, "plan not found", http.StatusNotFound)
						return
					}

					logger.Error("get plan failed", "plan_id", planID, "error", err)
					http.Error(w, "failed to get plan", http.StatusInternalServerError)
					return
				}

				writeJSON(w, http.StatusOK, plan)
			})

			// ---------------- UPDATE PLAN ----------------

			r.Put("/", func(w http.ResponseWriter, r *http.Request) {
				planID, ok := parsePlanID(w, r)
				if !ok {
					return
				}

				var reqBody updatePlanRequest
				if err := decodeJSON(r, &reqBody); err != nil {
					http.Error(w, "invalid request body", http.StatusBadRequest)
					return
				}

				name, description, status, err := reqBody.validate()
				if err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}

				plan, err := deps.Manager.UpdatePlanMetadata(r.Context(), planID, name, description, status)
				if err != nil {
					if errors.Is(err, pgx.ErrNoRows) {
						logger.Warn("plan not found", "plan_id", planID)
						http.Error(w, "plan not found", http.StatusNotFound)
						return
					}

					logger.Error("update plan failed", "plan_id", planID, "error", err)
					http.Error(w, "failed to update plan", http.StatusInternalServerError)
					return
				}

				writeJSON(w, http.StatusOK, plan)
			})

			// ---------------- DELETE PLAN ----------------

			r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
				planID, ok := parsePlanID(w, r)
				if !ok {
					return
				}

				if err := deps.Manager.DeletePlan(r.Context(), planID); err != nil {
					if errors.Is(err, pgx.ErrNoRows) {
						logger.Warn("plan not found", "plan_id", planID)
						http.Error(w, "plan not found", http.StatusNotFound)
						return
					}

					logger.Error("delete plan failed", "plan_id", planID, "error", err)
					http.Error(w, "failed to delete plan", http.StatusInternalServerError)
					return
				}

				logger.Info("plan deleted via API", "plan_id", planID)
				w.WriteHeader(http.StatusNoContent)
			})

			// ---------------- REGENERATE PLAN ----------------

			r.Put("/regenerate", func(w http.ResponseWriter, r *http.Request) {
				planID, ok := parsePlanID(w, r)
				if !ok {
					return
				}

				var reqBody regeneratePlanRequest
				if err := decodeJSON(r, &reqBody); err != nil {
					http.Error(w, "invalid request body", http.StatusBadRequest)
					return
				}

				description, steps, err := reqBody.validate()
				if err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}

				plan, err := deps.Planner.RegeneratePlan(r.Context(), planID, description, steps)
				if err != nil {
					if errors.Is(err, pgx.ErrNoRows) {
						logger.Warn("plan not found", "plan_id", planID)
						http.Error(w, "plan not found", http.StatusNotFound)
						return
					}

					logger.Error("regenerate plan failed", "plan_id", planID, "error", err)
					http.Error(w, "failed to regenerate plan", http.StatusInternalServerError)
					return
				}

				logger.Info("plan regenerated via API", "plan_id", planID)
				writeJSON(w, http.StatusOK, plan)
			})

			// ---------------- ADD STEP ----------------

			r.Post("/steps", func(w http.ResponseWriter, r *http.Request) {
				planID, ok := parsePlanID(w, r)
				if !ok {
					return
				}

				var reqBody stepRequest
				if err := decodeJSON(r, &reqBody); err != nil {
					http.Error(w, "invalid request body", http.StatusBadRequest)
					return
				}

				params, err := validateStepRequest(reqBody)
				if err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}

				step, err := deps.Manager.AddStep(r.Context(), planID, params)
				if err != nil {
					if errors.Is(err, pgx.ErrNoRows) {
						logger.Warn("plan not found", "plan_id", planID)
						http.Error(w, "plan not found", http.StatusNotFound)
						return
					}

					logger.Error("add step failed", "plan_id", planID, "error", err)
					http.Error(w, "failed to add step", http.StatusInternalServerError)
					return
				}

				writeJSON(w, http.StatusCreated, step)
			})

			// ---------------- UPDATE STEP ----------------

			r.Put("/steps/{stepID}", func(w http.ResponseWriter, r *http.Request) {
				planID, stepID, ok := parseStepIDs(w, r)
				if !ok {
					return
				}

				var reqBody updateStepRequest
				if err := decodeJSON(r, &reqBody); err != nil {
					http.Error(w, "invalid request body", http.StatusBadRequest)
					return
				}

				status, notes, err := reqBody.validate()
				if err != nil {
					http.Error(w, err.Error(), http.StatusBadRequest)
					return
				}

				step, err := deps.Executor.UpdateStep(r.Context(), planID, stepID, status, notes)
				if err != nil {
					writeStepError(w, logger, planID, stepID, "update step", err)
					return
				}

				writeJSON(w, http.StatusOK, step)
			})

			// ---------------- DELETE STEP ----------------

			r.Delete("/steps/{stepID}", func(w http.ResponseWriter, r *http.Request) {
				planID, stepID, ok := parseStepIDs(w, r)
				if !ok {
					return
				}

				if err := deps.Manager.DeleteStep(r.Context(), planID, stepID); err != nil {
					writeStepError(w, logger, planID, stepID, "delete step", err)
					return
				}

				logger.Info("step deleted via API", "plan_id", planID, "step_id", stepID)
				w.WriteHeader(http.StatusNoContent)
			})

			// ---------------- SKIP STEP ----------------

			r.Put("/steps/{stepID}/skip", func(w http.ResponseWriter, r *http.Request) {
				planID, stepID, ok := parseStepIDs(w, r)
				if !ok {
					return
				}

				step, err := deps.Executor.SkipStep(r.Context(), planID, stepID)
				if err != nil {
					writeStepError(w, logger, planID, stepID, "skip step", err)
					return
				}

				writeJSON(w, http.StatusOK, step)
			})

			// ---------------- NEXT STEP ----------------

			r.Get("/next-step", func(w http.ResponseWriter, r *http.Request) {
				planID, ok := parsePlanID(w, r)
				if !ok {
					return
				}

				step, err := deps.Executor.NextStep(r.Context(), planID)
				if err != nil {
					logger.Error("next step failed", "plan_id", planID, "error", err)
					http.Error(w, "failed to get next step", http.StatusInternalServerError)
					return
				}

				resp := nextStepResponse{Step: step, Message: "Next step found"}
				if step == nil {
					resp.Message = "No pending steps found or plan not found"
				}

				writeJSON(w, http.StatusOK, resp)
			})

			// ---------------- PROGRESS ----------------

			r.Get("/progress", func(w http.ResponseWriter, r *http.Request) {
				planID, ok := parsePlanID(w, r)
				if !ok {
					return
				}

				progress, err := deps.Executor.Progress(r.Context(), planID)
				if err != nil {
					if errors.Is(err, pgx.ErrNoRows) {
						logger.Warn("plan not found", "plan_id", planID)
						http.Error(w, "plan not found", http.StatusNotFound)
						return
					}

					logger.Error("get progress failed", "plan_id", planID, "error", err)
					http.Error(w, "failed to get progress", http.StatusInternalServerError)
					return
				}

				writeJSON(w, http.StatusOK, progress)
			})

			// ---------------- SUMMARY ----------------

			r.Get("/summary", func(w http.ResponseWriter, r *http.Request) {
				planID, ok := parsePlanID(w, r)
				if !ok {
					return
				}

				summary, err := deps.Executor.Summary(r.Context(), planID)
				if err != nil {
					if errors.Is(err, pgx.ErrNoRows) {
						logger.Warn("plan not found", "plan_id", planID)
						http.Error(w, "plan not found", http.StatusNotFound)
						return
					}

					logger.Error("get summary failed", "plan_id", planID, "error", err)
					http.Error(w, "failed to get summary", http.StatusInternalServerError)
					return
				}

				writeJSON(w, http.StatusOK, summary)
			})

			// ---------------- RESET STEPS ----------------

			r.Post("/reset", func(w http.ResponseWriter, r *http.Request) {
				planID, ok := parsePlanID(w, r)
				if !ok {
					return
				}

				plan, err := deps.Manager.ResetSteps(r.Context(), planID)
				if err != nil {
					if errors.Is(err, pgx.ErrNoRows) {
						logger.Warn("plan not found", "plan_id", planID)
						http.Error(w, "plan not found", http.StatusNotFound)
						return
					}

					logger.Error("reset steps failed", "plan_id", planID, "error", err)
					http.Error(w, "failed to reset steps", http.StatusInternalServerError)
					return
				}

				logger.Info("plan steps reset via API", "plan_id", planID)
				writeJSON(w, http.StatusOK, plan)
			})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeStepError maps step-level failures shared by the step endpoints.
func writeStepError(w http.ResponseWriter, logger *slog.Logger, planID, stepID uuid.UUID, op string, err error) {
	if errors.Is(err, pgx.ErrNoRows) {
		logger.Warn("plan not found", "plan_id", planID)
		http.Error(w, "plan not found", http.StatusNotFound)
		return
	}
	if errors.Is(err, domain.ErrStepNotFound) {
		logger.Warn("step not found", "plan_id", planID, "step_id", stepID)
		http.Error(w, "step not found", http.StatusNotFound)
		return
	}

	logger.Error(op+" failed", "plan_id", planID, "step_id", stepID, "error", err)
	http.Error(w, "failed to "+op, http.StatusInternalServerError)
}

func parsePlanID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	planID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid plan ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return planID, true
}

func parseStepIDs(w http.ResponseWriter, r *http.Request) (uuid.UUID, uuid.UUID, bool) {
	planID, ok := parsePlanID(w, r)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}

	stepID, err := uuid.Parse(chi.URLParam(r, "stepID"))
	if err != nil {
		http.Error(w, "invalid step ID", http.StatusBadRequest)
		return uuid.Nil, uuid.Nil, false
	}

	return planID, stepID, true
}

func parsePlanFilter(r *http.Request) (domain.PlanFilter, error) {
	filter := domain.PlanFilter{
		UserID:        strings.TrimSpace(r.URL.Query().Get("user_id")),
		NameSubstring: strings.TrimSpace(r.URL.Query().Get("name")),
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, ok := domain.ParsePlanStatus(raw)
		if !ok {
			return domain.PlanFilter{}, errors.New("invalid status filter")
		}
		filter.Status = status
	}

	return filter, nil
}

func valueOrDefault(value, defaultValue string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return defaultValue
	}
	return trimmed
}
