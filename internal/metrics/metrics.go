// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"sync"
	"time"

	"github.com/planagent/planning-service/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce sync.Once

	planStatusCounter      *prometheus.CounterVec
	stepStatusCounter      *prometheus.CounterVec
	planLoadDurationMetric prometheus.Histogram
	planSaveDurationMetric prometheus.Histogram
)

// Init registers metrics on the default Prometheus registry exactly once.
func Init() {
	initOnce.Do(func() {
		planStatusCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plans_total",
				Help: "Total number of persisted plan status outcomes by status.",
			},
			[]string{"status"},
		)

		stepStatusCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "plan_steps_total",
				Help: "Total number of step status updates by status.",
			},
			[]string{"status"},
		)

		planLoadDurationMetric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "plan_load_duration_seconds",
				Help:    "Duration of plan document loads in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		)

		planSaveDurationMetric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "plan_save_duration_seconds",
				Help:    "Duration of plan document saves in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		)

		prometheus.MustRegister(
			planStatusCounter,
			stepStatusCounter,
			planLoadDurationMetric,
			planSaveDurationMetric,
		)

		// Ensure counter vectors are visible at /metrics before first increment.
		for _, status := range []domain.PlanStatus{
			domain.PlanNotStarted,
			domain.PlanInProgress,
			domain.PlanCompleted,
			domain.PlanPaused,
			domain.PlanFailed,
		} {
			planStatusCounter.WithLabelValues(string(status))
		}

		for _, status := range []domain.StepStatus{
			domain.StepPending,
			domain.StepInProgress,
			domain.StepCompleted,
			domain.StepFailed,
			domain.StepSkipped,
		} {
			stepStatusCounter.WithLabelValues(string(status))
		}
	})
}

func IncPlanStatus(status string) {
	Init()
	planStatusCounter.WithLabelValues(status).Inc()
}

func IncStepStatus(status string) {
	Init()
	stepStatusCounter.WithLabelValues(status).Inc()
}

func ObservePlanLoadDuration(d time.Duration) {
	Init()
	planLoadDurationMetric.Observe(d.Seconds())
}

func ObservePlanSaveDuration(d time.Duration) {
	Init()
	planSaveDurationMetric.Observe(d.Seconds())
}
