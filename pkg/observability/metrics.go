// Package observability exposes engine activity as Prometheus metrics.
// Collection happens through lifecycle hooks, so the engine core stays
// free of any metrics dependency.
package observability

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/videlboga/scenarium/pkg/domain"
)

// Metrics holds the engine collectors. Register it once per process.
type Metrics struct {
	stepsEntered     *prometheus.CounterVec
	suspensions      *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	dispatchErrors   *prometheus.CounterVec
	taskFirings      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer for the process-global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stepsEntered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scenarium",
			Name:      "steps_entered_total",
			Help:      "Steps entered by the engine, by scenario and step type.",
		}, []string{"scenario", "step_type"}),
		suspensions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scenarium",
			Name:      "suspensions_total",
			Help:      "Sessions suspended awaiting input, by scenario.",
		}, []string{"scenario"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scenarium",
			Name:      "dispatch_duration_seconds",
			Help:      "Handler dispatch latency, by step type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step_type"}),
		dispatchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scenarium",
			Name:      "dispatch_errors_total",
			Help:      "Failed handler dispatches, by step type.",
		}, []string{"step_type"}),
		taskFirings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scenarium",
			Name:      "task_firings_total",
			Help:      "Scheduler firings, by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.stepsEntered, m.suspensions, m.dispatchDuration, m.dispatchErrors, m.taskFirings)
	return m
}

// Hooks returns lifecycle hooks feeding these collectors. Merge them with
// any application hooks before handing them to the engine.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(_ context.Context, ev *domain.StepEvent) {
			m.stepsEntered.WithLabelValues(ev.ScenarioID, ev.StepType).Inc()
		},
		OnSuspend: func(_ context.Context, ev *domain.StepEvent) {
			m.suspensions.WithLabelValues(ev.ScenarioID).Inc()
		},
		OnDispatch: func(_ context.Context, ev *domain.DispatchEvent) {
			m.dispatchDuration.WithLabelValues(ev.StepType).Observe(ev.Duration.Seconds())
			if ev.IsError {
				m.dispatchErrors.WithLabelValues(ev.StepType).Inc()
			}
		},
		OnTaskFired: func(_ context.Context, ev *domain.TaskEvent) {
			outcome := "ok"
			if ev.IsError {
				outcome = "error"
			}
			m.taskFirings.WithLabelValues(outcome).Inc()
		},
	}
}

// MergeHooks fans one event out to every non-nil hook set, in order.
func MergeHooks(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var merged domain.LifecycleHooks
	for _, hooks := range sets {
		hooks := hooks
		if hooks.OnStepEnter != nil {
			merged.OnStepEnter = chainStep(merged.OnStepEnter, hooks.OnStepEnter)
		}
		if hooks.OnStepLeave != nil {
			merged.OnStepLeave = chainStep(merged.OnStepLeave, hooks.OnStepLeave)
		}
		if hooks.OnSuspend != nil {
			merged.OnSuspend = chainStep(merged.OnSuspend, hooks.OnSuspend)
		}
		if hooks.OnDispatch != nil {
			merged.OnDispatch = chainDispatch(merged.OnDispatch, hooks.OnDispatch)
		}
		if hooks.OnTaskFired != nil {
			merged.OnTaskFired = chainTask(merged.OnTaskFired, hooks.OnTaskFired)
		}
	}
	return merged
}

func chainStep(a, b func(context.Context, *domain.StepEvent)) func(context.Context, *domain.StepEvent) {
	if a == nil {
		return b
	}
	return func(ctx context.Context, ev *domain.StepEvent) {
		a(ctx, ev)
		b(ctx, ev)
	}
}

func chainDispatch(a, b func(context.Context, *domain.DispatchEvent)) func(context.Context, *domain.DispatchEvent) {
	if a == nil {
		return b
	}
	return func(ctx context.Context, ev *domain.DispatchEvent) {
		a(ctx, ev)
		b(ctx, ev)
	}
}

func chainTask(a, b func(context.Context, *domain.TaskEvent)) func(context.Context, *domain.TaskEvent) {
	if a == nil {
		return b
	}
	return func(ctx context.Context, ev *domain.TaskEvent) {
		a(ctx, ev)
		b(ctx, ev)
	}
}
