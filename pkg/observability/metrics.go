package observability

import (
	"context"

	"github.com/aretw0/flowstate/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "flowstate"

// Label values.
const (
	statusSuccess = "success"
	statusError   = "error"
	resultAllowed = "allowed"
	resultDenied  = "denied"
	resultError   = "error"
)

// Metrics holds the engine's Prometheus collectors.
type Metrics struct {
	transitionsTotal *prometheus.CounterVec
	instancesTotal   *prometheus.CounterVec
	definitionsTotal *prometheus.CounterVec
	failuresTotal    *prometheus.CounterVec
	guardEvaluations *prometheus.CounterVec
	guardDuration    *prometheus.HistogramVec
	hookExecutions   *prometheus.CounterVec
	hookDuration     *prometheus.HistogramVec
	workflowsDefined prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
// Pass prometheus.DefaultRegisterer to expose them on the default handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Total number of executed transitions",
			},
			[]string{"workflow", "from", "to", "event"},
		),
		instancesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "instance_events_total",
				Help:      "Total number of instance lifecycle events",
			},
			[]string{"workflow", "type"}, // type: instance.created, instance.reset, instance.deleted
		),
		definitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "definitions_total",
				Help:      "Total number of workflow (re)definitions",
			},
			[]string{"workflow", "replaced"},
		),
		failuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transition_failures_total",
				Help:      "Total number of transition requests that returned an error",
			},
			[]string{"workflow", "event", "reason"},
		),
		guardEvaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "guard_evaluations_total",
				Help:      "Total number of guard evaluations",
			},
			[]string{"workflow", "guard", "result"}, // result: allowed, denied, error
		),
		guardDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "guard_duration_seconds",
				Help:      "Duration of guard evaluations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"workflow", "guard"},
		),
		hookExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hook_executions_total",
				Help:      "Total number of hook executions",
			},
			[]string{"workflow", "hook", "phase", "status"},
		),
		hookDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "hook_duration_seconds",
				Help:      "Duration of hook executions in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"workflow", "hook", "phase"},
		),
		workflowsDefined: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "workflows_defined",
				Help:      "Number of distinct workflows defined",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.transitionsTotal,
			m.instancesTotal,
			m.definitionsTotal,
			m.failuresTotal,
			m.guardEvaluations,
			m.guardDuration,
			m.hookExecutions,
			m.hookDuration,
			m.workflowsDefined,
		)
	}
	return m
}

// Listen records an engine event. Subscribe it with Bus.SubscribeAll.
func (m *Metrics) Listen(_ context.Context, event domain.Event) {
	//exhaustive:ignore
	switch event.Type {
	case domain.EventTransitionExecuted:
		if event.Transition != nil {
			m.transitionsTotal.WithLabelValues(event.WorkflowName, event.Transition.From, event.Transition.To, event.Transition.Event).Inc()
		}
	case domain.EventInstanceCreated, domain.EventInstanceReset, domain.EventInstanceDeleted:
		m.instancesTotal.WithLabelValues(event.WorkflowName, string(event.Type)).Inc()
	case domain.EventWorkflowDefined:
		replaced := "false"
		if event.Replaced {
			replaced = "true"
		} else {
			m.workflowsDefined.Inc()
		}
		m.definitionsTotal.WithLabelValues(event.WorkflowName, replaced).Inc()
	default:
		// State events duplicate transition.executed.
	}
}

// Hooks returns lifecycle hooks recording guard, hook and failure metrics.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnGuardEvaluated: func(_ context.Context, r *domain.GuardResult) {
			result := resultAllowed
			switch {
			case r.Err != nil:
				result = resultError
			case !r.Allowed:
				result = resultDenied
			}
			m.guardEvaluations.WithLabelValues(r.WorkflowName, r.Guard, result).Inc()
			m.guardDuration.WithLabelValues(r.WorkflowName, r.Guard).Observe(r.Duration.Seconds())
		},
		OnHookExecuted: func(_ context.Context, r *domain.HookResult) {
			status := statusSuccess
			if r.Err != nil {
				status = statusError
			}
			m.hookExecutions.WithLabelValues(r.WorkflowName, r.Hook, string(r.Phase), status).Inc()
			m.hookDuration.WithLabelValues(r.WorkflowName, r.Hook, string(r.Phase)).Observe(r.Duration.Seconds())
		},
		OnTransitionFailed: func(_ context.Context, f *domain.TransitionFailure) {
			m.failuresTotal.WithLabelValues(f.WorkflowName, f.Event, string(f.Reason)).Inc()
		},
	}
}
