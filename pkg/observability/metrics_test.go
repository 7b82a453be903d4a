package observability_test

import (
	"context"
	"strings"
	"testing"

	"github.com/aretw0/flowstate"
	"github.com/aretw0/flowstate/pkg/domain"
	"github.com/aretw0/flowstate/pkg/dsl"
	"github.com/aretw0/flowstate/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*flowstate.Engine, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	eng := flowstate.New(flowstate.WithLifecycleHooks(metrics.Hooks()))
	eng.Events().SubscribeAll(metrics.Listen)

	def := dsl.New("tickets", "ticket").
		Initial("OPEN").
		States("OPEN", "CLOSED").
		On("close").From("OPEN").To("CLOSED").
		Guard("has_user", func(_ context.Context, tc *domain.TransitionContext) (bool, error) {
			return tc.UserID != "", nil
		}).
		After("audit", func(context.Context, *domain.TransitionContext) error { return nil }).
		MustBuild()
	_, err := eng.DefineWorkflow(context.Background(), def)
	require.NoError(t, err)
	return eng, reg
}

func TestMetrics_RecordsEngineActivity(t *testing.T) {
	eng, reg := setup(t)
	ctx := context.Background()

	_, err := eng.Transition(ctx, "tickets", "t-1", "close", domain.TransitionOptions{})
	require.Error(t, err)
	_, err = eng.Transition(ctx, "tickets", "t-1", "close", domain.TransitionOptions{UserID: "u"})
	require.NoError(t, err)

	expected := `
# HELP flowstate_transitions_total Total number of executed transitions
# TYPE flowstate_transitions_total counter
flowstate_transitions_total{event="close",from="OPEN",to="CLOSED",workflow="tickets"} 1
# HELP flowstate_guard_evaluations_total Total number of guard evaluations
# TYPE flowstate_guard_evaluations_total counter
flowstate_guard_evaluations_total{guard="has_user",result="allowed",workflow="tickets"} 1
flowstate_guard_evaluations_total{guard="has_user",result="denied",workflow="tickets"} 1
# HELP flowstate_transition_failures_total Total number of transition requests that returned an error
# TYPE flowstate_transition_failures_total counter
flowstate_transition_failures_total{event="close",reason="guard_failed",workflow="tickets"} 1
# HELP flowstate_instance_events_total Total number of instance lifecycle events
# TYPE flowstate_instance_events_total counter
flowstate_instance_events_total{type="instance.created",workflow="tickets"} 1
# HELP flowstate_workflows_defined Number of distinct workflows defined
# TYPE flowstate_workflows_defined gauge
flowstate_workflows_defined 1
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"flowstate_transitions_total",
		"flowstate_guard_evaluations_total",
		"flowstate_transition_failures_total",
		"flowstate_instance_events_total",
		"flowstate_workflows_defined",
	)
	assert.NoError(t, err)

	assert.Equal(t, 1, mustGatherCount(t, reg, "flowstate_hook_executions_total"))
}

func TestCombine(t *testing.T) {
	var calls []string
	a := domain.LifecycleHooks{
		OnTransitionFailed: func(context.Context, *domain.TransitionFailure) { calls = append(calls, "a") },
	}
	b := domain.LifecycleHooks{
		OnTransitionFailed: func(context.Context, *domain.TransitionFailure) { calls = append(calls, "b") },
	}

	merged := observability.Combine(a, domain.LifecycleHooks{}, b)
	assert.Nil(t, merged.OnGuardEvaluated)
	require.NotNil(t, merged.OnTransitionFailed)

	merged.OnTransitionFailed(context.Background(), &domain.TransitionFailure{})
	assert.Equal(t, []string{"a", "b"}, calls)
}

func mustGatherCount(t *testing.T, reg *prometheus.Registry, name string) int {
	t.Helper()
	n, err := testutil.GatherAndCount(reg, name)
	require.NoError(t, err)
	return n
}
