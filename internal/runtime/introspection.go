package runtime

import (
	"context"

	"github.com/aretw0/flowstate/pkg/domain"
)

// GetWorkflowStats counts the stored instances of a workflow per current state.
// An unknown workflow yields zero stats.
func (e *Engine) GetWorkflowStats(ctx context.Context, workflowName string) (*domain.WorkflowStats, error) {
	stats := &domain.WorkflowStats{
		WorkflowName:      workflowName,
		StateDistribution: make(map[string]int),
	}
	list, err := e.ListInstances(ctx, workflowName)
	if err != nil {
		return nil, err
	}
	for _, inst := range list {
		stats.TotalInstances++
		stats.StateDistribution[inst.CurrentState]++
	}
	return stats, nil
}

// ExportWorkflow returns the serializable projection of a definition.
func (e *Engine) ExportWorkflow(workflowName string) (*domain.ExportedWorkflow, error) {
	def, err := e.requireWorkflow(workflowName)
	if err != nil {
		return nil, err
	}
	return domain.Export(def), nil
}
