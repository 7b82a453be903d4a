package ports

import (
	"context"

	"github.com/aretw0/flowstate/pkg/domain"
)

// InstanceStore defines the interface for persisting workflow instances.
// Implementations must return copies: callers may mutate what Load returns.
type InstanceStore interface {
	// Save persists the instance, keyed by its workflow name and entity ID.
	Save(ctx context.Context, instance *domain.WorkflowInstance) error

	// Load retrieves an instance.
	// Returns domain.ErrInstanceNotFound if it does not exist.
	Load(ctx context.Context, workflowName, entityID string) (*domain.WorkflowInstance, error)

	// Delete removes an instance. Deleting a missing instance is not an error.
	Delete(ctx context.Context, workflowName, entityID string) error

	// List returns every stored instance of a workflow.
	List(ctx context.Context, workflowName string) ([]*domain.WorkflowInstance, error)
}
