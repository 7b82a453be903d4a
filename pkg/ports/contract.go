package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/flowstate/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contractDefinition(name string) *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{
		Name:         name,
		EntityType:   "order",
		InitialState: "PENDING",
		States:       []string{"PENDING", "DONE"},
		Transitions: []domain.StateTransition{
			{From: []string{"PENDING"}, To: "DONE", Event: "finish"},
		},
	}
}

// RunInstanceStoreContract runs a suite of tests to verify that an InstanceStore implementation
// adheres to the defined interface contract.
func RunInstanceStoreContract(t *testing.T, store InstanceStore) {
	ctx := context.Background()
	workflow := "contract-" + time.Now().Format("20060102150405.000000000")
	def := contractDefinition(workflow)
	now := time.Now().UTC().Truncate(time.Millisecond)

	t.Run("Save and Load", func(t *testing.T) {
		inst := domain.NewInstance(def, "entity-1", map[string]any{"foo": "bar"}, "alice", now)
		inst.Record("DONE", "finish", "bob", map[string]any{"reason": "ok"}, now.Add(time.Second))

		require.NoError(t, store.Save(ctx, inst), "Save should not return error")

		loaded, err := store.Load(ctx, workflow, "entity-1")
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, inst.ID, loaded.ID)
		assert.Equal(t, "DONE", loaded.CurrentState)
		assert.Equal(t, "order", loaded.EntityType)
		assert.Equal(t, "bar", loaded.Metadata["foo"])
		require.Len(t, loaded.History, 2)
		assert.Nil(t, loaded.History[0].From)
		require.NotNil(t, loaded.History[1].From)
		assert.Equal(t, "PENDING", *loaded.History[1].From)
		assert.Equal(t, "bob", loaded.History[1].UserID)
		assert.True(t, now.Equal(loaded.CreatedAt), "CreatedAt should survive a round trip")
	})

	t.Run("Load returns a copy", func(t *testing.T) {
		loaded, err := store.Load(ctx, workflow, "entity-1")
		require.NoError(t, err)
		loaded.CurrentState = "MUTATED"
		loaded.History = append(loaded.History, domain.HistoryEntry{To: "MUTATED"})

		again, err := store.Load(ctx, workflow, "entity-1")
		require.NoError(t, err)
		assert.Equal(t, "DONE", again.CurrentState)
		assert.Len(t, again.History, 2)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, workflow, "missing")
		assert.ErrorIs(t, err, domain.ErrInstanceNotFound)
	})

	t.Run("List", func(t *testing.T) {
		other := contractDefinition(workflow + "-other")
		require.NoError(t, store.Save(ctx, domain.NewInstance(def, "entity-2", nil, "", now)))
		require.NoError(t, store.Save(ctx, domain.NewInstance(other, "entity-3", nil, "", now)))
		defer func() {
			_ = store.Delete(ctx, other.Name, "entity-3")
		}()

		list, err := store.List(ctx, workflow)
		require.NoError(t, err)
		ids := make([]string, 0, len(list))
		for _, inst := range list {
			ids = append(ids, inst.EntityID)
		}
		assert.ElementsMatch(t, []string{"entity-1", "entity-2"}, ids)
	})

	t.Run("Separator collisions", func(t *testing.T) {
		nested := contractDefinition(workflow + ":eu")
		a := domain.NewInstance(nested, "42", nil, "", now)
		a.Record("DONE", "finish", "", nil, now)
		b := domain.NewInstance(def, "eu:42", nil, "", now)
		require.NoError(t, store.Save(ctx, a))
		require.NoError(t, store.Save(ctx, b))
		defer func() {
			_ = store.Delete(ctx, nested.Name, "42")
			_ = store.Delete(ctx, workflow, "eu:42")
		}()

		loaded, err := store.Load(ctx, workflow, "eu:42")
		require.NoError(t, err)
		assert.Equal(t, workflow, loaded.WorkflowName)
		assert.Equal(t, "PENDING", loaded.CurrentState)

		loaded, err = store.Load(ctx, nested.Name, "42")
		require.NoError(t, err)
		assert.Equal(t, nested.Name, loaded.WorkflowName)
		assert.Equal(t, "DONE", loaded.CurrentState)

		list, err := store.List(ctx, nested.Name)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "42", list[0].EntityID)
	})

	t.Run("Dot names", func(t *testing.T) {
		dots := contractDefinition("..")
		require.NoError(t, store.Save(ctx, domain.NewInstance(dots, ".", nil, "", now)))
		defer func() {
			_ = store.Delete(ctx, "..", ".")
		}()

		loaded, err := store.Load(ctx, "..", ".")
		require.NoError(t, err)
		assert.Equal(t, "..", loaded.WorkflowName)
		assert.Equal(t, ".", loaded.EntityID)

		list, err := store.List(ctx, "..")
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, ".", list[0].EntityID)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, workflow, "entity-1"), "Delete should not return error")
		require.NoError(t, store.Delete(ctx, workflow, "entity-2"))

		_, err := store.Load(ctx, workflow, "entity-1")
		assert.ErrorIs(t, err, domain.ErrInstanceNotFound, "Load after Delete should return ErrInstanceNotFound")

		list, err := store.List(ctx, workflow)
		require.NoError(t, err)
		assert.Empty(t, list)

		assert.NoError(t, store.Delete(ctx, workflow, "never-existed"), "Deleting a missing instance is a no-op")
	})
}
