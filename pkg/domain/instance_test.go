package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInstance(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	inst := NewInstance(orderDefinition(), "order-1", map[string]any{"total": 10}, "alice", now)

	assert.Equal(t, "order-processing:order-1", inst.ID)
	assert.Equal(t, "order", inst.EntityType)
	assert.Equal(t, "PENDING", inst.CurrentState)
	assert.Equal(t, 10, inst.Metadata["total"])
	require.Len(t, inst.History, 1)
	assert.Nil(t, inst.History[0].From)
	assert.Equal(t, EventInit, inst.History[0].Event)
	assert.Equal(t, "alice", inst.History[0].UserID)
	assert.Equal(t, now, inst.CreatedAt)
}

func TestInstance_RecordAndMerge(t *testing.T) {
	now := time.Now()
	inst := NewInstance(orderDefinition(), "order-1", nil, "", now)
	require.NotNil(t, inst.Metadata)

	inst.Record("PROCESSING", "process", "bob", map[string]any{"k": 1}, now.Add(time.Second))
	inst.MergeMetadata(map[string]any{"k": 1})
	inst.MergeMetadata(map[string]any{"k": 2, "j": true})

	assert.Equal(t, "PROCESSING", inst.CurrentState)
	require.Len(t, inst.History, 2)
	require.NotNil(t, inst.History[1].From)
	assert.Equal(t, "PENDING", *inst.History[1].From)
	assert.Equal(t, map[string]any{"k": 2, "j": true}, inst.Metadata)
	assert.Equal(t, now.Add(time.Second), inst.UpdatedAt)
}

func TestInstance_CloneIsolation(t *testing.T) {
	inst := NewInstance(orderDefinition(), "order-1", map[string]any{"a": 1}, "", time.Now())
	inst.Record("PROCESSING", "process", "", nil, time.Now())

	c := inst.Clone()
	c.Metadata["a"] = 2
	*c.History[1].From = "MUTATED"
	c.History = append(c.History, HistoryEntry{To: "X"})

	assert.Equal(t, 1, inst.Metadata["a"])
	assert.Equal(t, "PENDING", *inst.History[1].From)
	assert.Len(t, inst.History, 2)
}
