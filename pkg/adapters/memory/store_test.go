package memory_test

import (
	"testing"

	"github.com/aretw0/flowstate/pkg/adapters/memory"
	"github.com/aretw0/flowstate/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunInstanceStoreContract(t, store)
}
