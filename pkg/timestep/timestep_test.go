package timestep_test

import (
	"testing"

	"github.com/Martico2432/rlgym-learn/pkg/timestep"
)

func TestNewIDsAreDistinct(t *testing.T) {
	seen := map[timestep.ID]bool{}
	for i := 0; i < 1000; i++ {
		id := timestep.NewID()
		if seen[id] {
			t.Fatalf("timestep.NewID produced a duplicate after %d draws", i)
		}
		seen[id] = true
	}
}

func TestTimestepChaining(t *testing.T) {
	first := timestep.NewID()
	second := timestep.Timestep{
		ProcID: "proc-0",
		ID:     timestep.NewID(),
		PrevID: &first,
	}
	if second.PrevID == nil || *second.PrevID != first {
		t.Fatal("Timestep did not preserve its PrevID chain link")
	}
}
