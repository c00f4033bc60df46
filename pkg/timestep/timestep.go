// Package timestep defines the immutable record EPI emits once per agent
// per collected STEP response, and the 128-bit identifier that chains
// consecutive timesteps for the same agent together.
package timestep

import "github.com/google/uuid"

// ID is a 128-bit timestep identifier. IDs generated within one
// CollectStepData pass must be pairwise distinct with overwhelming
// probability; NewID satisfies that with a v4 (crypto/rand-backed) UUID
// rather than hand-rolling a random source.
type ID = uuid.UUID

// NewID generates a fresh, effectively-unique timestep identifier.
func NewID() ID {
	return uuid.New()
}

// Timestep is an immutable record correlating the previous observation,
// the action taken, and the new observation/reward/termination tuple for
// one agent in one worker, for one STEP.
//
// Obs, NextObs, Action, Reward and AgentID are opaque values produced by
// the caller-supplied codecs; EPI neither inspects nor mutates them beyond
// forwarding references.
type Timestep struct {
	ProcID     string
	ID         ID
	PrevID     *ID
	AgentID    any
	Obs        any
	NextObs    any
	Action     any
	Reward     any
	Terminated bool
	Truncated  bool
}
