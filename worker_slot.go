package rlgymlearn

import (
	"net"

	"github.com/Martico2432/rlgym-learn/pkg/ipc"
	"github.com/Martico2432/rlgym-learn/pkg/timestep"
)

// workerSlot is one worker's side of the coordinator's bookkeeping: its
// connection handles plus the shadow state describing what the coordinator
// last asked it to do and who it was last tracking agents for.
//
// A workerSlot is touched by exactly one goroutine at a time: the
// coordinator's own, between calls to its ReadinessSelector's Select. It
// carries no mutex of its own; callers outside EnvProcessInterface should
// not reach into one directly.
type workerSlot struct {
	procID     string
	parentConn *net.UnixConn
	childAddr  *net.UnixAddr
	shm        *ipc.ShmRegion

	// pendingAction is the action most recently written to shm and
	// awaiting a readiness signal, or nil if no action is outstanding.
	pendingAction *EnvAction

	// agentIDs are the agent ids this worker is currently tracking, in
	// wire order. It is nil before the first RESET/SET_STATE response is
	// decoded, and from SendEnvActions sending a RESET or SET_STATE until
	// CollectStepData decodes that action's response.
	agentIDs []any

	// prevTimestepIDs runs parallel to agentIDs: prevTimestepIDs[i] is
	// the timestep id the next Timestep produced for agentIDs[i] should
	// chain from, or nil if there is none yet.
	prevTimestepIDs []*timestep.ID

	// currentObs runs parallel to agentIDs: currentObs[i] is the
	// observation agentIDs[i] was last seen with, sourced either from a
	// RESET/SET_STATE response's initial observations or from the
	// previous STEP's new observations. The next STEP's Timestep.Obs for
	// agentIDs[i] is read from here before currentObs is overwritten with
	// that STEP's own new observations.
	currentObs []any

	// aald is the additional action log data threaded through from the
	// most recent STEP action to the Timesteps it produces.
	aald any
}

func newWorkerSlot(procID string, parentConn *net.UnixConn, childAddr *net.UnixAddr, shm *ipc.ShmRegion) *workerSlot {
	return &workerSlot{
		procID:     procID,
		parentConn: parentConn,
		childAddr:  childAddr,
		shm:        shm,
	}
}

// resetShadowStateForNewEpisode clears the per-agent bookkeeping that only
// makes sense mid-episode, used whenever a RESET or SET_STATE is sent.
func (w *workerSlot) resetShadowStateForNewEpisode() {
	w.agentIDs = nil
	w.prevTimestepIDs = nil
	w.currentObs = nil
	w.aald = nil
}

// close releases the slot's shared-memory mapping and socket. It does not
// remove the slot from its owning EnvProcessInterface; callers do that.
func (w *workerSlot) close() error {
	var err error
	if w.shm != nil {
		err = w.shm.Close()
	}
	if w.parentConn != nil {
		if cerr := w.parentConn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
