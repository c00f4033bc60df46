// Package fakeworker implements a minimal worker speaking the EPI wire
// protocol against real shared memory and a real datagram socket, used by
// cmd/epictl's demo loop and by the coordinator's own tests to stand in
// for a launched simulation process without needing one.
package fakeworker

import (
	"context"
	"fmt"
	"net"

	"github.com/pkg/errors"

	rlgymlearn "github.com/Martico2432/rlgym-learn"
	"github.com/Martico2432/rlgym-learn/internal/rawcodec"
	"github.com/Martico2432/rlgym-learn/pkg/codec"
	"github.com/Martico2432/rlgym-learn/pkg/ipc"
	"github.com/Martico2432/rlgym-learn/pkg/wire"
)

// Config describes one fake worker instance.
type Config struct {
	ProcID              string
	Flink               string
	ChildSockPath       string
	ParentAddr          *net.UnixAddr
	PayloadSize         int
	NumAgents           int
	IncludeStateMetrics bool

	// RecalculateAgentIDEveryStep makes handleStep write a freshly
	// encoded agent id ahead of each agent's obs/reward/flags in a STEP
	// response, exercising the interleaved wire layout that layout
	// requires.
	RecalculateAgentIDEveryStep bool
}

// Start creates the worker's shared-memory region and socket, sends the
// initial readiness byte the coordinator's handshake waits on, and
// launches the worker's main loop in a new goroutine. It returns the
// worker's socket address so the caller can build a rlgymlearn.ProcessDef.
func Start(ctx context.Context, cfg Config) (*net.UnixAddr, error) {
	shm, err := ipc.CreateShmRegion(cfg.Flink, cfg.PayloadSize)
	if err != nil {
		return nil, errors.Wrap(err, "fakeworker: create shm region")
	}
	childConn, childAddr, err := ipc.NewUnixgramSocket(cfg.ChildSockPath)
	if err != nil {
		_ = shm.Close()
		return nil, errors.Wrap(err, "fakeworker: bind socket")
	}

	go runLoop(ctx, cfg, shm, childConn)

	if err := ipc.SendByte(childConn, cfg.ParentAddr); err != nil {
		return nil, errors.Wrap(err, "fakeworker: send initial readiness byte")
	}
	return childAddr, nil
}

func runLoop(ctx context.Context, cfg Config, shm *ipc.ShmRegion, conn *net.UnixConn) {
	defer shm.Close()
	defer conn.Close()

	bytesCodec := rawcodec.Bytes()
	agentIDs := demoAgentIDs(cfg)

	for {
		if err := shm.Event().WaitAndClear(ctx); err != nil {
			return
		}
		payload := shm.Payload()
		header, offset, err := wire.RetrieveHeader(payload, 0)
		if err != nil {
			continue
		}

		switch header {
		case wire.HeaderStop:
			return
		case wire.HeaderEnvShapesRequest:
			writeDemoSpaceTypes(payload, bytesCodec)
		case wire.HeaderEnvAction:
			var cerr error
			agentIDs, cerr = handleEnvAction(payload, offset, cfg, agentIDs, bytesCodec)
			if cerr != nil {
				return
			}
		}

		if err := ipc.SendByte(conn, cfg.ParentAddr); err != nil {
			return
		}
	}
}

func demoAgentIDs(cfg Config) []any {
	ids := make([]any, cfg.NumAgents)
	for i := range ids {
		ids[i] = []byte(fmt.Sprintf("%s/agent-%d", cfg.ProcID, i))
	}
	return ids
}

func writeDemoSpaceTypes(payload []byte, bytesCodec codec.Codec[any]) {
	offset, err := bytesCodec.Append(payload, 0, []byte("box"))
	if err != nil {
		return
	}
	_, _ = bytesCodec.Append(payload, offset, []byte("discrete"))
}

// handleEnvAction dispatches on the variant tag and returns the agent ids
// the worker should track going into its next action, which only changes
// when a STEP response recalculates them.
func handleEnvAction(payload []byte, offset int, cfg Config, agentIDs []any, bytesCodec codec.Codec[any]) ([]any, error) {
	variantTag := payload[offset]
	offset++

	switch rlgymlearn.EnvActionKind(variantTag) {
	case rlgymlearn.EnvActionKindStep:
		return handleStep(payload, offset, cfg, agentIDs, bytesCodec)
	case rlgymlearn.EnvActionKindReset, rlgymlearn.EnvActionKindSetState:
		return agentIDs, handleNewEpisode(payload, offset, agentIDs, bytesCodec, rlgymlearn.EnvActionKind(variantTag))
	default:
		return agentIDs, errors.Errorf("fakeworker: unknown variant tag %d", variantTag)
	}
}

// handleStep reads exactly len(agentIDs) actions directly from the
// payload, with no leading action-count prefix, since both sides already
// hold the agent count as shadow state.
func handleStep(payload []byte, offset int, cfg Config, agentIDs []any, bytesCodec codec.Codec[any]) ([]any, error) {
	var err error
	for range agentIDs {
		_, offset, err = bytesCodec.Retrieve(payload, offset)
		if err != nil {
			return agentIDs, err
		}
	}

	// Response: per agent, optionally a recalculated agent id, then a
	// next observation, a reward, and the two episode-ending flags, in
	// the same order the coordinator tracked them going into this step.
	nextAgentIDs := make([]any, len(agentIDs))
	respOffset := 0
	for i := range agentIDs {
		nextAgentIDs[i] = agentIDs[i]
		if cfg.RecalculateAgentIDEveryStep {
			recalculated := []byte(fmt.Sprintf("%s/agent-%d/v2", cfg.ProcID, i))
			respOffset, err = bytesCodec.Append(payload, respOffset, recalculated)
			if err != nil {
				return agentIDs, err
			}
			nextAgentIDs[i] = recalculated
		}
		respOffset, err = bytesCodec.Append(payload, respOffset, []byte("obs"))
		if err != nil {
			return agentIDs, err
		}
		respOffset, err = bytesCodec.Append(payload, respOffset, []byte("reward"))
		if err != nil {
			return agentIDs, err
		}
		respOffset, err = wire.AppendBool(payload, respOffset, false)
		if err != nil {
			return agentIDs, err
		}
		respOffset, err = wire.AppendBool(payload, respOffset, false)
		if err != nil {
			return agentIDs, err
		}
	}
	return nextAgentIDs, nil
}

func handleNewEpisode(payload []byte, offset int, agentIDs []any, bytesCodec codec.Codec[any], kind rlgymlearn.EnvActionKind) error {
	if kind == rlgymlearn.EnvActionKindSetState {
		if _, _, err := bytesCodec.Retrieve(payload, offset); err != nil {
			return err
		}
	}

	respOffset, err := wire.AppendUsize(payload, 0, len(agentIDs))
	if err != nil {
		return err
	}
	for _, id := range agentIDs {
		respOffset, err = bytesCodec.Append(payload, respOffset, id.([]byte))
		if err != nil {
			return err
		}
		respOffset, err = bytesCodec.Append(payload, respOffset, []byte("obs"))
		if err != nil {
			return err
		}
	}
	return nil
}
