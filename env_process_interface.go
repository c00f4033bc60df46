// Package rlgymlearn implements the Env Process Interface: a coordinator
// that multiplexes a fleet of worker processes, each running an isolated
// simulation environment, over shared memory plus datagram-socket
// readiness notification. It owns no simulation logic of its own; workers
// are opaque beyond the wire contract this package and pkg/wire define.
package rlgymlearn

import (
	"net"
	"sync"
	"time"

	"github.com/nightlyone/lockfile"
	"github.com/pkg/errors"
	retry "gopkg.in/retry.v1"

	"github.com/Martico2432/rlgym-learn/pkg/codec"
	"github.com/Martico2432/rlgym-learn/pkg/epiconfig"
	"github.com/Martico2432/rlgym-learn/pkg/ipc"
	"github.com/Martico2432/rlgym-learn/pkg/logx"
	"github.com/Martico2432/rlgym-learn/pkg/timestep"
	"github.com/Martico2432/rlgym-learn/pkg/wire"
)

// Codecs bundles every pluggable (de)serializer EnvProcessInterface needs.
// State and StateMetrics may be nil when the corresponding config feature
// flags are off; Config.Validate enforces that they are not nil otherwise.
type Codecs struct {
	AgentID      codec.Codec[any]
	Action       codec.Codec[any]
	Obs          codec.Codec[any]
	Reward       codec.Codec[any]
	ObsSpace     codec.Codec[any]
	ActionSpace  codec.Codec[any]
	State        codec.Codec[any]
	StateMetrics codec.Codec[any]
}

// ProcessDef is everything the coordinator needs to adopt one already-
// launched worker process. ChildSock is not used by EnvProcessInterface;
// it is retained here only so a caller can hold the full four-way
// handshake tuple in one value and close ChildSock itself once the worker
// owns it, matching how the worker side of the handshake contract is
// described in terms of all four values even though the parent only acts
// on three of them.
type ProcessDef struct {
	ChildSock  net.Conn
	ParentConn *net.UnixConn
	ChildAddr  *net.UnixAddr
	ProcID     string
}

// ObsData is one worker's current agent ids and their observations as of
// its latest response: the initial observations after a RESET or
// SET_STATE, or the new observations after a STEP.
type ObsData struct {
	AgentIDs []any
	Obs      []any
}

// TimestepData is the STEP response payload for one worker: one Timestep
// per agent that was tracked going into the step, plus the aald value that
// travelled with the EnvAction that produced them.
type TimestepData struct {
	Timesteps []timestep.Timestep
	Aald      any
}

// StateInfoData is the state-level payload attached to a response: always
// for a STEP response, and for a RESET or SET_STATE response only when a
// state or metrics block is decoded. State and Metrics decode independently of one another, gated
// by SendStateToAgentControllers and ShouldCollectStateMetrics
// respectively, so either, both, or neither may be present. Terminated and
// Truncated are the dense per-agent flag maps a STEP response always
// carries; both are nil for RESET and SET_STATE responses, which have no
// notion of a prior agent set to key them by.
type StateInfoData struct {
	State      any
	Metrics    any
	Terminated map[any]bool
	Truncated  map[any]bool
}

// EnvProcessInterface is the coordinator. It is not safe for concurrent
// use: every exported method is meant to be called from one goroutine,
// the same assumption the state machine this package is styled after
// makes about its own Apply entrypoint.
type EnvProcessInterface struct {
	cfg    epiconfig.Config
	codecs Codecs
	logger logx.Logger

	selector   ipc.ReadinessSelector
	flinksLock lockfile.Lockfile

	slots          []*workerSlot
	procIDToPidIdx map[string]int

	payloadSize int

	minProcessStepsPerInference int

	obsSpace          any
	actionSpace       any
	spaceTypesFetched bool

	pendingMu   sync.Mutex
	pendingAdds []ProcessDef
}

// New constructs a coordinator from cfg and codecs. It does not launch or
// adopt any workers; call InitProcesses for that.
func New(cfg epiconfig.Config, codecs Codecs, logger logx.Logger, payloadSize int) (*EnvProcessInterface, error) {
	if err := cfg.Validate(codecs.State != nil, codecs.StateMetrics != nil); err != nil {
		return nil, configErr(err.Error())
	}
	if logger == nil {
		logger = logx.NewNopLogger()
	}

	selector, err := newSelectorForBackend(cfg.SelectorBackend)
	if err != nil {
		return nil, errors.Wrap(err, "epi: construct readiness selector")
	}

	lf, err := lockfile.New(flinksLockPath(cfg.FlinksFolder))
	if err != nil {
		return nil, errors.Wrap(err, "epi: construct flinks folder lockfile")
	}

	return &EnvProcessInterface{
		cfg:                         cfg,
		codecs:                      codecs,
		logger:                      logger,
		selector:                    selector,
		flinksLock:                  lf,
		procIDToPidIdx:              map[string]int{},
		payloadSize:                 payloadSize,
		minProcessStepsPerInference: cfg.MinProcessStepsPerInference,
	}, nil
}

func flinksLockPath(flinksFolder string) string {
	return ipc.GetFlink(flinksFolder, ".epi.lock")
}

func newSelectorForBackend(backend string) (ipc.ReadinessSelector, error) {
	switch backend {
	case "", "auto":
		return ipc.NewReadinessSelector()
	case "channel":
		return ipc.NewPortableReadinessSelector(), nil
	case "epoll":
		sel, err := ipc.NewReadinessSelector()
		if err != nil {
			return nil, err
		}
		return sel, nil
	default:
		return nil, errors.Errorf("epi: unknown selector backend %q", backend)
	}
}

// InitProcesses adopts every def in defs as a tracked worker, then fetches
// the observation/action space descriptors from the first one. It must be
// called exactly once, before any other method except New.
func (e *EnvProcessInterface) InitProcesses(defs []ProcessDef) error {
	if err := e.withFlinksLock(func() error {
		for _, def := range defs {
			if err := e.addProcPackage(def); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}
	if len(e.slots) == 0 {
		return protocolErr("", "InitProcesses called with no processes")
	}
	if e.minProcessStepsPerInference > len(e.slots) {
		e.minProcessStepsPerInference = len(e.slots)
	}
	return e.fetchSpaceTypes(e.slots[0])
}

// AddProcess adopts a single additional worker. The adoption is always
// deferred until the next CollectStepData call so the selector is only
// ever mutated from the coordinator's own call stack.
func (e *EnvProcessInterface) AddProcess(def ProcessDef) error {
	e.pendingMu.Lock()
	e.pendingAdds = append(e.pendingAdds, def)
	e.pendingMu.Unlock()
	return nil
}

func (e *EnvProcessInterface) drainPendingAdds() error {
	e.pendingMu.Lock()
	pending := e.pendingAdds
	e.pendingAdds = nil
	e.pendingMu.Unlock()
	if len(pending) == 0 {
		return nil
	}
	return e.withFlinksLock(func() error {
		for _, def := range pending {
			if err := e.addProcPackage(def); err != nil {
				return err
			}
		}
		return nil
	})
}

func (e *EnvProcessInterface) withFlinksLock(fn func() error) error {
	if err := e.flinksLock.TryLock(); err != nil {
		return handshakeErr("", errors.Wrap(err, "acquire flinks folder lock"))
	}
	defer e.flinksLock.Unlock()
	return fn()
}

// addProcPackage performs the handshake with one freshly launched worker:
// it waits for the worker's first readiness byte (proving the worker is
// alive and listening), echoes one byte back to the worker's address,
// opens the worker's shared-memory region (retrying
// briefly, since the worker may not have created its backing file the
// instant it sent that byte), and registers the worker's socket with the
// readiness selector.
func (e *EnvProcessInterface) addProcPackage(def ProcessDef) error {
	if _, ok := e.procIDToPidIdx[def.ProcID]; ok {
		return protocolErr(def.ProcID, "process already tracked")
	}

	if _, err := ipc.RecvByte(def.ParentConn); err != nil {
		return handshakeErr(def.ProcID, errors.Wrap(err, "await initial readiness byte"))
	}
	if err := ipc.SendByte(def.ParentConn, def.ChildAddr); err != nil {
		return handshakeErr(def.ProcID, errors.Wrap(err, "echo handshake byte"))
	}

	flink := ipc.GetFlink(e.cfg.FlinksFolder, def.ProcID)
	shm, err := openShmRegionWithRetry(flink, e.payloadSize)
	if err != nil {
		return shmErr(def.ProcID, err)
	}

	slot := newWorkerSlot(def.ProcID, def.ParentConn, def.ChildAddr, shm)
	pidIdx := len(e.slots)
	e.slots = append(e.slots, slot)
	e.procIDToPidIdx[def.ProcID] = pidIdx

	if err := e.selector.Register(def.ParentConn, ipc.SelectorCookie{PidIdx: pidIdx}); err != nil {
		return handshakeErr(def.ProcID, errors.Wrap(err, "register worker socket with selector"))
	}

	e.logger.Log(logx.LevelInfo, "worker adopted", "proc_id", def.ProcID, "pid_idx", pidIdx)
	return nil
}

// openShmRegionWithRetry opens flink, retrying with bounded exponential
// backoff to absorb the race between a worker sending its readiness byte
// and that worker finishing creation of its backing file.
func openShmRegionWithRetry(flink string, payloadSize int) (*ipc.ShmRegion, error) {
	strategy := retry.LimitTime(500*time.Millisecond, retry.Exponential{
		Initial:  time.Millisecond,
		Factor:   2,
		MaxDelay: 20 * time.Millisecond,
	})
	var lastErr error
	for a := retry.Start(strategy, nil); a.Next(); {
		region, err := ipc.OpenShmRegion(flink, payloadSize)
		if err == nil {
			return region, nil
		}
		lastErr = err
	}
	return nil, errors.Wrapf(lastErr, "open shm flink %s after retries", flink)
}

// fetchSpaceTypes sends the one-time EnvShapesRequest to slot's worker and
// decodes the observation/action space descriptors it sends back.
func (e *EnvProcessInterface) fetchSpaceTypes(slot *workerSlot) error {
	payload := slot.shm.Payload()
	wire.AppendHeader(payload, 0, wire.HeaderEnvShapesRequest)
	slot.shm.Event().Signal()

	if _, err := ipc.RecvByte(slot.parentConn); err != nil {
		return handshakeErr(slot.procID, errors.Wrap(err, "await space types readiness"))
	}

	respOffset := 0
	obsSpace, respOffset, err := e.codecs.ObsSpace.Retrieve(payload, respOffset)
	if err != nil {
		return codecErr(slot.procID, errors.Wrap(err, "decode observation space"))
	}
	actionSpace, _, err := e.codecs.ActionSpace.Retrieve(payload, respOffset)
	if err != nil {
		return codecErr(slot.procID, errors.Wrap(err, "decode action space"))
	}
	e.obsSpace = obsSpace
	e.actionSpace = actionSpace
	e.spaceTypesFetched = true
	return nil
}

// ObsSpace returns the observation space descriptor fetched during
// InitProcesses. It is nil until InitProcesses has completed.
func (e *EnvProcessInterface) ObsSpace() any { return e.obsSpace }

// ActionSpace returns the action space descriptor fetched during
// InitProcesses. It is nil until InitProcesses has completed.
func (e *EnvProcessInterface) ActionSpace() any { return e.actionSpace }

// DeleteProcess sends procID's worker a Stop header, stops tracking it and
// releases its resources. The threshold CollectStepData waits for is
// lowered to the number of remaining workers if it exceeds it.
func (e *EnvProcessInterface) DeleteProcess(procID string) error {
	pidIdx, ok := e.procIDToPidIdx[procID]
	if !ok {
		return protocolErr(procID, "unknown proc_id")
	}
	slot := e.slots[pidIdx]
	wire.AppendHeader(slot.shm.Payload(), 0, wire.HeaderStop)
	slot.shm.Event().Signal()
	if err := e.selector.Unregister(slot.parentConn); err != nil {
		return handshakeErr(procID, errors.Wrap(err, "unregister worker socket"))
	}
	if err := slot.close(); err != nil {
		e.logger.Log(logx.LevelWarn, "error closing worker slot", "proc_id", procID, "err", err)
	}

	// Dense-array removal: swap the deleted slot with the last one and
	// shrink, rather than shifting every later index down by one.
	lastIdx := len(e.slots) - 1
	lastSlot := e.slots[lastIdx]
	e.slots[pidIdx] = lastSlot
	e.slots = e.slots[:lastIdx]
	delete(e.procIDToPidIdx, procID)
	if n := len(e.slots); n > 0 && e.minProcessStepsPerInference > n {
		e.minProcessStepsPerInference = n
	}
	if lastSlot.procID != procID {
		e.procIDToPidIdx[lastSlot.procID] = pidIdx
		// The moved slot's selector cookie still names its old index;
		// register its socket again under the index it now occupies.
		if err := e.selector.Unregister(lastSlot.parentConn); err != nil {
			return handshakeErr(lastSlot.procID, errors.Wrap(err, "unregister moved worker socket"))
		}
		if err := e.selector.Register(lastSlot.parentConn, ipc.SelectorCookie{PidIdx: pidIdx}); err != nil {
			return handshakeErr(lastSlot.procID, errors.Wrap(err, "re-register moved worker socket"))
		}
	}
	return nil
}

// Cleanup sends a Stop header to every tracked worker, releases every
// slot's resources, and closes the readiness selector. The coordinator
// must not be used after Cleanup returns.
func (e *EnvProcessInterface) Cleanup() error {
	var firstErr error
	for _, slot := range e.slots {
		payload := slot.shm.Payload()
		wire.AppendHeader(payload, 0, wire.HeaderStop)
		slot.shm.Event().Signal()
		// Pause briefly between signaling Stop and releasing the region.
		time.Sleep(time.Millisecond)
		if err := slot.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	e.slots = nil
	e.procIDToPidIdx = map[string]int{}
	if err := e.selector.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	// Unlock is best-effort: if no process was ever added, the lock was
	// never acquired and Unlock returning an error here is expected.
	_ = e.flinksLock.Unlock()
	return firstErr
}

// SendEnvActions writes one EnvAction per worker named in actions and
// signals each worker's event. An unknown proc_id fails the whole call
// before anything is written, since a partially applied batch would leave
// some workers mid-step and others not.
func (e *EnvProcessInterface) SendEnvActions(actions map[string]EnvAction) error {
	for procID := range actions {
		if _, ok := e.procIDToPidIdx[procID]; !ok {
			return protocolErr(procID, "unknown proc_id")
		}
	}
	for procID, action := range actions {
		slot := e.slots[e.procIDToPidIdx[procID]]

		payload := slot.shm.Payload()
		if _, err := appendEnvAction(payload, 0, action, e.codecs.Action, e.codecs.State); err != nil {
			return codecErr(procID, err)
		}

		actionCopy := action
		slot.pendingAction = &actionCopy
		if action.IsNewEpisode() {
			slot.resetShadowStateForNewEpisode()
		} else {
			slot.aald = action.StepAald
		}
		slot.shm.Event().Signal()
	}
	return nil
}

// CollectStepData blocks until responses from at least
// minProcessStepsPerInference distinct workers have been decoded, decoding
// every worker reported ready along the way. It returns the total number
// of Timesteps produced across all STEP responses in this call, plus the
// per-worker results keyed by proc_id; every collected worker contributes
// its current agent ids and observations to obsByProc, and a worker that
// sent a STEP response also contributes to timestepDataByProc.
func (e *EnvProcessInterface) CollectStepData() (
	nTimesteps int,
	obsByProc map[string]ObsData,
	timestepDataByProc map[string]TimestepData,
	stateInfoByProc map[string]StateInfoData,
	err error,
) {
	if err := e.drainPendingAdds(); err != nil {
		return 0, nil, nil, nil, err
	}

	obsByProc = map[string]ObsData{}
	timestepDataByProc = map[string]TimestepData{}
	stateInfoByProc = map[string]StateInfoData{}

	collected := 0
	seen := map[int]bool{}
	for collected < e.minProcessStepsPerInference {
		events, serr := e.selector.Select()
		if serr != nil {
			return 0, nil, nil, nil, handshakeErr("", errors.Wrap(serr, "select on worker readiness"))
		}
		for _, ev := range events {
			pidIdx := ev.Cookie.PidIdx
			if pidIdx < 0 || pidIdx >= len(e.slots) {
				continue
			}
			// A worker can only have one response outstanding; a second
			// readiness event for the same slot within one batch is a
			// duplicate wakeup and is ignored rather than decoded twice.
			if seen[pidIdx] {
				continue
			}
			seen[pidIdx] = true

			slot := e.slots[pidIdx]
			kind, obs, tsd, sid, cerr := e.collectResponse(slot)
			if cerr != nil {
				return 0, nil, nil, nil, cerr
			}
			switch kind {
			case EnvActionKindStep:
				timestepDataByProc[slot.procID] = tsd
				nTimesteps += len(tsd.Timesteps)
				obsByProc[slot.procID] = ObsData{AgentIDs: slot.agentIDs, Obs: slot.currentObs}
			case EnvActionKindReset, EnvActionKindSetState:
				obsByProc[slot.procID] = obs
			}
			if sid != nil {
				stateInfoByProc[slot.procID] = *sid
			}
			collected++
		}
	}
	return nTimesteps, obsByProc, timestepDataByProc, stateInfoByProc, nil
}

// collectResponse decodes one worker's response according to the kind of
// EnvAction the coordinator most recently sent it, and advances that
// slot's shadow state (agent ids and chained timestep ids) for next time.
func (e *EnvProcessInterface) collectResponse(slot *workerSlot) (
	kind EnvActionKind,
	obs ObsData,
	tsd TimestepData,
	stateInfo *StateInfoData,
	err error,
) {
	if slot.pendingAction == nil {
		return 0, ObsData{}, TimestepData{}, nil, protocolErr(slot.procID, "response collected with no outstanding action")
	}
	kind = slot.pendingAction.Kind
	payload := slot.shm.Payload()
	offset := 0

	var terminated, truncated map[any]bool
	switch kind {
	case EnvActionKindStep:
		tsd, terminated, truncated, offset, err = e.decodeStepResponse(slot, payload, offset)
		if err != nil {
			return kind, ObsData{}, TimestepData{}, nil, err
		}
	case EnvActionKindReset, EnvActionKindSetState:
		obs, offset, err = e.decodeNewEpisodeResponse(slot, payload, offset)
		if err != nil {
			return kind, ObsData{}, TimestepData{}, nil, err
		}
	default:
		return kind, ObsData{}, TimestepData{}, nil, protocolErr(slot.procID, "pending action has unknown kind")
	}

	// For STEP responses the dense terminated/truncated maps are always
	// surfaced; State/Metrics are decoded independently of one another and
	// of the terminated/truncated maps, each gated by its own feature flag.
	needStateInfo := kind == EnvActionKindStep ||
		(e.cfg.SendStateToAgentControllers && e.codecs.State != nil) ||
		(e.cfg.ShouldCollectStateMetrics && e.codecs.StateMetrics != nil)
	if needStateInfo {
		si, _, serr := e.decodeStateInfo(slot, payload, offset, terminated, truncated)
		if serr != nil {
			return kind, obs, tsd, nil, serr
		}
		stateInfo = &si
	}

	slot.pendingAction = nil
	return kind, obs, tsd, stateInfo, nil
}

// decodeStepResponse decodes a STEP response's per-agent slots. Each slot
// is, in wire order, an optional recalculated AgentId (only when
// RecalculateAgentIDEveryStep is on), then Obs, Reward, terminated and
// truncated. Timestep.Obs is sourced from slot.currentObs, the observation
// each agent was last seen with, while Timestep.NextObs is the value just
// decoded; slot.currentObs is then replaced with this step's observations
// so the next call sources from them in turn.
func (e *EnvProcessInterface) decodeStepResponse(slot *workerSlot, payload []byte, offset int) (TimestepData, map[any]bool, map[any]bool, int, error) {
	nAgents := len(slot.agentIDs)
	timesteps := make([]timestep.Timestep, 0, nAgents)
	nextPrevIDs := make([]*timestep.ID, nAgents)
	nextAgentIDs := make([]any, nAgents)
	nextObs := make([]any, nAgents)
	terminatedMap := make(map[any]bool, nAgents)
	truncatedMap := make(map[any]bool, nAgents)

	for i := 0; i < nAgents; i++ {
		var (
			agentID               any
			obsVal                any
			rewardVal             any
			terminated, truncated bool
			derr                  error
		)
		agentID = slot.agentIDs[i]
		if e.cfg.RecalculateAgentIDEveryStep {
			agentID, offset, derr = e.codecs.AgentID.Retrieve(payload, offset)
			if derr != nil {
				return TimestepData{}, nil, nil, offset, codecErr(slot.procID, errors.Wrap(derr, "decode recalculated agent id"))
			}
		}
		obsVal, offset, derr = e.codecs.Obs.Retrieve(payload, offset)
		if derr != nil {
			return TimestepData{}, nil, nil, offset, codecErr(slot.procID, errors.Wrap(derr, "decode next observation"))
		}
		rewardVal, offset, derr = e.codecs.Reward.Retrieve(payload, offset)
		if derr != nil {
			return TimestepData{}, nil, nil, offset, codecErr(slot.procID, errors.Wrap(derr, "decode reward"))
		}
		terminated, offset, derr = wire.RetrieveBool(payload, offset)
		if derr != nil {
			return TimestepData{}, nil, nil, offset, codecErr(slot.procID, errors.Wrap(derr, "decode terminated flag"))
		}
		truncated, offset, derr = wire.RetrieveBool(payload, offset)
		if derr != nil {
			return TimestepData{}, nil, nil, offset, codecErr(slot.procID, errors.Wrap(derr, "decode truncated flag"))
		}

		id := timestep.NewID()
		var prevID *timestep.ID
		if i < len(slot.prevTimestepIDs) {
			prevID = slot.prevTimestepIDs[i]
		}
		var action any
		if i < len(slot.pendingAction.StepActions) {
			action = slot.pendingAction.StepActions[i]
		}
		var prevObs any
		if i < len(slot.currentObs) {
			prevObs = slot.currentObs[i]
		}

		timesteps = append(timesteps, timestep.Timestep{
			ProcID:     slot.procID,
			ID:         id,
			PrevID:     prevID,
			AgentID:    agentID,
			Obs:        prevObs,
			NextObs:    obsVal,
			Action:     action,
			Reward:     rewardVal,
			Terminated: terminated,
			Truncated:  truncated,
		})
		idCopy := id
		nextPrevIDs[i] = &idCopy
		nextAgentIDs[i] = agentID
		nextObs[i] = obsVal
		terminatedMap[agentID] = terminated
		truncatedMap[agentID] = truncated
	}

	slot.prevTimestepIDs = nextPrevIDs
	slot.agentIDs = nextAgentIDs
	slot.currentObs = nextObs

	return TimestepData{Timesteps: timesteps, Aald: slot.aald}, terminatedMap, truncatedMap, offset, nil
}

func (e *EnvProcessInterface) decodeNewEpisodeResponse(slot *workerSlot, payload []byte, offset int) (ObsData, int, error) {
	nAgents, offset, err := wire.RetrieveUsize(payload, offset)
	if err != nil {
		return ObsData{}, offset, codecErr(slot.procID, errors.Wrap(err, "decode agent count"))
	}

	agentIDs := make([]any, 0, nAgents)
	obsList := make([]any, 0, nAgents)
	for i := 0; i < nAgents; i++ {
		var agentID, obsVal any
		agentID, offset, err = e.codecs.AgentID.Retrieve(payload, offset)
		if err != nil {
			return ObsData{}, offset, codecErr(slot.procID, errors.Wrap(err, "decode agent id"))
		}
		obsVal, offset, err = e.codecs.Obs.Retrieve(payload, offset)
		if err != nil {
			return ObsData{}, offset, codecErr(slot.procID, errors.Wrap(err, "decode initial observation"))
		}
		agentIDs = append(agentIDs, agentID)
		obsList = append(obsList, obsVal)
	}

	prevIDs := make([]*timestep.ID, nAgents)
	if slot.pendingAction.PrevTimestepIDs != nil {
		for i, id := range agentIDs {
			if prevID, ok := slot.pendingAction.PrevTimestepIDs[id]; ok {
				prevIDs[i] = prevID
			}
		}
	}

	slot.agentIDs = agentIDs
	slot.prevTimestepIDs = prevIDs
	slot.currentObs = obsList
	return ObsData{AgentIDs: agentIDs, Obs: obsList}, offset, nil
}

// decodeStateInfo decodes the optional state and state-metrics blocks
// trailing a response, each gated by its own feature flag and decoded
// independently of the other, state first. terminated and truncated are
// passed through from decodeStepResponse and are nil for RESET/SET_STATE
// responses, which have no per-agent flags to report.
func (e *EnvProcessInterface) decodeStateInfo(slot *workerSlot, payload []byte, offset int, terminated, truncated map[any]bool) (StateInfoData, int, error) {
	info := StateInfoData{Terminated: terminated, Truncated: truncated}

	if e.cfg.SendStateToAgentControllers && e.codecs.State != nil {
		var state any
		var err error
		state, offset, err = e.codecs.State.Retrieve(payload, offset)
		if err != nil {
			return StateInfoData{}, offset, codecErr(slot.procID, errors.Wrap(err, "decode state"))
		}
		info.State = state
	}

	if e.cfg.ShouldCollectStateMetrics && e.codecs.StateMetrics != nil {
		var metrics any
		var err error
		metrics, offset, err = e.codecs.StateMetrics.Retrieve(payload, offset)
		if err != nil {
			return StateInfoData{}, offset, codecErr(slot.procID, errors.Wrap(err, "decode state metrics"))
		}
		info.Metrics = metrics
	}

	return info, offset, nil
}

// IncreaseMinProcessStepsPerInference raises the number of worker
// responses CollectStepData waits to batch before returning, used by
// callers that want bigger inference batches at the cost of latency.
func (e *EnvProcessInterface) IncreaseMinProcessStepsPerInference() {
	if e.minProcessStepsPerInference < len(e.slots) {
		e.minProcessStepsPerInference++
	}
}

// DecreaseMinProcessStepsPerInference lowers the number of worker
// responses CollectStepData waits to batch before returning, down to a
// floor of 1.
func (e *EnvProcessInterface) DecreaseMinProcessStepsPerInference() {
	if e.minProcessStepsPerInference > 1 {
		e.minProcessStepsPerInference--
	}
}
