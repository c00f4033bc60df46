package rlgymlearn

import (
	"github.com/pkg/errors"

	"github.com/Martico2432/rlgym-learn/pkg/codec"
	"github.com/Martico2432/rlgym-learn/pkg/timestep"
	"github.com/Martico2432/rlgym-learn/pkg/wire"
)

// EnvActionKind discriminates the three shapes an EnvAction can take, the
// same three a worker's main loop switches on.
type EnvActionKind byte

const (
	// EnvActionKindStep carries one action per currently-tracked agent.
	EnvActionKindStep EnvActionKind = iota
	// EnvActionKindReset asks the worker to start a new episode and send
	// back its initial observations.
	EnvActionKindReset
	// EnvActionKindSetState asks the worker to reset into a caller-chosen
	// state and send back the resulting observations.
	EnvActionKindSetState
)

func (k EnvActionKind) String() string {
	switch k {
	case EnvActionKindStep:
		return "STEP"
	case EnvActionKindReset:
		return "RESET"
	case EnvActionKindSetState:
		return "SET_STATE"
	default:
		return "UNKNOWN"
	}
}

// EnvAction is the tagged union a coordinator hands to SendEnvActions for a
// single worker. Only the fields relevant to Kind are populated; this
// mirrors env_action.rs's EnvAction enum rather than reaching for an
// interface-per-variant design, since every variant is handled by
// exhaustive switches on Kind (wire encode and response decode).
type EnvAction struct {
	Kind EnvActionKind

	// StepActions holds one action per agent currently tracked for the
	// target worker, in the same order as the worker's current agent id
	// list. Populated only when Kind == EnvActionKindStep.
	StepActions []any

	// StepAald is an opaque "additional action log data" value threaded
	// through unchanged to the resulting Timesteps. Nil is a valid value.
	// Populated only when Kind == EnvActionKindStep.
	StepAald any

	// DesiredState is the state a worker should reset into. Populated
	// only when Kind == EnvActionKindSetState.
	DesiredState any

	// PrevTimestepIDs optionally tells the coordinator which prior
	// timestep each agent id in the resulting RESET/SET_STATE response
	// should chain from. It is bookkeeping local to the parent process;
	// it never crosses the wire. A nil map means "no chaining requested".
	PrevTimestepIDs map[any]*timestep.ID
}

// NewStepAction builds a STEP EnvAction.
func NewStepAction(actions []any, aald any) EnvAction {
	return EnvAction{Kind: EnvActionKindStep, StepActions: actions, StepAald: aald}
}

// NewResetAction builds a RESET EnvAction.
func NewResetAction() EnvAction {
	return EnvAction{Kind: EnvActionKindReset}
}

// NewSetStateAction builds a SET_STATE EnvAction. prevTimestepIDs may be nil.
func NewSetStateAction(desiredState any, prevTimestepIDs map[any]*timestep.ID) EnvAction {
	return EnvAction{
		Kind:            EnvActionKindSetState,
		DesiredState:    desiredState,
		PrevTimestepIDs: prevTimestepIDs,
	}
}

// IsNewEpisode reports whether applying this action starts a new episode,
// i.e. whether the worker will respond with initial observations rather
// than a STEP transition.
func (a EnvAction) IsNewEpisode() bool {
	return a.Kind != EnvActionKindStep
}

// appendEnvAction writes a's wire representation (header tag plus whatever
// payload the variant carries) into buf at offset, using actionCodec to
// encode each STEP action and stateCodec to encode a SET_STATE's desired
// state. It mirrors append_env_action_new: STEP carries no action-count
// prefix, since both sides already hold the agent count as shadow state;
// RESET carries no payload; and a SET_STATE's PrevTimestepIDs never
// crosses the wire, since the worker has no use for it.
func appendEnvAction(buf []byte, offset int, a EnvAction, actionCodec, stateCodec codec.Codec[any]) (int, error) {
	if a.Kind > EnvActionKindSetState {
		return offset, errors.Errorf("env_action: unknown EnvActionKind %d", a.Kind)
	}
	offset = wire.AppendHeader(buf, offset, wire.HeaderEnvAction)

	offset, err := appendVariantTag(buf, offset, a.Kind)
	if err != nil {
		return offset, err
	}

	switch a.Kind {
	case EnvActionKindStep:
		for i, action := range a.StepActions {
			offset, err = actionCodec.Append(buf, offset, action)
			if err != nil {
				return offset, errors.Wrapf(err, "env_action: encode action %d", i)
			}
		}
	case EnvActionKindReset:
		// No payload.
	case EnvActionKindSetState:
		if stateCodec == nil {
			return offset, errors.New("env_action: SET_STATE requires a state codec")
		}
		offset, err = stateCodec.Append(buf, offset, a.DesiredState)
		if err != nil {
			return offset, errors.Wrap(err, "env_action: encode desired state")
		}
	}
	return offset, nil
}

// variantTagWidth is the width, in bytes, of the byte distinguishing
// STEP/RESET/SET_STATE within an EnvAction payload, distinct from the
// outer wire.Header command byte.
const variantTagWidth = 1

func appendVariantTag(buf []byte, offset int, kind EnvActionKind) (int, error) {
	if offset >= len(buf) {
		return offset, errors.New("env_action: buffer too short to encode variant tag")
	}
	buf[offset] = byte(kind)
	return offset + variantTagWidth, nil
}

func retrieveVariantTag(buf []byte, offset int) (EnvActionKind, int, error) {
	if offset >= len(buf) {
		return 0, offset, errors.New("env_action: buffer too short to decode variant tag")
	}
	kind := EnvActionKind(buf[offset])
	if kind > EnvActionKindSetState {
		return 0, offset, errors.Errorf("env_action: invalid variant tag %d", buf[offset])
	}
	return kind, offset + variantTagWidth, nil
}
