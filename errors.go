/*
Adapted from the IBM/mirbft state machine lineage this package descends
from; the error taxonomy below is EPI's own.
*/

package rlgymlearn

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies an EPIError by which stage of the worker protocol
// failed.
type ErrorKind int

const (
	// ErrKindHandshakeFailed means the initial byte exchange or shm open
	// with a worker failed.
	ErrKindHandshakeFailed ErrorKind = iota
	// ErrKindShmAccessFailed means event attachment or slice access on a
	// worker's shared-memory region failed.
	ErrKindShmAccessFailed
	// ErrKindCodecFailed means an Append/Retrieve call returned a
	// failure.
	ErrKindCodecFailed
	// ErrKindProtocolState means the caller or a worker violated the
	// protocol's state machine: collecting with no outstanding action,
	// an unknown proc_id, or an unexpected header tag.
	ErrKindProtocolState
	// ErrKindConfigInvalid means a required optional codec is missing
	// given the chosen feature flags.
	ErrKindConfigInvalid
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindHandshakeFailed:
		return "HandshakeFailed"
	case ErrKindShmAccessFailed:
		return "ShmAccessFailed"
	case ErrKindCodecFailed:
		return "CodecFailed"
	case ErrKindProtocolState:
		return "ProtocolState"
	case ErrKindConfigInvalid:
		return "ConfigInvalid"
	default:
		return "Unknown"
	}
}

// EPIError is the concrete error type every EPI public method returns on
// failure. ProcID is empty when the failure cannot be attributed to a
// specific worker (e.g. a global config error).
type EPIError struct {
	Kind   ErrorKind
	ProcID string
	cause  error
}

func newEPIError(kind ErrorKind, procID string, cause error) *EPIError {
	return &EPIError{Kind: kind, ProcID: procID, cause: cause}
}

func (e *EPIError) Error() string {
	if e.ProcID == "" {
		return fmt.Sprintf("epi: %s: %s", e.Kind, e.cause)
	}
	return fmt.Sprintf("epi: %s (proc_id=%s): %s", e.Kind, e.ProcID, e.cause)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *EPIError) Unwrap() error {
	return e.cause
}

func handshakeErr(procID string, cause error) error {
	return newEPIError(ErrKindHandshakeFailed, procID, cause)
}

func shmErr(procID string, cause error) error {
	return newEPIError(ErrKindShmAccessFailed, procID, cause)
}

func codecErr(procID string, cause error) error {
	return newEPIError(ErrKindCodecFailed, procID, cause)
}

func protocolErr(procID string, msg string) error {
	return newEPIError(ErrKindProtocolState, procID, errors.New(msg))
}

func configErr(msg string) error {
	return newEPIError(ErrKindConfigInvalid, "", errors.New(msg))
}
