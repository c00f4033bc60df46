package rlgymlearn

import (
	"testing"

	"github.com/Martico2432/rlgym-learn/internal/rawcodec"
	"github.com/Martico2432/rlgym-learn/pkg/wire"
)

func TestAppendEnvActionStep(t *testing.T) {
	buf := make([]byte, 256)
	action := NewStepAction([]any{[]byte("a1"), []byte("a2")}, []byte("aald"))
	bytesCodec := rawcodec.Bytes()

	offset, err := appendEnvAction(buf, 0, action, bytesCodec, nil)
	if err != nil {
		t.Fatalf("appendEnvAction: %v", err)
	}
	if offset <= 0 {
		t.Fatal("appendEnvAction did not advance the offset")
	}

	header, o, err := wire.RetrieveHeader(buf, 0)
	if err != nil || header != wire.HeaderEnvAction {
		t.Fatalf("header = %v, %v, want HeaderEnvAction", header, err)
	}
	kind, o, err := retrieveVariantTag(buf, o)
	if err != nil || kind != EnvActionKindStep {
		t.Fatalf("variant tag = %v, %v, want STEP", kind, err)
	}
	first, o, err := bytesCodec.Retrieve(buf, o)
	if err != nil || string(first.([]byte)) != "a1" {
		t.Fatalf("first action = %v, %v, want a1", first, err)
	}
	second, _, err := bytesCodec.Retrieve(buf, o)
	if err != nil || string(second.([]byte)) != "a2" {
		t.Fatalf("second action = %v, %v, want a2", second, err)
	}
}

func TestAppendEnvActionReset(t *testing.T) {
	buf := make([]byte, 64)
	offset, err := appendEnvAction(buf, 0, NewResetAction(), rawcodec.Bytes(), nil)
	if err != nil {
		t.Fatalf("appendEnvAction: %v", err)
	}
	// Header byte plus one variant tag byte, no payload.
	if offset != 2 {
		t.Fatalf("offset after RESET = %d, want 2", offset)
	}
}

func TestAppendEnvActionSetStateRequiresStateCodec(t *testing.T) {
	buf := make([]byte, 64)
	action := NewSetStateAction([]byte("state"), nil)
	if _, err := appendEnvAction(buf, 0, action, rawcodec.Bytes(), nil); err == nil {
		t.Fatal("expected an error encoding SET_STATE with a nil state codec")
	}
	if _, err := appendEnvAction(buf, 0, action, rawcodec.Bytes(), rawcodec.Bytes()); err != nil {
		t.Fatalf("appendEnvAction with a state codec supplied: %v", err)
	}
}

func TestAppendEnvActionUnknownKindRejected(t *testing.T) {
	buf := make([]byte, 64)
	bad := EnvAction{Kind: EnvActionKind(99)}
	if _, err := appendEnvAction(buf, 0, bad, rawcodec.Bytes(), rawcodec.Bytes()); err == nil {
		t.Fatal("expected an error encoding an unknown EnvActionKind")
	}
}

func TestIsNewEpisode(t *testing.T) {
	if NewStepAction(nil, nil).IsNewEpisode() {
		t.Fatal("STEP should not be a new episode")
	}
	if !NewResetAction().IsNewEpisode() {
		t.Fatal("RESET should be a new episode")
	}
	if !NewSetStateAction(nil, nil).IsNewEpisode() {
		t.Fatal("SET_STATE should be a new episode")
	}
}
