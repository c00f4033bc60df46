package ipc_test

import (
	"path/filepath"
	"testing"

	"github.com/Martico2432/rlgym-learn/pkg/ipc"
)

func TestCreateAndOpenShmRegion(t *testing.T) {
	dir := t.TempDir()
	flink := filepath.Join(dir, "proc-0")

	creator, err := ipc.CreateShmRegion(flink, 64)
	if err != nil {
		t.Fatalf("CreateShmRegion: %v", err)
	}
	defer creator.Close()

	opener, err := ipc.OpenShmRegion(flink, 64)
	if err != nil {
		t.Fatalf("OpenShmRegion: %v", err)
	}
	defer opener.Close()

	copy(creator.Payload(), []byte("hello"))
	if got := string(opener.Payload()[:5]); got != "hello" {
		t.Fatalf("opener saw payload %q, want %q", got, "hello")
	}
}

func TestEventSignalAcrossMappings(t *testing.T) {
	dir := t.TempDir()
	flink := filepath.Join(dir, "proc-0")

	creator, err := ipc.CreateShmRegion(flink, 16)
	if err != nil {
		t.Fatalf("CreateShmRegion: %v", err)
	}
	defer creator.Close()

	opener, err := ipc.OpenShmRegion(flink, 16)
	if err != nil {
		t.Fatalf("OpenShmRegion: %v", err)
	}
	defer opener.Close()

	if state := opener.Event().State(); state != ipc.EventStateClear {
		t.Fatalf("fresh event state = %v, want Clear", state)
	}
	creator.Event().Signal()
	if state := opener.Event().State(); state != ipc.EventStateSignaled {
		t.Fatalf("event state after Signal = %v, want Signaled", state)
	}
}

func TestOpenShmRegionRejectsUndersizedFile(t *testing.T) {
	dir := t.TempDir()
	flink := filepath.Join(dir, "proc-0")

	creator, err := ipc.CreateShmRegion(flink, 16)
	if err != nil {
		t.Fatalf("CreateShmRegion: %v", err)
	}
	creator.Close()

	// CreateShmRegion's Close removed the backing file (it was the
	// creator), so recreate a too-small one by hand via another create
	// call with a smaller payload size, then try to open it expecting a
	// larger one.
	creator, err = ipc.CreateShmRegion(flink, 4)
	if err != nil {
		t.Fatalf("CreateShmRegion: %v", err)
	}
	defer creator.Close()

	if _, err := ipc.OpenShmRegion(flink, 64); err == nil {
		t.Fatal("expected OpenShmRegion to reject an undersized backing file")
	}
}
