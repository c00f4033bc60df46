package ipc_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Martico2432/rlgym-learn/pkg/ipc"
)

func TestPortableSelectorReportsReadiness(t *testing.T) {
	testSelector(t, ipc.NewPortableReadinessSelector())
}

func TestPlatformSelectorReportsReadiness(t *testing.T) {
	sel, err := ipc.NewReadinessSelector()
	if err != nil {
		t.Fatalf("NewReadinessSelector: %v", err)
	}
	testSelector(t, sel)
}

func testSelector(t *testing.T, sel ipc.ReadinessSelector) {
	t.Helper()
	defer sel.Close()

	dir := t.TempDir()
	parentConn, parentAddr, err := ipc.NewUnixgramSocket(filepath.Join(dir, "parent.sock"))
	if err != nil {
		t.Fatalf("NewUnixgramSocket(parent): %v", err)
	}
	defer parentConn.Close()

	childConn, _, err := ipc.NewUnixgramSocket(filepath.Join(dir, "child.sock"))
	if err != nil {
		t.Fatalf("NewUnixgramSocket(child): %v", err)
	}
	defer childConn.Close()

	if err := sel.Register(parentConn, ipc.SelectorCookie{PidIdx: 7}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := ipc.SendByte(childConn, parentAddr); err != nil {
		t.Fatalf("SendByte: %v", err)
	}

	done := make(chan []ipc.ReadyEvent, 1)
	errCh := make(chan error, 1)
	go func() {
		events, err := sel.Select()
		if err != nil {
			errCh <- err
			return
		}
		done <- events
	}()

	select {
	case events := <-done:
		if len(events) != 1 || events[0].Cookie.PidIdx != 7 {
			t.Fatalf("Select returned %+v, want one event with PidIdx 7", events)
		}
	case err := <-errCh:
		t.Fatalf("Select: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("Select did not return within 2s of a readiness byte being sent")
	}

	if err := sel.Unregister(parentConn); err != nil {
		t.Fatalf("Unregister: %v", err)
	}
}
