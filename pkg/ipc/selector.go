package ipc

import (
	"net"
	"sync"
	"time"

	channerics "github.com/niceyeti/channerics/channels"
	"github.com/pkg/errors"
)

// SelectorCookie is the data a ReadinessSelector hands back on a ready
// event. It MUST carry at least PidIdx so the coordinator can correlate a
// readiness notification back to its WorkerSlot without a reverse lookup.
type SelectorCookie struct {
	PidIdx int
}

// ReadyEvent is one socket's readiness report. By the time a ReadyEvent is
// returned from Select, the selector has already drained the single
// notification byte from the underlying socket.
type ReadyEvent struct {
	Cookie SelectorCookie
}

// ReadinessSelector waits on many parent-side sockets at once and reports
// which ones have pending bytes. Two implementations are provided: an
// epoll-backed one on Linux (selector_linux.go) and a portable
// channel-fan-in one (this file), used on every other platform. Both
// satisfy this same interface and the coordinator is agnostic to which one
// it holds.
type ReadinessSelector interface {
	// Register starts watching conn for readiness, reporting cookie when
	// it fires.
	Register(conn *net.UnixConn, cookie SelectorCookie) error
	// Unregister stops watching conn. It is a no-op if conn was never
	// registered.
	Unregister(conn *net.UnixConn) error
	// Select blocks until at least one registered socket is ready, then
	// returns every socket that was ready at the time of the call.
	// Spurious wakeups are filtered internally; every returned ReadyEvent
	// corresponds to a socket that actually had a byte to drain.
	Select() ([]ReadyEvent, error)
	// Close releases all selector resources. Registered sockets are not
	// closed; that remains the caller's responsibility.
	Close() error
}

// registration is one channel-backed watch in the portable selector.
type registration struct {
	cookie SelectorCookie
	out    chan ReadyEvent
	stop   chan struct{}
}

// channelSelector is the portable ReadinessSelector backend: one
// goroutine per registered socket reads (and drains) its single-byte
// notifications, publishing a ReadyEvent on a private channel; those
// channels are fanned into one stream with channerics.Merge, the same
// fan-in idiom this codebase's other channel pipelines use.
type channelSelector struct {
	mu      sync.Mutex
	regs    map[*net.UnixConn]*registration
	agg     <-chan ReadyEvent
	aggDone chan struct{}
	closed  bool
}

// newChannelSelector constructs the portable selector backend.
func newChannelSelector() *channelSelector {
	s := &channelSelector{
		regs: map[*net.UnixConn]*registration{},
	}
	s.rebuildLocked()
	return s
}

func (s *channelSelector) rebuildLocked() {
	if s.aggDone != nil {
		close(s.aggDone)
	}
	done := make(chan struct{})
	s.aggDone = done
	chans := make([]<-chan ReadyEvent, 0, len(s.regs))
	for _, r := range s.regs {
		chans = append(chans, r.out)
	}
	s.agg = channerics.Merge(done, chans...)
}

func (s *channelSelector) Register(conn *net.UnixConn, cookie SelectorCookie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("ipc: selector is closed")
	}
	if _, ok := s.regs[conn]; ok {
		return errors.New("ipc: socket already registered")
	}
	reg := &registration{
		cookie: cookie,
		out:    make(chan ReadyEvent, 1),
		stop:   make(chan struct{}),
	}
	s.regs[conn] = reg
	go watchSocket(conn, reg)
	s.rebuildLocked()
	return nil
}

func (s *channelSelector) Unregister(conn *net.UnixConn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	reg, ok := s.regs[conn]
	if !ok {
		return nil
	}
	close(reg.stop)
	delete(s.regs, conn)
	s.rebuildLocked()
	return nil
}

func (s *channelSelector) Select() ([]ReadyEvent, error) {
	s.mu.Lock()
	agg := s.agg
	s.mu.Unlock()
	first, ok := <-agg
	if !ok {
		return nil, errors.New("ipc: selector closed while waiting for readiness")
	}
	events := []ReadyEvent{first}
	for {
		select {
		case ev, ok := <-agg:
			if !ok {
				return events, nil
			}
			events = append(events, ev)
		default:
			return events, nil
		}
	}
}

func (s *channelSelector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, reg := range s.regs {
		close(reg.stop)
	}
	s.regs = map[*net.UnixConn]*registration{}
	if s.aggDone != nil {
		close(s.aggDone)
	}
	return nil
}

// watchSocket reads and drains readiness bytes from conn, reporting one
// ReadyEvent per byte received, until reg.stop is closed.
func watchSocket(conn *net.UnixConn, reg *registration) {
	for {
		select {
		case <-reg.stop:
			return
		default:
		}
		if err := conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond)); err != nil {
			return
		}
		if _, err := RecvByte(conn); err != nil {
			if ne, ok := errors.Cause(err).(net.Error); ok && ne.Timeout() {
				continue
			}
			return
		}
		select {
		case reg.out <- ReadyEvent{Cookie: reg.cookie}:
		case <-reg.stop:
			return
		}
	}
}

// NewPortableReadinessSelector constructs the channel fan-in
// ReadinessSelector backend explicitly, bypassing the platform-default
// choice made by NewReadinessSelector. Tests use this to exercise the
// fallback path even when running on Linux.
func NewPortableReadinessSelector() ReadinessSelector {
	return newChannelSelector()
}
