//go:build linux

package ipc

import (
	"net"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// epollReadEvent is the only event-mask bit this selector watches for.
const epollReadEvent = unix.EPOLLIN

// epollSelector is the Linux ReadinessSelector backend: every registered
// socket's file descriptor is added to a single epoll instance, and Select
// drains exactly the sockets epoll reports as readable.
type epollSelector struct {
	mu      sync.Mutex
	epfd    int
	byFD    map[int]SelectorCookie
	connFDs map[*net.UnixConn]int
}

func newEpollSelector() (*epollSelector, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, errors.Wrap(err, "ipc: epoll_create1")
	}
	return &epollSelector{
		epfd:    epfd,
		byFD:    map[int]SelectorCookie{},
		connFDs: map[*net.UnixConn]int{},
	}, nil
}

func connFD(conn *net.UnixConn) (int, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return 0, errors.Wrap(err, "ipc: obtain raw socket conn")
	}
	var fd int
	cerr := raw.Control(func(fdv uintptr) {
		fd = int(fdv)
	})
	if cerr != nil {
		return 0, errors.Wrap(cerr, "ipc: obtain socket fd")
	}
	return fd, nil
}

func (s *epollSelector) Register(conn *net.UnixConn, cookie SelectorCookie) error {
	fd, err := connFD(conn)
	if err != nil {
		return err
	}
	event := unix.EpollEvent{Events: epollReadEvent, Fd: int32(fd)}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
		return errors.Wrapf(err, "ipc: epoll_ctl add fd %d", fd)
	}
	s.byFD[fd] = cookie
	s.connFDs[conn] = fd
	return nil
}

func (s *epollSelector) Unregister(conn *net.UnixConn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fd, ok := s.connFDs[conn]
	if !ok {
		return nil
	}
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return errors.Wrapf(err, "ipc: epoll_ctl del fd %d", fd)
	}
	delete(s.byFD, fd)
	delete(s.connFDs, conn)
	return nil
}

func (s *epollSelector) Select() ([]ReadyEvent, error) {
	events := make([]unix.EpollEvent, 64)
	for {
		n, err := unix.EpollWait(s.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, errors.Wrap(err, "ipc: epoll_wait")
		}
		if n == 0 {
			continue
		}
		ready := make([]ReadyEvent, 0, n)
		s.mu.Lock()
		for _, ev := range events[:n] {
			if ev.Events&epollReadEvent == 0 {
				continue
			}
			cookie, ok := s.byFD[int(ev.Fd)]
			if !ok {
				continue
			}
			ready = append(ready, ReadyEvent{Cookie: cookie})
		}
		s.mu.Unlock()
		if len(ready) == 0 {
			continue
		}
		if err := s.drain(ready); err != nil {
			return nil, err
		}
		return ready, nil
	}
}

// drain reads and discards the single notification byte backing each ready
// event, satisfying the framing contract that a readiness report always
// corresponds to a byte that has actually been consumed.
func (s *epollSelector) drain(ready []ReadyEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, fd := range s.connFDs {
		for _, ev := range ready {
			if s.byFD[fd] == ev.Cookie {
				if _, err := RecvByte(conn); err != nil {
					return errors.Wrapf(err, "ipc: drain readiness byte for fd %d", fd)
				}
			}
		}
	}
	return nil
}

func (s *epollSelector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return unix.Close(s.epfd)
}

// NewReadinessSelector constructs the platform-preferred ReadinessSelector:
// epoll on Linux.
func NewReadinessSelector() (ReadinessSelector, error) {
	return newEpollSelector()
}
