package ipc

import (
	"net"

	"github.com/pkg/errors"
)

// NewUnixgramSocket binds a datagram Unix domain socket at path. It is
// used for both the parent-side readiness endpoint and the worker-side
// endpoint in loopback test fixtures.
func NewUnixgramSocket(path string) (*net.UnixConn, *net.UnixAddr, error) {
	addr, err := net.ResolveUnixAddr("unixgram", path)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "ipc: resolve unixgram address %s", path)
	}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "ipc: listen unixgram %s", path)
	}
	return conn, addr, nil
}

// SendByte writes a single, content-free byte to addr over conn. The
// parent never interprets the payload of such a message; only its arrival
// matters, so the byte value itself is a constant.
func SendByte(conn *net.UnixConn, addr *net.UnixAddr) error {
	_, _, err := conn.WriteMsgUnix([]byte{1}, nil, addr)
	if err != nil {
		return errors.Wrapf(err, "ipc: send readiness byte to %s", addr.String())
	}
	return nil
}

// RecvByte blocks until a single byte arrives on conn and discards it. The
// returned address is the sender's.
func RecvByte(conn *net.UnixConn) (*net.UnixAddr, error) {
	buf := make([]byte, 1)
	_, _, _, addr, err := conn.ReadMsgUnix(buf, nil)
	if err != nil {
		return nil, errors.Wrap(err, "ipc: receive readiness byte")
	}
	return addr, nil
}
