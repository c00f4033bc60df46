// Package wire implements the byte-level framing shared by every worker's
// shared-memory region: the one-byte command header written by the parent,
// and the small set of fixed-width primitives (usize, bool) the rest of the
// protocol layers on top of.
package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Header is the command-kind tag the parent writes at payload offset 0 of
// a worker's shared-memory region.
type Header byte

const (
	// HeaderEnvShapesRequest is sent exactly once per fleet, to worker 0,
	// to fetch the observation/action space descriptors.
	HeaderEnvShapesRequest Header = 0x00
	// HeaderEnvAction precedes a tagged EnvAction payload.
	HeaderEnvAction Header = 0x01
	// HeaderStop tells the worker to exit its main loop.
	HeaderStop Header = 0x02
)

func (h Header) String() string {
	switch h {
	case HeaderEnvShapesRequest:
		return "EnvShapesRequest"
	case HeaderEnvAction:
		return "EnvAction"
	case HeaderStop:
		return "Stop"
	default:
		return "Unknown"
	}
}

// AppendHeader writes h at offset and returns the offset of the first
// payload byte after it.
func AppendHeader(buf []byte, offset int, h Header) int {
	buf[offset] = byte(h)
	return offset + 1
}

// RetrieveHeader reads the header tag at offset and returns it along with
// the offset of the first payload byte after it.
func RetrieveHeader(buf []byte, offset int) (Header, int, error) {
	if offset >= len(buf) {
		return 0, offset, errors.New("wire: buffer too short to contain a header byte")
	}
	return Header(buf[offset]), offset + 1, nil
}

// usizeWidth is the fixed, platform-independent width used to encode
// lengths on the wire, regardless of the host's native int size.
const usizeWidth = 8

// AppendUsize encodes n as a fixed-width little-endian uint64.
func AppendUsize(buf []byte, offset int, n int) (int, error) {
	if n < 0 {
		return offset, errors.Errorf("wire: cannot encode negative length %d", n)
	}
	if offset+usizeWidth > len(buf) {
		return offset, errors.New("wire: buffer too short to encode a usize")
	}
	binary.LittleEndian.PutUint64(buf[offset:offset+usizeWidth], uint64(n))
	return offset + usizeWidth, nil
}

// RetrieveUsize decodes a length previously written by AppendUsize.
func RetrieveUsize(buf []byte, offset int) (int, int, error) {
	if offset+usizeWidth > len(buf) {
		return 0, offset, errors.New("wire: buffer too short to decode a usize")
	}
	n := binary.LittleEndian.Uint64(buf[offset : offset+usizeWidth])
	return int(n), offset + usizeWidth, nil
}

// AppendBool encodes b as a single byte, 0 or 1.
func AppendBool(buf []byte, offset int, b bool) (int, error) {
	if offset >= len(buf) {
		return offset, errors.New("wire: buffer too short to encode a bool")
	}
	if b {
		buf[offset] = 1
	} else {
		buf[offset] = 0
	}
	return offset + 1, nil
}

// RetrieveBool decodes a bool previously written by AppendBool.
func RetrieveBool(buf []byte, offset int) (bool, int, error) {
	if offset >= len(buf) {
		return false, offset, errors.New("wire: buffer too short to decode a bool")
	}
	return buf[offset] != 0, offset + 1, nil
}
