// Package rawcodec provides a minimal length-prefixed byte-slice Codec,
// the default serializer cmd/epictl falls back to when a caller hasn't
// wired in a domain-specific one. It treats every value as an opaque
// []byte and round-trips it verbatim.
package rawcodec

import (
	"github.com/pkg/errors"

	"github.com/Martico2432/rlgym-learn/pkg/codec"
	"github.com/Martico2432/rlgym-learn/pkg/wire"
)

// Bytes returns a Codec[any] whose values must be []byte, encoded as a
// usize length followed by that many raw bytes.
func Bytes() codec.Codec[any] {
	return codec.Func[any]{
		AppendFunc: func(buf []byte, offset int, value any) (int, error) {
			b, ok := value.([]byte)
			if !ok {
				return offset, errors.Errorf("rawcodec: expected []byte, got %T", value)
			}
			offset, err := wire.AppendUsize(buf, offset, len(b))
			if err != nil {
				return offset, err
			}
			if offset+len(b) > len(buf) {
				return offset, errors.New("rawcodec: buffer too short for payload")
			}
			copy(buf[offset:], b)
			return offset + len(b), nil
		},
		RetrieveFunc: func(buf []byte, offset int) (any, int, error) {
			n, offset, err := wire.RetrieveUsize(buf, offset)
			if err != nil {
				return nil, offset, err
			}
			if offset+n > len(buf) {
				return nil, offset, errors.New("rawcodec: buffer too short to decode payload")
			}
			out := make([]byte, n)
			copy(out, buf[offset:offset+n])
			return out, offset + n, nil
		},
	}
}

// Str returns a Codec[any] with the same usize-prefixed wire layout as
// Bytes, but whose values are Go strings rather than []byte. Agent ids
// that are used as map keys (the terminated/truncated maps, a caller's
// PrevTimestepIDs) need a comparable underlying type; []byte is not
// comparable and would panic a map lookup, so callers that key maps by
// agent id should pair this codec with their AgentID field instead of
// Bytes.
func Str() codec.Codec[any] {
	return codec.Func[any]{
		AppendFunc: func(buf []byte, offset int, value any) (int, error) {
			s, ok := value.(string)
			if !ok {
				return offset, errors.Errorf("rawcodec: expected string, got %T", value)
			}
			offset, err := wire.AppendUsize(buf, offset, len(s))
			if err != nil {
				return offset, err
			}
			if offset+len(s) > len(buf) {
				return offset, errors.New("rawcodec: buffer too short for payload")
			}
			copy(buf[offset:], s)
			return offset + len(s), nil
		},
		RetrieveFunc: func(buf []byte, offset int) (any, int, error) {
			n, offset, err := wire.RetrieveUsize(buf, offset)
			if err != nil {
				return nil, offset, err
			}
			if offset+n > len(buf) {
				return nil, offset, errors.New("rawcodec: buffer too short to decode payload")
			}
			return string(buf[offset : offset+n]), offset + n, nil
		},
	}
}
