// Package codec defines the contract EPI requires from the pluggable
// encoder/decoder registry that serializes domain values (observations,
// actions, rewards, states, agent ids, ...) to and from shared memory.
//
// EPI never inspects the bytes a Codec produces. It only needs to know
// where the next value starts, which is why every method threads an
// explicit offset instead of assuming a stream cursor.
package codec

// Codec serializes and deserializes values of type T into a byte buffer
// at a caller-supplied offset. The same Codec instance MUST be used on
// both ends of a stream position; EPI inserts no self-describing tags of
// its own, so a mismatched pair of codecs on the two sides will silently
// misparse the wire format.
type Codec[T any] interface {
	// Append encodes value into buf starting at offset and returns the
	// offset immediately following the encoded bytes.
	Append(buf []byte, offset int, value T) (newOffset int, err error)
	// Retrieve decodes a value of type T from buf starting at offset and
	// returns it along with the offset immediately following it.
	Retrieve(buf []byte, offset int) (value T, newOffset int, err error)
}

// Func adapts a pair of plain functions to the Codec interface, mirroring
// the http.HandlerFunc pattern for the common case where a codec has no
// state of its own.
type Func[T any] struct {
	AppendFunc   func(buf []byte, offset int, value T) (int, error)
	RetrieveFunc func(buf []byte, offset int) (T, int, error)
}

func (f Func[T]) Append(buf []byte, offset int, value T) (int, error) {
	return f.AppendFunc(buf, offset, value)
}

func (f Func[T]) Retrieve(buf []byte, offset int) (T, int, error) {
	return f.RetrieveFunc(buf, offset)
}
