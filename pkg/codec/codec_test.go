package codec_test

import (
	"testing"

	"github.com/Martico2432/rlgym-learn/pkg/codec"
	"github.com/Martico2432/rlgym-learn/pkg/wire"
)

// boxedInt is a tiny Codec[any] implementation standing in for a real
// domain codec, used only to exercise the Func adapter.
func boxedIntCodec() codec.Codec[any] {
	return codec.Func[any]{
		AppendFunc: func(buf []byte, offset int, value any) (int, error) {
			return wire.AppendUsize(buf, offset, value.(int))
		},
		RetrieveFunc: func(buf []byte, offset int) (any, int, error) {
			n, offset, err := wire.RetrieveUsize(buf, offset)
			return n, offset, err
		},
	}
}

func TestFuncAdapterRoundTrip(t *testing.T) {
	c := boxedIntCodec()
	buf := make([]byte, 32)

	offset, err := c.Append(buf, 0, 42)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, offset, err := c.Retrieve(buf, 0)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if got.(int) != 42 {
		t.Fatalf("Retrieve = %v, want 42", got)
	}
	if offset != 8 {
		t.Fatalf("offset = %d, want 8", offset)
	}
}
