package wire

import "testing"

func TestHeaderRoundTrip(t *testing.T) {
	buf := make([]byte, 16)
	for _, h := range []Header{HeaderEnvShapesRequest, HeaderEnvAction, HeaderStop} {
		offset := AppendHeader(buf, 0, h)
		if offset != 1 {
			t.Fatalf("AppendHeader advanced offset by %d, want 1", offset)
		}
		got, offset, err := RetrieveHeader(buf, 0)
		if err != nil {
			t.Fatalf("RetrieveHeader: %v", err)
		}
		if got != h {
			t.Fatalf("RetrieveHeader = %v, want %v", got, h)
		}
		if offset != 1 {
			t.Fatalf("RetrieveHeader advanced offset by %d, want 1", offset)
		}
	}
}

func TestRetrieveHeaderShortBuffer(t *testing.T) {
	if _, _, err := RetrieveHeader(nil, 0); err == nil {
		t.Fatal("expected error decoding header from empty buffer")
	}
}

func TestUsizeRoundTrip(t *testing.T) {
	buf := make([]byte, usizeWidth)
	for _, n := range []int{0, 1, 255, 1 << 20} {
		if _, err := AppendUsize(buf, 0, n); err != nil {
			t.Fatalf("AppendUsize(%d): %v", n, err)
		}
		got, offset, err := RetrieveUsize(buf, 0)
		if err != nil {
			t.Fatalf("RetrieveUsize: %v", err)
		}
		if got != n {
			t.Fatalf("RetrieveUsize = %d, want %d", got, n)
		}
		if offset != usizeWidth {
			t.Fatalf("RetrieveUsize offset = %d, want %d", offset, usizeWidth)
		}
	}
}

func TestAppendUsizeNegativeRejected(t *testing.T) {
	buf := make([]byte, usizeWidth)
	if _, err := AppendUsize(buf, 0, -1); err == nil {
		t.Fatal("expected error encoding negative usize")
	}
}

func TestBoolRoundTrip(t *testing.T) {
	buf := make([]byte, 2)
	for _, b := range []bool{true, false} {
		if _, err := AppendBool(buf, 0, b); err != nil {
			t.Fatalf("AppendBool(%v): %v", b, err)
		}
		got, _, err := RetrieveBool(buf, 0)
		if err != nil {
			t.Fatalf("RetrieveBool: %v", err)
		}
		if got != b {
			t.Fatalf("RetrieveBool = %v, want %v", got, b)
		}
	}
}
