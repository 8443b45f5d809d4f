package store

import "testing"

func TestContentRoundTrip(t *testing.T) {
	for _, s := range []string{"", "hello", "多字节内容", "line1\nline2\t✓"} {
		got, ok := DecodeContent(EncodeContent(s))
		if !ok || got != s {
			t.Errorf("round trip %q = %q (ok=%v)", s, got, ok)
		}
	}
}

func TestEncodeEmptyIsNil(t *testing.T) {
	if EncodeContent("") != nil {
		t.Error("EncodeContent(\"\") should be nil")
	}
}

func TestDecodeMalformed(t *testing.T) {
	got, ok := DecodeContent([]byte{0xff, 0xfe, 0x00})
	if ok || got != "" {
		t.Errorf("DecodeContent(malformed) = %q, %v; want \"\", false", got, ok)
	}
	if got, ok := DecodeContent(nil); !ok || got != "" {
		t.Errorf("DecodeContent(nil) = %q, %v", got, ok)
	}
}

func TestEncodeRepairsInvalidUTF8(t *testing.T) {
	raw := string([]byte{'a', 0xff, 'b'})
	got, ok := DecodeContent(EncodeContent(raw))
	if !ok {
		t.Fatal("encoded content must always decode")
	}
	if got != "a�b" {
		t.Errorf("got %q", got)
	}
}
