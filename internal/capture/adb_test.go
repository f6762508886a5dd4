package capture

import (
	"encoding/binary"
	"testing"
)

func rawFrame(width, height int, headerLen int, format uint32) []byte {
	raw := make([]byte, headerLen+width*height*4)
	binary.LittleEndian.PutUint32(raw[0:4], uint32(width))
	binary.LittleEndian.PutUint32(raw[4:8], uint32(height))
	binary.LittleEndian.PutUint32(raw[8:12], format)
	return raw
}

func TestDecodeRawScreencap(t *testing.T) {
	for _, headerLen := range []int{12, 16} {
		raw := rawFrame(4, 3, headerLen, 1)
		raw[headerLen] = 99 // first red byte

		img, err := decodeRawScreencap(raw)
		if err != nil {
			t.Fatalf("header %d: decode failed: %v", headerLen, err)
		}
		if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
			t.Errorf("header %d: wrong bounds %v", headerLen, img.Bounds())
		}
		if img.Pix[0] != 99 {
			t.Errorf("header %d: pixel data misaligned", headerLen)
		}
	}
}

func TestDecodeRawScreencapRejectsBadInput(t *testing.T) {
	if _, err := decodeRawScreencap(rawFrame(4, 3, 12, 5)); err == nil {
		t.Error("expected error for unsupported pixel format")
	}

	truncated := rawFrame(4, 3, 12, 1)[:20]
	if _, err := decodeRawScreencap(truncated); err == nil {
		t.Error("expected error for truncated payload")
	}

	if _, err := decodeRawScreencap([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for short header")
	}
}
