package game

import "testing"

func TestPutAddrGetAddrRoundTrip(t *testing.T) {
	buf := PutAddr(nil, 0x12345678)
	if len(buf) != 4 {
		t.Fatalf("got %d bytes, want 4", len(buf))
	}
	if got := GetAddr(buf); got != 0x12345678 {
		t.Errorf("GetAddr(PutAddr(0x12345678)) = 0x%X", got)
	}
}

func TestPutAddrAppendsToExistingBuffer(t *testing.T) {
	buf := []byte{0xAA, 0xBB}
	buf = PutAddr(buf, 1)
	if len(buf) != 6 || buf[0] != 0xAA || buf[1] != 0xBB {
		t.Fatalf("got %v, want prefix [0xAA 0xBB] plus 4 address bytes", buf)
	}
	if got := GetAddr(buf[2:]); got != 1 {
		t.Errorf("GetAddr(buf[2:]) = %d, want 1", got)
	}
}
