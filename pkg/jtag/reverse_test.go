package jtag

import "testing"

func TestReverseByteKnownValues(t *testing.T) {
	cases := []struct{ in, want byte }{
		{0x00, 0x00},
		{0xFF, 0xFF},
		{0x01, 0x80},
		{0x80, 0x01},
		{0xC6, 0x63},
		{0xA5, 0xA5},
		{0x0F, 0xF0},
	}
	for _, tc := range cases {
		if got := ReverseByte(tc.in); got != tc.want {
			t.Fatalf("ReverseByte(0x%02X) = 0x%02X, want 0x%02X", tc.in, got, tc.want)
		}
	}
}

func TestReverseTableSelfInverse(t *testing.T) {
	for i := 0; i < 256; i++ {
		b := byte(i)
		if got := ReverseByte(ReverseByte(b)); got != b {
			t.Fatalf("ReverseByte(ReverseByte(0x%02X)) = 0x%02X", b, got)
		}
	}
}

func TestReverseTableMatchesBitwiseReversal(t *testing.T) {
	for i := 0; i < 256; i++ {
		var want byte
		for bit := 0; bit < 8; bit++ {
			if byte(i)&(1<<bit) != 0 {
				want |= 1 << (7 - bit)
			}
		}
		if got := ReverseByte(byte(i)); got != want {
			t.Fatalf("ReverseByte(0x%02X) = 0x%02X, want 0x%02X", i, got, want)
		}
	}
}
