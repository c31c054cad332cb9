package host

import "testing"

func TestCutNUL(t *testing.T) {
	cases := []struct {
		in   []byte
		want string
	}{
		{[]byte("Tether Debug Module\x00"), "Tether Debug Module"},
		{[]byte("1.1.0\x00garbage"), "1.1.0"},
		{[]byte("no terminator"), "no terminator"},
		{nil, ""},
	}
	for _, c := range cases {
		if got := cutNUL(c.in); got != c.want {
			t.Errorf("cutNUL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestInfoLabel(t *testing.T) {
	i := Info{VendorID: 0x1d50, ProductID: 0x615c, Description: "Tether Debug Module"}
	if got := i.Label(); got != "Tether Debug Module (1D50:615C)" {
		t.Errorf("Label() = %q", got)
	}
	anon := Info{VendorID: 0x1234, ProductID: 0x5678}
	if got := anon.Label(); got != "Device 1234:5678" {
		t.Errorf("Label() = %q", got)
	}
}
