package board

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestEdgeCounterDrain(t *testing.T) {
	var c EdgeCounter
	for i := 0; i < 5; i++ {
		c.Edge()
	}
	if got := c.Drain(); got != 5 {
		t.Fatalf("Drain() = %d, want 5", got)
	}
	if got := c.Drain(); got != 0 {
		t.Fatalf("second Drain() = %d, want 0", got)
	}
}

func TestEdgeCounterConcurrentWriter(t *testing.T) {
	var c EdgeCounter
	const edges = 1000

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < edges; i++ {
			c.Edge()
		}
	}()

	total := uint32(0)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		total += c.Drain()
		select {
		case <-done:
			total += c.Drain()
			if total != edges {
				t.Errorf("drained %d edges, want %d", total, edges)
			}
			return
		default:
		}
	}
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.yaml")
	data := []byte("name: bench\nusb_switch: true\nbutton: true\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("LoadProfile returned error: %v", err)
	}
	if p.Name != "bench" || !p.USBSwitch || !p.Button {
		t.Fatalf("profile = %+v", p)
	}
	if p.ADC || p.ConfigGate || p.PortAdvertisement || p.AcceleratedJTAG {
		t.Fatalf("unset capabilities not false: %+v", p)
	}
}

func TestLoadProfileMissingFile(t *testing.T) {
	if _, err := LoadProfile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("LoadProfile accepted a missing file")
	}
}

func TestSetLEDWithoutLED(t *testing.T) {
	b := &Board{}
	b.SetLED(PatternIdle) // must not panic
}
