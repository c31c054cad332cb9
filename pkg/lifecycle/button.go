package lifecycle

// retriggerWindowMillis is the minimum interval between recognized button
// presses; anything faster is mechanical bounce.
const retriggerWindowMillis = 200

// debouncer turns raw (active-low) button samples into press events. A
// press is a falling edge of the raw line, accepted only when the previous
// accepted press is at least the retrigger window in the past.
type debouncer struct {
	prevHigh  bool
	everFired bool
	lastPress uint32
}

func newDebouncer() debouncer {
	// The line idles high; starting high lets a button held from power-on
	// register on the first sample cycle after release/press transitions.
	return debouncer{prevHigh: true}
}

// pressed consumes one raw sample and reports whether a debounced press
// occurred.
func (d *debouncer) pressed(nowMillis uint32, rawHigh bool) bool {
	falling := d.prevHigh && !rawHigh
	d.prevHigh = rawHigh
	if !falling {
		return false
	}

	// The interval is measured from the last recognized press, so a burst
	// of bounce edges cannot push recognition out indefinitely.
	if d.everFired && nowMillis-d.lastPress < retriggerWindowMillis {
		return false
	}
	d.everFired = true
	d.lastPress = nowMillis
	return true
}
