package tierup

import "testing"

func TestBranchDeltaBackwardIsNegative(t *testing.T) {
	// backward branch: dst < cur, makes forward progress -> counter decreases
	delta := BranchDelta(100, 40)
	if delta >= 0 {
		t.Fatalf("backward branch delta = %d, want negative", delta)
	}
}

func TestBranchDeltaForwardIsPositive(t *testing.T) {
	delta := BranchDelta(40, 100)
	if delta <= 0 {
		t.Fatalf("forward branch delta = %d, want positive", delta)
	}
}

// TestMonotonicityAroundACycle exercises testable property 7: the sum of
// counter deltas along any cycle through backward branches is strictly
// negative (a loop body must make net forward progress toward tier-up).
func TestMonotonicityAroundACycle(t *testing.T) {
	// A simple loop: offsets 0 -> 10 -> 20 -> back to 0.
	cycle := [][2]int64{{0, 10}, {10, 20}, {20, 0}}
	var sum int64
	for _, edge := range cycle {
		sum += BranchDelta(edge[0], edge[1])
	}
	if sum >= 0 {
		t.Fatalf("sum of deltas around cycle = %d, want strictly negative", sum)
	}
}

func TestCounterCrossesZero(t *testing.T) {
	c := &Counter{Value: 15}
	c.ApplyBranch(100, 40) // backward, decreases by 60
	if !c.CrossedZero() {
		t.Fatalf("counter = %d, expected crossed zero", c.Value)
	}
}

func TestCounterDisabledNeverCrossesZero(t *testing.T) {
	c := &Counter{Disabled: true, Value: -100}
	c.ApplyBranch(100, 40)
	if c.CrossedZero() {
		t.Fatal("disabled counter must never trigger tier-up")
	}
	if c.Value != -100 {
		t.Fatalf("disabled counter must not be mutated, got %d", c.Value)
	}
}
