package desugar

import "testing"

type fakeInliner struct {
	attrs     map[string]bool
	passesRun int
	changes   []bool // one entry consumed per RunToFixpoint call; last repeats
}

func (f *fakeInliner) SetAttr(name string, inline bool) {
	if f.attrs == nil {
		f.attrs = map[string]bool{}
	}
	f.attrs[name] = inline
}

func (f *fakeInliner) RunToFixpoint(ir any) (bool, error) {
	idx := f.passesRun
	f.passesRun++
	if idx < len(f.changes) {
		return f.changes[idx], nil
	}
	return false, nil
}

func classify(name string) Level {
	switch name {
	case "alwaysHelper":
		return AlwaysInline
	case "genHelper":
		return GeneralFunctions
	case "IsInt32":
		return TypeSpecialization
	case "Return":
		return Top
	}
	return GeneralFunctions
}

func TestDriverConverges(t *testing.T) {
	d := Driver{Classify: classify, MaxItersPerLevel: 4}
	inliner := &fakeInliner{changes: []bool{true, false}}
	if err := d.Run(nil, inliner, []string{"alwaysHelper", "genHelper", "IsInt32", "Return"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// one fixpoint-reaching sequence of passes per level (4 levels)
	if inliner.passesRun < len(orderedLevels) {
		t.Errorf("expected at least %d passes, got %d", len(orderedLevels), inliner.passesRun)
	}
}

func TestDriverNonConvergence(t *testing.T) {
	d := Driver{Classify: classify, MaxItersPerLevel: 3}
	inliner := &fakeInliner{changes: []bool{true, true, true, true, true}}
	err := d.Run(nil, inliner, []string{"Return"})
	if err == nil {
		t.Fatal("expected non-convergence error")
	}
	if _, ok := err.(*NonConvergenceError); !ok {
		t.Fatalf("got %T, want *NonConvergenceError", err)
	}
}

func TestDriverRejectsZeroIterCap(t *testing.T) {
	d := Driver{Classify: classify, MaxItersPerLevel: 0}
	if err := d.Run(nil, &fakeInliner{}, nil); err == nil {
		t.Fatal("expected error for non-positive iteration cap")
	}
}

func TestCapabilityGateMonotone(t *testing.T) {
	// Capabilities only widen from level to level: once the driver has run
	// its final (Top) pass, alwaysHelper and Return are both inlinable.
	d := Driver{Classify: classify, MaxItersPerLevel: 1}
	inliner := &fakeInliner{}
	_ = d.Run(nil, inliner, []string{"alwaysHelper", "genHelper", "IsInt32", "Return"})

	if !inliner.attrs["alwaysHelper"] {
		t.Error("alwaysHelper should be inlinable by the final (Top) pass")
	}
	if !inliner.attrs["Return"] {
		t.Error("Return should be inlinable once the driver reaches Top")
	}
}
