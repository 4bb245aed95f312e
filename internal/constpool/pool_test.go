package constpool

import "testing"

func TestInternIsIdempotent(t *testing.T) {
	p := New()
	a := p.Intern([]byte("hello"), 1)
	b := p.Intern([]byte("hello"), 1)
	if a != b {
		t.Fatalf("interning identical bytes twice produced different handles: %d != %d", a, b)
	}
	if p.Len() != 1 {
		t.Fatalf("pool has %d entries, want 1", p.Len())
	}
}

func TestInternDistinctBytesAreDistinct(t *testing.T) {
	p := New()
	a := p.Intern([]byte("hello"), 1)
	b := p.Intern([]byte("world"), 1)
	if a == b {
		t.Fatal("distinct bytes must get distinct handles")
	}
}

func TestAddPointerRefMarksForwardDeclare(t *testing.T) {
	p := New()
	a := p.Intern([]byte("a"), 1)
	b := p.Intern([]byte("b"), 1)
	if err := p.AddPointerRef(a, b, 4); err != nil {
		t.Fatal(err)
	}
	eb, err := p.Entry(b)
	if err != nil {
		t.Fatal(err)
	}
	if !eb.ForwardDeclare {
		t.Error("b should be marked forward-declare since a references it by pointer")
	}
	ea, err := p.Entry(a)
	if err != nil {
		t.Fatal(err)
	}
	if ea.ForwardDeclare {
		t.Error("a itself was never referenced by pointer, should not be forward-declared")
	}
}

func TestSelfReferenceDoesNotDeadlock(t *testing.T) {
	p := New()
	a := p.Intern([]byte("self"), 1)
	if err := p.AddPointerRef(a, a, 0); err != nil {
		t.Fatal(err)
	}
	e, err := p.Entry(a)
	if err != nil {
		t.Fatal(err)
	}
	if len(e.Refs) != 1 || e.Refs[0].Target != a {
		t.Errorf("self-loop not recorded: %+v", e.Refs)
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	p := New()
	p.Intern([]byte("x"), 1)
	snap := p.Snapshot()
	snap[0].Bytes[0] = 'Y'
	e, err := p.Entry(0)
	if err != nil {
		t.Fatal(err)
	}
	if e.Bytes[0] != 'x' {
		t.Error("mutating a snapshot must not affect the pool's own copy")
	}
}
