package semir

import (
	"testing"

	"github.com/vmforge/stencilc/internal/apisym"
)

// TestCloneIsIndependentlyMutable grounds Clone's documented contract: a
// mutation made through one clone's Call/Generic payload must not reach the
// original or any sibling clone.
func TestCloneIsIndependentlyMutable(t *testing.T) {
	orig := &Func{FuncName: "Add", Stmts: []Stmt{
		CallStmt(Call{Symbol: apisym.Return, Values: []ValueRef{Slot(0), Slot(1)}}),
		GenericStmt(GenericInst{Mnemonic: "iadd", Args: []ValueRef{Slot(0), Slot(1)}}),
	}}

	clone := orig.Clone().(*Func)
	clone.Stmts[0].Call.Values[0] = Slot(99)
	clone.Stmts[1].Generic.Args[0] = Slot(99)

	if orig.Stmts[0].Call.Values[0] != Slot(0) {
		t.Errorf("mutating the clone's Call.Values reached the original: %+v", orig.Stmts[0].Call.Values)
	}
	if orig.Stmts[1].Generic.Args[0] != Slot(0) {
		t.Errorf("mutating the clone's Generic.Args reached the original: %+v", orig.Stmts[1].Generic.Args)
	}
}

func TestCloneIsIndependentAcrossSiblings(t *testing.T) {
	orig := &Func{FuncName: "Add", Stmts: []Stmt{
		CallStmt(Call{Symbol: apisym.Return, Values: []ValueRef{Slot(0)}}),
	}}

	a := orig.Clone().(*Func)
	b := orig.Clone().(*Func)
	a.Stmts[0].Call.Values[0] = Slot(7)

	if b.Stmts[0].Call.Values[0] != Slot(0) {
		t.Errorf("mutating one clone reached a sibling clone: %+v", b.Stmts[0].Call.Values)
	}
}

func TestClonePreservesFuncNameAndLength(t *testing.T) {
	orig := &Func{FuncName: "Add", Stmts: []Stmt{
		CallStmt(Call{Symbol: apisym.ReturnNone}),
	}}
	clone := orig.Clone().(*Func)
	if clone.Name() != "Add" {
		t.Errorf("clone name = %q, want %q", clone.Name(), "Add")
	}
	if len(clone.Stmts) != len(orig.Stmts) {
		t.Errorf("clone has %d stmts, want %d", len(clone.Stmts), len(orig.Stmts))
	}
}
