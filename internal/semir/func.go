/*
 * stencilc - concrete semantic IR stand-in
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package semir is the pipeline's own concrete stand-in for the "opaque"
// semantic IR function described in section 3. The real upstream IR (an SSA
// module produced by a general-purpose IR library) is an external
// collaborator out of scope for this core (section 1); stencilc still needs
// something to lower, so this package gives the
// distinguished API calls of section 3 a concrete, testable shape: by the
// time the desugaring driver (Component B) finishes its Top pass, a
// bytecode body is a flat statement list of API calls and already-desugared
// generic instructions; no nested call structure remains above the API
// stubs.
package semir

import (
	"github.com/vmforge/stencilc/internal/apisym"
	"github.com/vmforge/stencilc/internal/irmodel"
)

// ValueKind distinguishes where a ValueRef's value comes from.
type ValueKind int

const (
	SlotValue ValueKind = iota
	ConstValue
	// NilValue is the VM's nil immediate, used to pad Return's value list
	// up to the VM-mandated minimum return-slot count (section 4.D).
	NilValue
)

// ValueRef is an operand reference inside a desugared bytecode body.
type ValueRef struct {
	Kind  ValueKind
	Slot  int
	Const int64
}

// Slot builds a ValueRef naming a stack slot.
func Slot(n int) ValueRef { return ValueRef{Kind: SlotValue, Slot: n} }

// ConstInt builds a ValueRef naming an immediate constant.
func ConstInt(v int64) ValueRef { return ValueRef{Kind: ConstValue, Const: v} }

// Nil builds a ValueRef naming the VM's nil immediate.
func Nil() ValueRef { return ValueRef{Kind: NilValue} }

// Call is one recognized API call (section 3's "distinguished API calls").
// Only the fields relevant to Symbol are populated.
type Call struct {
	Symbol apisym.Symbol

	// Return / MakeCall / MakeTailCall
	Values []ValueRef
	Callee ValueRef

	// Error
	ErrorKind string

	// CondBr: Cond selects between TargetDelta (taken) and natural
	// fallthrough (not taken).
	Cond        ValueRef
	TargetDelta int64

	// GetBytecodeMetadataPtr
	MetadataKind      string
	MetadataSlotIndex int

	// MakeCall / MakeTailCall: whether this call site opts into consuming
	// the variadic-return cursor from its callee (section 4.D).
	ConsumesVarRet bool
}

// GenericInst is an already-desugared instruction whose semantics belong to
// the upstream IR library (arithmetic, loads, comparisons, ...); stencilc
// passes it through unchanged.
type GenericInst struct {
	Mnemonic string
	Args     []ValueRef
}

// Stmt is one statement: exactly one of Call or Generic is non-nil.
type Stmt struct {
	Call    *Call
	Generic *GenericInst
}

// CallStmt wraps an API call as a Stmt.
func CallStmt(c Call) Stmt { return Stmt{Call: &c} }

// GenericStmt wraps a generic instruction as a Stmt.
func GenericStmt(g GenericInst) Stmt { return Stmt{Generic: &g} }

// Func is the flat statement list backing one opcode variant's
// implementation body.
type Func struct {
	FuncName string
	Stmts    []Stmt
}

// Name implements irmodel.ImplFunction.
func (f *Func) Name() string { return f.FuncName }

// Clone implements irmodel.ImplFunction: a deep copy so each variant lowers
// from its own independently-mutable copy of the shared starting body. Each
// statement's Call or GenericInst payload is copied too, not just the Stmt
// slice, so mutating one clone's operand lists never reaches another.
func (f *Func) Clone() irmodel.ImplFunction {
	stmts := make([]Stmt, len(f.Stmts))
	for i, s := range f.Stmts {
		stmts[i] = s.clone()
	}
	return &Func{FuncName: f.FuncName, Stmts: stmts}
}

func (s Stmt) clone() Stmt {
	var out Stmt
	if s.Call != nil {
		c := *s.Call
		c.Values = append([]ValueRef(nil), s.Call.Values...)
		out.Call = &c
	}
	if s.Generic != nil {
		g := *s.Generic
		g.Args = append([]ValueRef(nil), s.Generic.Args...)
		out.Generic = &g
	}
	return out
}

var _ irmodel.ImplFunction = (*Func)(nil)
