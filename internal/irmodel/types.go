/*
 * stencilc - Operand & Variant Model (Component A)
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

// Package irmodel carries the data model of section 3: opcode definitions,
// operands, variants, and the semantic IR contract the
// rest of the pipeline consumes. Nothing in this package mutates a value
// once built; every later stage is a pure function over these types.
package irmodel

import "fmt"

// OperandKind classifies where an operand's value comes from at runtime.
type OperandKind int

const (
	// Slot is a stack-local register index.
	Slot OperandKind = iota
	// Constant is an index into the per-function constant table.
	Constant
	// Literal is an immediate integer baked into the bytecode stream.
	Literal
	// BytecodeRangeBase marks the start of a variable-length bytecode range.
	BytecodeRangeBase
	// Callee identifies the function-value operand of a call bytecode.
	Callee
)

func (k OperandKind) String() string {
	switch k {
	case Slot:
		return "Slot"
	case Constant:
		return "Constant"
	case Literal:
		return "Literal"
	case BytecodeRangeBase:
		return "BytecodeRangeBase"
	case Callee:
		return "Callee"
	default:
		return fmt.Sprintf("OperandKind(%d)", int(k))
	}
}

// ParseOperandKind parses a manifest-format kind name (section 4.A's
// "Kind ∈ { Slot, Constant, Literal, BytecodeRangeBase, Callee }") into its
// OperandKind value.
func ParseOperandKind(s string) (OperandKind, error) {
	switch s {
	case "Slot":
		return Slot, nil
	case "Constant":
		return Constant, nil
	case "Literal":
		return Literal, nil
	case "BytecodeRangeBase":
		return BytecodeRangeBase, nil
	case "Callee":
		return Callee, nil
	default:
		return 0, fmt.Errorf("unrecognized operand kind %q", s)
	}
}

// TypeMask is a bitset over the VM's runtime type tags. Bit assignment is
// left to the VM author's manifest; the pipeline only ever combines masks,
// never interprets individual bits.
type TypeMask uint32

// Union returns the bitwise union of a set of masks.
func Union(masks ...TypeMask) TypeMask {
	var u TypeMask
	for _, m := range masks {
		u |= m
	}
	return u
}

// Operand describes one operand slot of an opcode definition.
type Operand struct {
	Name       string
	Kind       OperandKind
	Width      int // one of 1, 2, 4 bytes
	Signed     bool
	StaticType TypeMask // zero means "no static type known"
}

// RegClass is a register-allocation hint attached to an operand or result.
type RegClass int

const (
	NoHint RegClass = iota
	GPRHint
	FPRHint
)

// TypeDeductionRule is a pure function from input type masks to an output
// type mask. Implementations are built from the combinators in typerule.go.
type TypeDeductionRule func(inputs []TypeMask) TypeMask

// ImplFunction is the opaque semantic IR body produced upstream: basic
// blocks and instructions in SSA form, with distinguished API calls
// recognized by symbol name (see package apisym). The pipeline never
// inspects the instruction encoding itself; it only ever asks the
// collaborator-supplied IR library to run an inlining pass over it.
type ImplFunction interface {
	// Name returns the function's symbol name, used for diagnostics.
	Name() string
	// Clone returns a deep, independently-mutable copy so multiple variants
	// of the same opcode can lower from the same starting IR.
	Clone() ImplFunction
}

// Variant is a concrete lowering choice for an opcode definition: operand
// widths bound, a result register-class hint, and a quickening state.
type Variant struct {
	Name           string
	OperandWidths  []int         // one entry per operand, in declaration order
	OperandKinds   []OperandKind // parallel to OperandWidths; empty means "Slot" for every operand
	OperandSigned  []bool        // parallel to OperandWidths; empty means unsigned for every operand
	ResultClass    RegClass
	Quickenable    bool // may be replaced at runtime with a specialized sibling
	MetadataSlot   bool // whether this variant carries a trailing metadata-slot reference
	MayFallThrough bool // set during Wrapper Synthesis (4.C)
	MayTailCall    bool // set during Wrapper Synthesis (4.C)
	HotSection     bool // placed in the "hot" section if true, "cold" otherwise
}

// EncodedLength returns the byte length of this variant's fixed encoding:
// one opcode byte, then operands padded to their declared widths, then an
// optional trailing metadata-slot reference (4 bytes, per section 6's
// metadata-slot layout contract).
func (v Variant) EncodedLength() int {
	n := 1
	for _, w := range v.OperandWidths {
		n += w
	}
	if v.MetadataSlot {
		n += 4
	}
	return n
}

// DFGVariant is a speculative (DFG / optimizing-tier) form of an opcode: it
// additionally records the type masks it was speculated against, so a
// type-check guard can be synthesized ahead of it.
type DFGVariant struct {
	Variant
	Speculated []TypeMask
}

// OpcodeDef is a named operation: its operand list, result descriptor,
// variants, DFG variants, type-deduction rule, per-operand register hints,
// and implementation IR.
type OpcodeDef struct {
	Name           string
	Operands       []Operand
	ResultHint     RegClass
	Variants       []Variant
	DFGVariants    []DFGVariant
	TypeRule       TypeDeductionRule
	OperandHints   []RegClass // parallel to Operands
	Impl           ImplFunction
	MetadataFields []MetadataField // declarative per-kind metadata layout (section 6)
}

// MetadataField describes one kind of trailing metadata struct referenced by
// this opcode's bytecodes (section 6's "metadata-slot layout contract").
type MetadataField struct {
	Kind         string
	SizeBytes    int
	Log2Align    int // alignment must not exceed 8, i.e. Log2Align <= 3
	CountPerFunc int
}

// Validate checks the invariants stated in section 3 and 4.A: the variant
// set is non-empty, operand-hint arity matches, and variant operand widths
// are monotone (one variant's widths dominate another's, or are disjoint).
func (d OpcodeDef) Validate() error {
	if len(d.Variants) == 0 {
		return fmt.Errorf("opcode %q: variant set is empty after elaboration", d.Name)
	}
	if d.OperandHints != nil && len(d.OperandHints) != len(d.Operands) {
		return fmt.Errorf("opcode %q: %d operand hints for %d operands", d.Name, len(d.OperandHints), len(d.Operands))
	}
	for _, v := range d.Variants {
		if len(v.OperandWidths) != len(d.Operands) {
			return fmt.Errorf("opcode %q: variant %q has %d operand widths for %d operands",
				d.Name, v.Name, len(v.OperandWidths), len(d.Operands))
		}
		if v.OperandKinds != nil && len(v.OperandKinds) != len(d.Operands) {
			return fmt.Errorf("opcode %q: variant %q has %d operand kinds for %d operands",
				d.Name, v.Name, len(v.OperandKinds), len(d.Operands))
		}
		if v.OperandSigned != nil && len(v.OperandSigned) != len(d.Operands) {
			return fmt.Errorf("opcode %q: variant %q has %d operand signedness flags for %d operands",
				d.Name, v.Name, len(v.OperandSigned), len(d.Operands))
		}
	}
	for i, a := range d.Variants {
		for j, b := range d.Variants {
			if i >= j {
				continue
			}
			if !widthsMonotone(a.OperandWidths, b.OperandWidths) {
				return fmt.Errorf("opcode %q: variants %q and %q have non-monotone operand widths", d.Name, a.Name, b.Name)
			}
		}
	}
	for _, f := range d.MetadataFields {
		if f.Log2Align > 3 {
			return fmt.Errorf("opcode %q: metadata kind %q alignment 1<<%d exceeds the 8-byte cap", d.Name, f.Kind, f.Log2Align)
		}
	}
	return nil
}

// widthsMonotone reports whether a dominates b, b dominates a, or neither
// relation's widths ever invert (a[i] > b[i] for some i but a[j] < b[j] for
// another j is the forbidden case).
func widthsMonotone(a, b []int) bool {
	if len(a) != len(b) {
		return true // different operand count: disjoint, never compared positionally
	}
	sawAGreater, sawBGreater := false, false
	for i := range a {
		switch {
		case a[i] > b[i]:
			sawAGreater = true
		case a[i] < b[i]:
			sawBGreater = true
		}
	}
	return !(sawAGreater && sawBGreater)
}
