/*
 * stencilc - Placeholder & Patch Planner (Component F, section 4.F)
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

// Package patch implements the Placeholder & Patch Planner (Component F,
// section 4.F): it splits a stencil's classified relocations into an
// immediate patch program, a late-patch list for conditional-branch holes,
// and register-rename records, and zeroes the register-patch immediates in
// the pre-fixup code.
package patch

import (
	"github.com/vmforge/stencilc/internal/irmodel"
	"github.com/vmforge/stencilc/internal/objfile"
	"github.com/vmforge/stencilc/internal/stencil"
)

// CondBrLatePatch is a conditional-branch hole deferred until the caller
// knows the layout of every bytecode (section 4.F, first bullet).
type CondBrLatePatch struct {
	Offset uint64
	Is64Bit bool
}

// RegisterRename records one byte range the runtime must rewrite once the
// register allocator assigns concrete physical registers (section 4.F,
// second bullet).
type RegisterRename struct {
	Offset uint64
	Class  irmodel.RegClass
	Slot   int
}

// SectionPlan is the planner's output for one stencil section.
type SectionPlan struct {
	// PreFixupCode is a copy of the stencil's bytes for this section, with
	// every register-patch immediate zeroed.
	PreFixupCode []byte
	// RelocMarker has one entry per byte of PreFixupCode; true marks a byte
	// whose final value is not determined by PreFixupCode alone (property
	// 3, "placeholder coverage").
	RelocMarker []bool
	// Patches are the relocations resolved once section base addresses are
	// known: everything except conditional-branch holes and register
	// patches.
	Patches []stencil.RelocationRecord
	// LatePatches holds conditional-branch holes, keyed by offset and bit
	// width, completed only after full bytecode layout is known.
	LatePatches []CondBrLatePatch
	// RegisterRenames holds the register-patch sites extracted from this
	// section.
	RegisterRenames []RegisterRename
}

// widthOf returns a relocation kind's byte width, used to mark RelocMarker
// and to size late-patch holes.
func widthOf(k stencil.RelocKind) int {
	switch k {
	case objfile.ABS64:
		return 8
	default:
		return 4
	}
}

// Plan is the Component F output for one stencil: a SectionPlan per
// conventional section, plus FPURegistersUsed (section 4.F, third bullet).
// FPURegistersUsed holds irmodel.FPRHint once when any register-patch site
// in the stencil is an FPR, and is empty otherwise; it does not list the
// individual FPR slots.
type Plan struct {
	VariantName     string
	FastPath        SectionPlan
	SlowPath        SectionPlan
	IcPath          map[string]SectionPlan
	DataSec         SectionPlan
	FPURegistersUsed []irmodel.RegClass
}

// BuildPlan runs Component F over an already-extracted stencil.
func BuildPlan(s *stencil.Stencil) *Plan {
	p := &Plan{
		VariantName: s.VariantName,
		IcPath:      make(map[string]SectionPlan),
	}
	p.FastPath = planSection(s.FastPathCode, s.Relocations["text.main"])
	p.SlowPath = planSection(s.SlowPathCode, s.Relocations["text.slow"])
	p.DataSec = planSection(s.PrivateData, s.Relocations["data.private"])
	for site, code := range s.IcPathCode {
		p.IcPath[site] = planSection(code, s.Relocations["text.ic."+site])
	}

	fpuSeen := make(map[irmodel.RegClass]bool)
	collectFPU := func(sp SectionPlan) {
		for _, rn := range sp.RegisterRenames {
			if rn.Class == irmodel.FPRHint {
				fpuSeen[rn.Class] = true
			}
		}
	}
	collectFPU(p.FastPath)
	collectFPU(p.SlowPath)
	collectFPU(p.DataSec)
	for _, sp := range p.IcPath {
		collectFPU(sp)
	}
	if fpuSeen[irmodel.FPRHint] {
		p.FPURegistersUsed = []irmodel.RegClass{irmodel.FPRHint}
	}
	return p
}

// isCondBrHole identifies a Hole relocation as a conditional-branch
// destination: by convention the ordinal range [0, 2) is reserved for the
// two CondBr lowering targets (apilower.OpBranchHoleTaken/NotTaken), per
// section 4.F's "identifiable because its target is a next-bytecode or
// branch-target hole."
func isCondBrHole(r stencil.RelocationRecord) bool {
	return r.Symbol == stencil.Hole && r.HoleOrdinal < 2
}

func planSection(code []byte, relocs []stencil.RelocationRecord) SectionPlan {
	sp := SectionPlan{
		PreFixupCode: append([]byte(nil), code...),
		RelocMarker:  make([]bool, len(code)),
	}
	for _, r := range relocs {
		w := widthOf(r.Kind)
		switch {
		case r.Symbol == stencil.RegisterPatch:
			sp.RegisterRenames = append(sp.RegisterRenames, RegisterRename{Offset: r.Offset, Class: r.RegClass, Slot: r.RegSlot})
			zero(sp.PreFixupCode, r.Offset, w)
			mark(sp.RelocMarker, r.Offset, w)
		case isCondBrHole(r):
			sp.LatePatches = append(sp.LatePatches, CondBrLatePatch{Offset: r.Offset, Is64Bit: w == 8})
			mark(sp.RelocMarker, r.Offset, w)
		default:
			sp.Patches = append(sp.Patches, r)
			mark(sp.RelocMarker, r.Offset, w)
		}
	}
	return sp
}

func zero(code []byte, offset uint64, width int) {
	for i := 0; i < width && int(offset)+i < len(code); i++ {
		code[int(offset)+i] = 0
	}
}

func mark(marker []bool, offset uint64, width int) {
	for i := 0; i < width && int(offset)+i < len(marker); i++ {
		marker[int(offset)+i] = true
	}
}
