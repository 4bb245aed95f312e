/*
 * stencilc - Stencil Extractor procedure (section 4.E)
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

package stencil

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vmforge/stencilc/internal/constpool"
	"github.com/vmforge/stencilc/internal/irmodel"
	"github.com/vmforge/stencilc/internal/objfile"
)

// Conventional section names, section 4.E step 1. The object-code toolchain
// is expected to name its sections and per-section start symbols exactly
// this way; it is an out-of-scope external collaborator (section 1)
// whose output shape is fixed by this convention.
const (
	mainSection = "text.main"
	slowSection = "text.slow"
	dataSection = "data.private"
	icPrefix    = "text.ic."
)

// sharedConstPrefix matches the label format constpool.Pool.Intern assigns,
// so a shared-constant symbol emitted by the toolchain round-trips back to
// the same interned entry.
const sharedConstPrefix = "deegen_jit_stencil_shared_constant_data_object_"

// holePrefix identifies a placeholder symbol: prefix plus a numeric ordinal
// suffix, per section 4.E step 3's third bullet.
const holePrefix = "deegen_stencil_hole_"

// regPatchPrefix identifies the synthetic register-patch relocation this
// pipeline requires in place of machine-code disassembly (see the
// RegisterPatch doc comment in types.go). Suffix format: "<class>_<slot>",
// e.g. "deegen_reg_patch_gpr_2".
const regPatchPrefix = "deegen_reg_patch_"

// Extract runs the Component E procedure against a parsed object file for
// variantName, interning any shared-constant bytes it discovers into pool.
func Extract(obj *objfile.Object, variantName string, pool *constpool.Pool) (*Stencil, error) {
	s := &Stencil{
		VariantName: variantName,
		IcPathCode:  make(map[string][]byte),
		Relocations: make(map[string][]RelocationRecord),
	}

	if sec, ok := obj.Sections[mainSection]; ok {
		s.FastPathCode = sec.Data
	}
	if sec, ok := obj.Sections[slowSection]; ok {
		s.SlowPathCode = sec.Data
	}
	if sec, ok := obj.Sections[dataSection]; ok {
		s.PrivateData = sec.Data
	}
	for name, sec := range obj.Sections {
		if strings.HasPrefix(name, icPrefix) {
			s.IcPathCode[name[len(icPrefix):]] = sec.Data
		}
	}

	for name, sec := range obj.Sections {
		if len(sec.Relocs) == 0 {
			continue
		}
		records := make([]RelocationRecord, 0, len(sec.Relocs))
		for _, r := range sec.Relocs {
			rec, err := classify(r, name, obj, pool)
			if err != nil {
				return nil, fmt.Errorf("stencil: extracting %s/%s: %w", variantName, name, err)
			}
			records = append(records, rec)
		}
		s.Relocations[name] = records
	}
	return s, nil
}

// classify implements section 4.E step 3's classification bullets plus step
// 4's relocation-kind validation.
func classify(r objfile.Reloc, fromSection string, obj *objfile.Object, pool *constpool.Pool) (RelocationRecord, error) {
	rec := RelocationRecord{Offset: r.Offset, Kind: r.Kind, Addend: r.Addend}

	switch {
	case r.Symbol == mainSection:
		rec.Symbol = FastPathAddr
	case r.Symbol == slowSection:
		rec.Symbol = SlowPathAddr
	case r.Symbol == dataSection:
		if strings.HasPrefix(fromSection, icPrefix) {
			// An IC body's own relocations into the data section reach the
			// enclosing main logic's private data, not its own (section
			// 4.H; the "Inline-Cache Site" glossary entry).
			rec.Symbol = MainLogicPrivateDataAddr
		} else {
			rec.Symbol = PrivateDataAddr
		}
	case strings.HasPrefix(r.Symbol, icPrefix):
		rec.Symbol = IcPathAddr
		rec.ICSite = r.Symbol[len(icPrefix):]

	case strings.HasPrefix(r.Symbol, sharedConstPrefix):
		handle, err := internSharedConstant(obj, pool, r.Symbol, make(map[string]bool))
		if err != nil {
			return RelocationRecord{}, err
		}
		rec.Symbol = SharedConstant
		rec.Const = handle

	case strings.HasPrefix(r.Symbol, holePrefix):
		ordinal, err := strconv.Atoi(r.Symbol[len(holePrefix):])
		if err != nil {
			return RelocationRecord{}, fmt.Errorf("placeholder symbol %q has a non-numeric ordinal suffix: %w", r.Symbol, err)
		}
		rec.Symbol = Hole
		rec.HoleOrdinal = ordinal

	case strings.HasPrefix(r.Symbol, regPatchPrefix):
		class, slot, err := parseRegPatchSuffix(r.Symbol[len(regPatchPrefix):])
		if err != nil {
			return RelocationRecord{}, fmt.Errorf("register-patch symbol %q: %w", r.Symbol, err)
		}
		rec.Symbol = RegisterPatch
		rec.RegClass = class
		rec.RegSlot = slot

	default:
		rec.Symbol = ExternalC
		rec.ExternalName = r.Symbol
	}
	return rec, nil
}

// internSharedConstant interns the bytes of a shared-constant pool symbol
// and recurses into the relocations covering its own byte range to detect
// pointer+addend references to other shared constants, wiring
// constpool.Pool.AddPointerRef per section 9's "Self-referential shared
// constants" design note ("constants may reference other constants by
// pointer+addend... emit forward declarations for every node referenced by
// pointer"). visiting guards against a reference cycle wider than the
// self-loop section 9 says arises in practice.
func internSharedConstant(obj *objfile.Object, pool *constpool.Pool, symbol string, visiting map[string]bool) (constpool.Handle, error) {
	info, ok := obj.Symbols[symbol]
	if !ok {
		return 0, fmt.Errorf("shared-constant symbol %q has no symbol table entry", symbol)
	}
	sec, ok := obj.Sections[info.Section]
	if !ok {
		return 0, fmt.Errorf("shared-constant symbol %q defined in unknown section %q", symbol, info.Section)
	}
	start := info.Value
	end := start + info.Size
	if end > uint64(len(sec.Data)) {
		return 0, fmt.Errorf("shared-constant symbol %q out of bounds of section %q", symbol, info.Section)
	}
	handle := pool.Intern(sec.Data[start:end], 1)

	if visiting[symbol] {
		return handle, nil
	}
	visiting[symbol] = true
	defer delete(visiting, symbol)

	for _, rr := range sec.Relocs {
		if rr.Offset < start || rr.Offset >= end || !strings.HasPrefix(rr.Symbol, sharedConstPrefix) {
			continue
		}
		target, err := internSharedConstant(obj, pool, rr.Symbol, visiting)
		if err != nil {
			return 0, err
		}
		if err := pool.AddPointerRef(handle, target, rr.Addend); err != nil {
			return 0, fmt.Errorf("shared-constant symbol %q: %w", symbol, err)
		}
	}
	return handle, nil
}

func parseRegPatchSuffix(suffix string) (irmodel.RegClass, int, error) {
	idx := strings.LastIndex(suffix, "_")
	if idx < 0 {
		return 0, 0, fmt.Errorf("missing class_slot separator in %q", suffix)
	}
	className, slotStr := suffix[:idx], suffix[idx+1:]
	slot, err := strconv.Atoi(slotStr)
	if err != nil {
		return 0, 0, fmt.Errorf("non-numeric slot %q: %w", slotStr, err)
	}
	switch className {
	case "gpr":
		return irmodel.GPRHint, slot, nil
	case "fpr":
		return irmodel.FPRHint, slot, nil
	default:
		return 0, 0, fmt.Errorf("unknown register class %q", className)
	}
}
