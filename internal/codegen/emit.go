/*
 * stencilc - Codegen Emitter (Component G, section 4.G)
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

// Package codegen implements the four instantiation-time emitters section 6
// names as output artifacts: codegen_fastpath, codegen_slowpath,
// codegen_icpath, and codegen_datasec. Each takes a planned section (Component
// F's output) plus the concrete addresses and operand values known only at
// instantiation time, and executes the patch program against a destination
// buffer pre-loaded with the section's pre-fixup code.
package codegen

import (
	"encoding/binary"
	"fmt"

	"github.com/vmforge/stencilc/internal/constpool"
	"github.com/vmforge/stencilc/internal/objfile"
	"github.com/vmforge/stencilc/internal/patch"
	"github.com/vmforge/stencilc/internal/stencil"
)

// Addresses carries every concrete value the patch program may need to
// resolve a relocation, independent of which section is being emitted.
type Addresses struct {
	FastPath              uint64
	SlowPath              uint64
	PrivateData           uint64
	MainLogicPrivateData  uint64 // only meaningful when emitting an IC-site stencil
	IC                    map[string]uint64
	Externals             map[string]uint64
	Consts                map[constpool.Handle]uint64
	Holes                 map[int]uint64 // bytecode operand values, keyed by hole ordinal
}

// CodegenFastpath instantiates the fast-path section. dest must be a buffer
// of the same length as sp.PreFixupCode, pre-loaded with a copy of it;
// CodegenFastpath only overwrites the byte ranges the patch program names.
func CodegenFastpath(sp patch.SectionPlan, addr Addresses, dest []byte) error {
	return apply(sp, stencil.FastPathAddr, addr.FastPath, addr, dest)
}

// CodegenSlowpath instantiates the slow-path section.
func CodegenSlowpath(sp patch.SectionPlan, addr Addresses, dest []byte) error {
	return apply(sp, stencil.SlowPathAddr, addr.SlowPath, addr, dest)
}

// CodegenICPath instantiates one inline-cache body's section. siteBase is
// this IC site's own fresh address (distinct from addr.IC, which holds the
// addresses of sibling IC sites a relocation might reference).
func CodegenICPath(sp patch.SectionPlan, siteBase uint64, addr Addresses, dest []byte) error {
	return apply(sp, stencil.IcPathAddr, siteBase, addr, dest)
}

// CodegenDatasec instantiates the private-data section.
func CodegenDatasec(sp patch.SectionPlan, addr Addresses, dest []byte) error {
	return apply(sp, stencil.PrivateDataAddr, addr.PrivateData, addr, dest)
}

func apply(sp patch.SectionPlan, ownKind stencil.SymbolKind, ownBase uint64, addr Addresses, dest []byte) error {
	if len(dest) != len(sp.PreFixupCode) {
		return fmt.Errorf("codegen: destination buffer is %d bytes, want %d", len(dest), len(sp.PreFixupCode))
	}
	for _, r := range sp.Patches {
		target, pcRelative, err := resolve(r, addr)
		if err != nil {
			return err
		}
		value := int64(target) + r.Addend
		if pcRelative {
			value -= int64(ownBase) + int64(r.Offset)
		}
		if err := writeValue(dest, r.Offset, r.Kind, value); err != nil {
			return fmt.Errorf("codegen: %s relocation at offset %d: %w", r.Symbol, r.Offset, err)
		}
	}
	return nil
}

func resolve(r stencil.RelocationRecord, addr Addresses) (target uint64, pcRelative bool, err error) {
	pcRelative = r.Kind == objfile.PC32 || r.Kind == objfile.PLT32
	switch r.Symbol {
	case stencil.FastPathAddr:
		return addr.FastPath, pcRelative, nil
	case stencil.SlowPathAddr:
		return addr.SlowPath, pcRelative, nil
	case stencil.PrivateDataAddr:
		return addr.PrivateData, pcRelative, nil
	case stencil.MainLogicPrivateDataAddr:
		return addr.MainLogicPrivateData, pcRelative, nil
	case stencil.IcPathAddr:
		v, ok := addr.IC[r.ICSite]
		if !ok {
			return 0, false, fmt.Errorf("codegen: no address supplied for IC site %q", r.ICSite)
		}
		return v, pcRelative, nil
	case stencil.SharedConstant:
		v, ok := addr.Consts[r.Const]
		if !ok {
			return 0, false, fmt.Errorf("codegen: no address supplied for shared constant %d", r.Const)
		}
		return v, pcRelative, nil
	case stencil.ExternalC:
		v, ok := addr.Externals[r.ExternalName]
		if !ok {
			return 0, false, fmt.Errorf("codegen: no address supplied for external symbol %q", r.ExternalName)
		}
		return v, pcRelative, nil
	case stencil.Hole:
		v, ok := addr.Holes[r.HoleOrdinal]
		if !ok {
			return 0, false, fmt.Errorf("codegen: no value supplied for hole ordinal %d", r.HoleOrdinal)
		}
		return v, pcRelative, nil
	default:
		return 0, false, fmt.Errorf("codegen: %s relocations are not resolved by the immediate patch program", r.Symbol)
	}
}

func writeValue(dest []byte, offset uint64, kind stencil.RelocKind, value int64) error {
	if offset+8 > uint64(len(dest)) && kind == objfile.ABS64 {
		return fmt.Errorf("relocation out of bounds")
	}
	switch kind {
	case objfile.ABS64:
		binary.LittleEndian.PutUint64(dest[offset:], uint64(value))
	case objfile.ABS32, objfile.PC32, objfile.PLT32, objfile.ABS32S:
		if offset+4 > uint64(len(dest)) {
			return fmt.Errorf("relocation out of bounds")
		}
		binary.LittleEndian.PutUint32(dest[offset:], uint32(int32(value)))
	default:
		return fmt.Errorf("unsupported relocation kind %v", kind)
	}
	return nil
}
