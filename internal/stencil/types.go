/*
 * stencilc - stencil types (section 3, section 4.E)
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

// Package stencil implements the Stencil Extractor (Component E, section
// 4.E): it turns one wrapper's compiled object file into a populated
// Stencil, the four-byte-vector tuple section 3 defines, annotated with
// classified relocation records.
package stencil

import (
	"sort"

	"github.com/vmforge/stencilc/internal/constpool"
	"github.com/vmforge/stencilc/internal/irmodel"
	"github.com/vmforge/stencilc/internal/objfile"
)

// SymbolKind is the relocation target classification section 3 names.
type SymbolKind int

const (
	FastPathAddr SymbolKind = iota
	SlowPathAddr
	IcPathAddr
	PrivateDataAddr
	MainLogicPrivateDataAddr
	SharedConstant
	ExternalC
	Hole
	// RegisterPatch is not part of section 3's symbol-kind list; the
	// original toolchain derives register-rename sites by disassembling
	// the pre-fixup code directly (a decoder this pipeline does not carry
	// one for). Instead this pipeline requires the object-code toolchain to
	// surface the same information as a synthetic relocation whose symbol
	// encodes a register class and canonical slot (section 4.F, second
	// bullet), and classifies it here. See DESIGN.md.
	RegisterPatch
)

func (k SymbolKind) String() string {
	switch k {
	case FastPathAddr:
		return "FastPathAddr"
	case SlowPathAddr:
		return "SlowPathAddr"
	case IcPathAddr:
		return "IcPathAddr"
	case PrivateDataAddr:
		return "PrivateDataAddr"
	case MainLogicPrivateDataAddr:
		return "MainLogicPrivateDataAddr"
	case SharedConstant:
		return "SharedConstant"
	case ExternalC:
		return "ExternalC"
	case Hole:
		return "Hole"
	case RegisterPatch:
		return "RegisterPatch"
	default:
		return "Unknown"
	}
}

// RelocationRecord is one entry of the per-stencil relocation list, with
// the symbol-specific payload of section 3 (hole ordinal or external name).
// It is a plain struct, not a tagged sum: every payload field is stored on
// every record, and no accessor checks that the field read matches Symbol.
type RelocationRecord struct {
	Offset uint64
	Kind   RelocKind
	Symbol SymbolKind
	Addend int64

	// Populated only for the SymbolKind that needs it; reading the wrong one
	// for a given Symbol is a caller bug, not a data error.
	HoleOrdinal  int
	ExternalName string
	Const        constpool.Handle
	ICSite       string // set when Symbol is IcPathAddr: which text.ic.<site> it targets

	// Populated only when Symbol is RegisterPatch.
	RegClass irmodel.RegClass
	RegSlot  int
}

// RelocKind re-exports objfile's relocation kind so callers of this package
// never need to import objfile directly.
type RelocKind = objfile.RelocKind

// Stencil is the populated section-3 4-tuple plus its classified
// relocations, keyed by the section each relocation applies against.
type Stencil struct {
	VariantName string

	FastPathCode []byte
	SlowPathCode []byte
	IcPathCode   map[string][]byte // keyed by IC site name (text.ic.<site>)
	PrivateData  []byte

	// Relocations is keyed by the conventional section name the records
	// apply to: "text.main", "text.slow", "text.ic.<site>", "data.private".
	Relocations map[string][]RelocationRecord
}

// SectionBytes returns the pre-fixup bytes for one of the stencil's
// conventional sections, or nil if the stencil carries none for it.
func (s *Stencil) SectionBytes(section string) []byte {
	switch {
	case section == mainSection:
		return s.FastPathCode
	case section == slowSection:
		return s.SlowPathCode
	case section == dataSection:
		return s.PrivateData
	case len(section) > len(icPrefix) && section[:len(icPrefix)] == icPrefix:
		return s.IcPathCode[section[len(icPrefix):]]
	default:
		return nil
	}
}

// ICSiteNames reports the IC site names this stencil carries, sorted so
// callers that need to iterate section 4.H's per-site extraction
// deterministically get a stable order regardless of map iteration order.
func (s *Stencil) ICSiteNames() []string {
	names := make([]string, 0, len(s.IcPathCode))
	for name := range s.IcPathCode {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
