/*
 * stencilc - object file reader (supports the Stencil Extractor, section 4.E)
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

// Package objfile reads the relocatable ELF object the external object-code
// toolchain produces for one wrapper (section 1 names that toolchain
// an out-of-scope collaborator; this package is the narrow contract stencilc
// needs against its output). It targets ELF64 + R_X86_64 relocations only,
// matching the 64-bit small-code-model restriction in the Non-goals.
//
// debug/elf from the standard library is used rather than a third-party ELF
// library: it is the toolchain every other Go compiler-adjacent tool in this
// space (cmd/compile, cmd/link) already relies on for exactly this job, and
// no ecosystem alternative is more canonical for reading, as opposed to
// writing, standard ELF relocatable objects. See DESIGN.md.
package objfile

import (
	"debug/elf"
	"encoding/binary"
	"fmt"
)

// RelocKind enumerates the relocation kinds section 3 and section 4.E
// require the Stencil Extractor to validate.
type RelocKind int

const (
	PC32 RelocKind = iota
	PLT32
	ABS64
	ABS32
	ABS32S
)

func (k RelocKind) String() string {
	switch k {
	case PC32:
		return "PC32"
	case PLT32:
		return "PLT32"
	case ABS64:
		return "ABS64"
	case ABS32:
		return "ABS32"
	case ABS32S:
		return "ABS32S"
	default:
		return "Unknown"
	}
}

// classifyX86_64 maps an ELF R_X86_64_* relocation type to the kind set
// section 4.E validates, or reports ok=false for anything unsupported
// (which the caller must treat as a fatal "Unsupported construct", section
// 7).
func classifyX86_64(t elf.R_X86_64) (RelocKind, bool) {
	switch t {
	case elf.R_X86_64_PC32:
		return PC32, true
	case elf.R_X86_64_PLT32:
		return PLT32, true
	case elf.R_X86_64_64:
		return ABS64, true
	case elf.R_X86_64_32:
		return ABS32, true
	case elf.R_X86_64_32S:
		return ABS32S, true
	default:
		return 0, false
	}
}

// Reloc is one relocation entry against a section's bytes.
type Reloc struct {
	Offset uint64
	Kind   RelocKind
	Symbol string
	Addend int64
}

// Section is one named section's raw contents plus the relocations applied
// to it.
type Section struct {
	Name   string
	Data   []byte
	Relocs []Reloc
}

// SymbolInfo is the subset of an ELF symbol table entry the Stencil
// Extractor needs to resolve a shared-constant relocation's target bytes:
// which section defines it, and at what value/size within that section.
type SymbolInfo struct {
	Value   uint64
	Size    uint64
	Section string
}

// Object is the parsed set of sections the Stencil Extractor consumes.
type Object struct {
	Sections map[string]Section
	Symbols  map[string]SymbolInfo
}

// Open parses path as an ELF64 relocatable object and returns every
// non-empty SHT_PROGBITS section along with its RELA relocations.
func Open(path string) (*Object, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("objfile: open %s: %w", path, err)
	}
	defer f.Close()
	return fromFile(f)
}

func fromFile(f *elf.File) (*Object, error) {
	if f.Class != elf.ELFCLASS64 {
		return nil, fmt.Errorf("objfile: only ELF64 is supported (small-code-model target)")
	}

	obj := &Object{Sections: make(map[string]Section), Symbols: make(map[string]SymbolInfo)}
	for _, sec := range f.Sections {
		if sec.Type != elf.SHT_PROGBITS || sec.Size == 0 {
			continue
		}
		data, err := sec.Data()
		if err != nil {
			return nil, fmt.Errorf("objfile: reading section %s: %w", sec.Name, err)
		}
		obj.Sections[sec.Name] = Section{Name: sec.Name, Data: data}
	}

	symtab, err := f.Symbols()
	if err != nil && len(f.Sections) > 0 {
		// No symbol table is not fatal by itself; relocation parsing below
		// will fail loudly if it actually needs one.
		symtab = nil
	}
	for _, sym := range symtab {
		if sym.Name == "" || int(sym.Section) < 0 || int(sym.Section) >= len(f.Sections) {
			continue
		}
		obj.Symbols[sym.Name] = SymbolInfo{
			Value:   sym.Value,
			Size:    sym.Size,
			Section: f.Sections[sym.Section].Name,
		}
	}

	for _, sec := range f.Sections {
		if sec.Type != elf.SHT_RELA {
			continue
		}
		targetName := sec.Name
		const prefix = ".rela"
		if len(targetName) > len(prefix) && targetName[:len(prefix)] == prefix {
			targetName = targetName[len(prefix):]
		}
		target, ok := obj.Sections[targetName]
		if !ok {
			continue
		}
		raw, err := sec.Data()
		if err != nil {
			return nil, fmt.Errorf("objfile: reading relocations for %s: %w", targetName, err)
		}
		relocs, err := parseRelaX86_64(raw, symtab)
		if err != nil {
			return nil, fmt.Errorf("objfile: %s: %w", targetName, err)
		}
		target.Relocs = relocs
		obj.Sections[targetName] = target
	}
	return obj, nil
}

// elf64RelaSize is the on-disk size of one Elf64_Rela entry.
const elf64RelaSize = 24

func parseRelaX86_64(raw []byte, symtab []elf.Symbol) ([]Reloc, error) {
	if len(raw)%elf64RelaSize != 0 {
		return nil, fmt.Errorf("malformed RELA section: size %d not a multiple of %d", len(raw), elf64RelaSize)
	}
	n := len(raw) / elf64RelaSize
	out := make([]Reloc, 0, n)
	for i := 0; i < n; i++ {
		entry := raw[i*elf64RelaSize:]
		offset := binary.LittleEndian.Uint64(entry[0:8])
		info := binary.LittleEndian.Uint64(entry[8:16])
		addend := int64(binary.LittleEndian.Uint64(entry[16:24]))

		symIdx := info >> 32
		relType := elf.R_X86_64(uint32(info))

		kind, ok := classifyX86_64(relType)
		if !ok {
			return nil, fmt.Errorf("unsupported relocation kind %v at offset %d", relType, offset)
		}

		var symName string
		if symIdx > 0 {
			if int(symIdx-1) >= len(symtab) {
				return nil, fmt.Errorf("relocation at offset %d references symbol %d, but the symbol table has %d entries", offset, symIdx, len(symtab))
			}
			symName = symtab[symIdx-1].Name
		}
		out = append(out, Reloc{Offset: offset, Kind: kind, Symbol: symName, Addend: addend})
	}
	return out, nil
}
