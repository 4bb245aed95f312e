/*
 * stencilc - dispatch-table and builder-API aggregation (output artifacts #1, #2)
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

// Package dispatchtable backs the `generate-builder-api` subcommand
// (section 6): it assigns stable opcode ordinals in declaration order (the
// ordering guarantee of section 5), then emits output artifact #1 (a
// per-variant typed builder declaration with an opcode-base constant) and
// output artifact #2 (the dispatch table and its parallel name table),
// following a fixed-shape emit-opcode-then-operands pattern.
package dispatchtable

import (
	"bufio"
	"fmt"
	"io"

	"github.com/vmforge/stencilc/internal/manifest"
)

// VariantSig is one variant's builder signature: its name and the byte
// width of each operand it accepts, in declaration order.
type VariantSig struct {
	Name          string
	OperandWidths []int
}

// Entry is one opcode's ordinal assignment plus its variant signatures.
type Entry struct {
	Opcode   string
	Ordinal  int
	Variants []VariantSig
}

// AssignOrdinals assigns each opcode record a stable ordinal equal to its
// position in records (opcode declaration order, section 5), and rejects
// two opcodes sharing a name as a layout conflict (section 7).
func AssignOrdinals(records []manifest.OpcodeRecord) ([]Entry, error) {
	seen := make(map[string]bool, len(records))
	entries := make([]Entry, 0, len(records))
	for i, rec := range records {
		if seen[rec.Name] {
			return nil, fmt.Errorf("dispatchtable: opcode %q declared more than once (layout conflict)", rec.Name)
		}
		seen[rec.Name] = true

		widths := make([]int, len(rec.Operands))
		for j, op := range rec.Operands {
			widths[j] = op.Width
		}
		variants := make([]VariantSig, 0, len(rec.Variants))
		for _, v := range rec.Variants {
			variants = append(variants, VariantSig{Name: v.Name, OperandWidths: widths})
		}
		entries = append(entries, Entry{Opcode: rec.Name, Ordinal: i, Variants: variants})
	}
	return entries, nil
}

// WriteBuilderAPI emits output artifact #1: for every opcode, an
// opcode-base constant and, for each variant, a typed create(...) entry
// naming each operand's byte width.
func WriteBuilderAPI(w io.Writer, entries []Entry) error {
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		fmt.Fprintf(bw, "const OpcodeBase_%s = %d\n", e.Opcode, e.Ordinal)
		for _, v := range e.Variants {
			fmt.Fprintf(bw, "func Create_%s_%s(", e.Opcode, v.Name)
			for i, width := range v.OperandWidths {
				if i > 0 {
					fmt.Fprint(bw, ", ")
				}
				fmt.Fprintf(bw, "operand%d int%d", i, width*8)
			}
			fmt.Fprintln(bw, ") []byte")
		}
	}
	return bw.Flush()
}

// WriteDispatchTable emits output artifact #2: a dispatch table of function
// pointers in opcode-ordinal order under symbolName (the symbol name fixed
// by the VM ABI), and a parallel name table for diagnostics.
func WriteDispatchTable(w io.Writer, entries []Entry, symbolName string) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "var %s = [%d]uintptr{\n", symbolName, len(entries))
	for _, e := range entries {
		fmt.Fprintf(bw, "\t/* %d */ entry_%s,\n", e.Ordinal, e.Opcode)
	}
	fmt.Fprintln(bw, "}")

	fmt.Fprintf(bw, "var %sNames = [%d]string{\n", symbolName, len(entries))
	for _, e := range entries {
		fmt.Fprintf(bw, "\t/* %d */ %q,\n", e.Ordinal, e.Opcode)
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}
