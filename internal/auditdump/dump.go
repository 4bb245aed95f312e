/*
 * stencilc - annotated stencil audit dump (output artifact #4, section 6)
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

// Package auditdump writes the human-readable per-bytecode review file
// output artifact #4 names: a hex dump of each section's pre-fixup code
// with relocation bytes marked by `**`. The object-code toolchain that
// produces the underlying machine code is an out-of-scope external
// collaborator (section 1); this package does not disassemble x86
// instructions, only annotates byte positions.
package auditdump

import (
	"bufio"
	"fmt"
	"io"

	"github.com/vmforge/stencilc/internal/patch"
)

const bytesPerRow = 16

// WriteSection writes one annotated hex dump for a named section of a
// stencil to w: sixteen bytes per row, offset prefix, and a parallel
// marker row using `**` under every byte position patch has flagged as not
// determined by the pre-fixup code (its RelocMarker).
func WriteSection(w io.Writer, variantName, sectionName string, sp patch.SectionPlan) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "=== %s / %s (%d bytes) ===\n", variantName, sectionName, len(sp.PreFixupCode))

	for row := 0; row < len(sp.PreFixupCode); row += bytesPerRow {
		end := row + bytesPerRow
		if end > len(sp.PreFixupCode) {
			end = len(sp.PreFixupCode)
		}
		fmt.Fprintf(bw, "%06x  ", row)
		for i := row; i < end; i++ {
			fmt.Fprintf(bw, "%02x ", sp.PreFixupCode[i])
		}
		fmt.Fprintln(bw)
		fmt.Fprintf(bw, "        ")
		for i := row; i < end; i++ {
			if i < len(sp.RelocMarker) && sp.RelocMarker[i] {
				fmt.Fprint(bw, "** ")
			} else {
				fmt.Fprint(bw, "   ")
			}
		}
		fmt.Fprintln(bw)
	}

	if len(sp.LatePatches) > 0 {
		fmt.Fprintln(bw, "late patches (conditional-branch holes):")
		for _, lp := range sp.LatePatches {
			width := 4
			if lp.Is64Bit {
				width = 8
			}
			fmt.Fprintf(bw, "  offset %d, width %d\n", lp.Offset, width)
		}
	}
	if len(sp.RegisterRenames) > 0 {
		fmt.Fprintln(bw, "register renames:")
		for _, rr := range sp.RegisterRenames {
			fmt.Fprintf(bw, "  offset %d, class %v, slot %d\n", rr.Offset, rr.Class, rr.Slot)
		}
	}
	return bw.Flush()
}
