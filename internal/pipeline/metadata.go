/*
 * stencilc - metadata-slot layout routine (section 6)
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

package pipeline

import (
	"encoding/binary"
	"fmt"

	"github.com/vmforge/stencilc/internal/irmodel"
)

// MetadataPatch names one embedded metadata reference inside a bytecode: the
// byte offset of the 32-bit unaligned store, which metadata kind it refers
// to, and which instance of that kind (in emission order).
type MetadataPatch struct {
	BytecodeOffset int
	Kind           int
	Index          int
}

// MetadataLayout is the result of laying out a bytecode's trailing metadata
// region: the base offset of each kind's first struct, and the total
// trailing-array size, both measured from the code-block base.
type MetadataLayout struct {
	BaseOffset       []int
	TrailingArraySize int
}

func roundUp(v, alignment int) int {
	return (v + alignment - 1) &^ (alignment - 1)
}

// LayoutMetadata computes the trailing-array layout for a bytecode of
// bytecodeLen bytes carrying the given per-kind metadata field descriptors,
// each contributing numPerKind[i] struct instances. This follows the
// cursor-rounding, then-accumulate procedure: the bytecode stream is padded
// to 8 bytes, then each kind's base offset is the running cursor rounded up
// to its declared alignment, after which the cursor advances by size*count.
func LayoutMetadata(bytecodeLen int, fields []irmodel.MetadataField, numPerKind []int) (MetadataLayout, error) {
	if len(numPerKind) != len(fields) {
		return MetadataLayout{}, fmt.Errorf("pipeline: metadata layout: %d fields but %d counts", len(fields), len(numPerKind))
	}
	cursor := roundUp(bytecodeLen, 8)
	base := make([]int, len(fields))
	for i, f := range fields {
		if f.Log2Align > 3 {
			return MetadataLayout{}, fmt.Errorf("pipeline: metadata kind %q: alignment 1<<%d exceeds the 8-byte cap", f.Kind, f.Log2Align)
		}
		alignment := 1 << f.Log2Align
		cursor = roundUp(cursor, alignment)
		base[i] = cursor
		cursor += f.SizeBytes * numPerKind[i]
	}
	return MetadataLayout{BaseOffset: base, TrailingArraySize: roundUp(cursor, 8)}, nil
}

// ApplyMetadataPatches patches each MetadataPatch's 32-bit unaligned offset
// into bytecode, using layout to resolve the kind's base offset.
func ApplyMetadataPatches(bytecode []byte, fields []irmodel.MetadataField, layout MetadataLayout, patches []MetadataPatch) error {
	for _, p := range patches {
		if p.Kind < 0 || p.Kind >= len(fields) {
			return fmt.Errorf("pipeline: metadata patch at bytecode offset %d: kind ordinal %d out of range", p.BytecodeOffset, p.Kind)
		}
		offset := layout.BaseOffset[p.Kind] + fields[p.Kind].SizeBytes*p.Index
		alignment := 1 << fields[p.Kind].Log2Align
		if offset%alignment != 0 {
			return fmt.Errorf("pipeline: metadata patch for kind %q index %d: offset %d is not %d-byte aligned",
				fields[p.Kind].Kind, p.Index, offset, alignment)
		}
		if p.BytecodeOffset < 0 || p.BytecodeOffset+4 > len(bytecode) {
			return fmt.Errorf("pipeline: metadata patch at bytecode offset %d: out of range for a %d-byte bytecode stream", p.BytecodeOffset, len(bytecode))
		}
		binary.LittleEndian.PutUint32(bytecode[p.BytecodeOffset:p.BytecodeOffset+4], uint32(offset))
	}
	return nil
}
