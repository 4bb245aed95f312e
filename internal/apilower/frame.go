/*
 * stencilc - stack-frame discipline (section 4.D)
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

package apilower

// FrameHeaderSlots is the number of slot-width words every call frame's
// header occupies (section 4.D: "Header size is 4 x slot-width"). Locals
// begin immediately after the header.
const FrameHeaderSlots = 4

// Header field indices, in slot order.
const (
	HeaderCallerBase      = 0
	HeaderReturnAddress   = 1
	HeaderFunctionPointer = 2
	HeaderTrailer         = 3 // packed caller-bytecode-offset + variadic-arg-count
)

// PackTrailer packs the caller's bytecode offset and the variadic-argument
// count into the header's fourth slot: the low 16 bits hold the count, the
// remaining high bits hold the offset. This keeps the header at exactly
// FrameHeaderSlots words despite section 4.D naming five logical fields.
func PackTrailer(callerBytecodeOffset int64, variadicArgCount uint16) int64 {
	return (callerBytecodeOffset << 16) | int64(variadicArgCount)
}

// UnpackTrailer reverses PackTrailer.
func UnpackTrailer(packed int64) (callerBytecodeOffset int64, variadicArgCount uint16) {
	return packed >> 16, uint16(packed & 0xffff)
}

// FrameShift computes the byte offset of a new frame's base relative to the
// current frame's base: header plus declared locals, at the given
// slot-width. Both MakeCall and Return lowering must use this exact
// computation (section 4.D: "Frame-shift computations ... must remain
// byte-exact against this layout").
func FrameShift(localSlotCount int, slotWidthBytes int) int64 {
	return int64((FrameHeaderSlots + localSlotCount) * slotWidthBytes)
}
