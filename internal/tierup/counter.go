/*
 * stencilc - tier-up counter contract (section 4.D)
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

// Package tierup models the 64-bit signed tier-up counter carried on every
// code block (section 4.D). It is decremented by bytecode weight at every
// backward branch and at function entry; crossing zero triggers compilation
// of the next tier. The package is deliberately tiny: it holds the one
// definition of "backward branch delta" that API lowering (Component D)
// uses for its CondBr counter update, grounded in
// original_source/annotated/deegen_common_snippets/update_interpreter_tier_up_counter_for_branch.cpp.
package tierup

// BranchDelta computes the tier-up counter adjustment for a branch from
// curBytecodeOffset to dstBytecodeOffset (both byte offsets from the start
// of the enclosing function's bytecode stream). A backward branch
// (dst < cur) makes forward progress toward tier-up, so it subtracts a
// positive amount; a forward branch subtracts a negative amount (i.e. adds),
// since bytecodes were skipped rather than re-executed.
func BranchDelta(curBytecodeOffset, dstBytecodeOffset int64) int64 {
	return -(curBytecodeOffset - dstBytecodeOffset)
}

// Counter is the per-code-block tier-up state. Disabled is true when
// tier-up is turned off at build time, in which case the field must be
// omitted entirely from the generated code block layout (section 4.D).
type Counter struct {
	Disabled bool
	Value    int64
}

// ApplyBranch adjusts c.Value by the delta for a branch from cur to dst. It
// is a no-op when tier-up is disabled.
func (c *Counter) ApplyBranch(curBytecodeOffset, dstBytecodeOffset int64) {
	if c.Disabled {
		return
	}
	c.Value += BranchDelta(curBytecodeOffset, dstBytecodeOffset)
}

// CrossedZero reports whether the counter has reached or passed zero,
// i.e. whether tier-up to the next tier should now be triggered.
func (c *Counter) CrossedZero() bool {
	return !c.Disabled && c.Value <= 0
}
