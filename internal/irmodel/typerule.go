/*
 * stencilc - type-deduction rule combinators (section 4.A)
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

package irmodel

// AlwaysOutput returns a rule that ignores its inputs and always yields t.
func AlwaysOutput(t TypeMask) TypeDeductionRule {
	return func([]TypeMask) TypeMask { return t }
}

// BypassFromOperand returns a rule that copies the type mask of input i
// through unchanged.
func BypassFromOperand(i int) TypeDeductionRule {
	return func(inputs []TypeMask) TypeMask {
		if i < 0 || i >= len(inputs) {
			return 0
		}
		return inputs[i]
	}
}

// UpcastFromUnion returns a rule that unions the masks of operands i and j.
// Used for e.g. arithmetic bytecodes whose result type may be either
// operand's type (int+int=int, int+double=double, double+double=double).
func UpcastFromUnion(i, j int) TypeDeductionRule {
	return func(inputs []TypeMask) TypeMask {
		var a, b TypeMask
		if i >= 0 && i < len(inputs) {
			a = inputs[i]
		}
		if j >= 0 && j < len(inputs) {
			b = inputs[j]
		}
		return a | b
	}
}

// Combine chains rules left to right, unioning their results. This lets a
// bytecode definition build e.g. "result is int-or-double, plus whatever
// the metatable-dispatch slow path may additionally produce" out of smaller
// named rules instead of one bespoke closure per opcode.
func Combine(rules ...TypeDeductionRule) TypeDeductionRule {
	return func(inputs []TypeMask) TypeMask {
		var out TypeMask
		for _, r := range rules {
			out |= r(inputs)
		}
		return out
	}
}
