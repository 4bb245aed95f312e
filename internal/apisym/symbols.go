/*
 * stencilc - recognized semantic-IR API call symbols (section 3)
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

// Package apisym names the distinguished API calls the desugaring driver and
// API Lowering stage recognize by symbol name in the semantic IR (section 3,
// section 4.D). Every other call in the IR is an ordinary helper subject to
// the desugaring driver's capability gate.
package apisym

// Symbol is the canonical name of one recognized API construct.
type Symbol string

const (
	Return               Symbol = "Return"
	ReturnNone           Symbol = "ReturnNone"
	MakeCall             Symbol = "MakeCall"
	MakeTailCall         Symbol = "MakeTailCall"
	Error                Symbol = "Error"
	GuardIsDouble        Symbol = "GuardIsDouble"
	GuardIsInt32         Symbol = "GuardIsInt32"
	GetBytecodeMetadataPtr Symbol = "GetBytecodeMetadataPtr"
	CondBr               Symbol = "CondBr"
	TierUpCheck          Symbol = "TierUpCheck"
)

// All lists every recognized symbol, in the order the desugaring driver's
// Top level unlocks them (section 4.B): this is also the order in which
// IsRecognized is documented, not an enforced priority.
var All = []Symbol{
	Return, ReturnNone, MakeCall, MakeTailCall, Error,
	GuardIsDouble, GuardIsInt32, GetBytecodeMetadataPtr, CondBr, TierUpCheck,
}

var recognized = func() map[Symbol]bool {
	m := make(map[Symbol]bool, len(All))
	for _, s := range All {
		m[s] = true
	}
	return m
}()

// IsRecognized reports whether name identifies a distinguished API call.
func IsRecognized(name string) bool {
	return recognized[Symbol(name)]
}

// TypeSpecializationHelpers are the type-tag dispatch helpers the desugaring
// driver's TypeSpecialization level (section 4.B level 4) unlocks. They are
// ordinary functions, not API calls; GuardIsDouble/GuardIsInt32 above are
// the API-call forms that consume their result.
var TypeSpecializationHelpers = []string{"IsInt32", "IsDouble", "IsString", "IsTable", "IsNil", "IsBoolean"}

// IsTypeSpecializationHelper reports whether name is one of the type-tag
// dispatch helpers inlined at desugar.TypeSpecialization.
func IsTypeSpecializationHelper(name string) bool {
	for _, h := range TypeSpecializationHelpers {
		if h == name {
			return true
		}
	}
	return false
}
