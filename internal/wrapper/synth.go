/*
 * stencilc - Wrapper Synthesis (Component C, section 4.C)
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

// Package wrapper synthesizes one entry function per (variant, tier) pair:
// the ABI matching that tier's dispatch convention, operand decoding in the
// interpreter's prologue, and the epilogue shape the API Lowering pass
// (Component D) determines from the body.
package wrapper

import (
	"fmt"

	"github.com/vmforge/stencilc/internal/apilower"
	"github.com/vmforge/stencilc/internal/irmodel"
	"github.com/vmforge/stencilc/internal/semir"
)

// Section is the named object-file section an entry function is placed in.
type Section string

const (
	HotSection  Section = "text.main"
	ColdSection Section = "text.slow"
)

// OperandDecode describes, for the interpreter tier only, how one operand is
// read out of the bytecode stream in the prologue: at ByteOffset, Width
// bytes, sign-extended if Signed.
type OperandDecode struct {
	Name       string
	ByteOffset int
	Width      int
	Signed     bool
}

// EntryFunction is the synthesized wrapper for one (variant, tier) pair.
type EntryFunction struct {
	VariantName string
	Tier        apilower.Tier
	Section     Section
	Decodes     []OperandDecode // interpreter-tier prologue only; empty for JIT tiers
	Lowered     apilower.LoweredFunc
}

// Synthesize builds the entry function for v at tier, given the desugared
// semantic body and the lowering options. It sets MayFallThrough and
// MayTailCall on the returned EntryFunction's Lowered field; these are then
// persisted back onto the variant by the caller, per section 4.C ("Two
// booleans are derived during synthesis and persisted on the variant").
func Synthesize(v irmodel.Variant, tier apilower.Tier, body *semir.Func, opts apilower.Options) (EntryFunction, error) {
	lowered, err := apilower.Lower(tier, body, opts)
	if err != nil {
		return EntryFunction{}, fmt.Errorf("wrapper: synthesizing %q/%s: %w", v.Name, tier, err)
	}

	section := ColdSection
	if v.HotSection {
		section = HotSection
	}

	ef := EntryFunction{
		VariantName: v.Name,
		Tier:        tier,
		Section:     section,
		Lowered:     lowered,
	}
	if tier == apilower.Interpreter {
		ef.Decodes = decodeOperands(v)
	}
	return ef, nil
}

// decodeOperands lays out the interpreter prologue's operand reads:
// position-dependent, byte-aligned only to 1, in declaration order,
// immediately following the one opcode byte (section 4.A).
func decodeOperands(v irmodel.Variant) []OperandDecode {
	decodes := make([]OperandDecode, len(v.OperandWidths))
	offset := 1 // one opcode byte precedes the operand stream
	for i, w := range v.OperandWidths {
		signed := false
		if i < len(v.OperandSigned) {
			signed = v.OperandSigned[i]
		}
		decodes[i] = OperandDecode{
			Name:       fmt.Sprintf("operand%d", i),
			ByteOffset: offset,
			Width:      w,
			Signed:     signed,
		}
		offset += w
	}
	return decodes
}

// PersistDerivedFlags copies the booleans Wrapper Synthesis derives for v
// back onto the variant value, as section 4.C requires: "these govern
// epilogue shape and are preserved as contracts for the next stage."
func PersistDerivedFlags(v irmodel.Variant, ef EntryFunction) irmodel.Variant {
	v.MayFallThrough = ef.Lowered.MayFallThrough
	v.MayTailCall = ef.Lowered.MayTailCall
	return v
}
