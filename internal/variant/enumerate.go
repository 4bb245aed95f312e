/*
 * stencilc - variant enumeration (Component A, section 4.A)
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

// Package variant enumerates the complete set of lowering variants for an
// opcode definition: the cartesian product over each operand's declared
// width choices, intersected with declared variant restrictions, in
// declaration order (section 5's ordering guarantee: variant emission order
// within an opcode follows declaration order).
package variant

import (
	"fmt"
	"sort"

	"github.com/vmforge/stencilc/internal/irmodel"
)

// OperandChoice declares the widths a single operand may be bound to.
type OperandChoice struct {
	Widths []int // e.g. []int{1, 2, 4}
}

// Restriction filters a candidate width tuple (one width per operand, in
// declaration order); it returns false to drop that combination.
type Restriction func(widths []int) bool

// Request bundles the declarative inputs to enumeration for one opcode.
type Request struct {
	OpcodeName   string
	Operands     []OperandChoice
	Restrictions []Restriction
	ResultClass  irmodel.RegClass
	Quickenable  bool
	MetadataSlot bool
}

// Enumerate produces the complete, declaration-ordered variant set for req.
// Name suffixes are assigned by width, e.g. "Add_w1w2" for a two-operand
// opcode whose first operand is bound to width 1 and second to width 2.
func Enumerate(req Request) ([]irmodel.Variant, error) {
	if len(req.Operands) == 0 {
		v := irmodel.Variant{
			Name:         req.OpcodeName,
			ResultClass:  req.ResultClass,
			Quickenable:  req.Quickenable,
			MetadataSlot: req.MetadataSlot,
		}
		return []irmodel.Variant{v}, nil
	}

	var out []irmodel.Variant
	widths := make([]int, len(req.Operands))
	var walk func(idx int) error
	walk = func(idx int) error {
		if idx == len(req.Operands) {
			bound := append([]int(nil), widths...)
			for _, r := range req.Restrictions {
				if !r(bound) {
					return nil
				}
			}
			out = append(out, irmodel.Variant{
				Name:          variantName(req.OpcodeName, bound),
				OperandWidths: bound,
				ResultClass:   req.ResultClass,
				Quickenable:   req.Quickenable,
				MetadataSlot:  req.MetadataSlot,
			})
			return nil
		}
		choice := req.Operands[idx]
		if len(choice.Widths) == 0 {
			return fmt.Errorf("opcode %q: operand %d declares no width choices", req.OpcodeName, idx)
		}
		sorted := append([]int(nil), choice.Widths...)
		sort.Ints(sorted)
		for _, w := range sorted {
			widths[idx] = w
			if err := walk(idx + 1); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(0); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("opcode %q: variant set is empty after restrictions", req.OpcodeName)
	}
	return out, nil
}

func variantName(base string, widths []int) string {
	name := base
	for _, w := range widths {
		name += fmt.Sprintf("_w%d", w)
	}
	return name
}

// CheckExclusivity verifies testable property 4: no two variants' DFG
// speculation masks (input type-mask coverage, read from each variant's
// Speculated masks; rule is not consulted) overlap. Two variants sharing
// operand count, result class, and compatible encodings (identical operand
// widths) are "interchangeable" per section 3; exclusivity is only
// required across variants that are not interchangeable.
func CheckExclusivity(rule irmodel.TypeDeductionRule, dfgVariants []irmodel.DFGVariant) error {
	for i := range dfgVariants {
		for j := range dfgVariants {
			if i >= j {
				continue
			}
			a, b := dfgVariants[i], dfgVariants[j]
			if interchangeable(a.Variant, b.Variant) {
				continue
			}
			if overlaps(a.Speculated, b.Speculated) {
				return fmt.Errorf("variants %q and %q have overlapping input-type-mask coverage", a.Name, b.Name)
			}
		}
	}
	return nil
}

func interchangeable(a, b irmodel.Variant) bool {
	if len(a.OperandWidths) != len(b.OperandWidths) || a.ResultClass != b.ResultClass {
		return false
	}
	for i := range a.OperandWidths {
		if a.OperandWidths[i] != b.OperandWidths[i] {
			return false
		}
	}
	return true
}

func overlaps(a, b []irmodel.TypeMask) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i]&b[i] == 0 {
			return false
		}
	}
	return true
}
