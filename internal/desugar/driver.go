/*
 * stencilc - Desugaring Driver (Component B, section 4.B)
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

// Package desugar runs the capability-gated inlining passes of section 4.B.
// The general-purpose IR inliner itself is an external collaborator (out of
// scope per section 1); this package only owns the five-level
// capability gate and the side-table of per-function policy, since the
// opaque irmodel.ImplFunction type carries no function-level attributes of
// its own (section 9's "Multi-level inliner capability gates" note).
package desugar

import "fmt"

// Level is one of the five strictly-ascending desugaring levels. Levels
// correspond directly to original_source/deegen/deegen_desugaring_level.h.
type Level int

const (
	// Bottom inlines nothing.
	Bottom Level = iota
	// AlwaysInline inlines only functions marked always-inline.
	AlwaysInline
	// GeneralFunctions inlines ordinary non-API helpers.
	GeneralFunctions
	// TypeSpecialization inlines type-tag dispatch helpers (IsInt32, IsDouble, ...).
	TypeSpecialization
	// Top inlines everything remaining, including API stubs.
	Top
)

func (l Level) String() string {
	switch l {
	case Bottom:
		return "Bottom"
	case AlwaysInline:
		return "AlwaysInline"
	case GeneralFunctions:
		return "GeneralFunctions"
	case TypeSpecialization:
		return "TypeSpecialization"
	case Top:
		return "Top"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// orderedLevels is the strictly-ascending pass order the driver runs.
// Bottom is never run as a pass: it is the vacuous starting state.
var orderedLevels = []Level{AlwaysInline, GeneralFunctions, TypeSpecialization, Top}

// Classifier answers "what level does this function belong to", given only
// its symbol name: the side-table required because ImplFunction carries no
// attributes of its own.
type Classifier func(funcName string) Level

// Inliner is the external, capability-limited inliner collaborator. SetAttr
// marks funcName as inlinable (true) or not (false) for the upcoming pass;
// RunToFixpoint performs one full inlining pass over ir and reports whether
// anything changed.
type Inliner interface {
	SetAttr(funcName string, inline bool)
	RunToFixpoint(ir any) (changed bool, err error)
}

// Driver owns the classifier side-table and the iteration cap.
type Driver struct {
	Classify      Classifier
	MaxItersPerLevel int
}

// NonConvergenceError is returned when a level's inlining pass fails to
// reach a fixpoint within MaxItersPerLevel iterations (section 4.B's
// failure semantics: the pipeline never silently proceeds with partial
// desugaring).
type NonConvergenceError struct {
	Level Level
	Iters int
}

func (e *NonConvergenceError) Error() string {
	return fmt.Sprintf("desugaring level %s did not converge within %d iterations", e.Level, e.Iters)
}

// Run drives ir through each level in orderedLevels. funcNames is every
// function symbol name referenced anywhere in ir (the driver needs this
// list because, per section 9, classification is a side-table keyed by
// name, not an IR-carried attribute).
func (d Driver) Run(ir any, inliner Inliner, funcNames []string) error {
	if d.MaxItersPerLevel <= 0 {
		return fmt.Errorf("desugar: MaxItersPerLevel must be positive, got %d", d.MaxItersPerLevel)
	}
	for _, level := range orderedLevels {
		for _, name := range funcNames {
			class := d.Classify(name)
			// Functions strictly above the current level are marked
			// no-inline; at or below, inline. This keeps higher-altitude
			// analyses (e.g. "does this body make a tail call") able to run
			// while API calls above the current level remain syntactically
			// intact.
			inliner.SetAttr(name, class <= level)
		}
		converged := false
		for iter := 0; iter < d.MaxItersPerLevel; iter++ {
			changed, err := inliner.RunToFixpoint(ir)
			if err != nil {
				return fmt.Errorf("desugar: level %s: %w", level, err)
			}
			if !changed {
				converged = true
				break
			}
		}
		if !converged {
			return &NonConvergenceError{Level: level, Iters: d.MaxItersPerLevel}
		}
	}
	return nil
}
