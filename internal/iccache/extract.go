/*
 * stencilc - Inline-Cache Extractor (Component H, section 4.H)
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

// Package iccache implements the Inline-Cache Extractor (Component H,
// section 4.H): given a stencil that carries one or more IC sites, it
// produces a separate, self-contained Stencil per IC body, and records the
// byte offsets within the enclosing main logic's private data that each IC
// body's code actually touches (via its MainLogicPrivateDataAddr
// relocations), so IC instantiations can rediscover their owner's layout at
// runtime.
package iccache

import (
	"sort"

	"github.com/vmforge/stencilc/internal/stencil"
)

// ICBody is one IC site's own stencil, extracted from the enclosing main
// logic's compiled object.
type ICBody struct {
	SiteName string
	Stencil  *stencil.Stencil
	// OwnerOffsets lists, in ascending order, the distinct byte offsets
	// within the main logic's private data this body's relocations
	// reference (the addends of its MainLogicPrivateDataAddr entries).
	OwnerOffsets []int64
}

// ExtractICBodies splits main into one Stencil per IC site it carries. The
// returned bodies are ordered by site name for determinism.
func ExtractICBodies(main *stencil.Stencil) []ICBody {
	names := main.ICSiteNames()
	sort.Strings(names)

	bodies := make([]ICBody, 0, len(names))
	for _, name := range names {
		sectionName := "text.ic." + name
		relocs := main.Relocations[sectionName]

		body := &stencil.Stencil{
			VariantName:  main.VariantName + "." + name,
			FastPathCode: main.IcPathCode[name],
			IcPathCode:   map[string][]byte{},
			Relocations:  map[string][]stencil.RelocationRecord{"text.main": relocs},
		}

		var offsets []int64
		seen := make(map[int64]bool)
		for _, r := range relocs {
			if r.Symbol == stencil.MainLogicPrivateDataAddr && !seen[r.Addend] {
				seen[r.Addend] = true
				offsets = append(offsets, r.Addend)
			}
		}
		sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

		bodies = append(bodies, ICBody{SiteName: name, Stencil: body, OwnerOffsets: offsets})
	}
	return bodies
}
