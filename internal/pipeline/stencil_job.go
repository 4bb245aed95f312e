/*
 * stencilc - JIT stencil subcommand wiring (Components E-H, section 6)
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
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/vmforge/stencilc/internal/auditdump"
	"github.com/vmforge/stencilc/internal/constpool"
	"github.com/vmforge/stencilc/internal/iccache"
	"github.com/vmforge/stencilc/internal/objfile"
	"github.com/vmforge/stencilc/internal/patch"
	"github.com/vmforge/stencilc/internal/stencil"
)

// StencilJob is the result of running Components E and F over one compiled
// object file: the extracted stencil and its placeholder/patch plan. It is
// the in-memory shape behind output artifact #3 (the serialized stencil) and
// output artifact #4 (the audit dump).
type StencilJob struct {
	VariantName string
	Stencil     *stencil.Stencil
	Plan        *patch.Plan
	ICBodies    []iccache.ICBody
}

// RunStencilExtraction opens the compiled object file at objPath, runs the
// Stencil Extractor (4.E) against the shared constant pool, then runs the
// Placeholder & Patch Planner (4.F) and the Inline-Cache Extractor (4.H)
// over the result.
func (d Driver) RunStencilExtraction(objPath, variantName string, pool *constpool.Pool) (*StencilJob, error) {
	obj, err := objfile.Open(objPath)
	if err != nil {
		return nil, fmt.Errorf("pipeline: stencil extraction: %w", err)
	}
	s, err := stencil.Extract(obj, variantName, pool)
	if err != nil {
		return nil, fmt.Errorf("pipeline: stencil extraction: %w", err)
	}
	plan := patch.BuildPlan(s)
	icBodies := iccache.ExtractICBodies(s)
	d.Log.Info("extracted stencil", "variant", variantName, "ic_sites", len(icBodies))
	return &StencilJob{VariantName: variantName, Stencil: s, Plan: plan, ICBodies: icBodies}, nil
}

// stencilArtifact is the JSON shape of output artifact #3: pre-fixup code
// vectors, relocation marker vectors, patch programs, and the shared
// constant pool's snapshot, for one stencil.
type stencilArtifact struct {
	VariantName      string                     `json:"variant_name"`
	FastPath         patch.SectionPlan          `json:"fast_path"`
	SlowPath         patch.SectionPlan          `json:"slow_path"`
	IcPath           map[string]patch.SectionPlan `json:"ic_path,omitempty"`
	DataSec          patch.SectionPlan          `json:"data_sec"`
	FPURegistersUsed []int                      `json:"fpu_registers_used,omitempty"`
	SharedConstants  []constpool.Entry          `json:"shared_constants"`
}

// WriteStencilArtifact serializes output artifact #3 for job to w.
func (d Driver) WriteStencilArtifact(w io.Writer, job *StencilJob, pool *constpool.Pool) error {
	fpu := make([]int, len(job.Plan.FPURegistersUsed))
	for i, c := range job.Plan.FPURegistersUsed {
		fpu[i] = int(c)
	}
	artifact := stencilArtifact{
		VariantName:      job.VariantName,
		FastPath:         job.Plan.FastPath,
		SlowPath:         job.Plan.SlowPath,
		IcPath:           job.Plan.IcPath,
		DataSec:          job.Plan.DataSec,
		FPURegistersUsed: fpu,
		SharedConstants:  pool.Snapshot(),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(artifact); err != nil {
		return fmt.Errorf("pipeline: writing stencil artifact: %w", err)
	}
	return nil
}

// WriteAuditDump writes output artifact #4: an annotated hex dump of every
// section in job, plus one per IC body.
func (d Driver) WriteAuditDump(w io.Writer, job *StencilJob) error {
	if err := auditdump.WriteSection(w, job.VariantName, "text.main", job.Plan.FastPath); err != nil {
		return err
	}
	if err := auditdump.WriteSection(w, job.VariantName, "text.slow", job.Plan.SlowPath); err != nil {
		return err
	}
	if err := auditdump.WriteSection(w, job.VariantName, "data.private", job.Plan.DataSec); err != nil {
		return err
	}
	sites := make([]string, 0, len(job.Plan.IcPath))
	for site := range job.Plan.IcPath {
		sites = append(sites, site)
	}
	sort.Strings(sites)
	for _, site := range sites {
		if err := auditdump.WriteSection(w, job.VariantName, "text.ic."+site, job.Plan.IcPath[site]); err != nil {
			return err
		}
	}
	return nil
}
