/*
 * stencilc - pipeline driver wiring Components A-D (section 6)
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

// Package pipeline drives the manifest reader and Components A through D
// (process-bytecode-def) or the dispatch-table aggregation step
// (generate-builder-api), in the order cmd/stencilc's subcommands expose.
// It also owns the metadata-slot layout routine and the transactional
// scratch-file output convention shared by every subcommand (section 7).
package pipeline

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/vmforge/stencilc/internal/apilower"
	"github.com/vmforge/stencilc/internal/buildcfg"
	"github.com/vmforge/stencilc/internal/desugar"
	"github.com/vmforge/stencilc/internal/dispatchtable"
	"github.com/vmforge/stencilc/internal/irmodel"
	"github.com/vmforge/stencilc/internal/manifest"
	"github.com/vmforge/stencilc/internal/semir"
	"github.com/vmforge/stencilc/internal/wrapper"
)

// DecodeIRModule decodes one opcode's opaque IR-module payload (the
// manifest's base64 field, already decoded to raw bytes by internal/manifest)
// back into a concrete semir.Func. The input artifact format (section 6)
// only requires the payload to be "a serialized IR module"; it does not fix
// a wire encoding, so this uses encoding/gob against semir.Func's exported
// fields rather than inventing a bespoke format.
func DecodeIRModule(payload []byte) (*semir.Func, error) {
	var fn semir.Func
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&fn); err != nil {
		return nil, fmt.Errorf("pipeline: decoding IR module: %w", err)
	}
	return &fn, nil
}

// EncodeIRModule is DecodeIRModule's inverse, used by tooling that produces
// manifests rather than consumes them.
func EncodeIRModule(fn *semir.Func) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(fn); err != nil {
		return nil, fmt.Errorf("pipeline: encoding IR module: %w", err)
	}
	return buf.Bytes(), nil
}

// noopInliner stands in for the external, capability-limited inliner
// collaborator (section 9: multi-level inliner capability gates). The real
// inliner is an out-of-scope collaborator (section 1); semir bodies
// already arrive flattened (see package semir's doc comment), so there is
// nothing left for a pass over this IR to do.
type noopInliner struct{}

func (noopInliner) SetAttr(funcName string, inline bool)          {}
func (noopInliner) RunToFixpoint(ir any) (changed bool, err error) { return false, nil }

// ProcessedVariant is one (opcode, variant) pair's lowered interpreter-tier
// entry function, ready for output artifact #1/#2 aggregation.
type ProcessedVariant struct {
	Opcode  string `json:"opcode"`
	Variant string `json:"variant"`
	Section string `json:"section"`
	Length  int    `json:"encoded_length"`
}

// ProcessedOpcode is one opcode's fully lowered interpreter-tier form: its
// metadata-slot layout and every variant's synthesized entry function.
type ProcessedOpcode struct {
	Opcode         string                `json:"opcode"`
	MetadataLayout MetadataLayout        `json:"metadata_layout"`
	Variants       []ProcessedVariant    `json:"variants"`
	record         manifest.OpcodeRecord `json:"-"`
}

// Driver owns the configuration and logger every subcommand shares.
type Driver struct {
	Config buildcfg.Config
	Log    *slog.Logger
}

// ProcessBytecodeDef runs stages A-D over every opcode declared in r (the
// process-bytecode-def subcommand, section 6): it desugars each variant's
// body to its Top-level flat form, then lowers it to interpreter-tier
// instructions, computing the trailing metadata-slot layout along the way.
func (d Driver) ProcessBytecodeDef(r io.Reader) ([]ProcessedOpcode, error) {
	records, err := manifest.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("pipeline: process-bytecode-def: %w", err)
	}

	desugarDriver := desugar.Driver{
		Classify:         func(string) desugar.Level { return desugar.Top },
		MaxItersPerLevel: 16,
	}
	opts := apilower.Options{
		ReturnSlotMinimum: d.Config.ReturnSlotMinimum,
		TierUpEnabled:     d.Config.TierUpEnabled,
		SlotWidthBytes:    d.Config.SlotWidthBytes,
	}

	out := make([]ProcessedOpcode, 0, len(records))
	for _, rec := range records {
		opDef, err := recordToOpcodeDef(rec)
		if err != nil {
			return nil, fmt.Errorf("pipeline: process-bytecode-def: %w", err)
		}
		if err := opDef.Validate(); err != nil {
			return nil, fmt.Errorf("pipeline: process-bytecode-def: %w", err)
		}

		fn, err := DecodeIRModule(rec.IRModule)
		if err != nil {
			return nil, fmt.Errorf("pipeline: opcode %q: %w", rec.Name, err)
		}

		widths := make([]int, len(rec.MetaFields))
		for i, m := range rec.MetaFields {
			widths[i] = m.Count
		}
		metaFields := make([]irmodel.MetadataField, len(rec.MetaFields))
		for i, m := range rec.MetaFields {
			metaFields[i] = irmodel.MetadataField{Kind: m.Kind, SizeBytes: m.Size, Log2Align: m.Log2Align, CountPerFunc: m.Count}
		}
		bytecodeLen := 1
		for _, o := range rec.Operands {
			bytecodeLen += o.Width
		}
		layout, err := LayoutMetadata(bytecodeLen, metaFields, widths)
		if err != nil {
			return nil, fmt.Errorf("pipeline: opcode %q: %w", rec.Name, err)
		}

		processed := ProcessedOpcode{Opcode: rec.Name, MetadataLayout: layout, record: rec}
		for vi, vdecl := range rec.Variants {
			body := fn.Clone().(*semir.Func)
			names := funcNames(body)
			if err := desugarDriver.Run(body, noopInliner{}, names); err != nil {
				return nil, fmt.Errorf("pipeline: opcode %q variant %q: %w", rec.Name, vdecl.Name, err)
			}

			v := opDef.Variants[vi]
			ef, err := wrapper.Synthesize(v, apilower.Interpreter, body, opts)
			if err != nil {
				return nil, fmt.Errorf("pipeline: opcode %q variant %q: %w", rec.Name, vdecl.Name, err)
			}
			v = wrapper.PersistDerivedFlags(v, ef)
			processed.Variants = append(processed.Variants, ProcessedVariant{
				Opcode:  rec.Name,
				Variant: v.Name,
				Section: string(ef.Section),
				Length:  v.EncodedLength(),
			})
		}
		out = append(out, processed)
		d.Log.Info("processed opcode", "opcode", rec.Name, "variants", len(processed.Variants))
	}
	return out, nil
}

// WriteHeader writes output artifact #1-shaped declarations (an opcode-base
// constant plus a typed create(...) entry per variant) for the opcodes
// process-bytecode-def just processed.
func (d Driver) WriteHeader(w io.Writer, processed []ProcessedOpcode) error {
	records := make([]manifest.OpcodeRecord, len(processed))
	for i, p := range processed {
		records[i] = p.record
	}
	entries, err := dispatchtable.AssignOrdinals(records)
	if err != nil {
		return fmt.Errorf("pipeline: write-header: %w", err)
	}
	return dispatchtable.WriteBuilderAPI(w, entries)
}

// WriteJSON writes the interpreter-artifact summary (section 6's json.out)
// for the opcodes process-bytecode-def just processed.
func (d Driver) WriteJSON(w io.Writer, processed []ProcessedOpcode) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(processed)
}

// GenerateBuilderAPI aggregates every opcode declared across all of records
// into the final dispatch-table artifacts (the generate-builder-api
// subcommand, section 6): builder declarations (hdr.out) and the dispatch
// table plus parallel name table (cpp.out), keeping cpp2.out (a secondary
// build artifact the upstream toolchain also expects) as an identical copy
// of the dispatch-table output, since section 6 does not further
// distinguish the two beyond naming both.
func (d Driver) GenerateBuilderAPI(records []manifest.OpcodeRecord, hdrOut, tableOut, tableOut2 io.Writer, symbolName string) error {
	entries, err := dispatchtable.AssignOrdinals(records)
	if err != nil {
		return fmt.Errorf("pipeline: generate-builder-api: %w", err)
	}
	if err := dispatchtable.WriteBuilderAPI(hdrOut, entries); err != nil {
		return fmt.Errorf("pipeline: generate-builder-api: %w", err)
	}
	var buf bytes.Buffer
	if err := dispatchtable.WriteDispatchTable(&buf, entries, symbolName); err != nil {
		return fmt.Errorf("pipeline: generate-builder-api: %w", err)
	}
	if _, err := tableOut.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("pipeline: generate-builder-api: %w", err)
	}
	if _, err := tableOut2.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("pipeline: generate-builder-api: %w", err)
	}
	d.Log.Info("generated builder API", "opcodes", len(entries))
	return nil
}

func recordToOpcodeDef(rec manifest.OpcodeRecord) (irmodel.OpcodeDef, error) {
	operands := make([]irmodel.Operand, len(rec.Operands))
	widths := make([]int, len(rec.Operands))
	kinds := make([]irmodel.OperandKind, len(rec.Operands))
	signed := make([]bool, len(rec.Operands))
	for i, o := range rec.Operands {
		kind, err := irmodel.ParseOperandKind(o.Kind)
		if err != nil {
			return irmodel.OpcodeDef{}, fmt.Errorf("pipeline: opcode %q operand %q: %w", rec.Name, o.Name, err)
		}
		operands[i] = irmodel.Operand{Name: o.Name, Kind: kind, Width: o.Width, Signed: o.Signed}
		widths[i] = o.Width
		kinds[i] = kind
		signed[i] = o.Signed
	}
	variants := make([]irmodel.Variant, len(rec.Variants))
	for i, v := range rec.Variants {
		variants[i] = irmodel.Variant{
			Name:          rec.Name + "_" + v.Name,
			OperandWidths: widths,
			OperandKinds:  kinds,
			OperandSigned: signed,
			HotSection:    v.Hot,
			MetadataSlot:  len(rec.MetaFields) > 0,
		}
	}
	metaFields := make([]irmodel.MetadataField, len(rec.MetaFields))
	for i, m := range rec.MetaFields {
		metaFields[i] = irmodel.MetadataField{Kind: m.Kind, SizeBytes: m.Size, Log2Align: m.Log2Align, CountPerFunc: m.Count}
	}
	return irmodel.OpcodeDef{Name: rec.Name, Operands: operands, Variants: variants, MetadataFields: metaFields}, nil
}

// funcNames returns every function symbol name the desugaring driver needs
// to classify. Callees in a desugared semir.Func are value references, not
// named functions (section 9's inliner collaborator operates one level up,
// over the upstream IR library's own call graph), so the only name that
// exists at this layer is the body's own.
func funcNames(fn *semir.Func) []string {
	return []string{fn.FuncName}
}
