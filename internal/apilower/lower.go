/*
 * stencilc - API Lowering (Component D, section 4.D)
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

// Package apilower rewrites each recognized API call in a semir.Func to
// tier-appropriate lowered IR, per the table in section 4.D. The interpreter
// lowering produces direct tail-call/dispatch instructions; the JIT
// lowerings (Baseline and Optimizing share the same shape here; Optimizing
// additionally carries speculative guards, which pass through as generic
// instructions) produce the same value layout but route control transfer
// through patch holes the stencil machinery fills in later.
package apilower

import (
	"fmt"

	"github.com/vmforge/stencilc/internal/apisym"
	"github.com/vmforge/stencilc/internal/semir"
	"github.com/vmforge/stencilc/internal/tierup"
)

// Tier identifies which execution tier a lowering targets.
type Tier int

const (
	Interpreter Tier = iota
	Baseline
	Optimizing
)

func (t Tier) String() string {
	switch t {
	case Interpreter:
		return "Interpreter"
	case Baseline:
		return "Baseline"
	case Optimizing:
		return "Optimizing"
	default:
		return "Tier(?)"
	}
}

// IsJIT reports whether t routes control transfer through patch holes
// rather than direct tail calls.
func (t Tier) IsJIT() bool { return t != Interpreter }

// Op names one lowered instruction kind.
type Op string

const (
	OpGeneric                 Op = "generic"
	OpWriteReturnSlot         Op = "write_return_slot"
	OpClearVarRetCursor       Op = "clear_var_ret_cursor"
	OpConsumeVarRetCursor     Op = "consume_var_ret_cursor"
	OpPreserveVarRetCursor    Op = "preserve_var_ret_cursor"
	OpInvalidateVarRetCursor  Op = "invalidate_var_ret_cursor"
	OpTailCallReturnAddress   Op = "tail_call_return_address"
	OpTailCallContinuationHole Op = "tail_call_continuation_hole"
	OpBuildFrameHeader        Op = "build_frame_header"
	OpTailCallCalleeEntry     Op = "tail_call_callee_entry"
	OpCallJITEntryHole        Op = "call_jit_entry_hole"
	OpTailCallErrorHandler    Op = "tail_call_error_handler"
	OpCallExternalErrorHandler Op = "call_external_error_handler"
	OpDispatchNext            Op = "dispatch_next_bytecode"
	OpDispatchTarget          Op = "dispatch_bytecode_at_target"
	OpApplyTierUpDelta        Op = "apply_tier_up_delta"
	OpBranchHoleTaken         Op = "branch_hole_taken"
	OpBranchHoleNotTaken      Op = "branch_hole_not_taken"
	OpComputeMetadataPtr      Op = "compute_metadata_ptr"
	OpComputeMetadataPtrHole  Op = "compute_metadata_ptr_hole"
)

// Inst is one lowered instruction. Not every field is meaningful for every
// Op; see the comment on each Op's emission site below.
type Inst struct {
	Op       Op
	Values   []semir.ValueRef
	Callee   semir.ValueRef
	Cond     semir.ValueRef
	Int0     int64
	Str0     string
	Generic  *semir.GenericInst
	Reloc    string // external symbol name, for Error's JIT lowering
}

// LoweredFunc is the tier-specific output of lowering one variant's body.
type LoweredFunc struct {
	Tier                Tier
	Insts               []Inst
	MayFallThrough      bool
	MayTailCall         bool
	HasTierUpCounterRef bool
}

// Options configures lowering behavior that is a build-wide, not per-call,
// decision.
type Options struct {
	// ReturnSlotMinimum is the VM-mandated minimum number of return slots;
	// Return pads its value list with nil immediates up to this count
	// (section 4.D, tested by scenario S4).
	ReturnSlotMinimum int
	// TierUpEnabled must be false to omit the tier-up counter field
	// entirely from generated code (section 4.D).
	TierUpEnabled bool
	// SlotWidthBytes is the VM's stack-slot width, used for frame-shift
	// arithmetic (section 4.D).
	SlotWidthBytes int
}

// Lower rewrites every API call in fn to tier-appropriate IR. It is the
// single entry point Wrapper Synthesis (Component C) calls after inlining
// the desugared semantic body (section 4.C).
func Lower(tier Tier, fn *semir.Func, opts Options) (LoweredFunc, error) {
	if opts.ReturnSlotMinimum <= 0 {
		return LoweredFunc{}, fmt.Errorf("apilower: ReturnSlotMinimum must be positive, got %d", opts.ReturnSlotMinimum)
	}
	out := LoweredFunc{Tier: tier}
	for i, stmt := range fn.Stmts {
		if stmt.Generic != nil {
			out.Insts = append(out.Insts, Inst{Op: OpGeneric, Generic: stmt.Generic})
			continue
		}
		c := stmt.Call
		if c == nil {
			return LoweredFunc{}, fmt.Errorf("apilower: statement %d in %q is neither a call nor a generic instruction", i, fn.FuncName)
		}
		insts, err := lowerCall(tier, *c, opts)
		if err != nil {
			return LoweredFunc{}, fmt.Errorf("apilower: %q stmt %d: %w", fn.FuncName, i, err)
		}
		out.Insts = append(out.Insts, insts...)

		switch c.Symbol {
		case apisym.MakeTailCall:
			out.MayTailCall = true
		case apisym.Return, apisym.ReturnNone, apisym.Error:
			// terminates this control-flow path; does not, by itself,
			// prevent another statement's CondBr from falling through.
		case apisym.CondBr:
			out.MayFallThrough = true
		}
	}
	// A body with no terminating statement at all (no Return/ReturnNone/
	// MakeTailCall/Error/CondBr as its last statement) falls through to the
	// next bytecode by construction.
	if len(fn.Stmts) == 0 || !isTerminator(fn.Stmts[len(fn.Stmts)-1]) {
		out.MayFallThrough = true
	}
	out.HasTierUpCounterRef = opts.TierUpEnabled
	return out, nil
}

func isTerminator(s semir.Stmt) bool {
	if s.Call == nil {
		return false
	}
	switch s.Call.Symbol {
	case apisym.Return, apisym.ReturnNone, apisym.MakeTailCall, apisym.Error, apisym.CondBr:
		return true
	default:
		return false
	}
}

func lowerCall(tier Tier, c semir.Call, opts Options) ([]Inst, error) {
	switch c.Symbol {
	case apisym.Return:
		return lowerReturn(tier, c.Values, opts), nil
	case apisym.ReturnNone:
		return lowerReturn(tier, nil, opts), nil
	case apisym.MakeCall:
		return lowerMakeCall(tier, c, opts, false), nil
	case apisym.MakeTailCall:
		return lowerMakeCall(tier, c, opts, true), nil
	case apisym.Error:
		return lowerError(tier, c), nil
	case apisym.CondBr:
		return lowerCondBr(tier, c, opts), nil
	case apisym.GetBytecodeMetadataPtr:
		return lowerMetadataPtr(tier, c), nil
	case apisym.GuardIsDouble, apisym.GuardIsInt32, apisym.TierUpCheck:
		if c.Symbol == apisym.TierUpCheck && !opts.TierUpEnabled {
			return nil, nil // omitted entirely when tier-up is disabled
		}
		if c.Symbol == apisym.TierUpCheck {
			return []Inst{{Op: OpApplyTierUpDelta}}, nil
		}
		// Guards are tier-independent type checks; they pass straight
		// through as a generic instruction bearing the guard's name.
		return []Inst{{Op: OpGeneric, Generic: &semir.GenericInst{Mnemonic: string(c.Symbol), Args: []semir.ValueRef{c.Cond}}}}, nil
	default:
		return nil, fmt.Errorf("unrecognized API symbol %q", c.Symbol)
	}
}

// lowerReturn implements the Return row of the table in section 4.D,
// including the VM-mandated return-slot padding (scenario S4).
func lowerReturn(tier Tier, values []semir.ValueRef, opts Options) []Inst {
	padded := make([]semir.ValueRef, len(values))
	copy(padded, values)
	for len(padded) < opts.ReturnSlotMinimum {
		padded = append(padded, semir.Nil())
	}
	insts := []Inst{
		{Op: OpWriteReturnSlot, Values: padded},
		{Op: OpClearVarRetCursor},
	}
	if tier == Interpreter {
		insts = append(insts, Inst{Op: OpTailCallReturnAddress, Values: padded})
	} else {
		insts = append(insts, Inst{Op: OpTailCallContinuationHole, Values: padded})
	}
	return insts
}

func lowerMakeCall(tier Tier, c semir.Call, opts Options, tailCall bool) []Inst {
	insts := []Inst{{Op: OpBuildFrameHeader, Callee: c.Callee}}
	if c.ConsumesVarRet {
		insts = append(insts, Inst{Op: OpConsumeVarRetCursor})
	} else {
		insts = append(insts, Inst{Op: OpPreserveVarRetCursor})
	}
	if tier == Interpreter {
		insts = append(insts, Inst{Op: OpTailCallCalleeEntry, Callee: c.Callee})
	} else {
		insts = append(insts, Inst{Op: OpCallJITEntryHole, Callee: c.Callee})
	}
	_ = tailCall // both MakeCall and MakeTailCall share this lowering shape; the
	// distinction between "call" and "tail call" is the frame-reuse decision
	// the frame-header builder makes from MayTailCall, not a different op here.
	return insts
}

func lowerError(tier Tier, c semir.Call) []Inst {
	if tier == Interpreter {
		return []Inst{{Op: OpTailCallErrorHandler, Str0: c.ErrorKind}}
	}
	return []Inst{{Op: OpCallExternalErrorHandler, Str0: c.ErrorKind, Reloc: "DeegenVMErrorHandler"}}
}

// lowerCondBr implements the CondBr row of the table in section 4.D. The
// tier-up counter update is part of the interpreter lowering only when
// tier-up is enabled: "Must be omitted entirely when tier-up is disabled at
// build time" (section 4.D).
func lowerCondBr(tier Tier, c semir.Call, opts Options) []Inst {
	if tier == Interpreter {
		insts := []Inst{
			{Op: OpDispatchTarget, Cond: c.Cond, Int0: c.TargetDelta},
			{Op: OpDispatchNext, Cond: c.Cond},
		}
		if opts.TierUpEnabled {
			insts = append(insts, Inst{Op: OpApplyTierUpDelta, Int0: tierup.BranchDelta(0, c.TargetDelta)})
		}
		return insts
	}
	return []Inst{
		{Op: OpBranchHoleTaken, Cond: c.Cond, Int0: c.TargetDelta},
		{Op: OpBranchHoleNotTaken, Cond: c.Cond},
	}
}

func lowerMetadataPtr(tier Tier, c semir.Call) []Inst {
	if tier == Interpreter {
		return []Inst{{Op: OpComputeMetadataPtr, Str0: c.MetadataKind, Int0: int64(c.MetadataSlotIndex)}}
	}
	return []Inst{{Op: OpComputeMetadataPtrHole, Str0: c.MetadataKind, Int0: int64(c.MetadataSlotIndex)}}
}
