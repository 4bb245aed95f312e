package patch

import (
	"testing"

	"github.com/vmforge/stencilc/internal/irmodel"
	"github.com/vmforge/stencilc/internal/objfile"
	"github.com/vmforge/stencilc/internal/stencil"
)

func TestBuildPlanSplitsRelocationKinds(t *testing.T) {
	s := &stencil.Stencil{
		VariantName:  "OpAdd",
		FastPathCode: []byte{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
		IcPathCode:   map[string][]byte{},
		Relocations: map[string][]stencil.RelocationRecord{
			"text.main": {
				{Offset: 0, Kind: objfile.ABS64, Symbol: stencil.FastPathAddr},
				{Offset: 8, Kind: objfile.ABS32, Symbol: stencil.Hole, HoleOrdinal: 0},  // CondBr taken
				{Offset: 12, Kind: objfile.ABS32, Symbol: stencil.RegisterPatch, RegClass: irmodel.GPRHint, RegSlot: 1},
			},
		},
	}
	p := BuildPlan(s)

	if len(p.FastPath.Patches) != 1 {
		t.Errorf("got %d immediate patches, want 1", len(p.FastPath.Patches))
	}
	if len(p.FastPath.LatePatches) != 1 || p.FastPath.LatePatches[0].Offset != 8 {
		t.Errorf("late patches = %+v, want one at offset 8", p.FastPath.LatePatches)
	}
	if len(p.FastPath.RegisterRenames) != 1 || p.FastPath.RegisterRenames[0].Slot != 1 {
		t.Errorf("register renames = %+v, want one with slot 1", p.FastPath.RegisterRenames)
	}
}

func TestBuildPlanZeroesRegisterPatchImmediate(t *testing.T) {
	s := &stencil.Stencil{
		VariantName:  "OpAdd",
		FastPathCode: []byte{0xFF, 0xFF, 0xFF, 0xFF},
		IcPathCode:   map[string][]byte{},
		Relocations: map[string][]stencil.RelocationRecord{
			"text.main": {
				{Offset: 0, Kind: objfile.ABS32, Symbol: stencil.RegisterPatch, RegClass: irmodel.GPRHint, RegSlot: 0},
			},
		},
	}
	p := BuildPlan(s)
	for i, b := range p.FastPath.PreFixupCode {
		if b != 0 {
			t.Errorf("byte %d = %#x, want 0 after register-patch zeroing", i, b)
		}
	}
}

func TestBuildPlanMarksEveryPlaceholderByte(t *testing.T) {
	s := &stencil.Stencil{
		VariantName:  "OpAdd",
		FastPathCode: make([]byte, 8),
		IcPathCode:   map[string][]byte{},
		Relocations: map[string][]stencil.RelocationRecord{
			"text.main": {
				{Offset: 2, Kind: objfile.PC32, Symbol: stencil.ExternalC, ExternalName: "helper"},
			},
		},
	}
	p := BuildPlan(s)
	for i, marked := range p.FastPath.RelocMarker {
		want := i >= 2 && i < 6
		if marked != want {
			t.Errorf("byte %d marker = %v, want %v", i, marked, want)
		}
	}
}

func TestBuildPlanCollectsFPURegisters(t *testing.T) {
	s := &stencil.Stencil{
		VariantName:  "OpFAdd",
		FastPathCode: make([]byte, 4),
		IcPathCode:   map[string][]byte{},
		Relocations: map[string][]stencil.RelocationRecord{
			"text.main": {
				{Offset: 0, Kind: objfile.ABS32, Symbol: stencil.RegisterPatch, RegClass: irmodel.FPRHint, RegSlot: 0},
			},
		},
	}
	p := BuildPlan(s)
	if len(p.FPURegistersUsed) != 1 || p.FPURegistersUsed[0] != irmodel.FPRHint {
		t.Errorf("FPURegistersUsed = %+v, want [FPRHint]", p.FPURegistersUsed)
	}
}

func TestBuildPlanNoFPUWhenOnlyGPRUsed(t *testing.T) {
	s := &stencil.Stencil{
		VariantName:  "OpAdd",
		FastPathCode: make([]byte, 4),
		IcPathCode:   map[string][]byte{},
		Relocations: map[string][]stencil.RelocationRecord{
			"text.main": {
				{Offset: 0, Kind: objfile.ABS32, Symbol: stencil.RegisterPatch, RegClass: irmodel.GPRHint, RegSlot: 0},
			},
		},
	}
	p := BuildPlan(s)
	if len(p.FPURegistersUsed) != 0 {
		t.Errorf("FPURegistersUsed = %+v, want none", p.FPURegistersUsed)
	}
}

func TestBuildPlanHandlesICSections(t *testing.T) {
	s := &stencil.Stencil{
		VariantName: "OpCall",
		IcPathCode:  map[string][]byte{"siteA": {0, 0, 0, 0}},
		Relocations: map[string][]stencil.RelocationRecord{
			"text.ic.siteA": {
				{Offset: 0, Kind: objfile.ABS64, Symbol: stencil.MainLogicPrivateDataAddr},
			},
		},
	}
	p := BuildPlan(s)
	sp, ok := p.IcPath["siteA"]
	if !ok {
		t.Fatal("expected plan for IC site siteA")
	}
	if len(sp.Patches) != 1 {
		t.Errorf("got %d patches for siteA, want 1", len(sp.Patches))
	}
}
