package stencil

import (
	"testing"

	"github.com/vmforge/stencilc/internal/constpool"
	"github.com/vmforge/stencilc/internal/irmodel"
	"github.com/vmforge/stencilc/internal/objfile"
)

func fakeObject() *objfile.Object {
	constBytes := []byte{1, 2, 3, 4}
	data := append(append([]byte{0xAA}, constBytes...), 0xBB)
	return &objfile.Object{
		Sections: map[string]objfile.Section{
			mainSection: {
				Name: mainSection,
				Data: []byte{0x90, 0x90, 0x90, 0x90},
				Relocs: []objfile.Reloc{
					{Offset: 0, Kind: objfile.PC32, Symbol: slowSection, Addend: 0},
					{Offset: 4, Kind: objfile.ABS64, Symbol: "deegen_jit_stencil_shared_constant_data_object_const1", Addend: 0},
					{Offset: 8, Kind: objfile.PLT32, Symbol: "memcpy", Addend: 0},
					{Offset: 12, Kind: objfile.ABS32, Symbol: "deegen_stencil_hole_3", Addend: 0},
				},
			},
			slowSection: {Name: slowSection, Data: []byte{0x0F, 0x0B}},
			"text.ic.siteA": {
				Name: "text.ic.siteA",
				Data: []byte{0xCC},
				Relocs: []objfile.Reloc{
					{Offset: 0, Kind: objfile.ABS64, Symbol: dataSection, Addend: 0},
				},
			},
			dataSection: {Name: dataSection, Data: data},
		},
		Symbols: map[string]objfile.SymbolInfo{
			"deegen_jit_stencil_shared_constant_data_object_const1": {Value: 1, Size: 4, Section: dataSection},
		},
	}
}

func TestExtractSectionPlacement(t *testing.T) {
	pool := constpool.New()
	s, err := Extract(fakeObject(), "OpAdd", pool)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.FastPathCode) != 4 {
		t.Errorf("FastPathCode length = %d, want 4", len(s.FastPathCode))
	}
	if len(s.SlowPathCode) != 2 {
		t.Errorf("SlowPathCode length = %d, want 2", len(s.SlowPathCode))
	}
	if _, ok := s.IcPathCode["siteA"]; !ok {
		t.Error("expected IC site \"siteA\" to be captured")
	}
	if len(s.PrivateData) != 6 {
		t.Errorf("PrivateData length = %d, want 6", len(s.PrivateData))
	}
}

func TestExtractClassifiesEverySymbolKind(t *testing.T) {
	pool := constpool.New()
	s, err := Extract(fakeObject(), "OpAdd", pool)
	if err != nil {
		t.Fatal(err)
	}
	recs := s.Relocations[mainSection]
	if len(recs) != 4 {
		t.Fatalf("got %d relocations on %s, want 4", len(recs), mainSection)
	}
	want := []SymbolKind{SlowPathAddr, SharedConstant, ExternalC, Hole}
	for i, r := range recs {
		if r.Symbol != want[i] {
			t.Errorf("relocation %d: symbol kind = %v, want %v", i, r.Symbol, want[i])
		}
	}
	if recs[2].ExternalName != "memcpy" {
		t.Errorf("external relocation name = %q, want memcpy", recs[2].ExternalName)
	}
	if recs[3].HoleOrdinal != 3 {
		t.Errorf("hole ordinal = %d, want 3", recs[3].HoleOrdinal)
	}
}

func TestExtractInternsSharedConstantBytes(t *testing.T) {
	pool := constpool.New()
	s, err := Extract(fakeObject(), "OpAdd", pool)
	if err != nil {
		t.Fatal(err)
	}
	rec := s.Relocations[mainSection][1]
	if rec.Symbol != SharedConstant {
		t.Fatalf("expected SharedConstant, got %v", rec.Symbol)
	}
	entry, err := pool.Entry(rec.Const)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 2, 3, 4}
	if string(entry.Bytes) != string(want) {
		t.Errorf("interned bytes = %v, want %v", entry.Bytes, want)
	}
}

func TestExtractICRelocationTargetsMainLogicPrivateData(t *testing.T) {
	pool := constpool.New()
	s, err := Extract(fakeObject(), "OpAdd", pool)
	if err != nil {
		t.Fatal(err)
	}
	recs := s.Relocations["text.ic.siteA"]
	if len(recs) != 1 || recs[0].Symbol != MainLogicPrivateDataAddr {
		t.Errorf("IC-site relocation into the data section should classify as MainLogicPrivateDataAddr, got %+v", recs)
	}
}

func TestExtractUnknownSharedConstantSymbolIsFatal(t *testing.T) {
	obj := fakeObject()
	sec := obj.Sections[mainSection]
	sec.Relocs = append(sec.Relocs, objfile.Reloc{Offset: 16, Kind: objfile.ABS64, Symbol: "deegen_jit_stencil_shared_constant_data_object_missing"})
	obj.Sections[mainSection] = sec

	_, err := Extract(obj, "OpAdd", constpool.New())
	if err == nil {
		t.Fatal("expected an error for a shared-constant symbol absent from the symbol table")
	}
}

func TestExtractClassifiesRegisterPatch(t *testing.T) {
	obj := fakeObject()
	sec := obj.Sections[mainSection]
	sec.Relocs = append(sec.Relocs, objfile.Reloc{Offset: 20, Kind: objfile.ABS32, Symbol: "deegen_reg_patch_gpr_2"})
	obj.Sections[mainSection] = sec

	s, err := Extract(obj, "OpAdd", constpool.New())
	if err != nil {
		t.Fatal(err)
	}
	recs := s.Relocations[mainSection]
	last := recs[len(recs)-1]
	if last.Symbol != RegisterPatch {
		t.Fatalf("expected RegisterPatch, got %v", last.Symbol)
	}
	if last.RegClass != irmodel.GPRHint || last.RegSlot != 2 {
		t.Errorf("got class=%v slot=%d, want gpr slot 2", last.RegClass, last.RegSlot)
	}
}

// pointerRefObject builds a fixture where the data section holds two shared
// constants and the first references the second by pointer+addend, from
// within the first constant's own byte range: section 9's "constants may
// reference other constants by pointer+addend."
func pointerRefObject() *objfile.Object {
	data := []byte{0xAA, 1, 2, 3, 4, 0xBB}
	return &objfile.Object{
		Sections: map[string]objfile.Section{
			mainSection: {
				Name: mainSection,
				Data: []byte{0x90, 0x90, 0x90, 0x90},
				Relocs: []objfile.Reloc{
					{Offset: 0, Kind: objfile.ABS64, Symbol: "deegen_jit_stencil_shared_constant_data_object_const1", Addend: 0},
				},
			},
			dataSection: {
				Name: dataSection,
				Data: data,
				Relocs: []objfile.Reloc{
					{Offset: 2, Kind: objfile.ABS64, Symbol: "deegen_jit_stencil_shared_constant_data_object_const2", Addend: 7},
				},
			},
		},
		Symbols: map[string]objfile.SymbolInfo{
			"deegen_jit_stencil_shared_constant_data_object_const1": {Value: 1, Size: 4, Section: dataSection},
			"deegen_jit_stencil_shared_constant_data_object_const2": {Value: 5, Size: 1, Section: dataSection},
		},
	}
}

func TestExtractDetectsInterConstantPointerRef(t *testing.T) {
	pool := constpool.New()
	s, err := Extract(pointerRefObject(), "OpAdd", pool)
	if err != nil {
		t.Fatal(err)
	}
	rec := s.Relocations[mainSection][0]
	if rec.Symbol != SharedConstant {
		t.Fatalf("expected SharedConstant, got %v", rec.Symbol)
	}
	const1, err := pool.Entry(rec.Const)
	if err != nil {
		t.Fatal(err)
	}
	if len(const1.Refs) != 1 || const1.Refs[0].Addend != 7 {
		t.Fatalf("const1 refs = %+v, want one ref with addend 7", const1.Refs)
	}
	const2, err := pool.Entry(const1.Refs[0].Target)
	if err != nil {
		t.Fatal(err)
	}
	if !const2.ForwardDeclare {
		t.Error("const2 should be marked ForwardDeclare: it is referenced by pointer from const1")
	}
	if string(const2.Bytes) != string([]byte{0xBB}) {
		t.Errorf("const2 bytes = %v, want [0xBB]", const2.Bytes)
	}
}

func TestSectionBytesAccessor(t *testing.T) {
	s, err := Extract(fakeObject(), "OpAdd", constpool.New())
	if err != nil {
		t.Fatal(err)
	}
	if len(s.SectionBytes(mainSection)) != 4 {
		t.Error("SectionBytes(text.main) mismatch")
	}
	if len(s.SectionBytes("text.ic.siteA")) != 1 {
		t.Error("SectionBytes(text.ic.siteA) mismatch")
	}
	if s.SectionBytes("nonexistent") != nil {
		t.Error("SectionBytes of an unknown section should be nil")
	}
}
