package pipeline

import (
	"testing"

	"github.com/vmforge/stencilc/internal/irmodel"
)

func TestLayoutMetadataScenarioS6(t *testing.T) {
	fields := []irmodel.MetadataField{
		{Kind: "kind0", SizeBytes: 12, Log2Align: 2},
		{Kind: "kind1", SizeBytes: 4, Log2Align: 2},
	}
	layout, err := LayoutMetadata(24, fields, []int{2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if layout.BaseOffset[1] != 48 {
		t.Errorf("kind1 base offset = %d, want 48", layout.BaseOffset[1])
	}
	if layout.BaseOffset[1]%4 != 0 {
		t.Errorf("kind1 base offset %d is not 4-byte aligned", layout.BaseOffset[1])
	}
}

func TestLayoutMetadataRejectsOveralignedKind(t *testing.T) {
	fields := []irmodel.MetadataField{{Kind: "bad", SizeBytes: 8, Log2Align: 4}}
	_, err := LayoutMetadata(8, fields, []int{1})
	if err == nil {
		t.Fatal("expected an error for alignment exceeding the 8-byte cap")
	}
}

func TestLayoutMetadataRejectsMismatchedCounts(t *testing.T) {
	fields := []irmodel.MetadataField{{Kind: "a", SizeBytes: 4, Log2Align: 0}}
	_, err := LayoutMetadata(8, fields, []int{1, 2})
	if err == nil {
		t.Fatal("expected an error for a count slice of the wrong length")
	}
}

func TestApplyMetadataPatchesWritesAlignedOffset(t *testing.T) {
	fields := []irmodel.MetadataField{
		{Kind: "kind0", SizeBytes: 12, Log2Align: 2},
		{Kind: "kind1", SizeBytes: 4, Log2Align: 2},
	}
	layout, err := LayoutMetadata(24, fields, []int{2, 3})
	if err != nil {
		t.Fatal(err)
	}
	bytecode := make([]byte, 28)
	patches := []MetadataPatch{{BytecodeOffset: 4, Kind: 1, Index: 0}}
	if err := ApplyMetadataPatches(bytecode, fields, layout, patches); err != nil {
		t.Fatal(err)
	}
	got := uint32(bytecode[4]) | uint32(bytecode[5])<<8 | uint32(bytecode[6])<<16 | uint32(bytecode[7])<<24
	if got != 48 {
		t.Errorf("patched offset = %d, want 48", got)
	}
}

func TestApplyMetadataPatchesRejectsOutOfRangeKind(t *testing.T) {
	fields := []irmodel.MetadataField{{Kind: "a", SizeBytes: 4, Log2Align: 0}}
	layout, _ := LayoutMetadata(8, fields, []int{1})
	bytecode := make([]byte, 16)
	err := ApplyMetadataPatches(bytecode, fields, layout, []MetadataPatch{{BytecodeOffset: 0, Kind: 5, Index: 0}})
	if err == nil {
		t.Fatal("expected an error for an out-of-range metadata kind ordinal")
	}
}
