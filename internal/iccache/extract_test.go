package iccache

import (
	"testing"

	"github.com/vmforge/stencilc/internal/objfile"
	"github.com/vmforge/stencilc/internal/stencil"
)

func mainWithTwoSites() *stencil.Stencil {
	return &stencil.Stencil{
		VariantName: "OpGetProp",
		IcPathCode: map[string][]byte{
			"siteA": {0x01, 0x02},
			"siteB": {0x03, 0x04, 0x05},
		},
		Relocations: map[string][]stencil.RelocationRecord{
			"text.ic.siteA": {
				{Offset: 0, Kind: objfile.ABS64, Symbol: stencil.MainLogicPrivateDataAddr, Addend: 16},
				{Offset: 8, Kind: objfile.ABS64, Symbol: stencil.MainLogicPrivateDataAddr, Addend: 16},
				{Offset: 16, Kind: objfile.PC32, Symbol: stencil.ExternalC, ExternalName: "slowpath_helper"},
			},
			"text.ic.siteB": {
				{Offset: 0, Kind: objfile.ABS64, Symbol: stencil.MainLogicPrivateDataAddr, Addend: 32},
			},
		},
	}
}

func TestExtractICBodiesOneStencilPerSite(t *testing.T) {
	bodies := ExtractICBodies(mainWithTwoSites())
	if len(bodies) != 2 {
		t.Fatalf("got %d IC bodies, want 2", len(bodies))
	}
	if bodies[0].SiteName != "siteA" || bodies[1].SiteName != "siteB" {
		t.Errorf("sites out of order: %q, %q", bodies[0].SiteName, bodies[1].SiteName)
	}
}

func TestExtractICBodiesRekeysRelocationsToFastPath(t *testing.T) {
	bodies := ExtractICBodies(mainWithTwoSites())
	for _, b := range bodies {
		if len(b.Stencil.FastPathCode) == 0 {
			t.Errorf("site %s: expected its IC code copied into FastPathCode", b.SiteName)
		}
		if _, ok := b.Stencil.Relocations["text.main"]; !ok {
			t.Errorf("site %s: expected relocations rekeyed under text.main", b.SiteName)
		}
	}
}

func TestExtractICBodiesDeduplicatesOwnerOffsets(t *testing.T) {
	bodies := ExtractICBodies(mainWithTwoSites())
	siteA := bodies[0]
	if len(siteA.OwnerOffsets) != 1 || siteA.OwnerOffsets[0] != 16 {
		t.Errorf("siteA owner offsets = %v, want [16]", siteA.OwnerOffsets)
	}
	siteB := bodies[1]
	if len(siteB.OwnerOffsets) != 1 || siteB.OwnerOffsets[0] != 32 {
		t.Errorf("siteB owner offsets = %v, want [32]", siteB.OwnerOffsets)
	}
}
