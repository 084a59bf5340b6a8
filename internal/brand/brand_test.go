package brand

import "testing"

func TestBrandLoaded(t *testing.T) {
	if Name == "" || BinaryName == "" {
		t.Fatal("brand identity not loaded from brand.json")
	}
	if NFTTable == "" {
		t.Fatal("nft table name must be set")
	}
}
