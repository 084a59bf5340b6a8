// Package brand provides centralized identity constants for the tool.
// The identity is loaded from brand.json at compile time via go:embed so
// other tooling (docs generators, packaging scripts) can read the same file.
package brand

import (
	_ "embed"
	"encoding/json"
)

//go:embed brand.json
var brandJSON []byte

// Brand holds all identity information.
type Brand struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	BinaryName  string `json:"binaryName"`
	NFTTable    string `json:"nftTable"`
}

var b Brand

func init() {
	if err := json.Unmarshal(brandJSON, &b); err != nil {
		panic("failed to parse brand.json: " + err.Error())
	}

	Name = b.Name
	Description = b.Description
	BinaryName = b.BinaryName
	NFTTable = b.NFTTable
}

// Exported identity values, populated from brand.json.
var (
	Name        string
	Description string
	BinaryName  string

	// NFTTable is the name of the nftables table every rule this tool
	// installs lives in, both on the host and inside subnet namespaces.
	NFTTable string
)
