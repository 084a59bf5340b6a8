package cmd

import (
	"fmt"
	"os"
	"strings"

	"grimm.is/vpcctl/internal/names"
)

// RunShow lists every VPC on the host and the subnets under it, derived
// entirely from live kernel state.
func RunShow() error {
	d, err := buildDeps()
	if err != nil {
		return err
	}

	vpcs, err := d.topo.Bridges()
	if err != nil {
		return err
	}
	if len(vpcs) == 0 {
		fmt.Println("no vpcs")
		return nil
	}

	for _, vpc := range vpcs {
		fmt.Fprintf(os.Stdout, "%s (%s)\n", vpc, names.Bridge(vpc))
		prefix := names.NamespacePrefix(vpc)
		subnets, err := d.topo.NamespacesWithPrefix(prefix)
		if err != nil {
			return err
		}
		for _, ns := range subnets {
			fmt.Fprintf(os.Stdout, "  %s (%s)\n", strings.TrimPrefix(ns, prefix), ns)
		}
	}
	return nil
}
