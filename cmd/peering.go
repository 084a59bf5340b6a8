package cmd

import (
	"grimm.is/vpcctl/internal/peering"
)

// RunPeerVPC allows forwarding between two VPCs in both directions.
func RunPeerVPC(vpcA, vpcB string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	return peering.NewManager(d.fw, d.topo).Create(vpcA, vpcB)
}

// RunDeletePeering removes the forwarding rules between two VPCs.
func RunDeletePeering(vpcA, vpcB string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	return peering.NewManager(d.fw, d.topo).Delete(vpcA, vpcB)
}
