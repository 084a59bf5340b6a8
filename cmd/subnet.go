package cmd

import (
	"grimm.is/vpcctl/internal/subnet"
)

// RunCreateSubnet creates a subnet inside a VPC. Public subnets get NAT out
// of internetIface.
func RunCreateSubnet(vpc, name, cidr string, public bool, internetIface string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	return subnet.NewLifecycle(d.nl, d.ns, d.fw, d.topo).Create(vpc, name, cidr, public, internetIface)
}

// RunDeleteSubnet deletes a subnet. The CIDR and, for public subnets, the
// internet interface are needed to locate the NAT rules and the gateway
// address; without them those are left behind with a warning.
func RunDeleteSubnet(vpc, name, cidr, internetIface string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	return subnet.NewLifecycle(d.nl, d.ns, d.fw, d.topo).Delete(vpc, name, cidr, internetIface)
}
