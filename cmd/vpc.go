package cmd

import (
	"grimm.is/vpcctl/internal/vpc"
)

// RunCreateVPC creates a VPC: a bridge plus its isolation rules.
func RunCreateVPC(name, cidr string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	return vpc.NewLifecycle(d.nl, d.ns, d.sys, d.fw, d.topo).Create(name, cidr)
}

// RunDeleteVPC deletes a VPC and, best-effort, everything under it.
func RunDeleteVPC(name string) error {
	d, err := buildDeps()
	if err != nil {
		return err
	}
	return vpc.NewLifecycle(d.nl, d.ns, d.sys, d.fw, d.topo).Delete(name)
}
