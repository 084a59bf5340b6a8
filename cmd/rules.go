package cmd

import (
	"grimm.is/vpcctl/internal/policy"
)

// RunApplyRules loads a policy file and applies its ingress rules to the
// target subnet. Reapplying the same file appends duplicate rules.
func RunApplyRules(policyPath string) error {
	p, err := policy.Load(policyPath)
	if err != nil {
		return err
	}
	d, err := buildDeps()
	if err != nil {
		return err
	}
	return policy.NewApplier(d.fw, d.topo).Apply(p)
}
