// Package policy loads security-policy files and applies their ingress
// rules to a subnet's namespace firewall.
//
// Applying a policy is not idempotent: rules carry no identity beyond their
// content, so reapplying the same file appends duplicates. Delete and
// recreate the subnet to start from a clean rule set.
package policy

import (
	"encoding/json"
	"fmt"
	"os"

	"grimm.is/vpcctl/internal/fault"
	"grimm.is/vpcctl/internal/logging"
	"grimm.is/vpcctl/internal/names"
	"grimm.is/vpcctl/internal/nftctl"
	"grimm.is/vpcctl/internal/topology"
)

// IngressRule is one entry of a policy's ingress sequence.
type IngressRule struct {
	Port     int    `json:"port"`
	Protocol string `json:"protocol"`
	Action   string `json:"action"`
}

// Validate checks a single rule. Invalid rules are skipped during apply,
// never fatal.
func (r IngressRule) Validate() error {
	if r.Action != "accept" && r.Action != "deny" {
		return fmt.Errorf("%w: action must be accept or deny, got %q", fault.ErrPolicyParse, r.Action)
	}
	if r.Port < 1 || r.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", fault.ErrPolicyParse, r.Port)
	}
	if r.Protocol != "tcp" && r.Protocol != "udp" {
		return fmt.Errorf("%w: protocol must be tcp or udp, got %q", fault.ErrPolicyParse, r.Protocol)
	}
	return nil
}

// Policy targets exactly one subnet.
type Policy struct {
	VPC     string        `json:"vpc"`
	Subnet  string        `json:"subnet"`
	Ingress []IngressRule `json:"ingress"`
}

// Load reads and decodes a policy file. A file without the vpc and subnet
// keys is fatal; individual ingress rules are only checked at apply time.
func Load(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read policy file: %w", err)
	}
	var p Policy
	if err := json.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("%w: %v", fault.ErrPolicyParse, err)
	}
	if p.VPC == "" {
		return Policy{}, fmt.Errorf("%w: missing required key %q", fault.ErrPolicyParse, "vpc")
	}
	if p.Subnet == "" {
		return Policy{}, fmt.Errorf("%w: missing required key %q", fault.ErrPolicyParse, "subnet")
	}
	return p, nil
}

// Applier installs a policy's ingress rules into the target namespace.
type Applier struct {
	log  *logging.Logger
	fw   nftctl.RuleManager
	topo *topology.Inspector
}

// NewApplier wires an Applier from its dependencies.
func NewApplier(fw nftctl.RuleManager, topo *topology.Inspector) *Applier {
	return &Applier{
		log:  logging.WithComponent("policy"),
		fw:   fw,
		topo: topo,
	}
}

// Apply appends the policy's valid ingress rules to the subnet's input
// chain, after the namespace defaults and before the terminal drop policy.
// Invalid rules are skipped with a warning; a missing subnet is fatal; a
// rule the kernel rejects aborts the rest of the sequence.
func (a *Applier) Apply(p Policy) error {
	if err := names.Validate(p.VPC, p.Subnet); err != nil {
		return err
	}
	nsName := names.Namespace(p.VPC, p.Subnet)
	exists, err := a.topo.NamespaceExists(nsName)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: subnet %s/%s does not exist", fault.ErrNotFound, p.VPC, p.Subnet)
	}

	a.log.Info("applying ingress rules", "vpc", p.VPC, "subnet", p.Subnet, "rules", len(p.Ingress))
	applied := 0
	for i, rule := range p.Ingress {
		if err := rule.Validate(); err != nil {
			a.log.Warn("skipping invalid ingress rule", "index", i, "error", err)
			continue
		}
		if err := a.fw.AddIngressRule(nsName, uint16(rule.Port), rule.Protocol, rule.Action == "accept"); err != nil {
			return fmt.Errorf("failed to apply ingress rule %d (%s/%d %s): %w",
				i, rule.Protocol, rule.Port, rule.Action, err)
		}
		applied++
	}

	a.log.Info("ingress rules applied", "vpc", p.VPC, "subnet", p.Subnet,
		"applied", applied, "skipped", len(p.Ingress)-applied)
	return nil
}
