// Package cmd holds the entry points behind each CLI operation. Every Run*
// function wires the real kernel access layer together, performs the
// operation, and renders failures for the terminal.
package cmd

import (
	"errors"
	"fmt"
	"os"

	"grimm.is/vpcctl/internal/fault"
	"grimm.is/vpcctl/internal/netops"
	"grimm.is/vpcctl/internal/nftctl"
	"grimm.is/vpcctl/internal/topology"
)

// deps bundles the real implementations every operation needs.
type deps struct {
	nl   netops.Netlinker
	ns   netops.NamespaceManager
	sys  netops.SystemController
	fw   nftctl.RuleManager
	topo *topology.Inspector
}

// buildDeps verifies privileges and wires the kernel access layer. Nothing
// may touch kernel state before this succeeds.
func buildDeps() (*deps, error) {
	if err := requireRoot(); err != nil {
		return nil, err
	}
	nl := &netops.RealNetlinker{}
	ns := &netops.RealNamespaceManager{}
	return &deps{
		nl:   nl,
		ns:   ns,
		sys:  &netops.RealSystemController{},
		fw:   nftctl.NewManager(),
		topo: topology.NewInspector(nl, ns),
	}, nil
}

// requireRoot rejects unprivileged invocations before any mutation. Every
// operation needs CAP_NET_ADMIN and namespace access; plain root is the
// simplest sufficient check.
func requireRoot() error {
	if os.Geteuid() != 0 {
		return errors.New("this command must be run as root")
	}
	return nil
}

// RenderFault prints an error for the terminal. Partial failures get the
// full step ledger so the operator can see what succeeded, what failed and
// what the rollback managed to undo.
func RenderFault(err error) {
	var pf *fault.PartialFailure
	if !errors.As(err, &pf) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}

	fmt.Fprintf(os.Stderr, "Error: %s failed: %v\n", pf.Op, pf.Cause)
	for _, s := range pf.Steps {
		if s.OK() {
			fmt.Fprintf(os.Stderr, "  done:   %s\n", s.Name)
		} else {
			fmt.Fprintf(os.Stderr, "  failed: %s: %v\n", s.Name, s.Err)
		}
	}
	for _, s := range pf.Cleanup {
		if s.OK() {
			fmt.Fprintf(os.Stderr, "  undone: %s\n", s.Name)
		} else {
			fmt.Fprintf(os.Stderr, "  cleanup failed: %s: %v\n", s.Name, s.Err)
		}
	}
}
