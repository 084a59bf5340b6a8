//go:build linux
// +build linux

package nftctl

import (
	"github.com/google/nftables"
)

// FakeConn is an in-memory Conn that applies mutations immediately, used to
// assert rule ordering and comments without a kernel. Flush outcomes can be
// scripted per call via FlushErrs.
type FakeConn struct {
	Tables    []*nftables.Table
	Chains    []*nftables.Chain
	Rules     map[string][]*nftables.Rule
	FlushErrs map[int]error
	Flushes   int

	// ChainsErr, when set, makes every chain listing fail.
	ChainsErr error
}

// NewFakeConn returns an empty FakeConn.
func NewFakeConn() *FakeConn {
	return &FakeConn{Rules: make(map[string][]*nftables.Rule)}
}

// WithBaseChains pre-creates the host table, forward and postrouting chains.
func (f *FakeConn) WithBaseChains() *FakeConn {
	table := f.AddTable(hostTable())
	f.AddChain(&nftables.Chain{Name: forwardChain, Table: table, Type: nftables.ChainTypeFilter})
	f.AddChain(&nftables.Chain{Name: postroutingChain, Table: table, Type: nftables.ChainTypeNAT})
	return f
}

func (f *FakeConn) AddTable(t *nftables.Table) *nftables.Table {
	for _, existing := range f.Tables {
		if existing.Name == t.Name && existing.Family == t.Family {
			return existing
		}
	}
	f.Tables = append(f.Tables, t)
	return t
}

func (f *FakeConn) ListChainsOfTableFamily(family nftables.TableFamily) ([]*nftables.Chain, error) {
	if f.ChainsErr != nil {
		return nil, f.ChainsErr
	}
	var out []*nftables.Chain
	for _, c := range f.Chains {
		if c.Table != nil && c.Table.Family == family {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *FakeConn) AddChain(c *nftables.Chain) *nftables.Chain {
	for _, existing := range f.Chains {
		if existing.Name == c.Name && existing.Table.Name == c.Table.Name {
			return existing
		}
	}
	f.Chains = append(f.Chains, c)
	return c
}

func (f *FakeConn) GetRules(t *nftables.Table, c *nftables.Chain) ([]*nftables.Rule, error) {
	return f.Rules[c.Name], nil
}

func (f *FakeConn) AddRule(r *nftables.Rule) *nftables.Rule {
	f.Rules[r.Chain.Name] = append(f.Rules[r.Chain.Name], r)
	return r
}

func (f *FakeConn) InsertRule(r *nftables.Rule) *nftables.Rule {
	f.Rules[r.Chain.Name] = append([]*nftables.Rule{r}, f.Rules[r.Chain.Name]...)
	return r
}

func (f *FakeConn) DelRule(r *nftables.Rule) error {
	rules := f.Rules[r.Chain.Name]
	for i, existing := range rules {
		if existing == r {
			f.Rules[r.Chain.Name] = append(rules[:i:i], rules[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *FakeConn) Flush() error {
	f.Flushes++
	if err, ok := f.FlushErrs[f.Flushes]; ok {
		return err
	}
	return nil
}

// Comments returns the rule comments of a chain in evaluation order.
func (f *FakeConn) Comments(chain string) []string {
	var out []string
	for _, r := range f.Rules[chain] {
		out = append(out, string(r.UserData))
	}
	return out
}
