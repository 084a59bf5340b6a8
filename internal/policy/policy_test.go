package policy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/vpcctl/internal/fault"
	"grimm.is/vpcctl/internal/netops"
	"grimm.is/vpcctl/internal/nftctl"
	"grimm.is/vpcctl/internal/topology"
)

func writePolicy(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writePolicy(t, `{
		"vpc": "alpha",
		"subnet": "web",
		"ingress": [
			{"port": 22, "protocol": "tcp", "action": "accept"},
			{"port": 53, "protocol": "udp", "action": "deny"}
		]
	}`)

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "alpha", p.VPC)
	assert.Equal(t, "web", p.Subnet)
	require.Len(t, p.Ingress, 2)
	assert.Equal(t, IngressRule{Port: 22, Protocol: "tcp", Action: "accept"}, p.Ingress[0])
}

func TestLoadMissingTarget(t *testing.T) {
	_, err := Load(writePolicy(t, `{"subnet": "web", "ingress": []}`))
	assert.True(t, errors.Is(err, fault.ErrPolicyParse))

	_, err = Load(writePolicy(t, `{"vpc": "alpha", "ingress": []}`))
	assert.True(t, errors.Is(err, fault.ErrPolicyParse))
}

func TestLoadMalformedJSON(t *testing.T) {
	_, err := Load(writePolicy(t, `{"vpc": "alpha",`))
	assert.True(t, errors.Is(err, fault.ErrPolicyParse))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestIngressRuleValidate(t *testing.T) {
	valid := IngressRule{Port: 443, Protocol: "tcp", Action: "accept"}
	assert.NoError(t, valid.Validate())

	cases := []IngressRule{
		{Port: 443, Protocol: "tcp", Action: "reject"},
		{Port: 443, Protocol: "tcp", Action: ""},
		{Port: 0, Protocol: "tcp", Action: "accept"},
		{Port: 70000, Protocol: "udp", Action: "deny"},
		{Port: 443, Protocol: "icmp", Action: "accept"},
	}
	for _, c := range cases {
		err := c.Validate()
		assert.True(t, errors.Is(err, fault.ErrPolicyParse), "rule %+v must be invalid", c)
	}
}

func newApplier() (*Applier, *netops.MockNamespaceManager, *nftctl.MockRuleManager) {
	ns := new(netops.MockNamespaceManager)
	fw := new(nftctl.MockRuleManager)
	return NewApplier(fw, topology.NewInspector(nil, ns)), ns, fw
}

func TestApply(t *testing.T) {
	a, ns, fw := newApplier()

	ns.On("Exists", "ns-alpha-web").Return(true, nil).Once()
	fw.On("AddIngressRule", "ns-alpha-web", uint16(22), "tcp", true).Return(nil).Once()
	fw.On("AddIngressRule", "ns-alpha-web", uint16(8080), "udp", false).Return(nil).Once()

	err := a.Apply(Policy{
		VPC:    "alpha",
		Subnet: "web",
		Ingress: []IngressRule{
			{Port: 22, Protocol: "tcp", Action: "accept"},
			{Port: 8080, Protocol: "udp", Action: "deny"},
		},
	})
	require.NoError(t, err)
	fw.AssertExpectations(t)
}

func TestApplySkipsInvalidRules(t *testing.T) {
	a, ns, fw := newApplier()

	ns.On("Exists", "ns-alpha-web").Return(true, nil).Once()
	fw.On("AddIngressRule", "ns-alpha-web", uint16(443), "tcp", true).Return(nil).Once()

	err := a.Apply(Policy{
		VPC:    "alpha",
		Subnet: "web",
		Ingress: []IngressRule{
			{Port: 22, Protocol: "tcp", Action: "reject"},
			{Port: 443, Protocol: "tcp", Action: "accept"},
			{Port: 0, Protocol: "udp", Action: "deny"},
		},
	})
	require.NoError(t, err)
	fw.AssertNumberOfCalls(t, "AddIngressRule", 1)
}

func TestApplyMissingSubnetIsFatal(t *testing.T) {
	a, ns, fw := newApplier()

	ns.On("Exists", "ns-alpha-web").Return(false, nil).Once()

	err := a.Apply(Policy{VPC: "alpha", Subnet: "web"})
	assert.True(t, errors.Is(err, fault.ErrNotFound))
	assert.Empty(t, fw.Calls)
}

func TestApplyStopsOnKernelFailure(t *testing.T) {
	a, ns, fw := newApplier()

	ns.On("Exists", "ns-alpha-web").Return(true, nil).Once()
	fw.On("AddIngressRule", "ns-alpha-web", uint16(22), "tcp", true).
		Return(errors.New("nft: netlink receive")).Once()

	err := a.Apply(Policy{
		VPC:    "alpha",
		Subnet: "web",
		Ingress: []IngressRule{
			{Port: 22, Protocol: "tcp", Action: "accept"},
			{Port: 80, Protocol: "tcp", Action: "accept"},
		},
	})
	require.Error(t, err)
	fw.AssertNotCalled(t, "AddIngressRule", "ns-alpha-web", uint16(80), "tcp", true)
}
