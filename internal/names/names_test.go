package names

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"grimm.is/vpcctl/internal/fault"
)

func TestDerivedNames(t *testing.T) {
	assert.Equal(t, "br-alpha", Bridge("alpha"))
	assert.Equal(t, "ns-alpha-web", Namespace("alpha", "web"))
	assert.Equal(t, "ns-alpha-", NamespacePrefix("alpha"))

	nsSide, brSide := VethPair("web")
	assert.Equal(t, "veth-web-ns", nsSide)
	assert.Equal(t, "veth-web-br", brSide)
}

func TestVPCFromBridge(t *testing.T) {
	vpc, ok := VPCFromBridge("br-alpha")
	assert.True(t, ok)
	assert.Equal(t, "alpha", vpc)

	_, ok = VPCFromBridge("docker0")
	assert.False(t, ok)

	_, ok = VPCFromBridge("br-")
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("alpha", "web"))
	assert.NoError(t, Validate("alpha", ""))

	// br- prefix leaves 12 characters for the vpc name.
	assert.NoError(t, Validate("abcdefghijkl", ""))
	err := Validate("abcdefghijklm", "")
	assert.True(t, errors.Is(err, fault.ErrInvalidName))

	// veth- and -ns/-br leave 7 characters for the subnet name.
	assert.NoError(t, Validate("a", "abcdefg"))
	err = Validate("a", "abcdefgh")
	assert.True(t, errors.Is(err, fault.ErrInvalidName))

	assert.Error(t, Validate("", "web"))
	assert.Error(t, Validate("has space", "web"))
	assert.Error(t, Validate("alpha", "has/slash"))
}
