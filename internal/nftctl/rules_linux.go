//go:build linux
// +build linux

package nftctl

import (
	"fmt"
	"net"

	"github.com/google/nftables/binaryutil"
	"github.com/google/nftables/expr"
	"golang.org/x/sys/unix"
)

// IPv4 header offsets (RFC 791).
const (
	ipv4SrcOffset = 12
	ipv4DstOffset = 16
	ipv4AddrLen   = 4
)

// th dport lives two bytes into the transport header for both TCP and UDP.
const transportDportOffset = 2

// ifnameBytes renders an interface name the way nftables compares it: a
// 16-byte buffer, null padded.
func ifnameBytes(name string) []byte {
	b := make([]byte, 16)
	copy(b, name)
	return b
}

// matchIIFName matches the input interface by name.
func matchIIFName(name string) []expr.Any {
	return []expr.Any{
		&expr.Meta{Key: expr.MetaKeyIIFNAME, Register: 1},
		&expr.Cmp{
			Op:       expr.CmpOpEq,
			Register: 1,
			Data:     ifnameBytes(name),
		},
	}
}

// matchOIFName matches the output interface by name.
func matchOIFName(name string) []expr.Any {
	return []expr.Any{
		&expr.Meta{Key: expr.MetaKeyOIFNAME, Register: 1},
		&expr.Cmp{
			Op:       expr.CmpOpEq,
			Register: 1,
			Data:     ifnameBytes(name),
		},
	}
}

// matchNet matches the packet's source or destination address against an
// IPv4 network: load the address, mask it, compare with the network base.
func matchNet(ipNet *net.IPNet, src bool) []expr.Any {
	offset := uint32(ipv4DstOffset)
	if src {
		offset = ipv4SrcOffset
	}

	exprs := []expr.Any{
		&expr.Payload{
			DestRegister: 1,
			Base:         expr.PayloadBaseNetworkHeader,
			Offset:       offset,
			Len:          ipv4AddrLen,
		},
	}

	ones, bits := ipNet.Mask.Size()
	if ones < bits {
		exprs = append(exprs, &expr.Bitwise{
			SourceRegister: 1,
			DestRegister:   1,
			Len:            ipv4AddrLen,
			Mask:           ipNet.Mask,
			Xor:            make([]byte, ipv4AddrLen),
		})
	}

	exprs = append(exprs, &expr.Cmp{
		Op:       expr.CmpOpEq,
		Register: 1,
		Data:     ipNet.IP.Mask(ipNet.Mask).To4(),
	})
	return exprs
}

// matchCtEstablished matches connections in established or related state.
func matchCtEstablished() []expr.Any {
	return []expr.Any{
		&expr.Ct{Key: expr.CtKeySTATE, Register: 1},
		&expr.Bitwise{
			SourceRegister: 1,
			DestRegister:   1,
			Len:            4,
			Mask:           binaryutil.NativeEndian.PutUint32(expr.CtStateBitESTABLISHED | expr.CtStateBitRELATED),
			Xor:            []byte{0, 0, 0, 0},
		},
		&expr.Cmp{
			Op:       expr.CmpOpNeq,
			Register: 1,
			Data:     []byte{0, 0, 0, 0},
		},
	}
}

// matchTransportDport matches the layer-4 protocol and destination port.
func matchTransportDport(protocol string, port uint16) ([]expr.Any, error) {
	var proto byte
	switch protocol {
	case "tcp":
		proto = unix.IPPROTO_TCP
	case "udp":
		proto = unix.IPPROTO_UDP
	default:
		return nil, fmt.Errorf("unsupported protocol %q", protocol)
	}

	return []expr.Any{
		&expr.Meta{Key: expr.MetaKeyL4PROTO, Register: 1},
		&expr.Cmp{
			Op:       expr.CmpOpEq,
			Register: 1,
			Data:     []byte{proto},
		},
		&expr.Payload{
			DestRegister: 1,
			Base:         expr.PayloadBaseTransportHeader,
			Offset:       transportDportOffset,
			Len:          2,
		},
		&expr.Cmp{
			Op:       expr.CmpOpEq,
			Register: 1,
			Data:     binaryutil.BigEndian.PutUint16(port),
		},
	}, nil
}

func verdictAccept() expr.Any {
	return &expr.Verdict{Kind: expr.VerdictAccept}
}

func verdictDrop() expr.Any {
	return &expr.Verdict{Kind: expr.VerdictDrop}
}

func masquerade() expr.Any {
	return &expr.Masq{}
}

// join concatenates expression fragments into one rule body.
func join(fragments ...[]expr.Any) []expr.Any {
	var out []expr.Any
	for _, f := range fragments {
		out = append(out, f...)
	}
	return out
}
