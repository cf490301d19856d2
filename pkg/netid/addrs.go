package netid

import (
	"net"

	"github.com/vishvananda/netlink"
)

// systemAddrs lists IPv4 addresses over netlink, falling back to the
// portable interface walk where netlink is unavailable.
func systemAddrs() ([]net.Addr, error) {
	list, err := netlink.AddrList(nil, netlink.FAMILY_V4)
	if err != nil {
		return net.InterfaceAddrs()
	}
	out := make([]net.Addr, 0, len(list))
	for _, a := range list {
		if a.IPNet != nil {
			out = append(out, a.IPNet)
		}
	}
	return out, nil
}
