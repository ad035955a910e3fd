package main

import (
	"net"
)

// serverAddress returns the first global unicast IPv4 address on an interface
// that is up and not a loopback, used to render the join link on the host
// dashboard. Returns "" when no suitable interface exists; callers treat
// that as "unknown address" and degrade.
func serverAddress() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP.To4()
			if ip == nil || !ip.IsGlobalUnicast() {
				continue
			}
			return ip.String()
		}
	}

	return ""
}
