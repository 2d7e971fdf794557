package util

import (
	"fmt"
	"net"
)

var privateIPBlocks []*net.IPNet

func init() {
	privateIPs, err := ParseSubnets(
		[]string{
			//"127.0.0.0/8",    // IPv4 Loopback; handled by ip.IsLoopback
			//"::1/128",        // IPv6 Loopback; handled by ip.IsLoopback
			//"169.254.0.0/16", // RFC3927 link-local; handled by ip.IsLinkLocalUnicast()
			//"fe80::/10",      // IPv6 link-local; handled by ip.IsLinkLocalUnicast()
			"10.0.0.0/8",     // RFC1918
			"172.16.0.0/12",  // RFC1918
			"192.168.0.0/16", // RFC1918
			"100.64.0.0/10",  // RFC6598 carrier grade NAT
			"fc00::/7",       // IPv6 unique local addr
		})

	if err != nil {
		panic(fmt.Sprintf("Error defining private IPs: %v", err.Error()))
	}
	privateIPBlocks = privateIPs
}

// ParseSubnets parses CIDR ranges or bare addresses into net.IPNet format.
// Bare addresses become single host networks.
func ParseSubnets(subnets []string) ([]*net.IPNet, error) {
	var parsedSubnets []*net.IPNet

	for _, entry := range subnets {
		_, block, err := net.ParseCIDR(entry)
		if err != nil {
			ipAddr := net.ParseIP(entry)
			if ipAddr == nil {
				return nil, fmt.Errorf("invalid subnet %q: %w", entry, err)
			}

			bits := 128
			if ipAddr.To4() != nil {
				ipAddr = ipAddr.To4()
				bits = 32
			}
			block = &net.IPNet{IP: ipAddr, Mask: net.CIDRMask(bits, bits)}
		}

		parsedSubnets = append(parsedSubnets, block)
	}
	return parsedSubnets, nil
}

//IPIsPubliclyRoutable checks if an IP address is publicly routable. See privateIPBlocks.
func IPIsPubliclyRoutable(ip net.IP) bool {
	if ip == nil {
		return false
	}
	// cache IPv4 conversion so it not performed every in every ip.IsXXX method
	if ipv4 := ip.To4(); ipv4 != nil {
		ip = ipv4
	}

	if ip.IsUnspecified() || ip.IsLoopback() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsInterfaceLocalMulticast() {
		return false
	}

	return !ContainsIP(privateIPBlocks, ip)
}

//ContainsIP checks if a collection of subnets contains an IP
func ContainsIP(subnets []*net.IPNet, ip net.IP) bool {
	if ipv4 := ip.To4(); ipv4 != nil {
		ip = ipv4
	}

	for _, block := range subnets {
		if block.Contains(ip) {
			return true
		}
	}
	return false
}

// FirstIPv4 returns the first non-loopback IPv4 address in addrs
func FirstIPv4(addrs []string) (string, bool) {
	for _, addr := range addrs {
		ip := net.ParseIP(addr)
		if ip == nil || ip.IsLoopback() {
			continue
		}
		if ipv4 := ip.To4(); ipv4 != nil {
			return ipv4.String(), true
		}
	}
	return "", false
}
