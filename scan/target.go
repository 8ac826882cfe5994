package scan

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

var ErrNoAddress = errors.New("no address found")

var lookupIP = net.LookupIP

// ResolveTarget turns an IP literal or hostname into a single address,
// preferring IPv4 when a name has both.
func ResolveTarget(target string) (net.IP, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("%w: empty target", ErrNoAddress)
	}

	if strings.Contains(target, "/") {
		return nil, fmt.Errorf("'%s' is a network, only a single host can be scanned", target)
	}

	if ip := net.ParseIP(target); ip != nil {
		return ip, nil
	}

	ips, err := lookupIP(target)
	if err != nil {
		return nil, fmt.Errorf("lookup failed for '%s': %w", target, err)
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("%w for '%s'", ErrNoAddress, target)
	}

	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
	}
	return ips[0], nil
}
