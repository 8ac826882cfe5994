package scan

import (
	"net"

	"github.com/google/gopacket/macs"
	"github.com/mostlygeek/arp"
)

type PortState uint8

const (
	PortUnknown PortState = iota
	PortOpen
	PortClosed
	PortFiltered
	// PortErrored means the probe could not be attempted at all, e.g. the
	// local host ran out of file descriptors.
	PortErrored
)

func (s PortState) String() string {
	switch s {
	case PortOpen:
		return "open"
	case PortClosed:
		return "closed"
	case PortFiltered:
		return "filtered"
	case PortErrored:
		return "error"
	}
	return "unknown"
}

// Host describes the scanned machine. MAC, Manufacturer and Name are only
// known when the target sits on the local network.
type Host struct {
	Target       string
	IP           net.IP
	MAC          string
	Manufacturer string
	Name         string
}

func NewHost(target string, ip net.IP) Host {
	if target == "" {
		target = ip.String()
	}
	return Host{
		Target: target,
		IP:     ip,
	}
}

// Identify fills in link-layer details from the ARP cache.
func (h *Host) Identify() {
	macStr := arp.Search(h.IP.String())
	if macStr == "" || macStr == "00:00:00:00:00:00" {
		return
	}

	mac, err := net.ParseMAC(macStr)
	if err != nil {
		return
	}

	h.MAC = mac.String()
	h.Manufacturer = manufacturer(mac)

	// only bother looking up hostname for local devices
	if addr, err := net.LookupAddr(h.IP.String()); err == nil && len(addr) > 0 {
		h.Name = addr[0]
	}
}

func manufacturer(mac net.HardwareAddr) string {
	if len(mac) < 3 {
		return ""
	}
	prefix := [3]byte{
		mac[0],
		mac[1],
		mac[2],
	}
	return macs.ValidMACPrefixMap[prefix]
}
