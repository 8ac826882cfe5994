package scan

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/google/gopacket/layers"
)

const (
	MinPort = 1
	MaxPort = 65535
)

var (
	ErrNoPorts       = errors.New("no ports to scan")
	ErrInvalidPort   = errors.New("invalid port selection")
	ErrDuplicatePort = errors.New("duplicate port")
)

// Port is a TCP port number in [1, 65535].
type Port uint16

func (p Port) String() string {
	return strconv.Itoa(int(p))
}

// DefaultPorts is used when no selection is given.
var DefaultPorts = portRange(1, 1024)

func portRange(from, to int) []Port {
	ports := make([]Port, 0, to-from+1)
	for i := from; i <= to; i++ {
		ports = append(ports, Port(i))
	}
	return ports
}

// DescribePort returns the IANA service name registered for a TCP port, or an
// empty string.
func DescribePort(port Port) string {
	// layers formats known ports as "80(http)"
	s := layers.TCPPort(port).String()
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return ""
	}
	return s[open+1 : len(s)-1]
}

// ParsePorts turns a selection such as "22,80,443,8080-8090" into a sorted,
// deduplicated port list. An empty selection yields DefaultPorts.
func ParsePorts(selection string) ([]Port, error) {
	selection = strings.TrimSpace(selection)
	if selection == "" {
		return slices.Clone(DefaultPorts), nil
	}

	seen := make(map[Port]struct{})
	for _, r := range strings.Split(selection, ",") {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}

		if strings.Contains(r, "-") {
			parts := strings.Split(r, "-")
			if len(parts) != 2 {
				return nil, fmt.Errorf("%w: segment '%s'", ErrInvalidPort, r)
			}

			p1, err := parsePort(parts[0])
			if err != nil {
				return nil, err
			}

			p2, err := parsePort(parts[1])
			if err != nil {
				return nil, err
			}

			if p1 > p2 {
				return nil, fmt.Errorf("%w: range %d-%d", ErrInvalidPort, p1, p2)
			}

			for i := int(p1); i <= int(p2); i++ {
				seen[Port(i)] = struct{}{}
			}
			continue
		}

		port, err := parsePort(r)
		if err != nil {
			return nil, err
		}
		seen[port] = struct{}{}
	}

	if len(seen) == 0 {
		return nil, ErrNoPorts
	}

	ports := make([]Port, 0, len(seen))
	for port := range seen {
		ports = append(ports, port)
	}
	slices.Sort(ports)
	return ports, nil
}

func parsePort(s string) (Port, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: port number '%s'", ErrInvalidPort, s)
	}
	if n < MinPort || n > MaxPort {
		return 0, fmt.Errorf("%w: port %d out of range %d-%d", ErrInvalidPort, n, MinPort, MaxPort)
	}
	return Port(n), nil
}
