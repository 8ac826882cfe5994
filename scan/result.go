package scan

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"
)

// Outcome is the verdict for one port. Banner is only set for open ports that
// answered the banner probe.
type Outcome struct {
	Port    Port
	State   PortState
	Banner  []byte
	Reason  string
	Latency time.Duration
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Port    Port   `json:"port"`
		State   string `json:"state"`
		Service string `json:"service,omitempty"`
		Banner  string `json:"banner,omitempty"`
		Reason  string `json:"reason,omitempty"`
	}{
		Port:    o.Port,
		State:   o.State.String(),
		Service: DescribePort(o.Port),
		Banner:  string(o.Banner),
		Reason:  o.Reason,
	})
}

// ResultSet holds exactly one outcome per scanned port.
type ResultSet map[Port]Outcome

// Ports returns the scanned ports in ascending order.
func (rs ResultSet) Ports() []Port {
	ports := make([]Port, 0, len(rs))
	for port := range rs {
		ports = append(ports, port)
	}
	slices.Sort(ports)
	return ports
}

// WithState returns the outcomes in the given state, ordered by port.
func (rs ResultSet) WithState(state PortState) []Outcome {
	var out []Outcome
	for _, port := range rs.Ports() {
		if o := rs[port]; o.State == state {
			out = append(out, o)
		}
	}
	return out
}

func (rs ResultSet) Count(state PortState) int {
	n := 0
	for _, o := range rs {
		if o.State == state {
			n++
		}
	}
	return n
}

type Result struct {
	Host     Host
	Outcomes ResultSet
	Latency  time.Duration
	Duration time.Duration
}

func NewResult(host Host) Result {
	return Result{
		Host:     host,
		Outcomes: ResultSet{},
		Latency:  -1,
	}
}

// IsHostUp is true once any port answered, whether by accepting or refusing.
func (r Result) IsHostUp() bool {
	return r.Latency > -1
}

func (r Result) MarshalJSON() ([]byte, error) {
	outcomes := make([]Outcome, 0, len(r.Outcomes))
	for _, port := range r.Outcomes.Ports() {
		outcomes = append(outcomes, r.Outcomes[port])
	}

	var latency *int64
	if r.IsHostUp() {
		ms := r.Latency.Milliseconds()
		latency = &ms
	}

	return json.Marshal(struct {
		Target       string    `json:"target"`
		IP           string    `json:"ip"`
		MAC          string    `json:"mac,omitempty"`
		Manufacturer string    `json:"manufacturer,omitempty"`
		Name         string    `json:"name,omitempty"`
		Up           bool      `json:"up"`
		LatencyMS    *int64    `json:"latency_ms,omitempty"`
		DurationMS   int64     `json:"duration_ms"`
		Ports        []Outcome `json:"ports"`
	}{
		Target:       r.Host.Target,
		IP:           r.Host.IP.String(),
		MAC:          r.Host.MAC,
		Manufacturer: r.Host.Manufacturer,
		Name:         r.Host.Name,
		Up:           r.IsHostUp(),
		LatencyMS:    latency,
		DurationMS:   r.Duration.Milliseconds(),
		Ports:        outcomes,
	})
}

func (r Result) String() string {
	return r.Format(false)
}

// Format renders the result as a table. Closed and filtered ports are only
// listed when all is set.
func (r Result) Format(all bool) string {

	text := fmt.Sprintf("Scan results for host %s (%s)\n", r.Host.Target, r.Host.IP.String())

	if r.IsHostUp() {
		text = fmt.Sprintf("%s\tHost is up with %s latency\n", text, r.Latency.String())
	} else {
		text = fmt.Sprintf("%s\t%s\n", text, "Host is down")
	}

	if r.Host.MAC != "" {
		text = fmt.Sprintf("%s\tMAC: %s %s\n", text, r.Host.MAC, r.Host.Manufacturer)
	}

	var rows []Outcome
	for _, port := range r.Outcomes.Ports() {
		o := r.Outcomes[port]
		if all || o.State == PortOpen || o.State == PortErrored {
			rows = append(rows, o)
		}
	}

	if len(rows) > 0 {
		text = fmt.Sprintf(
			"%s\t%s\t%s\t%s\t%s\n",
			text,
			pad("PORT", 10),
			pad("STATE", 10),
			pad("SERVICE", 16),
			"BANNER",
		)
	}

	for _, o := range rows {
		detail := BannerLine(o.Banner, 60)
		if o.State == PortErrored {
			detail = o.Reason
		}
		text = fmt.Sprintf(
			"%s\t%s\t%s\t%s\t%s\n",
			text,
			pad(fmt.Sprintf("%d/tcp", o.Port), 10),
			pad(strings.ToUpper(o.State.String()), 10),
			pad(DescribePort(o.Port), 16),
			detail,
		)
	}

	if !all {
		closed, filtered := r.Outcomes.Count(PortClosed), r.Outcomes.Count(PortFiltered)
		if closed+filtered > 0 {
			text = fmt.Sprintf("%s\tNot shown: %d closed, %d filtered\n", text, closed, filtered)
		}
	}

	text = fmt.Sprintf("%s\tTotal open ports: %d\n", text, r.Outcomes.Count(PortOpen))

	return text
}

// BannerLine returns the first line of a banner with control characters
// replaced, cut to limit runes.
func BannerLine(banner []byte, limit int) string {
	line, _, _ := strings.Cut(string(banner), "\n")
	line = strings.Map(func(r rune) rune {
		if r == '\r' {
			return -1
		}
		if !unicode.IsPrint(r) {
			return '.'
		}
		return r
	}, line)

	runes := []rune(line)
	if limit > 0 && len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return line
}

func pad(input string, length int) string {
	for len(input) < length {
		input += " "
	}
	return input
}
