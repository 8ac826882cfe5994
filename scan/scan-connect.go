package scan

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var _ Scanner = (*ConnectScanner)(nil)

type ConnectScanner struct {
	cfg    Config
	prober *Prober
	onOpen func(Outcome)
}

func NewConnectScanner(cfg Config) (*ConnectScanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scan config: %w", err)
	}
	return &ConnectScanner{
		cfg:    cfg,
		prober: NewProber(cfg),
	}, nil
}

// OnOpen registers a callback fired for each open port while the scan runs.
func (s *ConnectScanner) OnOpen(fn func(Outcome)) {
	s.onOpen = fn
}

// Scan probes every port once and returns when all workers have finished.
// ports must not contain duplicates.
func (s *ConnectScanner) Scan(ports []Port) (Result, error) {
	if err := checkPorts(ports); err != nil {
		return Result{}, err
	}

	queue := NewPortQueue(ports)
	collector := NewCollector(len(ports), s.onOpen)

	workers := min(s.cfg.Workers, len(ports))
	logrus.Debugf("Scanning %d ports on %s with %d workers...", len(ports), s.cfg.Target, workers)

	startTime := time.Now()

	var g errgroup.Group
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			s.work(queue, collector)
			return nil
		})
	}
	// work never returns an error, every port ends up as an outcome instead
	_ = g.Wait()

	outcomes := collector.Finalize()
	if len(outcomes) != len(ports) {
		panic(fmt.Sprintf("scan: %d outcomes recorded for %d ports", len(outcomes), len(ports)))
	}

	result := NewResult(NewHost("", s.cfg.Target))
	result.Outcomes = outcomes
	result.Duration = time.Since(startTime)
	for _, o := range outcomes {
		if o.State != PortOpen && o.State != PortClosed {
			continue
		}
		if result.Latency < 0 || o.Latency < result.Latency {
			result.Latency = o.Latency
		}
	}

	return result, nil
}

func (s *ConnectScanner) work(queue *PortQueue, collector *Collector) {
	for {
		port, ok := queue.Take()
		if !ok {
			return
		}
		collector.Record(s.prober.Probe(port))
	}
}

func checkPorts(ports []Port) error {
	if len(ports) == 0 {
		return ErrNoPorts
	}
	seen := make(map[Port]struct{}, len(ports))
	for _, port := range ports {
		if port < MinPort {
			return fmt.Errorf("%w: port %d", ErrInvalidPort, port)
		}
		if _, ok := seen[port]; ok {
			return fmt.Errorf("%w: %d", ErrDuplicatePort, port)
		}
		seen[port] = struct{}{}
	}
	return nil
}
