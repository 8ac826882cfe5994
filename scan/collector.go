package scan

import (
	"fmt"
	"sync"
)

// Collector gathers outcomes from concurrent workers. Each port may be
// recorded once; a second record is a bug in the caller and panics.
type Collector struct {
	mu       sync.Mutex
	outcomes ResultSet
	sealed   bool

	hookMu sync.Mutex
	onOpen func(Outcome)
}

// NewCollector returns a collector sized for expected ports. onOpen, if not
// nil, is called for every open outcome as soon as it is recorded. Calls are
// serialized.
func NewCollector(expected int, onOpen func(Outcome)) *Collector {
	return &Collector{
		outcomes: make(ResultSet, expected),
		onOpen:   onOpen,
	}
}

func (c *Collector) Record(outcome Outcome) {
	c.mu.Lock()
	if c.sealed {
		c.mu.Unlock()
		panic(fmt.Sprintf("scan: port %d recorded after finalize", outcome.Port))
	}
	if _, exists := c.outcomes[outcome.Port]; exists {
		c.mu.Unlock()
		panic(fmt.Sprintf("scan: port %d recorded twice", outcome.Port))
	}
	c.outcomes[outcome.Port] = outcome
	c.mu.Unlock()

	if outcome.State == PortOpen && c.onOpen != nil {
		c.hookMu.Lock()
		defer c.hookMu.Unlock()
		c.onOpen(outcome)
	}
}

// Len is the number of outcomes recorded so far.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outcomes)
}

// Finalize seals the collector and returns everything recorded. Call it only
// after every worker has returned.
func (c *Collector) Finalize() ResultSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sealed = true
	return c.outcomes
}
