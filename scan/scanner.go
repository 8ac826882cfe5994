package scan

import (
	"errors"
	"fmt"
	"net"
	"time"
)

const (
	MinWorkers = 1
	MaxWorkers = 2000
)

type Scanner interface {
	Scan(ports []Port) (Result, error)
}

// Config is shared read-only by every worker for the lifetime of a scan.
type Config struct {
	Target         net.IP
	Workers        int
	ConnectTimeout time.Duration
	// BannerTimeout bounds the probe write and banner read together. Zero
	// skips banner grabbing.
	BannerTimeout time.Duration
	// BannerProbe is written before reading. Nil means DefaultBannerProbe,
	// an empty slice means read without writing.
	BannerProbe []byte
}

func (c Config) Validate() error {
	if c.Target == nil {
		return errors.New("no target address")
	}
	if c.Workers < MinWorkers || c.Workers > MaxWorkers {
		return fmt.Errorf("worker count %d outside %d-%d", c.Workers, MinWorkers, MaxWorkers)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive, got %s", c.ConnectTimeout)
	}
	if c.BannerTimeout < 0 {
		return fmt.Errorf("banner timeout must not be negative, got %s", c.BannerTimeout)
	}
	return nil
}
