package coordinator

import (
	"fmt"
	"time"

	"github.com/TEENet-io/atomic-swap/htlc"
)

type Config struct {
	// DestinationTimeLockMargin is subtracted from the source time lock to
	// get the destination time lock.
	DestinationTimeLockMargin time.Duration
	// MonitorInterval is the polling period of Monitor.
	MonitorInterval time.Duration
	// MonitorConcurrency bounds the chain queries of one monitor pass.
	MonitorConcurrency int
}

func DefaultConfig() *Config {
	return &Config{
		DestinationTimeLockMargin: time.Hour,
		MonitorInterval:           time.Minute,
		MonitorConcurrency:        8,
	}
}

func (c *Config) Validate() error {
	if c.DestinationTimeLockMargin < time.Second {
		return fmt.Errorf("%w: destination time lock margin %s is below one second", htlc.ErrConfigInvalid, c.DestinationTimeLockMargin)
	}
	if c.MonitorInterval <= 0 {
		return fmt.Errorf("%w: monitor interval must be positive", htlc.ErrConfigInvalid)
	}
	if c.MonitorConcurrency <= 0 {
		return fmt.Errorf("%w: monitor concurrency must be positive", htlc.ErrConfigInvalid)
	}
	return nil
}
