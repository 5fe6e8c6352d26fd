package resilience

import "time"

type Config struct {
	RetryMaxAttempts int
	RetryBaseBackoff time.Duration
	RetryMaxBackoff  time.Duration

	BreakerEnabled          bool
	BreakerFailureThreshold uint32
	BreakerResetTimeout     time.Duration
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts: 3,
		RetryBaseBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:  2 * time.Second,

		BreakerEnabled:          true,
		BreakerFailureThreshold: 5,
		BreakerResetTimeout:     60 * time.Second,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryBaseBackoff <= 0 {
		out.RetryBaseBackoff = def.RetryBaseBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMaxBackoff < out.RetryBaseBackoff {
		out.RetryMaxBackoff = out.RetryBaseBackoff
	}
	if out.BreakerFailureThreshold == 0 {
		out.BreakerFailureThreshold = def.BreakerFailureThreshold
	}
	if out.BreakerResetTimeout <= 0 {
		out.BreakerResetTimeout = def.BreakerResetTimeout
	}

	return out
}
