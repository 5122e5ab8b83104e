package resilience

import (
	"strings"
	"time"
)

// Config is the executor-wide policy. Overrides adjust the retry budget and
// attempt timeout per operation; an override keyed "ollama" applies to every
// "ollama.*" operation unless a longer key such as "ollama.generate" matches.
type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64
	CallTimeout         time.Duration

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32

	Overrides map[string]Override
}

// Override replaces the non-zero fields of the base policy for matching operations.
type Override struct {
	RetryMaxAttempts int
	CallTimeout      time.Duration
}

type attemptPolicy struct {
	maxAttempts int
	callTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 100 * time.Millisecond,
		RetryMaxBackoff:     400 * time.Millisecond,
		RetryMultiplier:     2.0,
		CallTimeout:         0,

		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

// ChatDependencyOverrides returns the per-dependency budget of the chat path:
// generation keeps the long attempt timeout and is retried at most once, the
// other dependencies use fastTimeout.
func ChatDependencyOverrides(generateTimeout, fastTimeout time.Duration) map[string]Override {
	fast := Override{CallTimeout: fastTimeout}
	return map[string]Override{
		"ollama.generate": {RetryMaxAttempts: 2, CallTimeout: generateTimeout},
		"ollama.embed":    fast,
		"qdrant":          fast,
		"nats":            fast,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()

	if out.RetryMaxAttempts <= 0 {
		out.RetryMaxAttempts = def.RetryMaxAttempts
	}
	if out.RetryInitialBackoff <= 0 {
		out.RetryInitialBackoff = def.RetryInitialBackoff
	}
	if out.RetryMaxBackoff <= 0 {
		out.RetryMaxBackoff = def.RetryMaxBackoff
	}
	if out.RetryMaxBackoff < out.RetryInitialBackoff {
		out.RetryMaxBackoff = out.RetryInitialBackoff
	}
	if out.RetryMultiplier < 1.0 {
		out.RetryMultiplier = def.RetryMultiplier
	}
	if out.CallTimeout < 0 {
		out.CallTimeout = 0
	}

	if out.BreakerMinRequests == 0 {
		out.BreakerMinRequests = def.BreakerMinRequests
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	if out.BreakerOpenTimeout <= 0 {
		out.BreakerOpenTimeout = def.BreakerOpenTimeout
	}
	if out.BreakerHalfOpenMaxCalls == 0 {
		out.BreakerHalfOpenMaxCalls = def.BreakerHalfOpenMaxCalls
	}

	if len(c.Overrides) > 0 {
		out.Overrides = make(map[string]Override, len(c.Overrides))
		for key, o := range c.Overrides {
			key = strings.TrimSpace(key)
			if key == "" {
				continue
			}
			if o.RetryMaxAttempts < 0 {
				o.RetryMaxAttempts = 0
			}
			if o.CallTimeout < 0 {
				o.CallTimeout = 0
			}
			out.Overrides[key] = o
		}
	}

	return out
}

// policyFor resolves the most specific override for an operation.
func (c Config) policyFor(operation string) attemptPolicy {
	p := attemptPolicy{maxAttempts: c.RetryMaxAttempts, callTimeout: c.CallTimeout}

	best := ""
	var match Override
	for key, o := range c.Overrides {
		if operation != key && !strings.HasPrefix(operation, key+".") {
			continue
		}
		if len(key) > len(best) {
			best = key
			match = o
		}
	}
	if best == "" {
		return p
	}
	if match.RetryMaxAttempts > 0 {
		p.maxAttempts = match.RetryMaxAttempts
	}
	if match.CallTimeout > 0 {
		p.callTimeout = match.CallTimeout
	}
	return p
}
