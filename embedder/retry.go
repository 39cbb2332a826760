package embedder

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxAttempts = 3
	DefaultDelay       = time.Second
	DefaultMultiplier  = 2.0
)

// RetryPolicy describes how a failed provider call is retried. MaxAttempts
// counts every call, the first one included. A Multiplier of 1 or less gives a
// fixed Delay between attempts, anything above grows the delay exponentially.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Multiplier  float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       DefaultDelay,
		Multiplier:  DefaultMultiplier,
	}
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}

	return p.MaxAttempts
}

// BackOff builds a fresh backoff sequence for a single batch.
func (p RetryPolicy) BackOff() backoff.BackOff {
	var b backoff.BackOff
	if p.Multiplier <= 1 {
		b = backoff.NewConstantBackOff(p.Delay)
	} else {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = p.Delay
		exp.Multiplier = p.Multiplier
		exp.RandomizationFactor = 0
		exp.MaxInterval = time.Duration(1<<63 - 1)
		exp.MaxElapsedTime = 0
		b = exp
	}

	return backoff.WithMaxRetries(b, uint64(p.attempts()-1))
}

// delays lists the waits the policy puts between attempts.
func (p RetryPolicy) delays() []time.Duration {
	b := p.BackOff()
	b.Reset()

	var res []time.Duration
	for {
		d := b.NextBackOff()
		if d == backoff.Stop {
			return res
		}

		res = append(res, d)
	}
}
