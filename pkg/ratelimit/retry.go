package ratelimit

import (
	"context"
	"errors"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// httpStatusRe extracts an HTTP status code from an upstream error message,
// since the aggregator clients surface errors as plain strings (§4.1).
var httpStatusRe = regexp.MustCompile(`\b([1-5][0-9]{2})\b`)

// ErrRateLimited marks an error as an HTTP 429, for breaker-trip detection.
var ErrRateLimited = errors.New("rate limited (429)")

// Classify parses an upstream error message for a retryable HTTP status or
// a network/timeout/abort condition. Returns (retryable, is429).
func Classify(err error) (retryable bool, is429 bool) {
	if err == nil {
		return false, false
	}
	msg := strings.ToLower(err.Error())

	if m := httpStatusRe.FindStringSubmatch(msg); m != nil {
		code, _ := strconv.Atoi(m[1])
		switch code {
		case 429:
			return true, true
		case 500, 502, 503, 504:
			return true, false
		}
	}

	for _, kw := range []string{"timeout", "timed out", "network", "abort", "connection reset", "eof"} {
		if strings.Contains(msg, kw) {
			return true, false
		}
	}
	return false, false
}

// RetryParams configures the exponential-backoff retry wrapper (§4.1).
type RetryParams struct {
	MaxAttempts int           // default 4
	Base        time.Duration
	Max         time.Duration
}

func (p RetryParams) normalize() RetryParams {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 4
	}
	if p.Base <= 0 {
		p.Base = 200 * time.Millisecond
	}
	if p.Max <= 0 {
		p.Max = 10 * time.Second
	}
	return p
}

// Do runs f through the Governor's schedule, retrying retryable errors with
// exponential backoff capped at Max, plus up to 25% jitter. Each attempt
// consumes a token. On a 429, the governor's adaptive state is updated and
// the breaker for key is opened for cooldown before the final attempt
// propagates. Final failure propagates to the caller (§4.1, §7).
func Do(ctx context.Context, g *Governor, breaker *Breaker, key BreakerKey, cooldown time.Duration, p RetryParams, f func(context.Context) error) error {
	p = p.normalize()

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		err := g.Schedule(ctx, f)
		if err == nil {
			g.NoteSuccess()
			return nil
		}
		lastErr = err

		retryable, is429 := Classify(err)
		if is429 {
			g.Note429()
			if breaker != nil {
				breaker.Open(key, cooldown)
			}
		}
		if !retryable || attempt == p.MaxAttempts-1 {
			break
		}

		backoff := p.Base * time.Duration(1<<uint(attempt))
		if backoff > p.Max {
			backoff = p.Max
		}
		jitter := time.Duration(rand.Int63n(int64(backoff)/4 + 1))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
