package risk

// tokenBucket is the process-global rate limiter described in spec.md §3/§4.7:
// a single saturating token count, replenished lazily on every check based
// on elapsed time since the last replenish base, adapted from the teacher's
// continuous-refill internal/exchange/ratelimit.go idiom to the exact
// integer, non-blocking replenish contract this gate requires.
type tokenBucket struct {
	tokens          uint32
	nextReplenishNs uint64
	initialized     bool
}

// check replenishes the bucket against now, reports whether a token is
// available, and — if accept is true — the caller must call consume
// afterward. Replenishment always happens, pass or fail, per spec.md §4.7
// ("On entry to the check: replenish"). The first check fills the bucket to
// max and starts the replenish clock at now.
func (tb *tokenBucket) check(now uint64, ratePerMs, max uint16) bool {
	if !tb.initialized {
		tb.nextReplenishNs = now
		tb.tokens = uint32(max)
		tb.initialized = true
	}
	if now > tb.nextReplenishNs {
		elapsedMs := (now - tb.nextReplenishNs) / 1_000_000
		if elapsedMs > 0 {
			added := uint64(elapsedMs) * uint64(ratePerMs)
			newTokens := uint64(tb.tokens) + added
			if newTokens > uint64(max) {
				newTokens = uint64(max)
			}
			tb.tokens = uint32(newTokens)
			tb.nextReplenishNs += elapsedMs * 1_000_000
		}
	}
	return tb.tokens > 0
}

// consume decrements the bucket by one token. Called only on accept.
func (tb *tokenBucket) consume() {
	if tb.tokens > 0 {
		tb.tokens--
	}
}

// Tokens reports the current token count, for telemetry/testing.
func (tb *tokenBucket) Tokens() uint32 { return tb.tokens }
