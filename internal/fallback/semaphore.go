package fallback

import (
	"context"
	"sync"

	"github.com/yourorg/labreport-extract/internal/config"
)

// sharedSemaphore bounds concurrent in-flight LLM fallback calls across every
// OpenAIHeaderFallback/OpenAIPatientNameFallback instance in the process
// (spec §5: "a shared semaphore limiting concurrent in-flight calls across
// all extractor instances in the process, default bound: 2"). It is built
// once, sized from the first caller's config, and reused by every later
// caller in the process regardless of their own MaxConcurrent setting —
// mirroring the core's memoized-lexicon singleton pattern.
var (
	semOnce sync.Once
	sem     chan struct{}
)

func sharedSemaphore(maxConcurrent int) chan struct{} {
	semOnce.Do(func() {
		if maxConcurrent <= 0 {
			maxConcurrent = config.DefaultFallbackMaxConcurrent
		}
		sem = make(chan struct{}, maxConcurrent)
	})
	return sem
}

// acquire blocks until a semaphore slot is free or ctx is done.
func acquire(ctx context.Context, maxConcurrent int) error {
	s := sharedSemaphore(maxConcurrent)
	select {
	case s <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func release(maxConcurrent int) {
	s := sharedSemaphore(maxConcurrent)
	<-s
}
