package main

import (
	"log"

	"himawari-desktop/internal/common"
	"himawari-desktop/internal/ratelimit"
)

// watchRateLimits logs the user-facing message the first time the imagery
// service throttles this run
func (a *App) watchRateLimits() {
	a.rateLimitHandler.SetOnRateLimit(func(event ratelimit.Event) {
		if event.Occurrence == 1 {
			log.Printf("[RateLimit] %s", event.Message)
		}
	})
}

// GetRateLimitStatus returns the latest rate limit event of this run, or nil
func (a *App) GetRateLimitStatus() *ratelimit.Event {
	if a.rateLimitHandler != nil {
		return a.rateLimitHandler.GetCurrentState(common.ProviderHimawari)
	}
	return nil
}

// IsRateLimited reports whether the imagery service throttled this run
func (a *App) IsRateLimited() bool {
	if a.rateLimitHandler != nil {
		return a.rateLimitHandler.IsRateLimited(common.ProviderHimawari)
	}
	return false
}
