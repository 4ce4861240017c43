package ratelimit

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"
)

// Event represents a rate limit occurrence seen during a run
type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	Provider   string    `json:"provider"`
	StatusCode int       `json:"statusCode"` // HTTP status code (403, 429, 509)
	Occurrence int       `json:"occurrence"` // 1-based count within this run
	URL        string    `json:"url"`
	Message    string    `json:"message"` // User-friendly message
}

// Handler detects rate limit responses. It never retries: a run that hits a
// rate limit fails, and the message tells the user when to try again.
type Handler struct {
	mu          sync.RWMutex
	events      map[string]*Event // provider -> latest event
	counts      map[string]int
	suggestWait time.Duration
	onRateLimit func(event Event)
}

// NewHandler creates a rate limit handler. suggestWait is the delay quoted to
// the user before trying again; zero means 10 minutes.
func NewHandler(suggestWait time.Duration) *Handler {
	if suggestWait <= 0 {
		suggestWait = 10 * time.Minute
	}
	return &Handler{
		events:      make(map[string]*Event),
		counts:      make(map[string]int),
		suggestWait: suggestWait,
	}
}

// SetOnRateLimit sets the callback for rate limit events
func (h *Handler) SetOnRateLimit(callback func(event Event)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onRateLimit = callback
}

// IsRateLimitStatus reports whether code is one of the statuses the imagery
// servers use for throttling
func IsRateLimitStatus(code int) bool {
	return code == http.StatusTooManyRequests || // 429
		code == http.StatusForbidden || // 403
		code == 509 // Bandwidth Limit Exceeded
}

// CheckResponse records resp if it signals a rate limit and reports whether it did
func (h *Handler) CheckResponse(provider string, resp *http.Response) bool {
	if h == nil || resp == nil || !IsRateLimitStatus(resp.StatusCode) {
		return false
	}

	url := ""
	if resp.Request != nil && resp.Request.URL != nil {
		url = resp.Request.URL.String()
	}
	event := h.record(provider, resp.StatusCode, url)

	h.mu.RLock()
	callback := h.onRateLimit
	h.mu.RUnlock()
	if callback != nil {
		callback(event)
	}
	return true
}

func (h *Handler) record(provider string, statusCode int, url string) Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.counts[provider]++
	event := Event{
		Timestamp:  time.Now(),
		Provider:   provider,
		StatusCode: statusCode,
		Occurrence: h.counts[provider],
		URL:        url,
	}
	event.Message = h.buildMessage(event)
	h.events[provider] = &event

	// Only the first hit is worth a log line; the rest are siblings of the same burst.
	if event.Occurrence == 1 {
		log.Printf("[RateLimit] %s rate limited (HTTP %d) on %s", provider, statusCode, url)
	}
	return event
}

// IsRateLimited checks if a provider was rate limited during this run
func (h *Handler) IsRateLimited(provider string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, limited := h.events[provider]
	return limited
}

// Count returns how many rate-limited responses were seen for provider
func (h *Handler) Count(provider string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.counts[provider]
}

// GetCurrentState returns a copy of the latest event for provider, or nil
func (h *Handler) GetCurrentState(provider string) *Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if event, exists := h.events[provider]; exists {
		eventCopy := *event
		return &eventCopy
	}
	return nil
}

// buildMessage creates a user-friendly message
func (h *Handler) buildMessage(event Event) string {
	minutes := int(h.suggestWait.Minutes())
	if event.Occurrence == 1 {
		return fmt.Sprintf(
			"%s rate limit detected (HTTP %d). The run was aborted.\n"+
				"Wait at least %d minutes before running again, or lower the level or worker count.",
			event.Provider, event.StatusCode, minutes)
	}
	return fmt.Sprintf("%s still rate limited (%d responses this run). Try again in %d minutes.",
		event.Provider, event.Occurrence, minutes)
}
