package hkp

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// RateLimit limits key submissions per client IP. It is expressed as
// "requests/minutes", eg: "10/60" allows ten pushes per hour. The
// empty string disables limiting.
type RateLimit string

func (r RateLimit) parse() (requests, minutes int, err error) {
	parts := strings.SplitN(string(r), "/", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("rate limit %q must be of the form requests/minutes", string(r))
	}
	requests, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("while parsing rate limit requests: %s", err)
	}
	minutes, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, fmt.Errorf("while parsing rate limit minutes: %s", err)
	}
	if requests <= 0 || minutes <= 0 {
		return 0, 0, fmt.Errorf("rate limit %q must use positive values", string(r))
	}
	return requests, minutes, nil
}

// Validate reports whether the rate limit string is well formed.
func (r RateLimit) Validate() error {
	if r == "" {
		return nil
	}
	_, _, err := r.parse()
	return err
}

// pushLimitReached reports whether ip exhausted its submission
// budget for the configured window.
func (h *hkpHandler) pushLimitReached(ip string) bool {
	h.limitMu.Lock()
	defer h.limitMu.Unlock()

	limiter, ok := h.usersLimit[ip]
	if !ok {
		window := time.Duration(h.rateMinutes) * time.Minute
		limiter = rate.NewLimiter(rate.Every(window/time.Duration(h.rateRequests)), h.rateRequests)
		h.usersLimit[ip] = limiter
	}

	return !limiter.Allow()
}
