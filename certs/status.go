package certs

import (
	"math"
	"strings"
	"time"
)

// DefaultExpiryThreshold is the number of days before expiry at which
// a certificate is reported as expiring soon.
const DefaultExpiryThreshold = 30

// DaysToExpiry returns the number of whole days until notAfter,
// rounded up. Negative when the certificate is already expired, zero
// when notAfter is unknown.
func DaysToExpiry(notAfter, now time.Time) int {
	if notAfter.IsZero() {
		return 0
	}
	return int(math.Ceil(notAfter.Sub(now).Hours() / 24))
}

// Classify derives the lifecycle status from (notAfter, now, hint)
// using the default expiry threshold. See ClassifyAt.
func Classify(notAfter, now time.Time, hint string) Status {
	return ClassifyAt(notAfter, now, hint, DefaultExpiryThreshold)
}

// ClassifyAt derives the lifecycle status of a certificate.
//
// An upstream-declared status hint, when present, is authoritative:
// upstream may encode grace periods or revocation that date math
// cannot see. A hint containing "expired" (case-insensitive) yields
// StatusExpired, one containing "expiring" yields StatusExpiringSoon,
// any other non-empty hint yields StatusValid. Only when no hint is
// present does the date-based rule apply: fewer than zero days left
// is expired, up to thresholdDays is expiring soon, otherwise valid.
//
// An unknown notAfter (zero time) classifies as expired with
// DaysToExpiry 0; upstream gave us nothing to prove validity with.
func ClassifyAt(notAfter, now time.Time, hint string, thresholdDays int) Status {
	if hint != "" {
		h := strings.ToLower(hint)
		switch {
		case strings.Contains(h, "expired"):
			return StatusExpired
		case strings.Contains(h, "expiring"):
			return StatusExpiringSoon
		default:
			return StatusValid
		}
	}

	if notAfter.IsZero() {
		return StatusExpired
	}

	days := DaysToExpiry(notAfter, now)
	switch {
	case days < 0:
		return StatusExpired
	case days <= thresholdDays:
		return StatusExpiringSoon
	default:
		return StatusValid
	}
}
