package entity

import "time"

type UrgencyLevel string

const (
	UrgencyNew      UrgencyLevel = "new"
	UrgencyMedium   UrgencyLevel = "medium"
	UrgencyHigh     UrgencyLevel = "high"
	UrgencyCritical UrgencyLevel = "critical"
)

// ScoreUrgency buckets a pending booking by how long its payment has been
// outstanding. The amount is accepted so the policy can later weigh large
// payments differently, but the current tiers are time-only.
func ScoreUrgency(createdAt time.Time, paymentAmount float64, now time.Time) UrgencyLevel {
	hours := HoursSince(createdAt, now)

	switch {
	case hours >= 48:
		return UrgencyCritical
	case hours >= 24:
		return UrgencyHigh
	case hours >= 2:
		return UrgencyMedium
	default:
		return UrgencyNew
	}
}

// HoursSince returns whole hours elapsed between createdAt and now.
func HoursSince(createdAt, now time.Time) int {
	return int(now.Sub(createdAt).Hours())
}

// Rank orders urgency levels for sorting, critical first.
func (u UrgencyLevel) Rank() int {
	switch u {
	case UrgencyCritical:
		return 0
	case UrgencyHigh:
		return 1
	case UrgencyMedium:
		return 2
	default:
		return 3
	}
}
