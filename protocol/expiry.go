package protocol

import "time"

// Default TTLs by event category. Stock and dock events go stale quickly;
// order history matters for longer.
var defaultTTLs = map[string]time.Duration{
	TypeTruckDocked:  2 * time.Minute,
	TypeDockAssigned: 2 * time.Minute,
	TypeDockDone:     2 * time.Minute,

	TypeLowStock:   10 * time.Minute,
	TypeRestocked:  10 * time.Minute,
	TypeRobotAdded: 10 * time.Minute,

	TypeOrderConfirmed: 60 * time.Minute,
	TypeOrderStatus:    60 * time.Minute,
}

// FallbackTTL is used when no specific TTL is configured.
const FallbackTTL = 10 * time.Minute

// DefaultTTLFor returns the default TTL for an event type.
func DefaultTTLFor(eventType string) time.Duration {
	if ttl, ok := defaultTTLs[eventType]; ok {
		return ttl
	}
	return FallbackTTL
}

// IsExpired returns true if the envelope has passed its expiry time.
func IsExpired(env *Envelope) bool {
	return expired(env.ExpiresAt)
}

// IsExpiredHeader checks expiry using only the raw header.
func IsExpiredHeader(hdr *RawHeader) bool {
	return expired(hdr.ExpiresAt)
}

func expired(at time.Time) bool {
	return !at.IsZero() && time.Now().UTC().After(at)
}
