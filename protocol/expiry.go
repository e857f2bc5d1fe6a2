package protocol

import "time"

// Default TTLs by message category. Stock and alert events go stale
// quickly; lifecycle events stay useful to downstream consumers longer.
var defaultTTLs = map[string]time.Duration{
	TypeStockLow:          30 * time.Minute,
	TypeMovementRecorded:  2 * time.Hour,
	TypeAlertCreated:      2 * time.Hour,
	TypeAlertStatusChange: 2 * time.Hour,

	TypeTaskCreated:       6 * time.Hour,
	TypeTaskStatusChanged: 6 * time.Hour,

	TypeOrderCreated:         24 * time.Hour,
	TypeOrderStatusChanged:   24 * time.Hour,
	TypeOrderDeleted:         24 * time.Hour,
	TypeQualityCheckRecorded: 24 * time.Hour,
	TypeMaterialCreated:      24 * time.Hour,
	TypeMaterialUpdated:      24 * time.Hour,
}

// FallbackTTL is used when no specific TTL is configured.
const FallbackTTL = time.Hour

// DefaultTTLFor returns the default TTL for a message type.
func DefaultTTLFor(msgType string) time.Duration {
	if ttl, ok := defaultTTLs[msgType]; ok {
		return ttl
	}
	return FallbackTTL
}

// IsExpired returns true if the envelope has passed its expiry time.
func IsExpired(env *Envelope) bool {
	if env.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().UTC().After(env.ExpiresAt)
}

// IsExpiredHeader checks expiry using only the raw header.
func IsExpiredHeader(hdr *RawHeader) bool {
	if hdr.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().UTC().After(hdr.ExpiresAt)
}
